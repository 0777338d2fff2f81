// Package models holds the photo record and the presign request shapes.
package models

import (
	"strings"
	"time"

	dErrors "ezclaim/pkg/domain-errors"
)

// EntityType is the logical type recorded on stored photos.
const EntityType = "Photo"

// Photo references an object in the photo bucket. The object itself is
// uploaded and downloaded by clients through presigned URLs.
type Photo struct {
	ID         string    `json:"id"`
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (p Photo) EntityID() string {
	return p.ID
}

// CreateRequest registers an uploaded object. Bucket defaults to the
// configured photo bucket.
type CreateRequest struct {
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key"`
}

func (r *CreateRequest) Validate() error {
	r.Bucket = strings.TrimSpace(r.Bucket)
	r.Key = strings.TrimSpace(r.Key)
	if r.Key == "" {
		return dErrors.New(dErrors.CodeValidation, "key is required")
	}
	return nil
}

// PresignUploadRequest asks for an upload URL. Every field is optional.
type PresignUploadRequest struct {
	Bucket           string `json:"bucket,omitempty"`
	Key              string `json:"key,omitempty"`
	ContentType      string `json:"contentType,omitempty"`
	ExpiresInSeconds *int   `json:"expiresInSeconds,omitempty"`
}

func (r *PresignUploadRequest) Validate() error {
	r.Bucket = strings.TrimSpace(r.Bucket)
	r.Key = strings.TrimSpace(r.Key)
	r.ContentType = strings.TrimSpace(r.ContentType)
	return ValidateExpiry(r.ExpiresInSeconds)
}

// PresignUploadResult tells the client where and how to PUT the object.
type PresignUploadResult struct {
	Bucket    string            `json:"bucket"`
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// DownloadURL is a time-limited link to a stored photo.
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MaxExpirySeconds is the longest lifetime SigV4 allows for a presigned URL.
const MaxExpirySeconds = 7 * 24 * 60 * 60

// ValidateExpiry accepts nil or a lifetime within (0, MaxExpirySeconds].
func ValidateExpiry(seconds *int) error {
	if seconds == nil {
		return nil
	}
	if *seconds <= 0 || *seconds > MaxExpirySeconds {
		return dErrors.Newf(dErrors.CodeValidation, "expiresInSeconds must be between 1 and %d", MaxExpirySeconds)
	}
	return nil
}
