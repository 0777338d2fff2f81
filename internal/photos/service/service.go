package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ezclaim/internal/photos/models"
	"ezclaim/internal/platform/objectstore"
	"ezclaim/internal/storage"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/sentinel"
	"ezclaim/pkg/requestcontext"
)

// DefaultPresignTTL applies when a request does not ask for a lifetime.
const DefaultPresignTTL = 15 * time.Minute

// ObjectStore is the bucket side of photo management.
type ObjectStore interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (*objectstore.PresignedRequest, error)
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (*objectstore.PresignedRequest, error)
	Stat(ctx context.Context, bucket, key string) error
	Delete(ctx context.Context, bucket, key string) error
}

// Service manages photo records and hands out presigned URLs.
type Service struct {
	photos     storage.Collection[models.Photo]
	objects    ObjectStore
	bucket     string
	defaultTTL time.Duration
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaultTTL overrides DefaultPresignTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// New creates a photo service. bucket is used whenever a request names none.
func New(photos storage.Collection[models.Photo], objects ObjectStore, bucket string, opts ...Option) *Service {
	s := &Service{
		photos:     photos,
		objects:    objects,
		bucket:     bucket,
		defaultTTL: DefaultPresignTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]models.Photo, error) {
	photos, err := s.photos.FindAll(ctx)
	if err != nil {
		return nil, translate(err, "failed to list photos")
	}
	return photos, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Photo, error) {
	photo, err := s.photos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "Photo not found: %s", id)
		}
		return nil, translate(err, "failed to load photo")
	}
	return &photo, nil
}

// CreateRecord stores a reference to an object already uploaded to the bucket.
func (s *Service) CreateRecord(ctx context.Context, req *models.CreateRequest) (*models.Photo, error) {
	bucket, err := s.resolveBucket(req.Bucket)
	if err != nil {
		return nil, err
	}
	photo := models.Photo{
		ID:         uuid.NewString(),
		Bucket:     bucket,
		Key:        req.Key,
		UploadedAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.photos.Save(ctx, photo); err != nil {
		return nil, translate(err, "failed to save photo")
	}
	return &photo, nil
}

// Delete removes the record and, when deleteObject is set, the bucket object.
// Object deletion failures are logged; the record is already gone.
func (s *Service) Delete(ctx context.Context, id string, deleteObject bool) error {
	photo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.photos.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "Photo not found: %s", id)
		}
		return translate(err, "failed to delete photo")
	}
	if !deleteObject {
		return nil
	}
	if err := s.objects.Delete(ctx, photo.Bucket, photo.Key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete photo object",
			"bucket", photo.Bucket,
			"key", photo.Key,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}

// PresignUpload returns a URL the client can PUT the object to. The key
// defaults to a random uuid.
func (s *Service) PresignUpload(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResult, error) {
	bucket, err := s.resolveBucket(req.Bucket)
	if err != nil {
		return nil, err
	}
	key := req.Key
	if key == "" {
		key = uuid.NewString()
	}
	ttl := s.ttl(req.ExpiresInSeconds)

	signed, err := s.objects.PresignPut(ctx, bucket, key, req.ContentType, ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "object store unavailable")
	}
	return &models.PresignUploadResult{
		Bucket:    bucket,
		Key:       key,
		URL:       signed.URL,
		Headers:   signed.Headers,
		ExpiresAt: requestcontext.Now(ctx).UTC().Add(ttl),
	}, nil
}

// PresignDownload returns a time-limited download URL for a stored photo.
// A missing object is reported as not found; other lookup failures are
// logged and the URL is signed anyway.
func (s *Service) PresignDownload(ctx context.Context, id string, expiresInSeconds *int) (*models.DownloadURL, error) {
	if err := models.ValidateExpiry(expiresInSeconds); err != nil {
		return nil, err
	}
	photo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Stat(ctx, photo.Bucket, photo.Key); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "Object not found: %s/%s", photo.Bucket, photo.Key)
		}
		s.logger.DebugContext(ctx, "photo object lookup failed",
			"bucket", photo.Bucket,
			"key", photo.Key,
			"error", err,
		)
	}
	ttl := s.ttl(expiresInSeconds)
	signed, err := s.objects.PresignGet(ctx, photo.Bucket, photo.Key, ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "object store unavailable")
	}
	return &models.DownloadURL{
		URL:       signed.URL,
		ExpiresAt: requestcontext.Now(ctx).UTC().Add(ttl),
	}, nil
}

func (s *Service) resolveBucket(bucket string) (string, error) {
	if bucket != "" {
		return bucket, nil
	}
	if s.bucket == "" {
		return "", dErrors.New(dErrors.CodeValidation, "bucket is required")
	}
	return s.bucket, nil
}

func (s *Service) ttl(seconds *int) time.Duration {
	if seconds == nil {
		return s.defaultTTL
	}
	return time.Duration(*seconds) * time.Second
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "photo store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
