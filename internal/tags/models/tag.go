// Package models holds the tag entity.
package models

import (
	"strings"

	dErrors "ezclaim/pkg/domain-errors"
)

// EntityType is the logical type recorded on stored tags.
const EntityType = "Tag"

// Tag is a free-form label with an optional display color.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

func (t Tag) EntityID() string {
	return t.ID
}

// TagRequest is the body of tag create and update calls.
type TagRequest struct {
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

func (r *TagRequest) Validate() error {
	r.Label = strings.TrimSpace(r.Label)
	r.Color = strings.TrimSpace(r.Color)
	if r.Label == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	return nil
}
