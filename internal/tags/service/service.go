package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ezclaim/internal/storage"
	"ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/sentinel"
)

// Service manages tags. Claims reference tags by id; deleting a tag leaves
// those references in place.
type Service struct {
	tags storage.Collection[models.Tag]
}

func New(tags storage.Collection[models.Tag]) *Service {
	return &Service{tags: tags}
}

func (s *Service) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.FindAll(ctx)
	if err != nil {
		return nil, translate(err, "failed to list tags")
	}
	return tags, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Tag, error) {
	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "Tag not found: %s", id)
		}
		return nil, translate(err, "failed to load tag")
	}
	return &tag, nil
}

func (s *Service) Create(ctx context.Context, req *models.TagRequest) (*models.Tag, error) {
	tag := models.Tag{ID: uuid.NewString(), Label: req.Label, Color: req.Color}
	if err := s.tags.Save(ctx, tag); err != nil {
		return nil, translate(err, "failed to save tag")
	}
	return &tag, nil
}

// Update replaces label and color of an existing tag.
func (s *Service) Update(ctx context.Context, id string, req *models.TagRequest) (*models.Tag, error) {
	tag, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tag.Label = req.Label
	tag.Color = req.Color
	if err := s.tags.Save(ctx, *tag); err != nil {
		return nil, translate(err, "failed to save tag")
	}
	return tag, nil
}

// Delete removes a tag. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.tags.Delete(ctx, id); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return translate(err, "failed to delete tag")
	}
	return nil
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "tag store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
