package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezclaim/internal/storage/memory"
	"ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
)

func newService() (*Service, *memory.Collection[models.Tag]) {
	tags := memory.New[models.Tag]("tags", models.EntityType)
	return New(tags), tags
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	tag, err := svc.Create(ctx, &models.TagRequest{Label: "travel", Color: "#00f"})
	require.NoError(t, err)
	assert.NotEmpty(t, tag.ID)

	got, err := svc.Get(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, tag, got)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.EqualError(t, err, "Tag not found: missing")
}

func TestUpdate(t *testing.T) {
	svc, tags := newService()
	ctx := context.Background()
	require.NoError(t, tags.Save(ctx, models.Tag{ID: "t1", Label: "old", Color: "red"}))

	updated, err := svc.Update(ctx, "t1", &models.TagRequest{Label: "new"})
	require.NoError(t, err)
	assert.Equal(t, models.Tag{ID: "t1", Label: "new"}, *updated)

	stored, err := tags.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Label)

	_, err = svc.Update(ctx, "missing", &models.TagRequest{Label: "x"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestListAndDelete(t *testing.T) {
	svc, tags := newService()
	ctx := context.Background()
	require.NoError(t, tags.Save(ctx, models.Tag{ID: "t1", Label: "a"}))
	require.NoError(t, tags.Save(ctx, models.Tag{ID: "t2", Label: "b"}))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Delete(ctx, "t1"))
	require.NoError(t, svc.Delete(ctx, "t1"), "deleting twice is not an error")

	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{{ID: "t2", Label: "b"}}, list)
}

func TestStoreTimeoutIsUnavailable(t *testing.T) {
	svc, _ := newService()
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := svc.List(ctx)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
