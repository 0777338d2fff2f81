package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ObjectStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ezclaim/internal/photos/models"
	"ezclaim/internal/photos/service/mocks"
	"ezclaim/internal/platform/objectstore"
	"ezclaim/internal/storage/memory"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/sentinel"
	"ezclaim/pkg/requestcontext"
)

type PhotoServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	objects *mocks.MockObjectStore
	photos  *memory.Collection[models.Photo]
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestPhotoServiceSuite(t *testing.T) {
	suite.Run(t, new(PhotoServiceSuite))
}

func (s *PhotoServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.objects = mocks.NewMockObjectStore(s.ctrl)
	s.photos = memory.New[models.Photo]("photos", models.EntityType)
	s.service = New(s.photos, s.objects, "ezclaim-photos",
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.now = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *PhotoServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PhotoServiceSuite) seed(id, key string) models.Photo {
	p := models.Photo{ID: id, Bucket: "ezclaim-photos", Key: key, UploadedAt: s.now}
	s.Require().NoError(s.photos.Save(s.ctx, p))
	return p
}

func (s *PhotoServiceSuite) TestCreateRecord() {
	s.Run("defaults bucket and stamps upload time", func() {
		photo, err := s.service.CreateRecord(s.ctx, &models.CreateRequest{Key: "receipts/1.jpg"})
		s.Require().NoError(err)
		s.NotEmpty(photo.ID)
		s.Equal("ezclaim-photos", photo.Bucket)
		s.Equal(s.now, photo.UploadedAt)

		stored, err := s.photos.FindByID(s.ctx, photo.ID)
		s.Require().NoError(err)
		s.Equal(*photo, stored)
	})

	s.Run("explicit bucket wins", func() {
		photo, err := s.service.CreateRecord(s.ctx, &models.CreateRequest{Bucket: "other", Key: "k"})
		s.Require().NoError(err)
		s.Equal("other", photo.Bucket)
	})

	s.Run("no bucket anywhere is a validation error", func() {
		svc := New(s.photos, s.objects, "")
		_, err := svc.CreateRecord(s.ctx, &models.CreateRequest{Key: "k"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *PhotoServiceSuite) TestGet() {
	s.seed("p1", "a.jpg")

	photo, err := s.service.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("a.jpg", photo.Key)

	_, err = s.service.Get(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.EqualError(err, "Photo not found: missing")
}

func (s *PhotoServiceSuite) TestDelete() {
	s.Run("removes record and object", func() {
		s.seed("p1", "a.jpg")
		s.objects.EXPECT().Delete(gomock.Any(), "ezclaim-photos", "a.jpg").Return(nil)

		s.Require().NoError(s.service.Delete(s.ctx, "p1", true))
		_, err := s.photos.FindByID(s.ctx, "p1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("keeps object when asked", func() {
		s.seed("p2", "b.jpg")
		s.Require().NoError(s.service.Delete(s.ctx, "p2", false))
	})

	s.Run("object failure does not fail the call", func() {
		s.seed("p3", "c.jpg")
		s.objects.EXPECT().Delete(gomock.Any(), "ezclaim-photos", "c.jpg").Return(errors.New("s3 down"))
		s.NoError(s.service.Delete(s.ctx, "p3", true))
	})

	s.Run("unknown id", func() {
		err := s.service.Delete(s.ctx, "nope", true)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PhotoServiceSuite) TestPresignUpload() {
	s.Run("generates key and applies default ttl", func() {
		var gotKey string
		s.objects.EXPECT().PresignPut(gomock.Any(), "ezclaim-photos", gomock.Any(), "image/jpeg", DefaultPresignTTL).
			DoAndReturn(func(_ context.Context, _, key, _ string, _ time.Duration) (*objectstore.PresignedRequest, error) {
				gotKey = key
				return &objectstore.PresignedRequest{URL: "https://s3/put", Headers: map[string]string{"Host": "s3"}}, nil
			})

		res, err := s.service.PresignUpload(s.ctx, &models.PresignUploadRequest{ContentType: "image/jpeg"})
		s.Require().NoError(err)
		s.NotEmpty(gotKey)
		s.Equal(gotKey, res.Key)
		s.Equal("https://s3/put", res.URL)
		s.Equal(map[string]string{"Host": "s3"}, res.Headers)
		s.Equal(s.now.Add(DefaultPresignTTL), res.ExpiresAt)
	})

	s.Run("honours key and lifetime", func() {
		secs := 60
		s.objects.EXPECT().PresignPut(gomock.Any(), "b", "k", "", time.Minute).
			Return(&objectstore.PresignedRequest{URL: "u"}, nil)

		res, err := s.service.PresignUpload(s.ctx, &models.PresignUploadRequest{Bucket: "b", Key: "k", ExpiresInSeconds: &secs})
		s.Require().NoError(err)
		s.Equal("b", res.Bucket)
		s.Equal(s.now.Add(time.Minute), res.ExpiresAt)
	})

	s.Run("presign failure is unavailable", func() {
		s.objects.EXPECT().PresignPut(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("no creds"))
		_, err := s.service.PresignUpload(s.ctx, &models.PresignUploadRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *PhotoServiceSuite) TestPresignDownload() {
	s.seed("p1", "a.jpg")

	s.Run("signs existing object", func() {
		s.objects.EXPECT().Stat(gomock.Any(), "ezclaim-photos", "a.jpg").Return(nil)
		s.objects.EXPECT().PresignGet(gomock.Any(), "ezclaim-photos", "a.jpg", DefaultPresignTTL).
			Return(&objectstore.PresignedRequest{URL: "https://s3/get"}, nil)

		res, err := s.service.PresignDownload(s.ctx, "p1", nil)
		s.Require().NoError(err)
		s.Equal("https://s3/get", res.URL)
		s.Equal(s.now.Add(DefaultPresignTTL), res.ExpiresAt)
	})

	s.Run("missing object is not found", func() {
		s.objects.EXPECT().Stat(gomock.Any(), "ezclaim-photos", "a.jpg").Return(sentinel.ErrNotFound)

		_, err := s.service.PresignDownload(s.ctx, "p1", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.EqualError(err, "Object not found: ezclaim-photos/a.jpg")
	})

	s.Run("lookup failure still signs", func() {
		s.objects.EXPECT().Stat(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("403"))
		s.objects.EXPECT().PresignGet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&objectstore.PresignedRequest{URL: "u"}, nil)

		_, err := s.service.PresignDownload(s.ctx, "p1", nil)
		s.NoError(err)
	})

	s.Run("rejects non-positive lifetime", func() {
		zero := 0
		_, err := s.service.PresignDownload(s.ctx, "p1", &zero)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown photo", func() {
		_, err := s.service.PresignDownload(s.ctx, "nope", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
