package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ezclaim/internal/auth"
	"ezclaim/internal/photos/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/httputil"
	authmw "ezclaim/pkg/platform/middleware/auth"
	"ezclaim/pkg/requestcontext"
)

// Service defines the photo operations exposed over HTTP.
type Service interface {
	List(ctx context.Context) ([]models.Photo, error)
	Get(ctx context.Context, id string) (*models.Photo, error)
	CreateRecord(ctx context.Context, req *models.CreateRequest) (*models.Photo, error)
	Delete(ctx context.Context, id string, deleteObject bool) error
	PresignUpload(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResult, error)
	PresignDownload(ctx context.Context, id string, expiresInSeconds *int) (*models.DownloadURL, error)
}

// Handler serves /api/photos. Listing needs PHOTO_READ and deletion
// PHOTO_DELETE; single reads, presigning and record creation are public.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the photo routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/photos", func(r chi.Router) {
		r.With(authmw.RequireScope(auth.ScopePhotoRead, h.logger)).Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Post("/presign-upload", h.HandlePresignUpload)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/download-url", h.HandleDownloadURL)
		r.With(authmw.RequireScope(auth.ScopePhotoDelete, h.logger)).Delete("/{id}", h.HandleDelete)
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	photos, err := h.service.List(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to list photos", err)
		httputil.WriteError(w, err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	httputil.WriteJSON(w, http.StatusOK, photos)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	photo, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(ctx, "failed to get photo", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, photo)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	photo, err := h.service.CreateRecord(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to create photo record", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "photo record created",
		"photo_id", photo.ID,
		"bucket", photo.Bucket,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, photo)
}

// HandleDelete accepts deleteObject=false to keep the bucket object.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deleteObject := true
	if v := r.URL.Query().Get("deleteObject"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "deleteObject must be a boolean"))
			return
		}
		deleteObject = b
	}
	if err := h.service.Delete(ctx, chi.URLParam(r, "id"), deleteObject); err != nil {
		h.logFailure(ctx, "failed to delete photo", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePresignUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.PresignUploadRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.PresignUpload(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to presign upload", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleDownloadURL accepts an optional expiresInSeconds query parameter.
func (h *Handler) HandleDownloadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var expires *int
	if v := r.URL.Query().Get("expiresInSeconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "expiresInSeconds must be an integer"))
			return
		}
		expires = &n
	}
	res, err := h.service.PresignDownload(ctx, chi.URLParam(r, "id"), expires)
	if err != nil {
		h.logFailure(ctx, "failed to presign download", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeValidation:
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
