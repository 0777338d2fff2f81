package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ezclaim/internal/auth"
	"ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/httputil"
	authmw "ezclaim/pkg/platform/middleware/auth"
	"ezclaim/pkg/requestcontext"
)

// Service defines the tag operations exposed over HTTP.
type Service interface {
	List(ctx context.Context) ([]models.Tag, error)
	Get(ctx context.Context, id string) (*models.Tag, error)
	Create(ctx context.Context, req *models.TagRequest) (*models.Tag, error)
	Update(ctx context.Context, id string, req *models.TagRequest) (*models.Tag, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves /api/tags. Reads are public; writes need TAG_WRITE.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the tag routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/tags", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireScope(auth.ScopeTagWrite, h.logger))
			r.Post("/", h.HandleCreate)
			r.Put("/{id}", h.HandleUpdate)
			r.Delete("/{id}", h.HandleDelete)
		})
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tags, err := h.service.List(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to list tags", err)
		httputil.WriteError(w, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	httputil.WriteJSON(w, http.StatusOK, tags)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(ctx, "failed to get tag", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tag)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	tag, err := h.service.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to create tag", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tag)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	tag, err := h.service.Update(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		h.logFailure(ctx, "failed to update tag", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tag)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.logFailure(ctx, "failed to delete tag", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
