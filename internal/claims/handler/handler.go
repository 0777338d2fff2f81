package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ezclaim/internal/auth"
	"ezclaim/internal/claims/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/httputil"
	authmw "ezclaim/pkg/platform/middleware/auth"
	"ezclaim/pkg/requestcontext"
)

// Service defines the claim operations exposed over HTTP.
type Service interface {
	FindAll(ctx context.Context) ([]*models.Claim, error)
	Search(ctx context.Context, filter models.Filter, page, size int) (*models.Page, error)
	ResolveAll(ctx context.Context, claims []*models.Claim) ([]*models.ClaimView, error)
	Get(ctx context.Context, id string, caller auth.Caller) (*models.ClaimView, error)
	Create(ctx context.Context, req *models.CreateRequest) (*models.ClaimView, error)
	Patch(ctx context.Context, id string, req *models.PatchRequest, caller auth.Caller) (*models.ClaimView, error)
	Delete(ctx context.Context, id string, caller auth.Caller) error
}

// Handler serves /api/claims. Submitting, reading and patching a single
// claim are open to anonymous callers; the service decides what they may do.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the claim routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/claims", func(r chi.Router) {
		r.With(authmw.RequireScope(auth.ScopeClaimRead, h.logger)).Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandlePatch)
		r.With(authmw.RequireScope(auth.ScopeClaimWrite, h.logger)).Delete("/{id}", h.HandleDelete)
	})
}

// HandleList returns every claim, or one page when status, page or size is
// given.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	if !q.Has("status") && !q.Has("page") && !q.Has("size") {
		claims, err := h.service.FindAll(ctx)
		if err == nil {
			var views []*models.ClaimView
			if views, err = h.service.ResolveAll(ctx, claims); err == nil {
				httputil.WriteJSON(w, http.StatusOK, views)
				return
			}
		}
		h.logFailure(ctx, "failed to list claims", err)
		httputil.WriteError(w, err)
		return
	}

	var filter models.Filter
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = st
	}
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	size, err := intParam(q.Get("size"), "size")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Search(ctx, filter, page, size)
	if err != nil {
		h.logFailure(ctx, "failed to search claims", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var password *string
	if q := r.URL.Query(); q.Has("password") {
		p := q.Get("password")
		password = &p
	}
	view, err := h.service.Get(ctx, chi.URLParam(r, "id"), auth.CallerFromContext(ctx, password))
	if err != nil {
		h.logFailure(ctx, "failed to get claim", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to create claim", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.PatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Patch(ctx, chi.URLParam(r, "id"), req, auth.CallerFromContext(ctx, req.Password))
	if err != nil {
		h.logFailure(ctx, "failed to patch claim", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, chi.URLParam(r, "id"), auth.CallerFromContext(ctx, nil)); err != nil {
		h.logFailure(ctx, "failed to delete claim", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must be an integer", name)
	}
	return n, nil
}

// logFailure skips outcomes that are part of normal claim traffic.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeForbidden, dErrors.CodeLocked, dErrors.CodeValidation:
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
