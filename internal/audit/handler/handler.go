package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ezclaim/internal/auth"
	dErrors "ezclaim/pkg/domain-errors"
	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/httputil"
	authmw "ezclaim/pkg/platform/middleware/auth"
	"ezclaim/pkg/requestcontext"
)

// Service defines the interface for audit queries.
type Service interface {
	Search(ctx context.Context, q audit.Query) (*audit.Page, error)
	GetByID(ctx context.Context, id string) (*audit.Event, error)
}

// Handler serves /api/audit-events. Every route requires the AUDIT scope.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/audit-events", func(r chi.Router) {
		r.Use(authmw.RequireScope(auth.ScopeAudit, h.logger))
		r.Get("/", h.HandleSearch)
		r.Get("/{id}", h.HandleGet)
	})
}

// HandleSearch accepts entityType, entityId, action, from, to (RFC 3339),
// sort ("field[,asc|desc]"), page and size.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit query",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.Search(ctx, q)
	if err != nil {
		h.logFailure(ctx, "failed to search audit events", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event, err := h.service.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(ctx, "failed to get audit event", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeValidation) {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func parseQuery(v url.Values) (audit.Query, error) {
	q := audit.Query{
		EntityType: v.Get("entityType"),
		EntityID:   v.Get("entityId"),
	}
	if s := v.Get("action"); s != "" {
		action, err := audit.ParseAction(s)
		if err != nil {
			return q, err
		}
		q.Action = action
	}
	var err error
	if q.From, err = parseTime(v.Get("from"), "from"); err != nil {
		return q, err
	}
	if q.To, err = parseTime(v.Get("to"), "to"); err != nil {
		return q, err
	}
	if q.Sort, q.Desc, err = audit.ParseSort(v.Get("sort")); err != nil {
		return q, err
	}
	if q.Page, err = parseInt(v.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.Size, err = parseInt(v.Get("size"), "size"); err != nil {
		return q, err
	}
	return q, nil
}

func parseTime(s, name string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

func parseInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must be an integer", name)
	}
	return n, nil
}
