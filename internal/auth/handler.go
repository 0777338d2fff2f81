package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ezclaim/pkg/platform/httputil"
	"ezclaim/pkg/requestcontext"
)

// LoginService is the subset of Service the handler uses.
type LoginService interface {
	Login(ctx context.Context, req *LoginRequest) (*TokenResult, error)
}

// Handler serves the login endpoint.
type Handler struct {
	service LoginService
	logger  *slog.Logger
}

func NewHandler(service LoginService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts POST /api/auth/login.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/login", h.HandleLogin)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Login(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
