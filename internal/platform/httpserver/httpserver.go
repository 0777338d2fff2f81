package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"ezclaim/internal/platform/config"
)

// New builds the public HTTP server. Errors the net/http machinery would
// print to stderr (TLS handshakes, hijack failures) go to logger instead.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
