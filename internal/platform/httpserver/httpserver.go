// Package httpserver builds the API listener from server configuration.
package httpserver

import (
	"net/http"
	"time"

	"concord/internal/platform/config"
)

const readHeaderTimeout = 5 * time.Second

// New returns a server for handler on cfg.Addr. Zero timeouts fall back to
// conservative defaults so a misconfigured deployment never runs unbounded.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, 60*time.Second),
	}
}

// ShutdownTimeout bounds graceful drain on exit.
func ShutdownTimeout(cfg config.Server) time.Duration {
	return orDefault(cfg.ShutdownTimeout, 10*time.Second)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
