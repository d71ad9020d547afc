package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
)

// NewServer builds an *http.Server for the control surface, wrapping
// handler with github.com/gorilla/handlers' combined access-log
// middleware, matching the logging the teacher applies ad hoc in
// cmd/server/main.go but expressed as real middleware instead. Callers
// build handler from NewHandlers(e, sensors).Router(), adding any extra routes
// (e.g. /metrics) before passing it in.
func NewServer(addr string, handler http.Handler, accessLog interface{ Write([]byte) (int, error) }) *http.Server {
	logged := gorillahandlers.LoggingHandler(accessLog, handler)

	return &http.Server{
		Addr:         addr,
		Handler:      logged,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Shutdown performs a bounded graceful shutdown, matching the teacher's
// SIGINT/SIGTERM handling in cmd/server/main.go.
func Shutdown(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc: graceful shutdown failed: %w", err)
	}
	return nil
}
