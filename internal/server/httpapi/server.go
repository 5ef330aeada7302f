// Package httpapi exposes the account and progress services over JSON/HTTP.
// The wire shapes here are the contract the game client is built against,
// so field names and status codes are deliberately conservative.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skyrun-game/skyrun/internal/logging"
	"github.com/skyrun-game/skyrun/internal/server/progress"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

type HTTPServer struct {
	addr            string
	logger          logging.Logger
	userService     *users.Service
	progressService *progress.Service
}

func NewHTTPServer(addr string, logger logging.Logger, us *users.Service, ps *progress.Service) *HTTPServer {
	return &HTTPServer{
		addr:            addr,
		logger:          logger,
		userService:     us,
		progressService: ps,
	}
}

// Router builds the route table. Exposed separately so tests can mount it
// on an httptest.Server.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/security-question/{email}", s.handleSecurityQuestion)
		r.Post("/verify-device", s.handleVerifyDevice)
		r.Get("/progress/{email}", s.handleGetProgress)
		r.Post("/progress", s.handleUpdateProgress)
	})

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
