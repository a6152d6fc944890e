// Package api exposes a local status API for debugging a running bridge.
//
// The server is opt-in and binds to localhost only. It reports process
// health, session information, and the active allow-list; it cannot read
// files or mutate configuration.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// Info identifies the running bridge process.
type Info struct {
	Version   string
	SessionID string
	StartedAt time.Time
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	// Port to listen on.
	// Default: 8991
	Port int
}

// applyDefaults fills in zero values with sensible defaults.
func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8991
	}
}

// Server serves the status API.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates a status API server in a stopped state.
// Call Start to begin serving requests.
func NewServer(cfg ServerConfig, policies *sandbox.Store, info Info) *Server {
	cfg.applyDefaults()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version":        info.Version,
			"session_id":     info.SessionID,
			"started_at":     info.StartedAt.UTC().Format(time.RFC3339),
			"uptime_seconds": int64(time.Since(info.StartedAt).Seconds()),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/allowlist", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"roots": policies.Current().Roots(),
			})
		})

		r.Get("/check", func(w http.ResponseWriter, req *http.Request) {
			path := req.URL.Query().Get("path")
			if path == "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": "missing path query parameter",
				})
				return
			}

			canonical, denial := policies.Current().Check(path)
			resp := map[string]any{
				"path":    path,
				"allowed": denial == sandbox.Allowed,
			}
			if denial == sandbox.Allowed {
				resp["canonical"] = canonical
			} else {
				resp["reason"] = string(denial)
			}
			writeJSON(w, http.StatusOK, resp)
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		port:   cfg.Port,
	}
}

// Start starts the API server and blocks until the context is cancelled
// or an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Status API listening", "addr", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("status API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("status API shutdown error: %w", err)
		} else {
			logger.Info("Status API stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode API response", "error", err)
	}
}
