// Package server implements the HTTP API, middleware, and the announce worker queue.
package server

import (
	"net/http"
	"time"

	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/config"
	"github.com/woozymasta/gamestat/internal/storage"
)

// New creates a new Server instance.
func New(store *storage.Repository, c *codec.Codec, prober Prober, geo CountryResolver, cfg *config.Config) *Server {
	return &Server{
		storage:        store,
		codec:          c,
		prober:         prober,
		geo:            geo,
		authToken:      cfg.Server.AuthToken,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		expectedCT:     cfg.Server.ContentType,
		workers:        cfg.Server.Workers,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		softLimitDur:   cfg.RateLimit.SoftLimitDur,

		queue:    make(chan announceJob, cfg.Server.QueueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background worker pool for processing announce jobs
// and the cache cleanup routine.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	go s.gcSoftLimitCache()
}

// StopWorkers gracefully stops the background workers and closes the job queue.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	close(s.queue)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.Handler {
		return AdminAuthMiddleware(s.authToken, h)
	}

	mux.Handle("POST /api/announce", s.RateLimitMiddleware(http.HandlerFunc(s.handleAnnounce)))
	mux.Handle("POST /api/servers", admin(s.handleSubmit))
	mux.Handle("GET /api/servers", admin(s.handleList))
	mux.Handle("GET /api/server", admin(s.handleGet))
	mux.Handle("DELETE /api/server", admin(s.handleDelete))
	mux.Handle("GET /api/probe", admin(s.handleProbe))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	return s.LoggingMiddleware(mux)
}

// gcSoftLimitCache periodically cleans up expired entries from the soft rate-limit cache.
func (s *Server) gcSoftLimitCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); !ok || now.Sub(t) > s.softLimitDur {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
