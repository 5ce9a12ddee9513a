// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mcping/assets"
	"github.com/woozymasta/mcping/internal/config"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/storage"
)

const historyQueueSize = 1000

var statusTemplate = template.Must(
	template.New("status.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(assets.FS(), "templates/status.html"),
)

// New creates a new Server instance with the provided storage, querier, and configuration.
func New(store *storage.Repository, q Querier, cfg *config.Config) *Server {
	footer := template.HTMLEscapeString(cfg.Server.Footer)
	footer = strings.ReplaceAll(footer, "\n", "<br>")

	return &Server{
		storage:        store,
		querier:        q,
		page:           statusTemplate,
		authHash:       xxhash.Sum64String(cfg.Server.AuthToken),
		defaultAddress: strings.TrimSpace(cfg.Server.DefaultAddress),
		footer:         template.HTML(footer), //nolint:gosec // escaped above
		showMotd:       cfg.Server.ShowMotd,
		trustProxy:     cfg.Server.TrustProxy,
		cacheTTL:       cfg.Server.CacheTTL,
		workers:        max(cfg.Server.Workers, 1),
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,

		queue:    make(chan models.HistoryEntry, historyQueueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the history writers and the cache cleanup routine.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	if s.cacheTTL > 0 {
		go s.gcCache()
	}
}

// StopWorkers stops the cleanup loops, then drains and closes the history queue.
// Handlers still running afterwards are served, but their history is dropped.
func (s *Server) StopWorkers() {
	close(s.shutdown)

	s.queueMu.Lock()
	s.stopped = true
	close(s.queue)
	s.queueMu.Unlock()

	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	// query routes share one per-IP limiter
	queries := http.NewServeMux()
	queries.HandleFunc("GET /api/status", s.handleStatus)
	queries.HandleFunc("GET /status", s.handleStatusPage)
	limited := s.RateLimitMiddleware(queries)

	mux := http.NewServeMux()
	mux.Handle("GET /api/status", limited)
	mux.Handle("GET /status", limited)

	mux.Handle("GET /api/default", http.HandlerFunc(s.handleGetDefault))
	mux.Handle("PUT /api/default", s.AdminAuthMiddleware(http.HandlerFunc(s.handleSetDefault)))
	mux.Handle("DELETE /api/default", s.AdminAuthMiddleware(http.HandlerFunc(s.handleDeleteDefault)))
	mux.Handle("GET /api/defaults", s.AdminAuthMiddleware(http.HandlerFunc(s.handleListDefaults)))
	mux.Handle("GET /api/history", s.AdminAuthMiddleware(http.HandlerFunc(s.handleHistory)))

	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /{$}", http.RedirectHandler("/status", http.StatusFound))

	return s.LoggingMiddleware(mux)
}

// gcCache periodically drops expired reports from the status cache.
func (s *Server) gcCache() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.cache.Range(func(key, value any) bool {
				if c, ok := value.(cachedReport); !ok || now.Sub(c.at) > s.cacheTTL {
					s.cache.Delete(key)
				}
				return true
			})
		}
	}
}

func cacheKey(address string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.TrimSpace(address)))
}

// cached returns a fresh cached report of address, if any.
func (s *Server) cached(address string) (*models.Report, bool) {
	if s.cacheTTL <= 0 {
		return nil, false
	}

	v, ok := s.cache.Load(cacheKey(address))
	if !ok {
		return nil, false
	}
	c, ok := v.(cachedReport)
	if !ok || time.Since(c.at) > s.cacheTTL {
		return nil, false
	}

	return c.report, true
}

func (s *Server) remember(address string, report *models.Report) {
	if s.cacheTTL <= 0 {
		return
	}
	s.cache.Store(cacheKey(address), cachedReport{at: time.Now(), report: report})
}
