// Package http exposes the sync engine, budget summaries and transaction
// listings as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finlink/internal/core"
	"finlink/internal/middleware/ratelimit"
	"finlink/internal/middleware/trace"
	"finlink/internal/services"
	"finlink/internal/store"
)

// Syncer runs the change-stream sync for one linked item.
type Syncer interface {
	Sync(ctx context.Context, itemKey, accessToken string) error
	FullSync(ctx context.Context, itemKey, accessToken string) error
}

// SyncPublisher enqueues a sync request instead of running it inline.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, itemKey string, full bool) error
}

// CategoryLister serves the provider taxonomy.
type CategoryLister interface {
	Categories(ctx context.Context) ([]core.Category, error)
}

type Server struct {
	http.Server

	items     store.ItemStore
	syncer    Syncer
	publisher SyncPublisher // optional, enables ?async=true
	budgets   *services.BudgetService
	pager     *services.TransactionPager
	taxonomy  CategoryLister

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// Options carries the optional server collaborators.
type Options struct {
	// Publisher, when set, lets POST sync requests be enqueued with ?async=true.
	Publisher SyncPublisher

	// RateLimit overrides the default POST rate limit.
	RateLimit ratelimit.Config
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, items store.ItemStore, syncer Syncer, budgets *services.BudgetService, pager *services.TransactionPager, taxonomy CategoryLister, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		items:     items,
		syncer:    syncer,
		publisher: opts.Publisher,
		budgets:   budgets,
		pager:     pager,
		taxonomy:  taxonomy,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/items/{itemKey}/sync", s.handleSyncItem)
	mux.HandleFunc("GET /api/budgets/summary", s.handleBudgetSummary)
	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets", s.handleSaveBudget)
	mux.HandleFunc("DELETE /api/budgets", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)

	traced := trace.NewMiddleware(clientIP)
	limited := s.limiter.Middleware(clientIP, nil)

	handler := traced.Middleware(limitWrites(limited, mux))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Shutdown stops the rate limiter cleanup goroutine and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// limitWrites applies the rate limiter to mutating methods only; reads pass
// straight through.
func limitWrites(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// clientIP resolves the originating address, honouring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
