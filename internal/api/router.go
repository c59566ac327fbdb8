package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/api/handlers"
	mw "github.com/Harshitk-cp/factgate/internal/api/middleware"
	"github.com/Harshitk-cp/factgate/internal/buildconfig"
	"github.com/Harshitk-cp/factgate/internal/config"
	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/service"
	"github.com/Harshitk-cp/factgate/internal/store"
)

// App holds the router and the resources it owns.
type App struct {
	Router       *chi.Mux
	Gateway      *service.Gateway
	limiter      *mw.RateLimiter
	stopCleanup  func()
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(gw *service.Gateway, producers domain.ProducerStore, logger *zap.Logger) *App {
	workspaceHandler := handlers.NewWorkspaceHandler(gw)
	commitHandler := handlers.NewCommitHandler(gw)
	graphHandler := handlers.NewGraphHandler(gw.Graphs())
	eventHandler := handlers.NewEventHandler(gw.Events(), logger)
	provenanceHandler := handlers.NewProvenanceHandler(gw)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Gateway:   gw,
		limiter:   mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst()),
		startTime: time.Now(),
	}
	app.stopCleanup = app.limiter.StartCleanup(10 * time.Minute)

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                // Generate/extract request ID first
	r.Use(middleware.RealIP)           // Extract real IP
	r.Use(metricsCollector.Middleware) // Collect metrics
	r.Use(mw.Logging(logger))          // Log all requests
	r.Use(middleware.Recoverer)        // Recover from panics
	r.Use(app.limiter.Middleware)      // Rate limiting

	// Operational endpoints (no auth)
	r.Get("/health", app.healthHandler())
	r.Get("/stats", app.statsHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.ProducerAuth(producers))

		// Workspaces are addressable only by their owner
		r.Route("/producers/{producer}", func(r chi.Router) {
			r.Use(mw.OwnWorkspace)
			r.With(mw.RequirePermission(domain.PermissionRead)).Get("/workspace", workspaceHandler.Get)
			r.With(mw.RequirePermission(domain.PermissionWriteStaging)).Post("/workspace", workspaceHandler.Stage)
			r.With(mw.RequirePermission(domain.PermissionWriteStaging)).Post("/submissions", workspaceHandler.Submit)
		})

		r.With(mw.RequirePermission(domain.PermissionCommit)).Post("/commits", commitHandler.Trigger)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(domain.PermissionRead))
			r.Get("/graphs/main", graphHandler.Main)
			r.Get("/graphs/consensus", graphHandler.Consensus)
			r.Get("/graphs/quarantine", graphHandler.Quarantine)
			r.Get("/provenance", provenanceHandler.List)
			r.Get("/events", eventHandler.Stream)
		})
	})

	return app
}

// Close stops background work started by NewApp.
func (app *App) Close() {
	app.stopCleanup()
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"build": buildconfig.VersionInfo()}
		status := http.StatusOK
		if err := app.Gateway.Graphs().Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "error"
			body["error"] = err.Error()
		} else {
			body["status"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (app *App) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		events := app.Gateway.Events()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"events": map[string]any{
				"subscribers": events.Subscribers(),
				"dropped":     events.Dropped(),
			},
			"rate_limited_clients": app.limiter.Len(),
			"go_version":           runtime.Version(),
		}

		sizes, err := app.Gateway.Graphs().Sizes(r.Context())
		if err != nil {
			response["graphs_error"] = err.Error()
		} else {
			graphs := make(map[string]int, len(sizes))
			for id, n := range sizes {
				graphs[string(id)] = n
			}
			response["graphs"] = graphs
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.FactStore     = (*store.MemoryStore)(nil)
	_ domain.FactStore     = (*store.PostgresStore)(nil)
	_ domain.FactStore     = (*store.SQLiteStore)(nil)
	_ domain.ProducerStore = (*store.ProducerRegistry)(nil)
)
