package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/agentlock"
	"github.com/synapsed/synapse/internal/api/handlers"
	mw "github.com/synapsed/synapse/internal/api/middleware"
	"github.com/synapsed/synapse/internal/belief"
	"github.com/synapsed/synapse/internal/buildconfig"
	"github.com/synapsed/synapse/internal/config"
	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/embedding"
	"github.com/synapsed/synapse/internal/extraction"
	"github.com/synapsed/synapse/internal/forgetting"
	"github.com/synapsed/synapse/internal/ingestion"
	"github.com/synapsed/synapse/internal/metrics"
	"github.com/synapsed/synapse/internal/similarity"
	"github.com/synapsed/synapse/internal/store"
	"github.com/synapsed/synapse/internal/view"
)

// App holds the router and the background engines that need an
// explicit lifecycle.
type App struct {
	Router     *chi.Mux
	Forgetting *forgetting.Engine
	startTime  time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Similarity strategy (C2), selected by config.
	vectorStrategy := similarity.NewVectorStrategy(db)
	textStrategy := similarity.NewTextStrategy(db)
	var simStrategy domain.SimilaritySearchStrategy
	switch config.SimilarityVectorStrategy() {
	case "vector":
		simStrategy = vectorStrategy
	case "text":
		simStrategy = textStrategy
	default:
		simStrategy = similarity.NewAutoStrategy(vectorStrategy, textStrategy)
	}

	// Stores (C3, C4, C5).
	memoryStore := store.NewMemoryStore(db, simStrategy)
	beliefStore := store.NewBeliefStore(db)
	relationshipStore := store.NewRelationshipStore(db, config.GraphMaxTraversalNodes())

	// Extraction provider (C1/C6 collaborator).
	provider, err := extraction.NewProvider(config.ExtractionProvider(), config.AnthropicAPIKey())
	if err != nil {
		return nil, err
	}

	resolutionFor := func(category string) domain.ResolutionStrategy {
		return domain.ResolutionStrategy(config.ResolutionStrategyForCategory(category))
	}

	beliefEngine := belief.NewEngine(beliefStore, relationshipStore, provider, logger,
		config.ReinforceThreshold(), config.ReinforceAlpha(), config.WeakenBeta(), resolutionFor)

	embedder, err := embedding.NewEmbedder(config.EmbeddingProvider(), config.OpenAIAPIKey())
	if err != nil {
		return nil, err
	}

	locks := agentlock.NewRegistry()
	pipeline := ingestion.NewPipeline(memoryStore, provider, beliefEngine, locks, embedder, logger)

	recency, frequency, importance, beliefSupport := config.ForgettingWeights()
	weights := domain.RelevanceWeights{Recency: recency, AccessFrequency: frequency, Importance: importance, BeliefSupport: beliefSupport}
	sweepStrategy := domain.ForgettingStrategy{Kind: domain.StrategyLowScore, ScoreThreshold: 0.2, DryRun: config.ForgettingDryRun()}
	forgettingEngine := forgetting.NewEngine(memoryStore, beliefStore, weights, nil, sweepStrategy, logger)

	snapshotAssembler := view.NewAssembler(beliefStore, relationshipStore, config.GraphSnapshotCap())

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(registry)
	beliefEngine.SetMetrics(collectors)
	forgettingEngine.SetMetrics(collectors)
	pipeline.SetMetrics(collectors)

	app := &App{Forgetting: forgettingEngine, startTime: time.Now()}

	ingestionHandler := handlers.NewIngestionHandler(pipeline, memoryStore, beliefStore, embedder, logger)
	graphHandler := handlers.NewGraphHandler(relationshipStore, beliefStore, snapshotAssembler, provider.Similarity, logger)

	r := chi.NewRouter()
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
	}))
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))
	r.Use(httpMetricsMiddleware(collectors))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/statistics", app.statisticsHandler())

	r.Route("/api/v1/memory", func(r chi.Router) {
		r.Post("/ingest", ingestionHandler.Ingest)
		r.Post("/dry-run", ingestionHandler.DryRun)
		r.Post("/validate", ingestionHandler.Validate)
		r.Post("/search", ingestionHandler.Search)
		r.Get("/health", ingestionHandler.Health)
		r.Get("/statistics", ingestionHandler.Statistics)
	})

	r.Route("/api/v1/agents/{agentId}/belief-relationships", func(r chi.Router) {
		r.Post("/", graphHandler.Create)
		r.Post("/temporal", graphHandler.CreateTemporal)
		r.Post("/deprecate", graphHandler.Deprecate)

		r.Get("/{id}", graphHandler.GetByID)
		r.Put("/{id}", graphHandler.Update)
		r.Put("/{id}/deactivate", graphHandler.Deactivate)
		r.Put("/{id}/reactivate", graphHandler.Reactivate)
		r.Delete("/{id}", graphHandler.Delete)

		r.Get("/belief/{id}", graphHandler.ByBelief)
		r.Get("/belief/{id}/outgoing", graphHandler.Outgoing)
		r.Get("/belief/{id}/incoming", graphHandler.Incoming)
		r.Get("/belief/{id}/related", graphHandler.Related)
		r.Get("/belief/{id}/superseding", graphHandler.Superseding)
		r.Get("/belief/{id}/deprecation-chain", graphHandler.DeprecationChain)

		r.Get("/type/{type}", graphHandler.ByType)
		r.Get("/between/{src}/{tgt}", graphHandler.Between)
		r.Get("/deprecated", graphHandler.Deprecated)

		r.Get("/efficient-statistics", graphHandler.EfficientStatistics)
		r.Get("/efficient-validation", graphHandler.EfficientValidation)
		r.Get("/snapshot-graph", graphHandler.SnapshotGraph)
		r.Post("/filtered-snapshot", graphHandler.FilteredSnapshot)

		r.Post("/similar", graphHandler.SimilarBeliefs)
		r.Get("/clusters", graphHandler.Clusters)
		r.Get("/conflicts", graphHandler.Conflicts)
		r.Get("/path/{src}/{tgt}", graphHandler.Path)
		r.Get("/memory-health", graphHandler.MemoryHealth)

		r.Post("/decay", graphHandler.Decay)
		r.Post("/prune", graphHandler.Prune)

		r.Get("/export", graphHandler.Export)
		r.Delete("/cleanup", graphHandler.Cleanup)
	})

	app.Router = r
	return app, nil
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch code / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}

func httpMetricsMiddleware(c *metrics.Collectors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			c.HTTPRequestsTotal.WithLabelValues(route, statusClass(sw.status)).Inc()
		})
	}
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) statisticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		uptime := time.Since(app.startTime)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":        buildconfig.VersionInfo(),
			"uptimeSeconds":  uptime.Seconds(),
			"requestCount":   app.requestCount.Load(),
			"errorCount":     app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"allocMb":      float64(memStats.Alloc) / 1024 / 1024,
				"totalAllocMb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sysMb":        float64(memStats.Sys) / 1024 / 1024,
				"numGc":        memStats.NumGC,
			},
			"goVersion": runtime.Version(),
		})
	}
}

// Ensure stores satisfy their domain interfaces at compile time.
var (
	_ domain.MemoryStore       = (*store.MemoryStore)(nil)
	_ domain.BeliefStore       = (*store.BeliefStore)(nil)
	_ domain.RelationshipStore = (*store.RelationshipStore)(nil)

	_ domain.SimilaritySearchStrategy = (*similarity.VectorStrategy)(nil)
	_ domain.SimilaritySearchStrategy = (*similarity.TextStrategy)(nil)
	_ domain.SimilaritySearchStrategy = (*similarity.AutoStrategy)(nil)

	_ domain.ExtractionProvider = (*extraction.MockProvider)(nil)
	_ domain.ExtractionProvider = (*extraction.AnthropicProvider)(nil)

	_ ingestion.Embedder = (*embedding.MockEmbedder)(nil)
	_ ingestion.Embedder = (*embedding.OpenAIEmbedder)(nil)
)
