package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coresight/coresight/internal/alerting"
	"github.com/coresight/coresight/internal/ingest"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
	"github.com/coresight/coresight/internal/tracker"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Store      store.Store
	Ingest     *ingest.Pipeline
	Alerts     *alerting.Manager
	Dispatcher *alerting.Dispatcher
	Tracker    *tracker.Tracker
	Metrics    *telemetry.Metrics
}

type Server struct {
	cfg         *Config
	store       store.Store
	ingest      *ingest.Pipeline
	alerts      *alerting.Manager
	dispatcher  *alerting.Dispatcher
	tracker     *tracker.Tracker
	metrics     *telemetry.Metrics
	router      chi.Router
	logger      *slog.Logger
	rateLimiter *rateLimiter
	now         func() time.Time
}

func New(cfg *Config, deps Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if sentry.CurrentHub().Client() != nil {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(middleware.Compress(5))

	rl := newRateLimiter(cfg.IngestRate, cfg.IngestBurst)

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		ingest:      deps.Ingest,
		alerts:      deps.Alerts,
		dispatcher:  deps.Dispatcher,
		tracker:     deps.Tracker,
		metrics:     deps.Metrics,
		router:      r,
		logger:      logger,
		rateLimiter: rl,
		now:         time.Now,
	}

	// Agent push. Everything else that reads or changes fleet state sits
	// behind the admin credentials.
	r.With(rl.middleware, s.ingestPasswordAuth).Post("/metrics", s.handleIngest)
	r.With(s.adminBasicAuth).Get("/metrics/{host}", s.handleLastHour)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.adminBasicAuth)

			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts/{id}/resolve", s.handleResolveAlert)

			r.Get("/fleet/status", s.handleFleetStatus)
			r.Route("/entities/{id}", func(r chi.Router) {
				r.Get("/status", s.handleStatus)
				r.Get("/uptime", s.handleUptime)
				r.Get("/logs", s.handleLogs)
				r.Get("/history", s.handleHistory)
				r.Get("/processes", s.handleProcesses)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminBasicAuth)

			r.Get("/entities", s.handleListEntities)
			r.Post("/entities", s.handleCreateEntity)
			r.Get("/entities/{id}", s.handleGetEntity)
			r.Delete("/entities/{id}", s.handleDeleteEntity)

			r.Get("/providers", s.handleListProviders)
			r.Post("/providers", s.handleCreateProvider)
			r.Delete("/providers/{id}", s.handleDeleteProvider)
			r.Post("/providers/{id}/test", s.handleTestProvider)
		})
	})

	r.Get("/healthz", s.handleHealthz)
	r.With(s.adminBasicAuth).Method(http.MethodGet, "/debug/metrics", deps.Metrics.Handler())

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.rateLimiter.run(ctx)

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.listen(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
