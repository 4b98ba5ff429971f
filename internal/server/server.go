// Package server wires the tracker components into one HTTP handler.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/grocerytracker/internal/backup"
	"github.com/dukerupert/grocerytracker/internal/handler"
	"github.com/dukerupert/grocerytracker/internal/metrics"
	"github.com/dukerupert/grocerytracker/internal/middleware"
	"github.com/dukerupert/grocerytracker/internal/tracker"
	ws "github.com/dukerupert/grocerytracker/internal/websocket"
)

type Options struct {
	BackupPassphrase string
	// Write requests allowed per client per minute.
	WriteLimit int
}

type Server struct {
	tracker   *tracker.Tracker
	hub       *ws.Hub
	metrics   *metrics.Metrics
	limiter   *middleware.Limiter
	purchaseH *handler.PurchaseHandler
	summaryH  *handler.SummaryHandler
	reportH   *handler.ReportHandler
	backupH   *handler.BackupHandler
	logger    *slog.Logger
}

func New(t *tracker.Tracker, backups *backup.Manager, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New()
	m.Gauge("websocket_clients", "Connected websocket clients.", func() float64 {
		return float64(hub.Clients())
	})
	m.Gauge("websocket_dropped_events", "Events skipped for slow websocket clients.", func() float64 {
		return float64(hub.Dropped())
	})

	if opts.WriteLimit < 1 {
		opts.WriteLimit = 120
	}

	return &Server{
		tracker:   t,
		hub:       hub,
		metrics:   m,
		limiter:   middleware.NewLimiter(opts.WriteLimit, time.Minute),
		purchaseH: handler.NewPurchaseHandler(t.Purchases, t.Summary, hub, m, logger.With("component", "purchase")),
		summaryH:  handler.NewSummaryHandler(t.Purchases, t.Summary, logger.With("component", "summary")),
		reportH:   handler.NewReportHandler(t.Purchases, logger.With("component", "report")),
		backupH:   handler.NewBackupHandler(backups, opts.BackupPassphrase, m.BackupFinished, logger.With("component", "backup")),
		logger:    logger,
	}
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Limiter returns the write limiter so the caller can run its sweep loop.
func (s *Server) Limiter() *middleware.Limiter {
	return s.limiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", s.hub.Handler())

	mux.HandleFunc("POST /api/purchases", s.purchaseH.Create)
	mux.HandleFunc("GET /api/purchases", s.purchaseH.List)
	mux.HandleFunc("GET /api/purchases/{id}", s.purchaseH.Get)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.purchaseH.Delete)
	mux.HandleFunc("GET /api/items/{name}/history", s.purchaseH.History)

	mux.HandleFunc("GET /api/summary", s.summaryH.Summary)
	mux.HandleFunc("GET /api/overview", s.summaryH.Overview)
	mux.HandleFunc("GET /api/options", s.summaryH.Options)

	mux.HandleFunc("GET /api/export.csv", s.reportH.Export)
	mux.HandleFunc("GET /api/report", s.reportH.Report)
	mux.HandleFunc("GET /api/charts/{file}", s.reportH.Chart)

	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Create)

	var h http.Handler = mux
	h = middleware.LimitWrites(s.limiter)(h)
	h = middleware.Observe(s.metrics)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

// healthHandler reports 503 when the database cannot be reached.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.tracker.DB().PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}
