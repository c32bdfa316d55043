package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	AnalysesTotal  prometheus.Counter
	AnalysisErrors prometheus.Counter
	AnalysisDur    prometheus.Histogram

	SignalsTotal *prometheus.CounterVec // labels: action
	OrdersTotal  *prometheus.CounterVec // labels: side, status

	AdvisorFailures   prometheus.Counter
	PredictorFailures prometheus.Counter

	MarketDataDur prometheus.Histogram
	BarCacheHits  prometheus.Counter
	BarCacheMiss  prometheus.Counter

	PortfolioValue prometheus.Gauge
	CashBalance    prometheus.Gauge
	OpenPositions  prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_analyses_total",
			Help: "Total symbol analyses performed",
		}),
		AnalysisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_analysis_errors_total",
			Help: "Symbol analyses that failed",
		}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dailytrader_analysis_duration_seconds",
			Help:    "Per-symbol analysis latency",
			Buckets: prometheus.DefBuckets,
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailytrader_signals_total",
			Help: "Signals generated (by action)",
		}, []string{"action"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailytrader_orders_total",
			Help: "Orders placed (by side and status)",
		}, []string{"side", "status"}),

		AdvisorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_advisor_failures_total",
			Help: "AI advisor calls that failed and were degraded to notes",
		}),
		PredictorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_predictor_failures_total",
			Help: "Price predictor calls that failed and were degraded to notes",
		}),

		MarketDataDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dailytrader_marketdata_fetch_duration_seconds",
			Help:    "Bar history fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		BarCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_bar_cache_hits_total",
			Help: "Bar windows served from the Redis cache",
		}),
		BarCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailytrader_bar_cache_misses_total",
			Help: "Bar windows fetched from the upstream source",
		}),

		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dailytrader_portfolio_value",
			Help: "Cash plus marked position value",
		}),
		CashBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dailytrader_cash_balance",
			Help: "Current cash balance",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dailytrader_open_positions",
			Help: "Number of open positions",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisErrors,
		m.AnalysisDur,
		m.SignalsTotal,
		m.OrdersTotal,
		m.AdvisorFailures,
		m.PredictorFailures,
		m.MarketDataDur,
		m.BarCacheHits,
		m.BarCacheMiss,
		m.PortfolioValue,
		m.CashBalance,
		m.OpenPositions,
	)

	return m
}

// HealthStatus represents bot health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	BrokerConnected bool      `json:"broker_connected"`
	RedisConnected  bool      `json:"redis_connected"`
	JournalOK       bool      `json:"journal_ok"`
	LastAnalysisAt  time.Time `json:"last_analysis_at"`

	RedisLatencyMs   float64   `json:"redis_latency_ms"`
	JournalLatencyMs float64   `json:"journal_latency_ms"`
	LastCheckAt      time.Time `json:"last_check_at"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetBrokerConnected(v bool) {
	h.mu.Lock()
	h.BrokerConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastAnalysisAt(t time.Time) {
	h.mu.Lock()
	h.LastAnalysisAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckJournal pings the journal database and records latency + health.
func (h *HealthStatus) CheckJournal(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.JournalOK = err == nil
	h.JournalLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs dependency checks once immediately and then on
// every interval tick until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, journalDB *sql.DB, interval time.Duration) {
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(checkCtx, rdb)
		}
		if journalDB != nil {
			h.CheckJournal(checkCtx, journalDB)
		}
	}
	go func() {
		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.BrokerConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastAnalysis := ""
	if !h.LastAnalysisAt.IsZero() {
		lastAnalysis = h.LastAnalysisAt.Format(time.RFC3339)
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		BrokerConnected  bool    `json:"broker_connected"`
		RedisConnected   bool    `json:"redis_connected"`
		RedisLatencyMs   float64 `json:"redis_latency_ms"`
		JournalOK        bool    `json:"journal_ok"`
		JournalLatencyMs float64 `json:"journal_latency_ms"`
		LastAnalysisAt   string  `json:"last_analysis_at"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		BrokerConnected:  h.BrokerConnected,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		JournalOK:        h.JournalOK,
		JournalLatencyMs: h.JournalLatencyMs,
		LastAnalysisAt:   lastAnalysis,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
	log    *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: log,
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
