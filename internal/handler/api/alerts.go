package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	icache "SigPulse/internal/service/cache"
	"SigPulse/internal/service/metrics"
	"SigPulse/internal/service/ratelimit"
	"SigPulse/internal/services/analytics"
	"SigPulse/internal/usecase"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AlertsHandler serves the signal engine HTTP API.
type AlertsHandler struct {
	logger   *xlogger.Logger
	watcher  *usecase.Watcher
	analyzer *usecase.Analyzer
	tracker  *usecase.AlertTracker
	notifier *usecase.Notifier
	store    domrepo.CandleStore

	collector *usecase.CandleCollector
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
	startedAt time.Time
}

func NewAlertsHandler(logger *xlogger.Logger, watcher *usecase.Watcher, analyzer *usecase.Analyzer, tracker *usecase.AlertTracker, notifier *usecase.Notifier, store domrepo.CandleStore) *AlertsHandler {
	metrics.Register()
	return &AlertsHandler{
		logger:    logger,
		watcher:   watcher,
		analyzer:  analyzer,
		tracker:   tracker,
		notifier:  notifier,
		store:     store,
		rl:        ratelimit.New(),
		startedAt: time.Now(),
	}
}

func (h *AlertsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCollector attaches the stream collector so health can report it.
func (h *AlertsHandler) SetCollector(c *usecase.CandleCollector) { h.collector = c }

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.GET("/ping", h.Ping)

	g := e.Group("/api/v1")
	g.GET("/status", h.Status)
	g.GET("/status/:symbol", h.SymbolStatus)
	g.GET("/signals/history", h.History)
	g.POST("/analyze", h.Analyze)
	g.POST("/analyze/:symbol", h.AnalyzeSymbol)
	g.DELETE("/cooldowns", h.ClearCooldowns)
	g.DELETE("/cooldowns/:symbol", h.ClearCooldown)
	g.POST("/notifications/test", h.TestNotification)
	g.GET("/notifications/status", h.NotificationStatus)
}

// ServiceInfo is the root endpoint payload.
type ServiceInfo struct {
	Service   string   `json:"service"`
	Endpoints []string `json:"endpoints"`
}

func (h *AlertsHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, ServiceInfo{
		Service: "sigpulse",
		Endpoints: []string{
			"/health",
			"/ping",
			"/metrics",
			"/api/v1/status",
			"/api/v1/status/:symbol",
			"/api/v1/signals/history",
			"/api/v1/analyze",
			"/api/v1/analyze/:symbol",
			"/api/v1/cooldowns",
			"/api/v1/notifications/test",
			"/api/v1/notifications/status",
		},
	})
}

// MonitoringStatus reports the scan loop state.
type MonitoringStatus struct {
	Running  bool      `json:"running"`
	Symbols  []string  `json:"symbols"`
	Interval string    `json:"interval"`
	Scans    int       `json:"scans"`
	LastScan time.Time `json:"last_scan,omitempty"`
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status          string           `json:"status"`
	UptimeSeconds   int              `json:"uptime_seconds"`
	Monitoring      MonitoringStatus `json:"monitoring"`
	StreamConnected bool             `json:"stream_connected"`
	TrackedSymbols  []string         `json:"tracked_symbols"`
}

func (h *AlertsHandler) Health(c echo.Context) error {
	last, scans := h.watcher.LastScan()
	return xhttp.SuccessResponse(c, HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int(time.Since(h.startedAt).Seconds()),
		Monitoring: MonitoringStatus{
			Running:  h.watcher.Running(),
			Symbols:  h.watcher.Symbols(),
			Interval: h.watcher.Interval().String(),
			Scans:    scans,
			LastScan: last,
		},
		StreamConnected: h.collector != nil && h.collector.IsConnected(),
		TrackedSymbols:  h.store.Symbols(c.Request().Context()),
	})
}

func (h *AlertsHandler) Ping(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"message": "pong"})
}

func (h *AlertsHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.StatusAll())
}

func (h *AlertsHandler) SymbolStatus(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	return xhttp.SuccessResponse(c, h.tracker.Status(symbol))
}

func (h *AlertsHandler) History(c echo.Context) error {
	start := time.Now()
	endpoint := "history"
	defer func() { metrics.SignalLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sinceRaw := c.QueryParam("since")
	since, hasSince := xhttp.ParseTime(sinceRaw)

	cacheKey := "history:" + req.Symbol
	if hasSince {
		cacheKey += ":" + sinceRaw
	}
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			if h.logger != nil {
				h.logger.Warn("history cache_get_error", xlogger.Error(err))
			}
		} else if ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	var records []models.HistoryRecord
	if hasSince {
		all := h.tracker.History(req.Symbol, 0)
		records = make([]models.HistoryRecord, 0, len(all))
		for _, r := range all {
			if !r.Timestamp.Before(since) {
				records = append(records, r)
			}
		}
		if len(records) > req.Limit {
			records = records[len(records)-req.Limit:]
		}
	} else {
		records = h.tracker.History(req.Symbol, req.Limit)
	}
	envelope := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    xhttp.ListDataResponse{Rows: records, Total: int64(len(records))},
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		metrics.SignalErrors.WithLabelValues(endpoint).Inc()
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(cacheKey, b, 10*time.Second); err != nil && h.logger != nil {
			h.logger.Warn("history cache_set_error", xlogger.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (h *AlertsHandler) Analyze(c echo.Context) error {
	start := time.Now()
	endpoint := "analyze"
	defer func() { metrics.SignalLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":analyze", 2, 0.2) {
		if h.logger != nil {
			h.logger.Warn("analyze rate_limited", xlogger.String("remote", c.RealIP()))
		}
		return xhttp.AppErrorResponse(c, tooManyRequests())
	}

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.watcher.Symbols()
	}

	run := h.analyzer.AnalyzeMany(c.Request().Context(), symbols)
	if len(run.Errors) > 0 {
		metrics.SignalErrors.WithLabelValues(endpoint).Inc()
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *AlertsHandler) AnalyzeSymbol(c echo.Context) error {
	start := time.Now()
	endpoint := "analyze_symbol"
	defer func() { metrics.SignalLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	if !h.rl.Allow(c.RealIP()+":analyze", 5, 1) {
		if h.logger != nil {
			h.logger.Warn("analyze rate_limited", xlogger.String("remote", c.RealIP()))
		}
		return xhttp.AppErrorResponse(c, tooManyRequests())
	}

	res, err := h.analyzer.AnalyzeSymbol(c.Request().Context(), symbol)
	if err != nil {
		metrics.SignalErrors.WithLabelValues(endpoint).Inc()
		if h.logger != nil {
			h.logger.Error("analyze usecase error", xlogger.String("symbol", symbol), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, analysisError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// CooldownCleared is the cooldown removal payload.
type CooldownCleared struct {
	Symbol  string `json:"symbol,omitempty"`
	Cleared int    `json:"cleared"`
}

func (h *AlertsHandler) ClearCooldowns(c echo.Context) error {
	cleared := h.tracker.ClearAllCooldowns()
	return xhttp.SuccessResponse(c, CooldownCleared{Cleared: cleared})
}

func (h *AlertsHandler) ClearCooldown(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	cleared := 0
	if h.tracker.ClearCooldown(symbol) {
		cleared++
	}
	// the notification throttle clears alongside the signal cooldown
	h.notifier.ClearCooldown(symbol)
	if cleared == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no cooldown for %s", symbol))
	}
	return xhttp.SuccessResponse(c, CooldownCleared{Symbol: symbol, Cleared: cleared})
}

func (h *AlertsHandler) TestNotification(c echo.Context) error {
	req := &models.TestNotificationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results := h.notifier.SendTest(c.Request().Context(), req.Message)
	return xhttp.SuccessResponse(c, results)
}

func (h *AlertsHandler) NotificationStatus(c echo.Context) error {
	recent := xhttp.ParseIntDefault(c.QueryParam("recent"), 10)
	return xhttp.SuccessResponse(c, h.notifier.Status(c.Request().Context(), recent))
}

func tooManyRequests() *xhttp.AppError {
	return xhttp.NewAppError("ERR_RATE_LIMITED", "too many requests", http.StatusTooManyRequests)
}

func analysisError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, analytics.ErrInsufficientData):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, analytics.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}

var _ xhttp.Handler = (*AlertsHandler)(nil)
