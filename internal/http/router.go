package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
	"github.com/ourresearch/openalex-api-analytics/internal/service/usage"
	"github.com/ourresearch/openalex-api-analytics/internal/store"
	"github.com/ourresearch/openalex-api-analytics/internal/ws"
)

// Router wires dashboard endpoints to the usage service.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	usage       *usage.Service
	live        *usage.Broadcaster
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	tokenSecret string
	dbHealth    func(context.Context) error
	storeHealth func(context.Context) error

	metricsOnce    sync.Once
	metricsReady   bool
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
}

const (
	maxPageLimit       = 100
	healthCheckTimeout = 2 * time.Second
)

var (
	dashboardReadPolicy = RatePolicy{Limit: 120, Window: time.Minute}
	websocketPolicy     = RatePolicy{Limit: 30, Window: 30 * time.Second}
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, usageSvc *usage.Service, live *usage.Broadcaster, limiter RateLimiter, tokenSecret string, dbHealth, storeHealth func(context.Context) error) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		usage:  usageSvc,
		live:   live,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:     limiter,
		tokenSecret: strings.TrimSpace(tokenSecret),
		dbHealth:    dbHealth,
		storeHealth: storeHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/usage/keys", r.audit("/api/usage/keys", r.handlerAuthRate("/api/usage/keys", dashboardReadPolicy, r.handleTopKeys)))
	r.mux.HandleFunc("/api/usage/keys/", r.audit("/api/usage/keys/{key}", r.handlerAuthRate("/api/usage/keys/{key}", dashboardReadPolicy, r.handleKeyDetail)))
	r.mux.HandleFunc("/api/usage/anonymous", r.audit("/api/usage/anonymous", r.handlerAuthRate("/api/usage/anonymous", dashboardReadPolicy, r.handleTopBuckets)))
	r.mux.HandleFunc("/api/usage/buckets/", r.audit("/api/usage/buckets/{id}", r.handlerAuthRate("/api/usage/buckets/{id}", dashboardReadPolicy, r.handleBucketDetail)))
	r.mux.HandleFunc("/api/usage/timeline", r.audit("/api/usage/timeline", r.handlerAuthRate("/api/usage/timeline", dashboardReadPolicy, r.handleTimeline)))
	r.mux.HandleFunc("/api/usage/overview", r.audit("/api/usage/overview", r.handlerAuthRate("/api/usage/overview", dashboardReadPolicy, r.handleOverview)))
	r.mux.HandleFunc("/ws/usage", r.audit("/ws/usage", r.handlerAuthRate("/ws/usage", websocketPolicy, r.handleUsageWS)))
}

func (r *Router) handleTopKeys(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	period, limit, ok := r.listParams(w, req)
	if !ok {
		return
	}
	usages, err := r.usage.TopKeys(req.Context(), period, limit)
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.KeyUsagePayloads(usages), time.Now()))
}

func (r *Router) handleKeyDetail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	apiKey := strings.TrimPrefix(req.URL.Path, "/api/usage/keys/")
	if apiKey == "" || strings.Contains(apiKey, "/") {
		r.notFound(w)
		return
	}
	period, ok := r.periodParam(w, req)
	if !ok {
		return
	}
	detail, err := r.usage.KeyDetail(req.Context(), apiKey, period)
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.KeyDetailPayload(*detail), time.Now()))
}

func (r *Router) handleTopBuckets(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	period, limit, ok := r.listParams(w, req)
	if !ok {
		return
	}
	usages, err := r.usage.TopBuckets(req.Context(), period, limit)
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.BucketUsagePayloads(usages), time.Now()))
}

func (r *Router) handleBucketDetail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	raw := strings.TrimPrefix(req.URL.Path, "/api/usage/buckets/")
	if raw == "" || strings.Contains(raw, "/") {
		r.notFound(w)
		return
	}
	bucket, err := metrics.ParseBucketID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bucket id")
		return
	}
	period, ok := r.periodParam(w, req)
	if !ok {
		return
	}
	detail, err := r.usage.BucketDetail(req.Context(), bucket, period)
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.BucketUsagePayload(*detail), time.Now()))
}

func (r *Router) handleTimeline(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	period, ok := r.periodParam(w, req)
	if !ok {
		return
	}
	facet := req.URL.Query().Get("facet")
	if facet != "" && facet != "status" {
		writeError(w, http.StatusBadRequest, "unsupported facet")
		return
	}
	points, err := r.usage.Timeline(req.Context(), period, facet == "status")
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.TimePointPayloads(points), time.Now()))
}

func (r *Router) handleOverview(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	period, limit, ok := r.listParams(w, req)
	if !ok {
		return
	}
	overview, err := r.usage.Overview(req.Context(), period, limit)
	if err != nil {
		r.writeUsageError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, usage.Envelope(period, usage.OverviewPayload(*overview), time.Now()))
}

func (r *Router) handleUsageWS(w http.ResponseWriter, req *http.Request) {
	if r.live == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates disabled")
		return
	}
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for usage websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.live.Hub()
	hub.Register(usage.Topic, client)
	go func() {
		defer func() {
			hub.Unregister(usage.Topic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]any)
	status := "ok"
	check := func(name string, fn func(context.Context) error) {
		if fn == nil {
			return
		}
		if err := fn(ctx); err != nil {
			status = "degraded"
			components[name] = map[string]any{"status": "down", "error": err.Error()}
			return
		}
		components[name] = map[string]any{"status": "up"}
	}
	check("database", r.dbHealth)
	check("telemetry_store", r.storeHealth)

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// periodParam parses the optional period query parameter, writing a 400 on
// unknown values.
func (r *Router) periodParam(w http.ResponseWriter, req *http.Request) (domain.Period, bool) {
	period, err := domain.ParsePeriod(req.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Period{}, false
	}
	return period, true
}

// listParams parses period plus the optional limit parameter shared by the
// ranked list endpoints.
func (r *Router) listParams(w http.ResponseWriter, req *http.Request) (domain.Period, int, bool) {
	period, ok := r.periodParam(w, req)
	if !ok {
		return domain.Period{}, 0, false
	}
	limit := metrics.DefaultLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxPageLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return domain.Period{}, 0, false
		}
		limit = parsed
	}
	return period, limit, true
}

// writeUsageError maps service failures onto HTTP statuses.
func (r *Router) writeUsageError(w http.ResponseWriter, req *http.Request, err error) {
	var queryErr store.QueryError
	switch {
	case errors.As(err, &queryErr):
		r.logger.Error("telemetry store query failed", "status", queryErr.Status, "error", queryErr.Message, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "telemetry store query failed")
	case errors.Is(err, metrics.ErrInvalidBucket):
		writeError(w, http.StatusBadRequest, "invalid bucket id")
	default:
		r.logger.Error("usage query failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		requestID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		fields := []any{
			"method", req.Method,
			"route", route,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", requestID,
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			fields = append(fields, "subject", info.Subject)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
		r.recordRequestMetrics(req.Method, route, status, duration)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
