package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/sweetshop/internal/application/checkout"
	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	tracerName           = "sweetshop.http"
	maxBodyBytes         = 8 << 20
)

type Handler struct {
	ledger   *appsweet.Ledger
	checkout *checkout.Service
	auth     *Authenticator
	log      observability.Logger
	tel      observability.Observability

	requests observability.Counter   // http_requests_total{method,route,status}
	duration observability.Histogram // http_request_duration_seconds{method,route,status}

	metricsHandler http.Handler
	gatewayKeyID   string
}

type Option func(*Handler)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(hd *Handler) { hd.metricsHandler = h }
}

// WithGatewayKeyID is echoed to clients so they can open the gateway checkout.
func WithGatewayKeyID(id string) Option {
	return func(hd *Handler) { hd.gatewayKeyID = id }
}

func NewHandler(ledger *appsweet.Ledger, checkoutSvc *checkout.Service, auth *Authenticator,
	logger observability.Logger, tel observability.Observability, opts ...Option,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	h := &Handler{
		ledger:   ledger,
		checkout: checkoutSvc,
		auth:     auth,
		log:      baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	// Trace → request logger → access log → metrics → auth → handler
	h.muxHandle(r, http.MethodGet, "/", accessPublic, h.handleIndex)
	h.muxHandle(r, http.MethodGet, "/health", accessPublic, h.handleHealth)
	if h.metricsHandler != nil {
		r.Handle("/metrics", h.metricsHandler).Methods(http.MethodGet)
	}

	h.muxHandle(r, http.MethodGet, "/api/sweets", accessUser, h.handleListSweets)
	h.muxHandle(r, http.MethodGet, "/api/sweets/search", accessUser, h.handleSearchSweets)
	h.muxHandle(r, http.MethodGet, "/api/sweets/{id}", accessUser, h.handleGetSweet)
	h.muxHandle(r, http.MethodPost, "/api/sweets", accessAdmin, h.handleCreateSweet)
	h.muxHandle(r, http.MethodPut, "/api/sweets/{id}", accessAdmin, h.handleUpdateSweet)
	h.muxHandle(r, http.MethodDelete, "/api/sweets/{id}", accessAdmin, h.handleDeleteSweet)
	h.muxHandle(r, http.MethodPost, "/api/sweets/{id}/purchase", accessUser, h.handlePurchase)
	h.muxHandle(r, http.MethodPost, "/api/sweets/{id}/restock", accessAdmin, h.handleRestock)
	h.muxHandle(r, http.MethodPost, "/api/sweets/{id}/manual-order", accessUser, h.handleManualOrder)

	h.muxHandle(r, http.MethodPost, "/api/payment/create-order", accessUser, h.handleCreatePaymentOrder)
	h.muxHandle(r, http.MethodPost, "/api/payment/verify-payment", accessUser, h.handleVerifyPayment)
	h.muxHandle(r, http.MethodGet, "/api/orders/{id}", accessUser, h.handleGetOrder)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}

func (h *Handler) muxHandle(r *mux.Router, method, route string, access accessLevel, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		)(
			h.withAccessLog(
				h.withHTTPMetrics(
					h.withAuth(access, handler),
				),
			),
		),
	)
	r.Handle(route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// the path template keeps route labels low-cardinality
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	})).Methods(method)
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweet Shop Management API"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		if route == "unknown" {
			route = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))
		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.requests.Add(1, labels...)
		h.duration.Observe(time.Since(start).Seconds(), labels...)
	})
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
