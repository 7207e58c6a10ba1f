package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// Dispatcher is the dispatch facade the API fronts. *dispatch.Dispatcher
// implements it.
type Dispatcher interface {
	IdentifyUser(ctx context.Context, id string, otherInfo dispatch.Properties, opts ...dispatch.DispatchOption) error
	Page(ctx context.Context, page string, properties dispatch.Properties, opts ...dispatch.DispatchOption) error
	SendEvent(ctx context.Context, event string, properties dispatch.Properties, opts ...dispatch.DispatchOption) error
	TrackError(ctx context.Context, message string, errorInfo any, opts ...dispatch.DispatchOption) error
	RegisteredAnalyticsClients() []string
	RegisteredErrorClients() []string
	UnregisterClients(names ...string)
	LinkClickHandler(event string, properties dispatch.Properties, nav dispatch.Navigator, opts ...dispatch.LinkOption) dispatch.LinkClickFunc
}

// Options configures a Server. The zero value is usable.
type Options struct {
	Logger *observability.Logger
	// Metrics enables the Prometheus HTTP middleware when set.
	Metrics        *observability.Metrics
	TracerProvider trace.TracerProvider
	// LinkDelay is the redirect delay for /v1/links when the request does
	// not pass one. Zero means dispatch.DefaultRedirectDelay.
	LinkDelay time.Duration
	// LinkAllowedHosts restricts redirect destinations. Empty allows any.
	LinkAllowedHosts []string
	MaxBodyBytes     int64
	// RateLimiter throttles requests per client IP when set.
	RateLimiter *httputil.RateLimiter
}

// Server represents our API server
type Server struct {
	dispatcher   Dispatcher
	router       *mux.Router
	logger       *observability.Logger
	opts         Options
	allowedHosts map[string]bool
}

// NewServer creates a new API server
func NewServer(d Dispatcher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.LinkDelay == 0 {
		opts.LinkDelay = dispatch.DefaultRedirectDelay
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		dispatcher: d,
		router:     mux.NewRouter(),
		logger:     opts.Logger,
		opts:       opts,
	}
	if len(opts.LinkAllowedHosts) > 0 {
		s.allowedHosts = make(map[string]bool, len(opts.LinkAllowedHosts))
		for _, h := range opts.LinkAllowedHosts {
			s.allowedHosts[normalizeHost(h)] = true
		}
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Dispatch routes
	v1.HandleFunc("/identify", s.identify).Methods(http.MethodPost)
	v1.HandleFunc("/page", s.page).Methods(http.MethodPost)
	v1.HandleFunc("/event", s.event).Methods(http.MethodPost)
	v1.HandleFunc("/error", s.trackError).Methods(http.MethodPost)

	// Registry routes
	v1.HandleFunc("/clients", s.listClients).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{name}", s.unregisterClient).Methods(http.MethodDelete)

	// Tracked links
	v1.HandleFunc("/links/{event}", s.followLink).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in recovery, request id, rate limit,
// body limit and tracing middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes)(h)
	if s.opts.RateLimiter != nil {
		h = httputil.RateLimitMiddleware(s.opts.RateLimiter)(h)
	}
	h = httputil.RequestIDMiddleware(s.logger)(h)
	h = httputil.RecoveryMiddleware(s.logger)(h)

	otelOpts := []otelhttp.Option{}
	if s.opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(s.opts.TracerProvider))
	}
	return otelhttp.NewHandler(h, "beacon-api", otelOpts...)
}
