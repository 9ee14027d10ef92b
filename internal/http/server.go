package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "spendwise/internal/log"
	"spendwise/internal/middleware/cors"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/recovery"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the API server.
type Options struct {
	Addr               string
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	UploadsPerMinute   int
	RequestTimeout     time.Duration
	TrustedProxies     []string
	Logger             *applog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = applog.New(applog.DefaultConfig())
	}
	return o
}

// Server is the JSON API over the ingest, insights and nudge services.
type Server struct {
	http.Server
	ingest   *services.IngestService
	insights *services.InsightsService
	nudges   *services.NudgeService
	store    Pinger

	logger       *applog.Logger
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	maxUpload    int64
	timeout      time.Duration
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, ingest *services.IngestService, insights *services.InsightsService, nudges *services.NudgeService, store Pinger) *Server {
	opts = opts.withDefaults()
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	clientIP := security.NewClientIP()
	for _, cidr := range opts.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}

	s := &Server{
		ingest:    ingest,
		insights:  insights,
		nudges:    nudges,
		store:     store,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.UploadsPerMinute}),
		tracer:    trace.NewMiddleware(opts.Logger, clientIP.Extract),
		maxUpload: opts.MaxUploadBytes,
		timeout:   opts.RequestTimeout,
	}

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, clientIP.Extract(r),
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}
	limited := s.limiter.Middleware(clientIP.Extract, onLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("POST /api/transactions/upload", limited(http.HandlerFunc(s.handleUpload)))
	mux.Handle("POST /api/transactions/recategorize", limited(http.HandlerFunc(s.handleRecategorize)))
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/nudges", s.handleListNudges)
	mux.Handle("POST /api/nudges/suggest", limited(http.HandlerFunc(s.handleSuggestNudges)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	onPanic := func(w http.ResponseWriter, r *http.Request) {
		InternalServerError("internal error").Write(w)
	}

	var handler http.Handler = mux
	handler = cors.Middleware(opts.CORSAllowedOrigins)(handler)
	handler = headers.Middleware(handler)
	handler = recovery.Middleware(onPanic)(handler)
	handler = applog.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Stats reports request counters from the tracing middleware.
func (s *Server) Stats() trace.Stats {
	return s.tracer.Stats()
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestContext bounds a handler's work by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}
