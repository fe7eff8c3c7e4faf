package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"carnote/internal/cache"
	"carnote/internal/core"
	"carnote/internal/log"
	"carnote/internal/middleware/ratelimit"
	"carnote/internal/middleware/security"
	"carnote/internal/middleware/trace"
	"carnote/internal/ports"
	"carnote/internal/services"
	appweb "carnote/web"
)

// Options configures the services the server builds over the repository.
type Options struct {
	VehicleID         string
	Thresholds        services.Thresholds
	MaintenanceTokens []string
	UpcomingDays      int

	// Logger defaults to the component logger "http"
	Logger *log.Logger

	// RateLimit defaults to ratelimit.DefaultConfig
	RateLimit *ratelimit.Config

	// BlockSuspicious answers 403 to probing requests instead of only logging them
	BlockSuspicious bool

	ReportCacheSize int
	ReportCacheTTL  time.Duration
}

type appMetrics struct {
	uptime        time.Time
	journalWrites int64
	imports       int64
}

type Server struct {
	http.Server
	templates *template.Template

	repo        ports.Repository
	vehicleID   string
	maintenance *services.MaintenanceService
	fuel        *services.FuelService
	journal     *services.JournalService
	reports     *services.ReportService

	// report results keyed by "<kind>:<params>", dropped on writes
	reportCache  *cache.LRUCache[any]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	securityHeaders  *security.HeadersMiddleware
	traceMiddleware  *trace.Middleware
	logger           *log.StructuredLogger

	appMetrics *appMetrics
	today      func() core.Date

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
// publisher may be nil when AMQP is not configured.
func NewServer(addr string, repo ports.Repository, publisher ports.EventPublisher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.FromContext(context.Background()).WithComponent(log.ComponentHTTP)
	}
	if opts.ReportCacheSize <= 0 {
		opts.ReportCacheSize = 100
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 5 * time.Minute
	}
	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimit != nil {
		rlConfig = *opts.RateLimit
	}

	mux := http.NewServeMux()
	detector := security.NewDetector()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		repo:             repo,
		vehicleID:        opts.VehicleID,
		maintenance:      services.NewMaintenanceService(repo, opts.VehicleID, opts.Thresholds),
		fuel:             services.NewFuelService(repo, publisher, opts.VehicleID),
		journal:          services.NewJournalService(repo, publisher, opts.VehicleID),
		reports:          services.NewReportService(repo, opts.VehicleID, opts.MaintenanceTokens, opts.UpcomingDays),
		reportCache:      cache.NewLRUCache[any](opts.ReportCacheSize, opts.ReportCacheTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: detector,
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, opts.Logger),
		logger:           log.NewStructuredLogger(opts.Logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
		today:            core.Today,
	}

	s.cacheManager.Register("reports", s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		opts.Logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		opts.Logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/vehicle", s.handleGetVehicle)
	mux.HandleFunc("POST /api/vehicle/mileage", s.handleSetMileage)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/templates/{id}", s.handleTemplate)

	mux.HandleFunc("GET /api/services", s.handleListServices)
	mux.HandleFunc("POST /api/services", s.handleCreateService)

	mux.HandleFunc("GET /api/parts", s.handleListParts)
	mux.HandleFunc("POST /api/parts", s.handleCreatePart)
	mux.HandleFunc("POST /api/parts/{id}/status", s.handleUpdatePartStatus)

	mux.HandleFunc("GET /api/fuel", s.handleListFuel)
	mux.HandleFunc("POST /api/fuel", s.handleCreateFuel)
	mux.HandleFunc("GET /api/fuel/stats", s.handleFuelStats)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/summary", s.handleExpenseSummary)
	mux.HandleFunc("GET /api/reports/yearly", s.handleYearlyReport)

	mux.HandleFunc("POST /api/recurring", s.handleSaveRecurring)
	mux.HandleFunc("GET /api/recurring/upcoming", s.handleUpcoming)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	var h http.Handler = mux
	h = s.securityHeaders.Middleware(h)
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(h)
	h = detector.Middleware(opts.BlockSuspicious)(h)
	s.Handler = s.traceMiddleware.Middleware(h)

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidate drops cached reports whose key starts with any prefix.
func (s *Server) invalidate(ctx context.Context, prefixes ...string) {
	removed := 0
	for _, p := range prefixes {
		removed += s.reportCache.DeletePrefix(p)
	}
	if removed > 0 {
		log.FromContext(ctx).WithComponent(log.ComponentCache).DebugContext(ctx, "Report cache invalidated",
			"entries_removed", removed)
	}
}

// cached returns the value under key or loads and stores it.
func cached[T any](ctx context.Context, s *Server, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := s.reportCache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	s.reportCache.Set(key, v)
	return v, nil
}
