package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"billable/internal/cache"
	"billable/internal/catalog"
	"billable/internal/core"
	"billable/internal/log"
	"billable/internal/middleware/ratelimit"
	"billable/internal/middleware/security"
	"billable/internal/middleware/trace"
)

// Ledger is the part of the ledger service the API drives.
type Ledger interface {
	LoadMonth(ctx context.Context, ym core.YearMonth) (*core.Ledger, error)
	SaveTask(ctx context.Context, task core.Task) (*core.Ledger, error)
	UpdateTask(ctx context.Context, ym core.YearMonth, id string, fields core.TaskFields) (*core.Ledger, error)
	DeleteTask(ctx context.Context, ym core.YearMonth, id string) (*core.Ledger, error)
	LoadRecurringDefinitions(ctx context.Context) ([]core.Task, error)
	GetRateForDate(ctx context.Context, projectID string, on core.Date) (float64, error)
	CurrentRate(ctx context.Context, projectID string) (float64, error)
}

// Catalog manages projects, clients and their logos.
type Catalog interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	ClientProjects(ctx context.Context, clientID string) ([]core.Project, error)
	SaveProject(ctx context.Context, p core.Project) (core.Project, error)
	UpdateProject(ctx context.Context, id string, p core.Project) (core.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListClients(ctx context.Context) ([]core.Client, error)
	GetClient(ctx context.Context, id string) (core.Client, error)
	SaveClient(ctx context.Context, name string, logo *catalog.Logo) (core.Client, error)
	UpdateClient(ctx context.Context, id, name string, logo *catalog.Logo) (core.Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// LogoFiles resolves a logo filename to a file on disk.
type LogoFiles interface {
	Path(filename string) (string, error)
}

// Deps are the collaborators of a Server. Ready is optional.
type Deps struct {
	Ledger  Ledger
	Catalog Catalog
	Logos   LogoFiles
	Logger  *log.Logger
	Ready   func(ctx context.Context) error
}

// Options tune the server. Zero values pick the defaults.
type Options struct {
	CORSOrigin         string
	MaxLogoBytes       int64
	RateLimitPerMinute int
	MonthCacheSize     int
	MonthCacheTTL      time.Duration
	TrustedProxies     []string
}

const logoMaxAge = 86400

type Server struct {
	http.Server
	ledger  Ledger
	catalog Catalog
	logos   LogoFiles
	ready   func(ctx context.Context) error
	logger  *log.Logger

	maxLogoBytes int64
	months       *cache.MonthCache
	caches       *cache.Manager
	limiter      *ratelimit.Limiter
	detector     *security.Detector

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if opts.MaxLogoBytes <= 0 {
		opts.MaxLogoBytes = 2 << 20
	}
	if opts.MonthCacheSize <= 0 {
		opts.MonthCacheSize = 24
	}
	if opts.MonthCacheTTL <= 0 {
		opts.MonthCacheTTL = 5 * time.Minute
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:       deps.Ledger,
		catalog:      deps.Catalog,
		logos:        deps.Logos,
		ready:        deps.Ready,
		logger:       logger,
		maxLogoBytes: opts.MaxLogoBytes,
		months:       cache.NewMonthCache(opts.MonthCacheSize, opts.MonthCacheTTL),
		caches:       cache.NewManager(deps.Logger),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.caches.Register(s.months)
	s.caches.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/tasks/{year}/{month}", s.handleGetMonth)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("PUT /api/tasks/{year}/{month}/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{year}/{month}/{id}", s.handleDeleteTask)
	mux.HandleFunc("GET /api/recurring-tasks", s.handleRecurringTasks)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	// client/{id} and {id}/rate overlap as patterns, so one handler serves both.
	mux.HandleFunc("GET /api/projects/{a}/{b}", s.handleProjectSubresource)

	mux.HandleFunc("GET /api/clients", s.handleListClients)
	mux.HandleFunc("POST /api/clients", s.handleCreateClient)
	mux.HandleFunc("PUT /api/clients/{id}", s.handleUpdateClient)
	mux.HandleFunc("DELETE /api/clients/{id}", s.handleDeleteClient)
	mux.Handle("GET /api/logos/{filename}", security.CacheControl(logoMaxAge)(http.HandlerFunc(s.handleLogo)))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, handleRateLimited)(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger).Middleware(handler)
	handler = s.detector.Middleware(deps.Logger)(handler)
	handler = security.CORS(opts.CORSOrigin)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Write(w)
}
