package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	appweb "expensetracker/web"
)

// DefaultRedirectDelay is how long a success message stays up before the list page loads.
const DefaultRedirectDelay = 2 * time.Second

// ExpenseService is what the pages need from the service layer.
type ExpenseService interface {
	List(ctx context.Context, f core.Filter) ([]core.Expense, error)
	Dashboard(ctx context.Context) (core.Summary, error)
	Get(ctx context.Context, id core.ID) (core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, id core.ID, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id core.ID) error
}

// ReadinessCheck is an extra dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tunes the server. Zero values select the defaults.
type Options struct {
	// RedirectDelay is how long success messages stay up; negative means redirect at once.
	RedirectDelay      time.Duration
	RateLimitPerMinute int
	ReadinessTimeout   time.Duration
	Logger             *applog.Logger
	Checks             []ReadinessCheck
}

type Server struct {
	http.Server
	templates *template.Template
	expenses  ExpenseService

	logger        *applog.Logger
	redirectDelay time.Duration
	readyTimeout  time.Duration
	checks        []ReadinessCheck

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	created         atomic.Int64
	updated         atomic.Int64
	deleted         atomic.Int64
	gatewayFailures atomic.Int64
	started         time.Time
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc ExpenseService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RedirectDelay < 0 {
		opts.RedirectDelay = 0
	} else if opts.RedirectDelay == 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = 5 * time.Second
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		expenses:         svc,
		logger:           logger,
		redirectDelay:    opts.RedirectDelay,
		readyTimeout:     opts.ReadinessTimeout,
		checks:           opts.Checks,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		traceMiddleware:  trace.NewMiddleware(opts.Logger, clientIP),
	}
	s.appMetrics.started = time.Now()

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware(clientIP))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStoreMiddleware)
		r.Use(s.limitMutations)

		r.Get("/", s.handleDashboard)

		r.Get("/expenses", s.handleListExpenses)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Get("/expenses/{id}/delete", s.handleConfirmDelete)
		r.Post("/expenses/{id}/delete", s.handleDeleteConfirmed)

		r.Get("/add-expense", s.handleAddForm)
		r.Post("/add-expense", s.handleCreateExpense)
		r.Get("/edit-expense/{id}", s.handleEditForm)
		r.Post("/edit-expense/{id}", s.handleUpdateExpense)
	})

	return r
}

// limitMutations rate limits POST and DELETE requests per client; page reads are not limited.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(clientIP, s.onRateLimit)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, clientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldComponent, applog.ComponentRateLimit)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
