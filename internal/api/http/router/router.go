package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/dtroode/observer-server/internal/api/http/handler"
	"github.com/dtroode/observer-server/internal/api/http/middleware"
	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Params groups dependencies for building the HTTP router.
type Params struct {
	Sessions       handler.SessionService
	Registrations  handler.RegistrationService
	Passwords      handler.PasswordService
	Resolver       middleware.Resolver
	Reader         handler.Reader
	Pinger         handler.Pinger
	ContextManager model.ContextManager
	Cookies        handler.CookieConfig
	Logger         *logger.Logger

	// Production enables HTTPS redirects and HSTS.
	Production     bool
	RequestTimeout time.Duration
	// AuthRateLimit is the per-IP request budget per minute on auth routes.
	AuthRateLimit int
}

// New constructs the chi router with the middleware stack.
func New(p Params) http.Handler {
	timeout := p.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	authLimit := p.AuthRateLimit
	if authLimit <= 0 {
		authLimit = 30
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           p.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            stsSeconds(p.Production),
		STSIncludeSubdomains:  p.Production,
		IsDevelopment:         !p.Production,
	})

	logging := middleware.NewLogging(p.Logger)
	authenticate := middleware.NewAuthenticate(p.Resolver, p.ContextManager, p.Logger)

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.RequestID,
		logging.Handle,
		chimw.Recoverer,
		chimw.Timeout(timeout),
		secureMiddleware.Handler,
	)

	r.Method(http.MethodGet, "/healthz", handler.NewHealth(p.Pinger, p.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/auth", func(r chi.Router) {
			r.Use(httprate.Limit(authLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusTooManyRequests)
					_, _ = w.Write([]byte(`{"detail":"too many requests"}`))
				}),
			))
			handler.NewAuth(p.Sessions, p.Registrations, p.Cookies, p.Logger).MountRoutes(r)
			handler.NewPassword(p.Passwords, p.ContextManager, p.Cookies, p.Logger).MountRoutes(r, authenticate.Handle)
		})

		r.Route("/private", func(r chi.Router) {
			r.Use(authenticate.Handle)
			handler.NewResource(p.Reader, p.ContextManager, p.Logger).MountRoutes(r)
		})
	})

	return r
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}
