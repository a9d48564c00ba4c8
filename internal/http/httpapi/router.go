package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genstudio/internal/domain"
	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

type Options struct {
	Logger        *infra.Logger
	DefaultLocale string
	// GenerateLimit caps generate calls per client per minute; zero
	// disables the limit.
	GenerateLimit int
	Metrics       http.Handler
	Static        http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(*logger),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}

	r.Route("/v1/auth", func(r chi.Router) {
		r.Get("/status", app.AuthStatus)
		r.Post("/authorize", app.AuthAuthorize)
	})

	limiter := middleware.NewLimiter(opts.GenerateLimit, time.Minute)
	r.Route("/v1/"+string(domain.KindImage), modeRoutes(app.Image, limiter))
	r.Route("/v1/"+string(domain.KindVideo), modeRoutes(app.Video, limiter))

	return r
}

func modeRoutes[P domain.Params](m *handlers.Mode[P], limiter *middleware.Limiter) func(chi.Router) {
	return func(r chi.Router) {
		r.With(limiter.Handler).Post("/generate", m.Generate)
		r.Get("/state", m.State)
		r.Post("/dismiss", m.Dismiss)
		r.Put("/draft", m.Draft)
		r.Get("/history", m.History)
		r.Delete("/history", m.ClearHistory)
		r.Get("/history/export", m.Export)
		r.Delete("/history/{id}", m.DeleteHistoryItem)
	}
}
