package router

import (
	"net/http"

	mem "media-access/internal/adapters/storage/memory"
	_ "media-access/internal/docs"
	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/media"
	"media-access/internal/domain/shares"
	"media-access/internal/metrics"
	"media-access/internal/middleware"
	"media-access/internal/platform/logger"
	"media-access/internal/ports/auth"
	"media-access/internal/ports/notify"
	"media-access/internal/ratelimit"
	"media-access/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Stores agrupa los repos. Los que vengan nil se crean in-memory.
type Stores struct {
	Grants accessgrants.Repository
	Media  media.Repository
	Shares shares.Repository
}

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	Logger       logger.Logger

	Stores Stores

	// Hub local de realtime; si es nil se crea uno.
	Hub *realtime.Hub
	// Notifier de los services. nil = el Hub directo (una sola instancia).
	// Con redis se pasa el broker, que republica hacia los Hubs de todas las instancias.
	Notifier notify.Notifier

	RequestLimiter accessgrants.RequestLimiter
	ShareLimiter   shares.WindowLimiter // nil = ventana en memoria
	PortfolioLimit int

	// Metrics nil = sin observer ni /metrics.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// App expone los services armados además del handler (el sweeper y los tests los usan).
type App struct {
	Handler http.Handler
	Grants  *accessgrants.Service
	Shares  *shares.Service
	Media   *media.Service
	Hub     *realtime.Hub
}

func NewRouter(opts Options) http.Handler {
	return Build(opts).Handler
}

func Build(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	grantsRepo := opts.Stores.Grants
	if grantsRepo == nil {
		grantsRepo = mem.NewAccessGrantsRepo()
	}
	mediaRepo := opts.Stores.Media
	if mediaRepo == nil {
		mediaRepo = mem.NewMediaRepo()
	}
	sharesRepo := opts.Stores.Shares
	if sharesRepo == nil {
		sharesRepo = mem.NewSharesRepo()
	}

	hub := opts.Hub
	if hub == nil {
		hub = realtime.NewHub(log)
	}
	var notifier notify.Notifier = hub
	if opts.Notifier != nil {
		notifier = opts.Notifier
	}

	shareLimiter := opts.ShareLimiter
	if shareLimiter == nil {
		shareLimiter = ratelimit.NewMemoryWindow()
	}

	grantsOpts := accessgrants.Options{Notifier: notifier, Limiter: opts.RequestLimiter}
	sharesOpts := shares.Options{Notifier: notifier, Limiter: shareLimiter, PortfolioLimit: opts.PortfolioLimit}
	if opts.Metrics != nil {
		grantsOpts.Observer = opts.Metrics
		sharesOpts.Observer = opts.Metrics
	}

	// Services por módulo
	grantsSvc := accessgrants.NewService(grantsRepo, grantsOpts)
	mediaSvc := media.NewService(mediaRepo, grantsSvc)
	sharesSvc := shares.NewService(sharesRepo, mediaSvc, sharesOpts)
	mediaSvc.UseShares(sharesSvc)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", metrics.Handler(gatherer))
	}
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Todo lo demás requiere identidad.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthContext(opts.AuthVerifier))

		r.Get("/realtime", realtime.Handler(hub, log))

		// Rutas por módulo
		accessgrants.RegisterRoutes(r, grantsSvc)
		media.RegisterRoutes(r, mediaSvc)
		shares.RegisterRoutes(r, sharesSvc)
	})

	return &App{
		Handler: r,
		Grants:  grantsSvc,
		Shares:  sharesSvc,
		Media:   mediaSvc,
		Hub:     hub,
	}
}
