package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/solterra/solterra/internal/auth"
	"github.com/solterra/solterra/internal/billing"
	"github.com/solterra/solterra/internal/clients"
	"github.com/solterra/solterra/internal/dashboard"
	"github.com/solterra/solterra/internal/lots"
	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/observability"
	"github.com/solterra/solterra/internal/referrals"
	"github.com/solterra/solterra/internal/sales"
	"github.com/solterra/solterra/internal/services"
	"github.com/solterra/solterra/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Auth             *auth.Middleware
	ClientsHandler   *clients.Handler
	LotsHandler      *lots.Handler
	SalesHandler     *sales.Handler
	BillingHandler   *billing.Handler
	ServicesHandler  *services.Handler
	NotifyHandler    *notify.Handler
	ReferralsHandler *referrals.Handler
	DashboardHandler *dashboard.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Solterra defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Gateway callbacks authenticate with the webhook token, not a JWT.
	r.Route("/webhooks", params.BillingHandler.MountWebhookRoutes)

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Route("/clients", params.ClientsHandler.MountRoutes)
			params.LotsHandler.MountAdminRoutes(r)
			params.SalesHandler.MountAdminRoutes(r)
			params.ServicesHandler.MountAdminRoutes(r)
			params.ReferralsHandler.MountAdminRoutes(r)
			params.NotifyHandler.MountAdminRoutes(r)
			params.DashboardHandler.MountAdminRoutes(r)
		})

		r.Route("/client", func(r chi.Router) {
			r.Use(auth.RequireClient)
			params.LotsHandler.MountPublicRoutes(r)
			params.SalesHandler.MountClientRoutes(r)
			params.BillingHandler.MountClientRoutes(r)
			params.ServicesHandler.MountClientRoutes(r)
			params.ReferralsHandler.MountClientRoutes(r)
			params.NotifyHandler.MountClientRoutes(r)
			params.DashboardHandler.MountClientRoutes(r)
		})
	})

	return r
}
