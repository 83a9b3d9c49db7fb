package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/ukudarovv/instachecker-sub000/internal/auth"
	"github.com/ukudarovv/instachecker-sub000/internal/handlers"
	"github.com/ukudarovv/instachecker-sub000/internal/middleware"
)

// RegisterRoutes registers the ops API under /v1. Everything requires a
// bearer token; tokens are minted out-of-band at owner provisioning.
func RegisterRoutes(
	router chi.Router,
	tokenManager *auth.TokenManager,
	ownerHandler *handlers.OwnerHandler,
	targetHandler *handlers.TargetHandler,
	proxyHandler *handlers.ProxyHandler,
	keyHandler *handlers.KeyHandler,
	sessionHandler *handlers.SessionHandler,
	runHandler *handlers.RunHandler,
) {
	opsLimit := middleware.DefaultOpsRateLimit()
	runLimit := middleware.DefaultRunRateLimit()

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))
		r.Use(middleware.RateLimitByIP(opsLimit))

		r.Get("/owner", ownerHandler.Get)
		r.Put("/owner/mode", ownerHandler.SetMode)
		r.Put("/owner/fallback-order", ownerHandler.SetFallbackOrder)

		r.Post("/targets", targetHandler.Submit)
		r.Get("/targets", targetHandler.List)
		r.Delete("/targets/{id}", targetHandler.Delete)

		r.Post("/proxies", proxyHandler.Create)
		r.Get("/proxies", proxyHandler.List)
		r.Put("/proxies/{id}/active", proxyHandler.SetActive)
		r.Put("/proxies/{id}/priority", proxyHandler.SetPriority)
		r.Delete("/proxies/{id}", proxyHandler.Delete)

		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		r.Post("/sessions", sessionHandler.Import)
		r.Get("/sessions", sessionHandler.List)
		r.Put("/sessions/{id}/cookies", sessionHandler.RefreshCookies)
		r.Put("/sessions/{id}/active", sessionHandler.SetActive)
		r.Delete("/sessions/{id}", sessionHandler.Delete)

		r.With(middleware.RateLimitByIP(runLimit)).Post("/runs", runHandler.Trigger)
		r.Get("/runs/stats", runHandler.Stats)
	})
}
