package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"wolweb/pkg/httpx"
)

// Router builds the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(securityHeaders)
	r.Use(s.metrics.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	// Unauthenticated pages.
	r.Group(func(pub chi.Router) {
		pub.Use(s.withUser)
		pub.Use(s.requireCSRF)
		pub.Get("/login", s.handleLoginPage)
		pub.Post("/login", s.handleLogin)
		pub.Post("/logout", s.handleLogout)
		pub.Get("/register", s.handleRegisterPage)
		pub.Post("/register", s.handleRegister)
		pub.Get("/about", s.handleAboutPage)
	})

	// Authenticated pages.
	r.Group(func(pr chi.Router) {
		pr.Use(s.withUser)
		pr.Use(s.requireAuth)
		pr.Use(s.requireCSRF)

		pr.Get("/", s.handleHome)
		pr.Get("/hosts", s.handleHostsPage)
		pr.Post("/hosts", s.handleHostCreate)
		pr.Post("/hosts/{hostID}", s.handleHostUpdate)
		pr.Post("/hosts/{hostID}/delete", s.handleHostDelete)
		pr.Post("/hosts/{hostID}/wake", s.handleHostWake)
		pr.Get("/user", s.handleProfilePage)
		pr.Post("/user", s.handleProfileUpdate)

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(s.requireAdmin)
			ar.Get("/", s.handleAdminPage)
			ar.Post("/options", s.handleAdminOptions)
			ar.Post("/api", s.handleAdminAPI)
			ar.Post("/sso", s.handleAdminSSO)
			ar.Get("/users", s.handleAdminUsers)
			ar.Post("/users/{userID}/admin", s.handleAdminSetAdmin)
			ar.Post("/users/{userID}/delete", s.handleAdminDeleteUser)
		})
	})

	// JSON host descriptor, consumed by scripts and the dev frontend.
	r.Group(func(api chi.Router) {
		api.Use(cors.New(cors.Options{
			AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			AllowedMethods:   []string{http.MethodGet},
			AllowCredentials: true,
		}).Handler)
		api.Use(s.withUser)
		api.Use(s.requireAuth)
		api.Get("/hosts/{hostID}/json", s.handleHostJSON)
	})

	return r
}
