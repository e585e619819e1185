package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	authcore "github.com/campuskit/authcore"
	"github.com/campuskit/authcore/middleware"
)

// Server holds the HTTP handlers for the authentication surface.
type Server struct {
	engine   *authcore.Engine
	validate *validator.Validate
}

func NewServer(engine *authcore.Engine) *Server {
	return &Server{
		engine:   engine,
		validate: validator.New(),
	}
}

// Router mounts the public auth routes, the authenticated /auth/me route,
// and the admin-only account lifecycle routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/refresh-token", s.handleRefresh)
		r.Post("/request-password-reset", s.handleRequestPasswordReset)
		r.Post("/reset-password", s.handleResetPassword)
		r.Post("/resend-verification", s.handleResendVerification)

		// GET supports plain email links; POST supports API clients.
		r.Get("/verify-email/{token}", s.handleVerifyEmail)
		r.Post("/verify-email/{token}", s.handleVerifyEmail)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.engine))
			r.Get("/me", s.handleMe)
		})
	})

	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(middleware.RequireRole(s.engine, authcore.RoleAdmin))
		r.Post("/{id}/suspend", s.handleSuspend)
		r.Post("/{id}/reinstate", s.handleReinstate)
		r.Post("/{id}/unlock", s.handleUnlock)
		r.Delete("/{id}", s.handleDelete)
	})

	return r
}

// requestContext rebinds the request with audit context (IP, User-Agent).
func requestContext(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithRequestContext(r))
}
