package harness

import "github.com/go-chi/chi/v5/middleware"

// MountRoutes registers the middleware chain and the routes.
//
// Ordering:
//  1. Recoverer       - outermost, catches every panic.
//  2. CleanPath       - collapses duplicate slashes before routing.
//  3. ContextTimeout  - mirrors the Lambda deadline.
//  4. RequestID       - correlation id for logs and responses.
//  5. RequestLogger   - one line per request.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(middleware.CleanPath)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/rules", s.handleRules)
	s.router.With(middleware.AllowContentType("application/json")).
		Post("/invoke", s.handleInvoke)
}
