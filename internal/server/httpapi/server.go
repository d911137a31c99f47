// Package httpapi implements the HTTP adapter translating JSON requests
// into service calls and typed service failures into status codes.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// AuthService is the slice of the service layer this adapter drives.
type AuthService interface {
	SignIn(ctx context.Context, username, password, role string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Register(ctx context.Context, username, password, role string) (*models.User, error)
}

// Server routes HTTP requests to the authentication service.
type Server struct {
	auth   AuthService
	logger logging.Logger
}

// New creates a Server wired to the given service.
func New(auth AuthService, logger logging.Logger) *Server {
	return &Server{auth: auth, logger: logger}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/signin", s.handleSignIn)
	api.HandleFunc("/refresh", s.handleRefresh)
	api.HandleFunc("/register", s.handleRegister)

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", api))
	root.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	return root
}
