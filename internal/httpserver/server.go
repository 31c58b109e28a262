package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type Server struct {
	Mux *mux.Router
}

// New builds a router with the given middleware applied to every route,
// health endpoints included.
func New(mw ...mux.MiddlewareFunc) *Server {
	r := mux.NewRouter()
	for _, m := range mw {
		r.Use(m)
	}
	return &Server{Mux: r}
}

// WithHealth registers /healthz and /readyz. Every readiness check runs
// under the given timeout.
func (s *Server) WithHealth(timeout time.Duration, checks ...ReadyzCheck) *Server {
	s.Mux.HandleFunc("/healthz", Healthz()).Methods(http.MethodGet)
	s.Mux.HandleFunc("/readyz", Readyz(timeout, checks...)).Methods(http.MethodGet)
	return s
}
