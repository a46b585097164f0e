// ABOUTME: Local stand-in for the CRM Web API, backed by the SQLite record store.
// ABOUTME: Wires request logging, bearer auth, and the OData handlers onto a chi router.

package fakecrm

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/auth"
	"github.com/2389/dataloader/internal/logging"
	"github.com/2389/dataloader/internal/store"
)

// APIPath is the Web API root served by the fake.
const APIPath = "/api/data/v9.2"

// DefaultPageSize is used when the caller sends no odata.maxpagesize preference.
const DefaultPageSize = 100

// Server serves the subset of the Web API the loader uses.
type Server struct {
	store    *store.Store
	token    string
	pageSize int
	now      func() time.Time

	userID         uuid.UUID
	businessUnitID uuid.UUID
	organizationID uuid.UUID
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires callers to present exactly this bearer token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithPageSize sets the default page size for collection queries.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the time source used for createdon stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a fake CRM server backed by s.
func NewServer(s *store.Store, opts ...Option) *Server {
	srv := &Server{
		store:          s,
		pageSize:       DefaultPageSize,
		now:            time.Now,
		userID:         uuid.New(),
		businessUnitID: uuid.New(),
		organizationID: uuid.New(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s.store))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the authenticated Web API routes.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route(APIPath, func(r chi.Router) {
		r.Use(auth.Middleware(s.token))
		r.Get("/WhoAmI", s.whoAmI)
		r.Get("/{target}", s.get)
		r.Post("/{target}", s.create)
		r.MethodNotAllowed(s.methodNotAllowed)
	})
}
