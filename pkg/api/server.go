package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/assistify/chatpal-search/pkg/chatpal"
	"github.com/assistify/chatpal-search/pkg/config"
	"github.com/assistify/chatpal-search/pkg/platform"
	"github.com/assistify/chatpal-search/pkg/realtime"

	cplog "github.com/assistify/chatpal-search/pkg/log"
)

var logger = cplog.ForService("api")

// Gateway is the slice of the search gateway the HTTP surface needs.
// *chatpal.Gateway satisfies it; tests substitute fakes.
type Gateway interface {
	Enabled() bool
	Running() bool
	Stop()
	Ping(ctx context.Context) error
	Search(ctx context.Context, userID, text string, page int, searchType string) (*chatpal.SearchResponse, error)
	Statistics(ctx context.Context) (*chatpal.Statistics, error)
	Reindex(ctx context.Context, clearFirst bool) error
	IndexMessage(ctx context.Context, m platform.Message) error
	RemoveMessage(ctx context.Context, id string) error
	IndexUser(ctx context.Context, u platform.User) error
	Config() *config.Config
}

// EventStore is the write side of the platform copy, fed by the inbound
// event hooks.
type EventStore interface {
	SaveMessage(ctx context.Context, m platform.Message) error
	DeleteMessage(ctx context.Context, id string) error
	SaveUser(ctx context.Context, u platform.User) error
	SaveRoom(ctx context.Context, r platform.Room) error
	SaveSubscription(ctx context.Context, roomID, userID string) error
}

// Server is the HTTP API: search and statistics, the admin endpoints
// (reindex, config), the inbound platform event hooks and the websocket
// firehose of index events.
type Server struct {
	mu      sync.RWMutex
	gateway Gateway

	store       EventStore
	hub         *realtime.FirehoseHub
	adminKey    string
	applyConfig func(ctx context.Context, cfg *config.Config) error
}

// NewServer builds a server. hub may be nil to disable the firehose.
func NewServer(gateway Gateway, store EventStore, hub *realtime.FirehoseHub, adminKey string) *Server {
	return &Server{
		gateway:  gateway,
		store:    store,
		hub:      hub,
		adminKey: adminKey,
	}
}

// Gateway returns the current gateway. The reference is swapped wholesale on
// configuration changes, never mutated.
func (s *Server) Gateway() Gateway {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway
}

// SetGateway swaps in a new gateway instance.
func (s *Server) SetGateway(gateway Gateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateway = gateway
}

// SetApplyConfig installs the callback invoked by PUT /api/config after
// validation. The callback persists the configuration and rebuilds the
// gateway; without one, config updates are rejected.
func (s *Server) SetApplyConfig(fn func(ctx context.Context, cfg *config.Config) error) {
	s.applyConfig = fn
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// requireAdminKey guards mutating endpoints. An empty configured key disables
// the check (local setups); plain search is never guarded.
func (s *Server) requireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey != "" && r.Header.Get("X-Admin-Key") != s.adminKey {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing or invalid admin key")
			return
		}
		next(w, r)
	}
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
