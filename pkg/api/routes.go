package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Plain search and statistics are unguarded; permission semantics live
	// with the caller.
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)

	// Admin surface.
	mux.HandleFunc("POST /api/reindex", s.requireAdminKey(s.HandleReindex))
	mux.HandleFunc("GET /api/config", s.requireAdminKey(s.HandleGetConfig))
	mux.HandleFunc("PUT /api/config", s.requireAdminKey(s.HandlePutConfig))

	// Inbound platform event hooks.
	mux.HandleFunc("POST /api/events/message", s.requireAdminKey(s.HandleMessageCreated))
	mux.HandleFunc("DELETE /api/events/message/{id}", s.requireAdminKey(s.HandleMessageDeleted))
	mux.HandleFunc("POST /api/events/user", s.requireAdminKey(s.HandleUserCreated))
	mux.HandleFunc("POST /api/events/room", s.requireAdminKey(s.HandleRoomUpserted))
	mux.HandleFunc("POST /api/events/subscription", s.requireAdminKey(s.HandleSubscriptionUpserted))

	mux.HandleFunc("GET /api/firehose/ws", s.HandleFirehoseWS)
}
