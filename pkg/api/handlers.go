package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/assistify/chatpal-search/pkg/chatpal"
	"github.com/assistify/chatpal-search/pkg/config"
	"github.com/assistify/chatpal-search/pkg/platform"
	"github.com/assistify/chatpal-search/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "Missing user parameter", "Parameter 'user' identifying the caller is required")
		return
	}

	page := 1
	if p := q.Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "Invalid page", fmt.Sprintf("Page %q is not a positive integer", p))
			return
		}
		page = parsed
	}

	searchType := q.Get("type")
	if searchType == "" {
		searchType = chatpal.SearchTypeMessage
	}

	result, err := s.Gateway().Search(r.Context(), userID, q.Get("q"), page, searchType)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Gateway().Statistics(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleReindex(w http.ResponseWriter, r *http.Request) {
	gateway := s.Gateway()
	if !gateway.Enabled() {
		s.writeError(w, http.StatusConflict, "Backend disabled", "Enable and configure the engine before reindexing")
		return
	}
	if gateway.Running() {
		s.writeJSON(w, http.StatusAccepted, ReindexResponse{Status: "already running"})
		return
	}

	clearFirst := r.URL.Query().Get("clear") == "true"

	// The walk can take a long time; it runs detached from the request.
	go func() {
		if err := gateway.Reindex(context.Background(), clearFirst); err != nil {
			logger.Errorf("reindex failed: %v", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, ReindexResponse{Status: "started"})
}

func (s *Server) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Gateway().Config())
}

func (s *Server) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	if s.applyConfig == nil {
		s.writeError(w, http.StatusNotImplemented, "Config updates unavailable", "This server does not accept configuration changes")
		return
	}

	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid config", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid config", err.Error())
		return
	}

	if err := s.applyConfig(r.Context(), &cfg); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Applying config failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ConfigResponse{Status: "applied"})
}

func (s *Server) HandleMessageCreated(w http.ResponseWriter, r *http.Request) {
	var msg platform.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid message", err.Error())
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
	if msg.RoomID == "" || msg.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid message", "room_id and user_id are required")
		return
	}

	if err := s.store.SaveMessage(r.Context(), msg); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Storing message failed", err.Error())
		return
	}
	if err := s.Gateway().IndexMessage(r.Context(), msg); err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, EventResponse{ID: msg.ID, Status: "indexed"})
}

func (s *Server) HandleMessageDeleted(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Message id is required")
		return
	}

	if err := s.store.DeleteMessage(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Deleting message failed", err.Error())
		return
	}
	if err := s.Gateway().RemoveMessage(r.Context(), id); err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, EventResponse{ID: id, Status: "removed"})
}

func (s *Server) HandleUserCreated(w http.ResponseWriter, r *http.Request) {
	var u platform.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Username == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid user", "username is required")
		return
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	if err := s.store.SaveUser(r.Context(), u); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Storing user failed", err.Error())
		return
	}
	if err := s.Gateway().IndexUser(r.Context(), u); err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, EventResponse{ID: u.ID, Status: "indexed"})
}

func (s *Server) HandleRoomUpserted(w http.ResponseWriter, r *http.Request) {
	var room platform.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid room", err.Error())
		return
	}
	if room.ID == "" {
		room.ID = uuid.New().String()
	}

	if err := s.store.SaveRoom(r.Context(), room); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Storing room failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, EventResponse{ID: room.ID, Status: "stored"})
}

func (s *Server) HandleSubscriptionUpserted(w http.ResponseWriter, r *http.Request) {
	var sub platform.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid subscription", err.Error())
		return
	}
	if sub.RoomID == "" || sub.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid subscription", "room_id and user_id are required")
		return
	}

	if err := s.store.SaveSubscription(r.Context(), sub.RoomID, sub.UserID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Storing subscription failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, EventResponse{ID: sub.RoomID + "/" + sub.UserID, Status: "stored"})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	gateway := s.Gateway()

	active := gateway.Enabled()
	status := "ok"
	if active {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := gateway.Ping(ctx); err != nil {
			active = false
			status = "degraded"
		}
	}

	health := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Active:    active,
		Running:   gateway.Running(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses with the
// stable message code so clients can pick user-facing text.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var engineErr *chatpal.EngineError
	if errors.As(err, &engineErr) {
		switch {
		case errors.Is(err, chatpal.ErrBadQuery):
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "Bad query", Message: err.Error(), Code: engineErr.Code,
			})
		case errors.Is(err, chatpal.ErrEngineUnreachable):
			s.writeJSON(w, http.StatusBadGateway, ErrorResponse{
				Error: "Engine unreachable", Message: err.Error(), Code: engineErr.Code,
			})
		default:
			s.writeJSON(w, http.StatusBadGateway, ErrorResponse{
				Error: "Engine request failed", Message: err.Error(), Code: engineErr.Code,
			})
		}
		return
	}
	s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
}
