package chatpal

import (
	"context"
	"fmt"

	"github.com/assistify/chatpal-search/pkg/config"
	"github.com/assistify/chatpal-search/pkg/platform"
	"github.com/assistify/chatpal-search/pkg/realtime"

	cplog "github.com/assistify/chatpal-search/pkg/log"
)

// Search type selectors for Gateway.Search.
const (
	SearchTypeMessage = "message"
	SearchTypeAll     = "all"
)

// SearchResponse is the caller-facing search result. When the backend is
// disabled only Enabled is populated (a sentinel, not an error).
type SearchResponse struct {
	Enabled  bool            `json:"enabled"`
	Messages *MessageResults `json:"messages,omitempty"`
	Users    *UserResults    `json:"users,omitempty"`
}

// Gateway is the facade over the indexing and query paths. Its configuration
// is immutable for its lifetime; a configuration change constructs a new
// Gateway and swaps the reference (see cmd/serve), never mutates a live one.
//
// Incremental index/remove calls, searches and statistics are independent and
// may run concurrently with each other and with an in-progress backfill.
type Gateway struct {
	cfg      *config.Config
	engine   Engine
	store    platform.Store
	hub      *realtime.FirehoseHub
	queries  *QueryBuilder
	aligner  *Aligner
	backfill *BackfillController
	logger   *cplog.Logger
}

// NewGateway wires a gateway from its collaborators. hub may be nil when no
// realtime fan-out is wanted.
func NewGateway(cfg *config.Config, engine Engine, store platform.Store, hub *realtime.FirehoseHub) *Gateway {
	lang := cfg.LanguageTag()
	return &Gateway{
		cfg:     cfg,
		engine:  engine,
		store:   store,
		hub:     hub,
		queries: NewQueryBuilder(lang),
		aligner: NewAligner(lang, cfg.Search.DateFormat, cfg.Search.TimeFormat, store, store),
		backfill: NewBackfillController(engine, store, BackfillConfig{
			Language: lang,
			PageSize: cfg.Index.PageSize,
			Window:   cfg.Index.WindowDuration(),
			Delay:    cfg.Index.BackfillDelay.Duration,
		}),
		logger: cplog.ForService("gateway"),
	}
}

// Enabled reports whether the backend is active and configured.
func (g *Gateway) Enabled() bool {
	return g.cfg.Activated && g.cfg.Engine.URL != ""
}

// Config returns the gateway's configuration snapshot.
func (g *Gateway) Config() *config.Config {
	return g.cfg
}

// Running reports whether a backfill walk is in progress.
func (g *Gateway) Running() bool {
	return g.backfill.Running()
}

// Ping probes the search engine.
func (g *Gateway) Ping(ctx context.Context) error {
	if !g.Enabled() {
		return fmt.Errorf("backend disabled")
	}
	return g.engine.Ping(ctx)
}

// Start launches the bootstrap backfill in the background, clearing the index
// first when so configured. A disabled gateway starts nothing.
func (g *Gateway) Start(ctx context.Context) {
	if !g.Enabled() {
		g.logger.Infof("backend disabled, not starting bootstrap")
		return
	}
	go func() {
		if err := g.backfill.Run(ctx, g.cfg.Index.ClearOnStart); err != nil {
			g.logger.Errorf("bootstrap failed: %v", err)
		}
	}()
}

// Stop requests cancellation of any in-progress backfill. It does not block.
func (g *Gateway) Stop() {
	g.backfill.Stop()
}

// Reindex runs a full backfill synchronously. It is a no-op when the backend
// is disabled or a walk is already running.
func (g *Gateway) Reindex(ctx context.Context, clearFirst bool) error {
	if !g.Enabled() {
		return nil
	}
	return g.backfill.Run(ctx, clearFirst)
}

// IndexMessage upserts a single message into the index. A silent no-op when
// disabled: incremental calls are best-effort real-time sync.
func (g *Gateway) IndexMessage(ctx context.Context, m platform.Message) error {
	if !g.Enabled() {
		return nil
	}
	if err := g.engine.Upsert(ctx, []Document{MapMessage(m, g.cfg.LanguageTag())}); err != nil {
		return fmt.Errorf("indexing message %s: %w", m.ID, err)
	}
	g.publish(realtime.DocumentEvent{
		ID:        m.ID,
		DocType:   DocTypeMessage,
		RoomID:    m.RoomID,
		CreatedAt: m.CreatedAt,
		Text:      m.Text,
	})
	return nil
}

// RemoveMessage deletes a single message from the index. A silent no-op when
// disabled.
func (g *Gateway) RemoveMessage(ctx context.Context, id string) error {
	if !g.Enabled() {
		return nil
	}
	if err := g.engine.DeleteByID(ctx, MessageDocID(id)); err != nil {
		return fmt.Errorf("removing message %s: %w", id, err)
	}
	g.publish(realtime.DocumentEvent{ID: id, DocType: DocTypeMessage, Removed: true})
	return nil
}

// IndexUser upserts a single user into the index. A silent no-op when
// disabled.
func (g *Gateway) IndexUser(ctx context.Context, u platform.User) error {
	if !g.Enabled() {
		return nil
	}
	if err := g.engine.Upsert(ctx, []Document{MapUser(u)}); err != nil {
		return fmt.Errorf("indexing user %s: %w", u.ID, err)
	}
	g.publish(realtime.DocumentEvent{
		ID:        u.ID,
		DocType:   DocTypeUser,
		CreatedAt: u.CreatedAt,
	})
	return nil
}

// Search runs a search as the given user. searchType selects the message-only
// path or the grouped all-type path; anything else defaults to messages.
// When the backend is disabled a sentinel response with Enabled=false is
// returned, not an error.
func (g *Gateway) Search(ctx context.Context, userID, text string, page int, searchType string) (*SearchResponse, error) {
	if !g.Enabled() {
		return &SearchResponse{Enabled: false}, nil
	}

	rooms, err := g.store.SubscribedRoomIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving subscriptions for %s: %w", userID, err)
	}

	pageSize := g.cfg.Search.PageSize

	if searchType == SearchTypeAll {
		raw, err := g.engine.Query(ctx, g.queries.AllQuery(text, pageSize, rooms))
		if err != nil {
			return nil, err
		}
		grouped, err := g.aligner.AlignGrouped(ctx, userID, raw, pageSize)
		if err != nil {
			return nil, err
		}
		return &SearchResponse{Enabled: true, Users: grouped.Users, Messages: grouped.Messages}, nil
	}

	raw, err := g.engine.Query(ctx, g.queries.MessageQuery(text, page, pageSize, rooms))
	if err != nil {
		return nil, err
	}
	messages, err := g.aligner.AlignMessages(ctx, userID, raw, pageSize)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Enabled: true, Messages: messages}, nil
}

// Statistics returns the index statistics. Disabled backends answer exactly
// {enabled:false}.
func (g *Gateway) Statistics(ctx context.Context) (*Statistics, error) {
	if !g.Enabled() {
		return &Statistics{Enabled: false}, nil
	}
	raw, err := g.engine.FacetStats(ctx, g.queries.StatsQuery())
	if err != nil {
		return nil, err
	}
	return g.aligner.AlignStatistics(raw, g.Running()), nil
}

func (g *Gateway) publish(ev realtime.DocumentEvent) {
	if g.hub != nil {
		g.hub.Broadcast(ev)
	}
}
