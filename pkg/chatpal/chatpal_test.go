package chatpal

// Shared in-memory fakes for the engine and the platform store.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"
)

type fakeEngine struct {
	mu             sync.Mutex
	docs           map[string]Document
	upserts        [][]Document
	deleted        []string
	deleteAllCalls int
	failUpsert     error
	queryFn        func(rawQuery string) (*RawResponse, error)
	facetFn        func(rawQuery string) (*RawFacetResponse, error)
	queries        []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{docs: make(map[string]Document)}
}

func (e *fakeEngine) Upsert(ctx context.Context, docs []Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failUpsert != nil {
		return e.failUpsert
	}
	batch := make([]Document, len(docs))
	copy(batch, docs)
	e.upserts = append(e.upserts, batch)
	for _, d := range docs {
		id, _ := d["id"].(string)
		e.docs[id] = d
	}
	return nil
}

func (e *fakeEngine) DeleteAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteAllCalls++
	e.docs = make(map[string]Document)
	return nil
}

func (e *fakeEngine) DeleteByID(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, id)
	delete(e.docs, id)
	return nil
}

func (e *fakeEngine) Query(ctx context.Context, rawQuery string) (*RawResponse, error) {
	e.mu.Lock()
	e.queries = append(e.queries, rawQuery)
	fn := e.queryFn
	e.mu.Unlock()
	if fn != nil {
		return fn(rawQuery)
	}
	return &RawResponse{}, nil
}

func (e *fakeEngine) FacetStats(ctx context.Context, rawQuery string) (*RawFacetResponse, error) {
	if e.facetFn != nil {
		return e.facetFn(rawQuery)
	}
	return &RawFacetResponse{}, nil
}

func (e *fakeEngine) Ping(ctx context.Context) error {
	return nil
}

func (e *fakeEngine) docCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.docs)
}

func (e *fakeEngine) hasDoc(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.docs[id]
	return ok
}

type windowRange struct {
	start, end time.Time
}

type fakeStore struct {
	mu          sync.Mutex
	messages    []platform.Message
	users       []platform.User
	subs        map[string][]string
	rooms       map[string]platform.Room
	windows     []windowRange
	hasBefore   int
	onHasBefore func(call int)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:  make(map[string][]string),
		rooms: make(map[string]platform.Room),
	}
}

func (s *fakeStore) MessagesBetween(ctx context.Context, start, end time.Time, limit, offset int) ([]platform.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := windowRange{start, end}
	if len(s.windows) == 0 || s.windows[len(s.windows)-1] != w {
		s.windows = append(s.windows, w)
	}

	var matched []platform.Message
	for _, m := range s.messages {
		if m.CreatedAt.After(start) && !m.CreatedAt.After(end) {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeStore) HasMessagesBefore(ctx context.Context, t time.Time) (bool, error) {
	s.mu.Lock()
	s.hasBefore++
	call := s.hasBefore
	hook := s.onHasBefore
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if !m.CreatedAt.After(t) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Users(ctx context.Context, limit, offset int) ([]platform.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.users) {
		return nil, nil
	}
	users := s.users[offset:]
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *fakeStore) UserInfo(ctx context.Context, id string) (*platform.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return &platform.UserInfo{ID: u.ID, Username: u.Username, Name: u.Name}, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SubscribedRoomIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[userID], nil
}

func (s *fakeStore) Subscription(ctx context.Context, userID, roomID string) (*platform.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.subs[userID] {
		if id == roomID {
			room := s.rooms[roomID]
			return &platform.Subscription{
				RoomID:   roomID,
				UserID:   userID,
				RoomName: room.Name,
				RoomType: room.Type,
			}, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Room(ctx context.Context, id string) (*platform.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *fakeStore) windowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// spreadMessages fills the store with one message per step, the newest at
// newest, walking back count-1 steps.
func (s *fakeStore) spreadMessages(newest time.Time, step time.Duration, count int) {
	for i := 0; i < count; i++ {
		ts := newest.Add(-time.Duration(i) * step)
		s.messages = append(s.messages, platform.Message{
			ID:        fmt.Sprintf("msg%d", i),
			RoomID:    "general",
			UserID:    "u1",
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}
}
