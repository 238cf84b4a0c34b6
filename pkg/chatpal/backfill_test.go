package chatpal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"
)

func newTestController(engine Engine, store platform.Store, window time.Duration) *BackfillController {
	return NewBackfillController(engine, store, BackfillConfig{
		Language: "en",
		PageSize: 4,
		Window:   window,
		Delay:    time.Millisecond,
	})
}

func TestBackfillExhaustion(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()

	// 10 messages, one every 7h: a 63h span needs ceil(63/24) = 3 windows.
	newest := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.spreadMessages(newest, 7*time.Hour, 10)

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.now = func() time.Time { return newest }

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := store.windowCount(); got != 3 {
		t.Errorf("Expected 3 windows for a 63h span, got %d", got)
	}
	if ctrl.MessagesIndexed() != 10 {
		t.Errorf("Expected all 10 messages indexed, got %d", ctrl.MessagesIndexed())
	}
	for i := 0; i < 10; i++ {
		if !engine.hasDoc(fmt.Sprintf("m_msg%d", i)) {
			t.Errorf("Expected message msg%d in the index", i)
		}
	}
	if ctrl.State() != StateIdle {
		t.Errorf("Expected idle after exhaustion, got %s", ctrl.State())
	}
}

func TestBackfillIdempotentRerun(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()
	newest := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.spreadMessages(newest, time.Hour, 5)

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.now = func() time.Time { return newest }

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	first := engine.docCount()

	// Boundary probe sees nothing (fake engine answers empty), so the second
	// run replays from now; upserts by id must not duplicate anything.
	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if engine.docCount() != first {
		t.Errorf("Expected no duplication on re-run, got %d then %d docs", first, engine.docCount())
	}
}

func TestBackfillStopBetweenWindows(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()
	newest := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.spreadMessages(newest, 7*time.Hour, 10)

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.now = func() time.Time { return newest }

	// The existence probe runs once per window; stopping during the second
	// probe means window 1 is fully applied and window 2 never starts.
	store.onHasBefore = func(call int) {
		if call == 2 {
			ctrl.Stop()
		}
	}

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if ctrl.State() != StateStopped {
		t.Fatalf("Expected stopped state, got %s", ctrl.State())
	}
	if got := store.windowCount(); got != 1 {
		t.Errorf("Expected only the first window processed, got %d", got)
	}
	// The user pass only runs on normal exhaustion.
	if engine.hasDoc("u_u1") {
		t.Error("Expected no user pass after a stop")
	}
}

func TestBackfillUserPassAfterExhaustion(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()
	newest := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.spreadMessages(newest, time.Hour, 3)
	store.users = []platform.User{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	}

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.now = func() time.Time { return newest }

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !engine.hasDoc("u_u1") || !engine.hasDoc("u_u2") {
		t.Error("Expected every user indexed after exhaustion")
	}
}

func TestBackfillUpsertFailureAborts(t *testing.T) {
	engine := newFakeEngine()
	engine.failUpsert = errors.New("engine said no")
	store := newFakeStore()
	newest := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.spreadMessages(newest, time.Hour, 3)

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.now = func() time.Time { return newest }

	err := ctrl.Run(context.Background(), false)
	if err == nil {
		t.Fatal("Expected a backfill error")
	}
	var bfErr *BackfillError
	if !errors.As(err, &bfErr) {
		t.Fatalf("Expected *BackfillError, got %T: %v", err, err)
	}
	// Idle, not stopped: the next reindex is the recovery path.
	if ctrl.State() != StateIdle {
		t.Errorf("Expected idle after a failed walk, got %s", ctrl.State())
	}
}

func TestBackfillClearFirst(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()

	ctrl := newTestController(engine, store, 24*time.Hour)

	if err := ctrl.Run(context.Background(), true); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if engine.deleteAllCalls != 1 {
		t.Errorf("Expected one index clear, got %d", engine.deleteAllCalls)
	}
}

func TestBackfillResumesFromOldestIndexed(t *testing.T) {
	engine := newFakeEngine()
	oldest := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	engine.queryFn = func(rawQuery string) (*RawResponse, error) {
		return &RawResponse{Response: RawDocList{
			NumFound: 1,
			Docs:     []Document{{"id": "m_old", "created": oldest.Format(time.RFC3339)}},
		}}, nil
	}

	store := newFakeStore()
	store.spreadMessages(oldest.Add(-time.Hour), time.Hour, 2)

	ctrl := newTestController(engine, store, 24*time.Hour)

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store.mu.Lock()
	firstWindow := store.windows[0]
	store.mu.Unlock()
	if !firstWindow.end.Equal(oldest) {
		t.Errorf("Expected the walk to resume at the oldest indexed timestamp, got window end %s", firstWindow.end)
	}
}

func TestBackfillRunWhileRunningIsNoop(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()

	ctrl := newTestController(engine, store, 24*time.Hour)
	ctrl.state = StateBootstrapping

	if err := ctrl.Run(context.Background(), true); err != nil {
		t.Fatalf("Expected no-op, got %v", err)
	}
	if engine.deleteAllCalls != 0 {
		t.Error("Expected no engine calls from the ignored run")
	}
}

func TestBackfillStopWhenIdleIsNoop(t *testing.T) {
	ctrl := newTestController(newFakeEngine(), newFakeStore(), 24*time.Hour)
	ctrl.Stop() // must not panic on a nil stop channel
	if ctrl.State() != StateIdle {
		t.Errorf("Expected idle, got %s", ctrl.State())
	}
}

func TestBackfillEmptyHistory(t *testing.T) {
	engine := newFakeEngine()
	store := newFakeStore()

	ctrl := newTestController(engine, store, 24*time.Hour)

	if err := ctrl.Run(context.Background(), false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := store.windowCount(); got != 0 {
		t.Errorf("Expected no windows for empty history, got %d", got)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("Expected idle, got %s", ctrl.State())
	}
}
