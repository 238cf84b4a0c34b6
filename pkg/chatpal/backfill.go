package chatpal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"

	cplog "github.com/assistify/chatpal-search/pkg/log"
)

// BackfillState is the lifecycle of a backfill walk.
type BackfillState int

const (
	// StateIdle: no walk active. Reached after a successful run or a failed
	// one (failed windows are safe to re-run, upserts are idempotent).
	StateIdle BackfillState = iota

	// StateBootstrapping: the walk is processing windows.
	StateBootstrapping

	// StateStopped: the walk observed a cancellation between windows. A
	// subsequent run resumes from the recomputed trailing boundary.
	StateStopped
)

func (s BackfillState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapping:
		return "bootstrapping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BackfillConfig holds the walk's knobs.
type BackfillConfig struct {
	Language string
	PageSize int           // bulk upsert batch size
	Window   time.Duration // duration of one time window
	Delay    time.Duration // pause between windows (backpressure)
}

// BackfillController walks chat history backward in fixed-size time windows,
// bulk-upserting each window page by page, until no un-indexed data older
// than the trailing boundary remains or a stop is requested. On normal
// exhaustion it performs one full paged user-index pass.
//
// At most one walk runs at a time; Run while bootstrapping is a no-op.
// Cancellation is cooperative: a Stop is observed between windows, never
// mid-window, so a stop request is honored within one window's processing
// time.
type BackfillController struct {
	engine  Engine
	store   platform.Store
	queries *QueryBuilder
	cfg     BackfillConfig
	logger  *cplog.Logger

	// now is the boundary fallback clock, replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	state    BackfillState
	stopCh   chan struct{}
	stopping bool
	indexed  int
}

// NewBackfillController builds an idle controller.
func NewBackfillController(engine Engine, store platform.Store, cfg BackfillConfig) *BackfillController {
	return &BackfillController{
		engine:  engine,
		store:   store,
		queries: NewQueryBuilder(cfg.Language),
		cfg:     cfg,
		logger:  cplog.ForService("backfill"),
		now:     time.Now,
	}
}

// State returns the current lifecycle state.
func (b *BackfillController) State() BackfillState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Running reports whether a walk is in progress.
func (b *BackfillController) Running() bool {
	return b.State() == StateBootstrapping
}

// MessagesIndexed returns the number of messages upserted by the current or
// most recent run.
func (b *BackfillController) MessagesIndexed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexed
}

// Stop requests cancellation of the current walk. It never blocks; the walk
// observes the request at the next window boundary. Stopping an idle
// controller is a no-op.
func (b *BackfillController) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateBootstrapping && !b.stopping {
		b.stopping = true
		close(b.stopCh)
	}
}

// Run executes one backfill walk. When clearFirst is set the whole index is
// wiped before the walk starts. Run returns nil on exhaustion or stop; a
// failed upsert aborts with a *BackfillError and no retry (the next run
// re-covers the partial window).
//
// Run while a walk is already in progress is a no-op returning nil.
func (b *BackfillController) Run(ctx context.Context, clearFirst bool) error {
	b.mu.Lock()
	if b.state == StateBootstrapping {
		b.mu.Unlock()
		b.logger.Debugf("run requested while bootstrapping, ignoring")
		return nil
	}
	b.state = StateBootstrapping
	b.stopCh = make(chan struct{})
	b.stopping = false
	b.indexed = 0
	b.mu.Unlock()

	final := StateIdle
	defer func() {
		b.mu.Lock()
		b.state = final
		b.mu.Unlock()
	}()

	if clearFirst {
		b.logger.Infof("clearing index before bootstrap")
		if err := b.engine.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
	}

	boundary, err := b.trailingBoundary(ctx)
	if err != nil {
		return err
	}
	b.logger.Infof("bootstrap starting, boundary %s, window %s", boundary.Format(time.RFC3339), b.cfg.Window)

	windows := 0
	for {
		// Exhaustion check: nothing older than the boundary means the walk
		// is done regardless of any pending cancellation.
		hasOlder, err := b.store.HasMessagesBefore(ctx, boundary)
		if err != nil {
			return fmt.Errorf("probing history before %s: %w", boundary.Format(time.RFC3339), err)
		}
		if !hasOlder {
			break
		}

		select {
		case <-b.stopCh:
			b.logger.Infof("bootstrap stopped after %d windows, %d messages", windows, b.MessagesIndexed())
			final = StateStopped
			return nil
		case <-ctx.Done():
			final = StateStopped
			return ctx.Err()
		default:
		}

		windowStart := boundary.Add(-b.cfg.Window)
		if err := b.processWindow(ctx, windowStart, boundary); err != nil {
			return err
		}
		boundary = windowStart
		windows++

		// Yield between windows so the engine and the message store are
		// never hit back to back.
		select {
		case <-time.After(b.cfg.Delay):
		case <-b.stopCh:
			b.logger.Infof("bootstrap stopped after %d windows, %d messages", windows, b.MessagesIndexed())
			final = StateStopped
			return nil
		case <-ctx.Done():
			final = StateStopped
			return ctx.Err()
		}
	}

	if err := b.indexAllUsers(ctx); err != nil {
		return err
	}

	b.logger.Infof("bootstrap finished, %d windows, %d messages", windows, b.MessagesIndexed())
	return nil
}

// trailingBoundary finds where the walk resumes: the creation time of the
// oldest indexed message. An empty index means nothing has been indexed yet
// and the walk starts from now.
func (b *BackfillController) trailingBoundary(ctx context.Context) (time.Time, error) {
	raw, err := b.engine.Query(ctx, b.queries.OldestIndexedQuery())
	if err != nil {
		return time.Time{}, fmt.Errorf("probing oldest indexed message: %w", err)
	}
	if raw.Response.NumFound == 0 || len(raw.Response.Docs) == 0 {
		return b.now().UTC(), nil
	}
	created, err := time.Parse(time.RFC3339, raw.Response.Docs[0].stringField("created"))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing oldest indexed timestamp: %w", err)
	}
	return created, nil
}

// processWindow drains one time window page by page, bulk-upserting each
// page. A page shorter than the page size signals the window is drained.
func (b *BackfillController) processWindow(ctx context.Context, start, end time.Time) error {
	b.logger.Debugf("window %s..%s", start.Format(time.RFC3339), end.Format(time.RFC3339))

	offset := 0
	for {
		messages, err := b.store.MessagesBetween(ctx, start, end, b.cfg.PageSize, offset)
		if err != nil {
			return &BackfillError{WindowStart: start, WindowEnd: end, Err: err}
		}

		if len(messages) > 0 {
			docs := make([]Document, 0, len(messages))
			for _, m := range messages {
				docs = append(docs, MapMessage(m, b.cfg.Language))
			}
			if err := b.engine.Upsert(ctx, docs); err != nil {
				return &BackfillError{WindowStart: start, WindowEnd: end, Err: err}
			}
			b.mu.Lock()
			b.indexed += len(messages)
			b.mu.Unlock()
		}

		if len(messages) < b.cfg.PageSize {
			return nil
		}
		offset += b.cfg.PageSize
	}
}

// indexAllUsers runs the one-time full user pass after exhaustion: idempotent
// upsert of every user record, paged.
func (b *BackfillController) indexAllUsers(ctx context.Context) error {
	offset := 0
	total := 0
	for {
		users, err := b.store.Users(ctx, b.cfg.PageSize, offset)
		if err != nil {
			return fmt.Errorf("listing users at offset %d: %w", offset, err)
		}

		if len(users) > 0 {
			docs := make([]Document, 0, len(users))
			for _, u := range users {
				docs = append(docs, MapUser(u))
			}
			if err := b.engine.Upsert(ctx, docs); err != nil {
				return fmt.Errorf("upserting users at offset %d: %w", offset, err)
			}
			total += len(users)
		}

		if len(users) < b.cfg.PageSize {
			break
		}
		offset += b.cfg.PageSize
	}
	b.logger.Infof("user pass indexed %d users", total)
	return nil
}
