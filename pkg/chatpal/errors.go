package chatpal

import (
	"errors"
	"fmt"
	"time"
)

// Engine error classification. Callers pick user-facing messaging off these
// sentinels with errors.Is; the concrete *EngineError carries the HTTP status
// and a stable message code.
var (
	// ErrBadQuery marks a 4xx engine response, typically a malformed query
	// string.
	ErrBadQuery = errors.New("bad query")

	// ErrRequestFailed marks any other non-2xx engine response.
	ErrRequestFailed = errors.New("request failed")

	// ErrEngineUnreachable marks a transport failure (connection refused,
	// timeout) before any HTTP status was received.
	ErrEngineUnreachable = errors.New("engine unreachable")
)

// Stable message codes attached to engine errors for user-facing text.
const (
	CodeBadQuery      = "chatpal.error.bad-query"
	CodeRequestFailed = "chatpal.error.request-failed"
	CodeUnreachable   = "chatpal.error.unreachable"
)

// EngineError is a failed call against the search engine.
type EngineError struct {
	Op     string // the engine operation, e.g. "query", "upsert"
	Status int    // HTTP status, 0 on transport failure
	Code   string // stable message code
	Err    error  // classification sentinel
}

func (e *EngineError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine %s: %v (status %d)", e.Op, e.Err, e.Status)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx HTTP status to an EngineError.
func classifyStatus(op string, status int) *EngineError {
	if status >= 400 && status < 500 {
		return &EngineError{Op: op, Status: status, Code: CodeBadQuery, Err: ErrBadQuery}
	}
	return &EngineError{Op: op, Status: status, Code: CodeRequestFailed, Err: ErrRequestFailed}
}

// transportError wraps a failure that happened before any response arrived.
func transportError(op string, err error) *EngineError {
	return &EngineError{Op: op, Code: CodeUnreachable, Err: fmt.Errorf("%w: %w", ErrEngineUnreachable, err)}
}

// BackfillError is a fatal failure inside a backfill walk. The walk aborts,
// the controller returns to idle and no retry is attempted; the next reindex
// re-runs the partially applied window, which is safe because upserts are
// idempotent by id.
type BackfillError struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Err         error
}

func (e *BackfillError) Error() string {
	return fmt.Sprintf("backfill window %s..%s: %v",
		e.WindowStart.Format(time.RFC3339), e.WindowEnd.Format(time.RFC3339), e.Err)
}

func (e *BackfillError) Unwrap() error {
	return e.Err
}
