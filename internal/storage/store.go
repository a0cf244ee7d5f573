package storage

import (
	"context"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrSessionNotFound is returned for unknown or already finished sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidStatus is returned when a session is finished with a non-terminal status
	ErrInvalidStatus = errors.New("invalid session status")
)

// Store keeps the journal of scan sessions: what was scanned, with which
// parameters, when and how it ended. Spectrum data is never stored.
type Store interface {
	// CreateSession records a new running session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sess: Session parameters; ID, Status, DataSteps, Error and EndTime are ignored
	//   - config: Optional run configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, sess *Session, config any) (sessionID int64, err error)

	// FinishSession marks a running session complete or failed.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//   - status: StatusComplete or StatusFailed
	//   - dataSteps: Number of steps that produced spectrum data
	//   - errMsg: Failure description, empty if none
	//
	// Returns:
	//   - error: ErrSessionNotFound if there is no running session with the ID
	FinishSession(ctx context.Context, id int64, status SessionStatus, dataSteps int, errMsg string) error

	// Session retrieves a specific scanning session by its ID.
	//
	// Returns ErrSessionNotFound if there is none.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all scanning sessions ordered by start time in
	// ascending order.
	Sessions(ctx context.Context) ([]*Session, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
