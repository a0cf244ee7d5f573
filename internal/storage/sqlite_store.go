package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened, and the schema initialized, on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	// The read-only connection cannot create the schema
	if _, err := s.getWriteDB(); err != nil {
		return nil, err
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, sess *Session, config any) (sessionID int64, err error) {
	configData, err := encodeConfig(config)
	if err != nil {
		return
	}

	startTime := sess.StartTime
	if startTime.IsZero() {
		startTime = time.Now()
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		sess.ScanID,
		sess.DeviceType,
		sess.DeviceIndex,
		sess.FrequencyStart,
		sess.FrequencyEnd,
		sess.Bandwidth,
		sess.SampleRate,
		int64(sess.Dwell),
		sess.Steps,
		StatusRunning.String(),
		configData,
		startTime.UTC(),
	)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) FinishSession(ctx context.Context, id int64, status SessionStatus, dataSteps int, errMsg string) (err error) {
	if status != StatusComplete && status != StatusFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var errData sql.NullString
	if errMsg != "" {
		errData = sql.NullString{String: errMsg, Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, finishSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, status.String(), dataSteps, errData, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no running session %d", ErrSessionNotFound, id)
	}

	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", ErrSessionNotFound, id)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		s.closeErr = errors.Join(readErr, writeErr)
	})

	return s.closeErr
}
