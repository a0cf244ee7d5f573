package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning  SessionStatus = "running"
	StatusComplete SessionStatus = "complete"
	StatusFailed   SessionStatus = "failed"
)

type SessionStatus string

func (s SessionStatus) String() string {
	return string(s)
}

// Session is the journal record of one scan. It never holds spectrum data.
type Session struct {
	ID          int64
	ScanID      uuid.UUID
	DeviceType  string
	DeviceIndex int

	FrequencyStart int64
	FrequencyEnd   int64
	Bandwidth      int64
	SampleRate     int64
	Dwell          time.Duration

	Steps     int // Planned tuning steps
	DataSteps int // Steps that produced a PSD vector

	Status    SessionStatus
	Config    *string // JSON encoded run configuration, if any
	Error     *string
	StartTime time.Time
	EndTime   *time.Time
}

type sessionData struct {
	ID          int64
	ScanID      uuid.UUID
	DeviceType  string
	DeviceIndex int
	FreqStart   int64
	FreqEnd     int64
	Bandwidth   int64
	SampleRate  int64
	DwellNS     int64
	Steps       int
	DataSteps   int
	Status      string
	Config      sql.NullString
	Error       sql.NullString
	StartTime   time.Time
	EndTime     sql.NullTime
}
