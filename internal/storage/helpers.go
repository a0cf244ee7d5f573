package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// encodeConfig stores strings and byte slices as is and everything else as
// JSON.
func encodeConfig(config any) (sql.NullString, error) {
	var data sql.NullString

	switch v := config.(type) {
	case nil:
		return data, nil

	case string:
		data.String = v

	case []byte:
		data.String = string(v)

	default:
		p, err := json.Marshal(v)
		if err != nil {
			return data, fmt.Errorf("marshaling config: %w", err)
		}
		data.String = string(p)
	}

	data.Valid = true
	return data, nil
}

func scanSession(row rowScanner) (*Session, error) {
	var d sessionData
	if err := row.Scan(
		&d.ID,
		&d.ScanID,
		&d.DeviceType,
		&d.DeviceIndex,
		&d.FreqStart,
		&d.FreqEnd,
		&d.Bandwidth,
		&d.SampleRate,
		&d.DwellNS,
		&d.Steps,
		&d.DataSteps,
		&d.Status,
		&d.Config,
		&d.Error,
		&d.StartTime,
		&d.EndTime,
	); err != nil {
		return nil, err
	}

	return d.toSession(), nil
}

func (d *sessionData) toSession() *Session {
	sess := Session{
		ID:             d.ID,
		ScanID:         d.ScanID,
		DeviceType:     d.DeviceType,
		DeviceIndex:    d.DeviceIndex,
		FrequencyStart: d.FreqStart,
		FrequencyEnd:   d.FreqEnd,
		Bandwidth:      d.Bandwidth,
		SampleRate:     d.SampleRate,
		Dwell:          time.Duration(d.DwellNS),
		Steps:          d.Steps,
		DataSteps:      d.DataSteps,
		Status:         SessionStatus(d.Status),
		StartTime:      d.StartTime,
	}

	if d.Config.Valid {
		sess.Config = &d.Config.String
	}
	if d.Error.Valid {
		sess.Error = &d.Error.String
	}
	if d.EndTime.Valid {
		sess.EndTime = &d.EndTime.Time
	}

	return &sess
}
