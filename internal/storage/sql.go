package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (scan_id,
                      device_type,
                      device_index,
                      freq_start,
                      freq_end,
                      bandwidth,
                      sample_rate,
                      dwell_ns,
                      steps,
                      status,
                      config,
                      start_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	finishSessionSQL = `
UPDATE sessions
SET status     = ?,
    data_steps = ?,
    error      = ?,
    end_time   = ?
WHERE id = ?
  AND status = 'running'`

	selectSessionColumns = `
SELECT 
    id,
    scan_id,
    device_type,
    device_index,
    freq_start,
    freq_end,
    bandwidth,
    sample_rate,
    dwell_ns,
    steps,
    data_steps,
    status,
    config,
    error,
    start_time,
    end_time
FROM sessions`

	selectSessionSQL = selectSessionColumns + `
WHERE 
    id = ?`

	selectSessionsSQL = selectSessionColumns + `
ORDER BY start_time, id`
)

//go:embed schema.sql
var schemaSQL string
