package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/units"
)

// ErrNoSessions is returned by LatestSession on an empty database.
var ErrNoSessions = errors.New("no recorded sessions")

// Session is one recording run from a single source.
type Session struct {
	SessionID   string     `json:"session_id"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	RecordCount int64      `json:"record_count"`
}

// StoredRecord is a row of fdm_records. Angles are in degrees. Values the
// sender reported as NaN or Inf are stored as NULL and read back as NaN.
type StoredRecord struct {
	RecordID     int64     `json:"record_id"`
	SessionID    string    `json:"session_id"`
	ReceivedAt   time.Time `json:"received_at"`
	Version      uint32    `json:"version"`
	LongitudeDeg float64   `json:"longitude_deg"`
	LatitudeDeg  float64   `json:"latitude_deg"`
	AltitudeM    float64   `json:"altitude_m"`
	AGLM         float64   `json:"agl_m"`
	RollDeg      float64   `json:"roll_deg"`
	PitchDeg     float64   `json:"pitch_deg"`
	YawDeg       float64   `json:"yaw_deg"`
	VCASKt       float64   `json:"vcas_kt"`
	ClimbRate    float64   `json:"climb_rate"`
	CurTime      uint32    `json:"cur_time"`
	Raw          []byte    `json:"-"`
}

// Decode re-decodes the stored wire packet, recovering every field.
func (s *StoredRecord) Decode() (*fdm.Record, error) {
	return fdm.Decode(s.Raw)
}

// StartSession creates a new session and returns its id.
func (db *DB) StartSession(source string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO fdm_sessions (session_id, source, started_at) VALUES (?, ?, ?)`,
		id, source, startedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE fdm_sessions SET ended_at = ? WHERE session_id = ?`, endedAt.UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to end session %s: %w", sessionID, sql.ErrNoRows)
	}
	return nil
}

// InsertRecord stores one decoded record and its raw packet.
func (db *DB) InsertRecord(sessionID string, receivedAt time.Time, rec *fdm.Record, raw []byte) error {
	_, err := db.Exec(
		`INSERT INTO fdm_records (
			session_id, received_at_ns, version,
			longitude_deg, latitude_deg, altitude_m, agl_m,
			roll_deg, pitch_deg, yaw_deg, vcas_kt, climb_rate,
			cur_time, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, receivedAt.UnixNano(), int64(rec.Version),
		nullFloat(units.RadiansToDegrees(rec.Longitude)),
		nullFloat(units.RadiansToDegrees(rec.Latitude)),
		nullFloat(rec.Altitude),
		nullFloat(float64(rec.AGL)),
		nullFloat(units.RadiansToDegrees(float64(rec.Phi))),
		nullFloat(units.RadiansToDegrees(float64(rec.Theta))),
		nullFloat(units.RadiansToDegrees(float64(rec.Psi))),
		nullFloat(float64(rec.VCAS)),
		nullFloat(float64(rec.ClimbRate)),
		int64(rec.CurTime), raw,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// ListSessions returns every session, newest first, with its record count.
func (db *DB) ListSessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT s.session_id, s.source, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM fdm_records r WHERE r.session_id = s.session_id)
		FROM fdm_sessions s
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recently started session.
func (db *DB) LatestSession() (*Session, error) {
	row := db.QueryRow(`
		SELECT s.session_id, s.source, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM fdm_records r WHERE r.session_id = s.session_id)
		FROM fdm_sessions s
		ORDER BY s.started_at DESC
		LIMIT 1
	`)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSessions
	}
	return s, err
}

// SessionRecords returns a session's records in arrival order. A limit of
// zero or less returns all of them.
func (db *DB) SessionRecords(sessionID string, limit int) ([]StoredRecord, error) {
	query := `
		SELECT record_id, session_id, received_at_ns, version,
		       longitude_deg, latitude_deg, altitude_m, agl_m,
		       roll_deg, pitch_deg, yaw_deg, vcas_kt, climb_rate,
		       cur_time, raw
		FROM fdm_records
		WHERE session_id = ?
		ORDER BY received_at_ns, record_id`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var (
			r                             StoredRecord
			receivedNs, version, curTime  int64
			lon, lat, alt, agl            sql.NullFloat64
			roll, pitch, yaw, vcas, climb sql.NullFloat64
		)
		if err := rows.Scan(
			&r.RecordID, &r.SessionID, &receivedNs, &version,
			&lon, &lat, &alt, &agl,
			&roll, &pitch, &yaw, &vcas, &climb,
			&curTime, &r.Raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.ReceivedAt = time.Unix(0, receivedNs)
		r.Version = uint32(version)
		r.CurTime = uint32(curTime)
		r.LongitudeDeg = floatOrNaN(lon)
		r.LatitudeDeg = floatOrNaN(lat)
		r.AltitudeM = floatOrNaN(alt)
		r.AGLM = floatOrNaN(agl)
		r.RollDeg = floatOrNaN(roll)
		r.PitchDeg = floatOrNaN(pitch)
		r.YawDeg = floatOrNaN(yaw)
		r.VCASKt = floatOrNaN(vcas)
		r.ClimbRate = floatOrNaN(climb)
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s         Session
		startedNs int64
		endedNs   sql.NullInt64
	)
	if err := row.Scan(&s.SessionID, &s.Source, &startedNs, &endedNs, &s.RecordCount); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, startedNs)
	if endedNs.Valid {
		ended := time.Unix(0, endedNs.Int64)
		s.EndedAt = &ended
	}
	return &s, nil
}

// nullFloat maps non-finite values to NULL; SQLite cannot store NaN.
func nullFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
