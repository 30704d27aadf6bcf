package db

import (
	"sync"
	"time"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/monitoring"
)

// Recorder is an ingest.Sink that stores every record in one session. The
// session starts with the first record so an idle run leaves no trace.
type Recorder struct {
	db     *DB
	source string

	mu        sync.Mutex
	sessionID string
	lastSeen  time.Time
	inserted  int64
	failures  int64
}

// NewRecorder creates a recorder labelling its session with source.
func NewRecorder(db *DB, source string) *Recorder {
	return &Recorder{db: db, source: source}
}

// HandleRecord implements ingest.Sink. Insert failures are logged once per
// streak and counted; they do not stop ingestion.
func (r *Recorder) HandleRecord(rec *fdm.Record, meta ingest.PacketMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		id, err := r.db.StartSession(r.source, meta.Received)
		if err != nil {
			r.fail(err)
			return
		}
		r.sessionID = id
		r.lastSeen = meta.Received
		monitoring.Logf("Recording session %s from %s", id, r.source)
	}

	// meta.Raw is only valid during this call; the driver copies it on bind.
	if err := r.db.InsertRecord(r.sessionID, meta.Received, rec, meta.Raw); err != nil {
		r.fail(err)
		return
	}
	if r.failures > 0 {
		monitoring.Logf("Recorder recovered after %d failed inserts", r.failures)
		r.failures = 0
	}
	r.inserted++
	r.lastSeen = meta.Received
}

func (r *Recorder) fail(err error) {
	if r.failures == 0 {
		monitoring.Logf("Recorder error: %v", err)
	}
	r.failures++
}

// SessionID returns the current session id, or "" before the first record.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Inserted returns the number of records stored so far.
func (r *Recorder) Inserted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserted
}

// Close ends the session at the time of the last stored record.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionID == "" {
		return nil
	}
	monitoring.Logf("Recorded %d records in session %s", r.inserted, r.sessionID)
	return r.db.EndSession(r.sessionID, r.lastSeen)
}
