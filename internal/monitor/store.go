package monitor

import (
	"sync"
	"time"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/units"
)

// HistoryPoint is one entry of the rolling chart history.
type HistoryPoint struct {
	Time      time.Time `json:"time"`
	AltitudeM float64   `json:"altitude_m"`
	VCASKt    float64   `json:"vcas_kt"`
	RollDeg   float64   `json:"roll_deg"`
	PitchDeg  float64   `json:"pitch_deg"`
}

// Store is an ingest.Sink holding the latest record and a bounded history
// for the HTTP handlers.
type Store struct {
	mu         sync.RWMutex
	latest     *fdm.Record
	latestMeta ingest.PacketMeta

	history []HistoryPoint
	next    int
	full    bool
}

// NewStore creates a store keeping the last historySize points. A size
// below one keeps no history.
func NewStore(historySize int) *Store {
	if historySize < 0 {
		historySize = 0
	}
	return &Store{history: make([]HistoryPoint, historySize)}
}

// HandleRecord implements ingest.Sink.
func (s *Store) HandleRecord(rec *fdm.Record, meta ingest.PacketMeta) {
	cp := *rec
	meta.Raw = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &cp
	s.latestMeta = meta

	if len(s.history) == 0 {
		return
	}
	s.history[s.next] = HistoryPoint{
		Time:      meta.Received,
		AltitudeM: rec.Altitude,
		VCASKt:    float64(rec.VCAS),
		RollDeg:   units.RadiansToDegrees(float64(rec.Phi)),
		PitchDeg:  units.RadiansToDegrees(float64(rec.Theta)),
	}
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
}

// Latest returns a copy of the most recent record and its metadata.
func (s *Store) Latest() (fdm.Record, ingest.PacketMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return fdm.Record{}, ingest.PacketMeta{}, false
	}
	return *s.latest, s.latestMeta, true
}

// History returns the retained points, oldest first.
func (s *Store) History() []HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.full {
		return append([]HistoryPoint(nil), s.history[:s.next]...)
	}
	out := make([]HistoryPoint, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}
