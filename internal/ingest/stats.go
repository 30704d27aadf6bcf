package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/netfdm/internal/monitoring"
)

// PacketStats tracks packet throughput between log intervals. All methods
// are safe for concurrent use.
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	decodedCount int64
	rejectCount  int64
	droppedCount int64
	lastReset    time.Time

	totalPackets  int64
	totalDecoded  int64
	totalRejected int64
}

// StatsSnapshot is a copy of the counters.
type StatsSnapshot struct {
	Packets  int64 `json:"packets"`
	Bytes    int64 `json:"bytes"`
	Decoded  int64 `json:"decoded"`
	Rejected int64 `json:"rejected"`
	Dropped  int64 `json:"dropped"`

	TotalPackets  int64 `json:"total_packets"`
	TotalDecoded  int64 `json:"total_decoded"`
	TotalRejected int64 `json:"total_rejected"`

	Since time.Time `json:"since"`
}

// NewPacketStats creates an empty stats collector.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket counts one received datagram of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.totalPackets++
	ps.byteCount += int64(bytes)
}

// AddDecoded counts one successfully decoded packet.
func (ps *PacketStats) AddDecoded() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.decodedCount++
	ps.totalDecoded++
}

// AddRejected counts one packet the decoder refused.
func (ps *PacketStats) AddRejected() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.rejectCount++
	ps.totalRejected++
}

// AddDropped counts one packet the forwarder could not queue.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// Snapshot returns the current counters without resetting them.
func (ps *PacketStats) Snapshot() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.snapshotLocked()
}

func (ps *PacketStats) snapshotLocked() StatsSnapshot {
	return StatsSnapshot{
		Packets:       ps.packetCount,
		Bytes:         ps.byteCount,
		Decoded:       ps.decodedCount,
		Rejected:      ps.rejectCount,
		Dropped:       ps.droppedCount,
		TotalPackets:  ps.totalPackets,
		TotalDecoded:  ps.totalDecoded,
		TotalRejected: ps.totalRejected,
		Since:         ps.lastReset,
	}
}

// GetAndReset returns the interval counters and starts a new interval.
// Totals are kept.
func (ps *PacketStats) GetAndReset() (StatsSnapshot, time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration := now.Sub(ps.lastReset)
	snap := ps.snapshotLocked()

	ps.packetCount = 0
	ps.byteCount = 0
	ps.decodedCount = 0
	ps.rejectCount = 0
	ps.droppedCount = 0
	ps.lastReset = now

	return snap, duration
}

// LogStats logs the per-second rates for the interval since the last call.
// Silent intervals are not logged.
func (ps *PacketStats) LogStats() {
	snap, duration := ps.GetAndReset()
	if snap.Packets == 0 && snap.Dropped == 0 {
		return
	}
	monitoring.Logf("%s", formatStats(snap, duration))
}

func formatStats(snap StatsSnapshot, duration time.Duration) string {
	secs := duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("FDM stats (/sec): %.1f packets, %.1f KB, %s decoded total",
		float64(snap.Packets)/secs, float64(snap.Bytes)/secs/1024, formatWithCommas(snap.TotalDecoded))
	if snap.Rejected > 0 {
		msg += fmt.Sprintf(", %d rejected", snap.Rejected)
	}
	if snap.Dropped > 0 {
		msg += fmt.Sprintf(", %d dropped on forward", snap.Dropped)
	}
	return msg
}

// formatWithCommas formats a number with thousands separators
func formatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := false
	if n < 0 {
		neg = true
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	if neg {
		return "-" + result
	}
	return result
}
