// Package ingest receives FGNetFDM packets from UDP, pcap captures and
// serial ports and hands decoded records to sinks.
package ingest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/timeutil"
)

// DecodeFunc turns one raw packet into a record. fdm.Decode is the default.
type DecodeFunc func(packet []byte) (*fdm.Record, error)

// Forwarder relays raw packets elsewhere without blocking the receive loop.
type Forwarder interface {
	ForwardAsync(packet []byte)
}

// HandlerConfig configures a Handler. Only Sink is required.
type HandlerConfig struct {
	Decode       DecodeFunc
	Sink         Sink
	Stats        *PacketStats
	Forwarder    Forwarder
	Clock        timeutil.Clock
	DebugPackets int           // hex dump the first N packets
	RejectLogGap time.Duration // minimum time between rejected-packet log lines
}

// Handler is the per-packet pipeline shared by every source: count,
// forward, decode, deliver. Safe for use by several sources at once.
type Handler struct {
	decode       DecodeFunc
	sink         Sink
	stats        *PacketStats
	forwarder    Forwarder
	clock        timeutil.Clock
	debugPackets int
	rejectLogGap time.Duration

	mu             sync.Mutex
	packetCount    int
	lastRejectLog  time.Time
	pendingRejects int
}

// NewHandler creates a packet handler, filling in defaults for unset fields.
func NewHandler(config HandlerConfig) *Handler {
	h := &Handler{
		decode:       config.Decode,
		sink:         config.Sink,
		stats:        config.Stats,
		forwarder:    config.Forwarder,
		clock:        config.Clock,
		debugPackets: config.DebugPackets,
		rejectLogGap: config.RejectLogGap,
	}
	if h.decode == nil {
		h.decode = fdm.Decode
	}
	if h.sink == nil {
		h.sink = MultiSink(nil)
	}
	if h.stats == nil {
		h.stats = NewPacketStats()
	}
	if h.clock == nil {
		h.clock = timeutil.RealClock{}
	}
	if h.rejectLogGap == 0 {
		h.rejectLogGap = 10 * time.Second
	}
	return h
}

// Stats returns the handler's packet counters.
func (h *Handler) Stats() *PacketStats {
	return h.stats
}

// HandlePacket processes one raw packet. Packets of the wrong size are
// counted and dropped and HandlePacket returns nil. A layout invariant
// violation is returned to the caller, which should stop receiving: every
// later packet would decode wrongly as well.
func (h *Handler) HandlePacket(packet []byte, source string) error {
	return h.HandlePacketAt(packet, source, h.clock.Now())
}

// HandlePacketAt is HandlePacket with an explicit receive time, used when
// replaying captures so records carry the original capture timestamps.
func (h *Handler) HandlePacketAt(packet []byte, source string, now time.Time) error {
	h.stats.AddPacket(len(packet))

	if h.forwarder != nil {
		h.forwarder.ForwardAsync(packet)
	}

	h.mu.Lock()
	h.packetCount++
	n := h.packetCount
	h.mu.Unlock()
	if n <= h.debugPackets {
		monitoring.Logf("Packet %d from %s (%d bytes): % x", n, source, len(packet), packet)
	}

	rec, err := h.decode(packet)
	if err != nil {
		if errors.Is(err, fdm.ErrLayoutInvariant) {
			return fmt.Errorf("decoding packet from %s: %w", source, err)
		}
		h.stats.AddRejected()
		h.logReject(now, source, err)
		return nil
	}

	h.stats.AddDecoded()
	h.sink.HandleRecord(rec, PacketMeta{
		Received: now,
		Source:   source,
		Size:     len(packet),
		Raw:      packet,
	})
	return nil
}

// logReject logs the first rejected packet and then at most one summary
// line per rejectLogGap, so a foreign sender cannot flood the log.
func (h *Handler) logReject(now time.Time, source string, err error) {
	h.mu.Lock()
	h.pendingRejects++
	if !h.lastRejectLog.IsZero() && now.Sub(h.lastRejectLog) < h.rejectLogGap {
		h.mu.Unlock()
		return
	}
	count := h.pendingRejects
	h.pendingRejects = 0
	h.lastRejectLog = now
	h.mu.Unlock()

	if count == 1 {
		monitoring.Logf("Dropped packet from %s: %v", source, err)
		return
	}
	monitoring.Logf("Dropped %d packets (latest from %s: %v)", count, source, err)
}
