package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/netfdm/internal/monitoring"
)

// DropCounter records packets the forwarder had to discard.
type DropCounter interface {
	AddDropped()
}

// PacketForwarder relays raw FDM datagrams to another UDP address, e.g. a
// FlightGear instance used as a visualiser. Forwarding never blocks the
// receive loop: when the queue is full the packet is dropped and counted.
type PacketForwarder struct {
	conn        net.Conn
	channel     chan []byte
	stats       DropCounter
	logInterval time.Duration
	address     string
}

// NewPacketForwarder creates a forwarder that sends packets to address (host:port).
func NewPacketForwarder(address string, stats DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return newPacketForwarder(conn, address, stats, logInterval), nil
}

func newPacketForwarder(conn net.Conn, address string, stats DropCounter, logInterval time.Duration) *PacketForwarder {
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000), // Buffer 1000 packets
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}
}

// Start runs the forwarding goroutine until ctx is cancelled. Write errors
// are summarised once per log interval.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		failedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					failedCount++
					lastError = err
				}
			case <-ticker.C:
				if failedCount > 0 && lastError != nil {
					monitoring.Logf("Failed to forward %d packets to %s (latest: %v)", failedCount, f.address, lastError)
					failedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding packets to %s", f.address)
}

// ForwardAsync queues a copy of packet for sending. If the queue is full the
// packet is dropped and the drop counter is incremented.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close closes the UDP connection and channel. Call it after the receive
// loop has stopped so no ForwardAsync races with the close.
func (f *PacketForwarder) Close() error {
	close(f.channel)
	return f.conn.Close()
}
