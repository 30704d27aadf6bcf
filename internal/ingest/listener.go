package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/netfdm/internal/monitoring"
)

// receiveBufferSize is larger than an FGNetFDM packet so oversized datagrams
// arrive whole and are rejected, rather than being cut to a valid length.
const receiveBufferSize = 1024

// UDPListenerConfig contains configuration options for the UDP listener
type UDPListenerConfig struct {
	Address       string
	RcvBuf        int
	LogInterval   time.Duration
	Handler       *Handler
	SocketFactory UDPSocketFactory
}

// UDPListener receives FGNetFDM datagrams and passes them to a Handler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     *Handler
	factory     UDPSocketFactory

	mu   sync.Mutex
	conn UDPSocket
}

// NewUDPListener creates a new UDP listener with the provided configuration
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	handler := config.Handler
	if handler == nil {
		handler = NewHandler(HandlerConfig{})
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		handler:     handler,
		factory:     factory,
	}
}

// Start listens for packets until ctx is cancelled or a packet reveals a
// layout invariant violation. It returns ctx.Err() on cancellation.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	go l.startStatsLogging(ctx)

	buffer := make([]byte, receiveBufferSize)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Set read deadline to allow checking context cancellation
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			monitoring.Logf("Error setting read deadline: %v", err)
		}

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}

		// buffer[:n] is reused by the next read; the handler copies
		// anything it keeps.
		if err := l.handler.HandlePacket(buffer[:n], from.String()); err != nil {
			return err
		}
	}
}

// startStatsLogging periodically logs packet statistics
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.handler.Stats().LogStats()
		}
	}
}

// Close closes the UDP listener and releases resources
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
