package ingest

import (
	"time"

	"github.com/banshee-data/netfdm/internal/fdm"
)

// PacketMeta describes where and when a decoded packet arrived.
type PacketMeta struct {
	Received time.Time
	Source   string // remote address, pcap file or serial device
	Size     int
	Raw      []byte // the wire bytes; only valid for the duration of HandleRecord
}

// Sink consumes decoded records. Sources call HandleRecord sequentially
// from their receive loop, so a sink sees records in arrival order.
type Sink interface {
	HandleRecord(rec *fdm.Record, meta PacketMeta)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(rec *fdm.Record, meta PacketMeta)

// HandleRecord calls f(rec, meta).
func (f SinkFunc) HandleRecord(rec *fdm.Record, meta PacketMeta) {
	f(rec, meta)
}

// MultiSink fans a record out to several sinks in order. Nil entries are skipped.
type MultiSink []Sink

// HandleRecord delivers rec to every sink.
func (m MultiSink) HandleRecord(rec *fdm.Record, meta PacketMeta) {
	for _, s := range m {
		if s != nil {
			s.HandleRecord(rec, meta)
		}
	}
}
