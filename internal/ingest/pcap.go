package ingest

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/netfdm/internal/monitoring"
)

// pcapngMagic is the block type of a pcapng Section Header Block.
const pcapngMagic = 0x0A0D0D0A

// PCAPOptions controls capture replay.
type PCAPOptions struct {
	Port     int     // UDP destination port to replay; 0 replays every UDP payload
	Realtime bool    // pace packets by their capture timestamps
	Speed    float64 // playback speed multiplier for Realtime; 0 means 1.0
}

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ReadPCAPFile replays the UDP payloads of a pcap or pcapng capture through
// h. It returns nil at end of file, ctx.Err() on cancellation, or the
// handler's error if a packet reveals a layout invariant violation.
func ReadPCAPFile(ctx context.Context, pcapFile string, opts PCAPOptions, h *Handler) error {
	f, err := os.Open(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer f.Close()

	reader, err := newPacketReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("failed to read PCAP file %s: %w", pcapFile, err)
	}

	return replayPackets(ctx, reader, pcapFile, opts, h)
}

func newPacketReader(r *bufio.Reader) (packetReader, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

func replayPackets(ctx context.Context, reader packetReader, source string, opts PCAPOptions, h *Handler) error {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}

	linkType := reader.LinkType()
	packetCount := 0
	replayed := 0
	startTime := time.Now()
	var firstCapture time.Time

	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("PCAP reader stopping due to context cancellation (processed %d packets)", packetCount)
			return err
		}

		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP file reading complete: %d packets read, %d FDM payloads replayed in %v",
				packetCount, replayed, time.Since(startTime))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet %d: %w", packetCount+1, err)
		}
		packetCount++

		packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		if opts.Port != 0 && int(udp.DstPort) != opts.Port {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}

		if opts.Realtime {
			if firstCapture.IsZero() {
				firstCapture = ci.Timestamp
			}
			offset := time.Duration(float64(ci.Timestamp.Sub(firstCapture)) / speed)
			if err := sleepUntil(ctx, startTime.Add(offset)); err != nil {
				return err
			}
		}

		if err := h.HandlePacketAt(udp.Payload, source, ci.Timestamp); err != nil {
			return err
		}
		replayed++
	}
}

// sleepUntil blocks until t or until ctx is cancelled.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
