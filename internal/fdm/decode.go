// Package fdm decodes FlightGear native FDM (FGNetFDM) datagrams.
package fdm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSizeMismatch is returned when a buffer is not exactly WireSize bytes.
	// Callers can drop the datagram and keep listening.
	ErrSizeMismatch = errors.New("fdm: packet size mismatch")

	// ErrLayoutInvariant means the layout table does not consume the buffer
	// exactly. Every later decode would be wrong too, so treat it as fatal.
	ErrLayoutInvariant = errors.New("fdm: wire layout invariant violated")
)

// Decode parses one FGNetFDM packet. buf must be exactly WireSize bytes of
// little-endian, unswapped data. Float bit patterns are kept as sent,
// including NaN and Inf.
func Decode(buf []byte) (*Record, error) {
	return decode(Layout, WireSize, buf)
}

func decode(layout []Field, size int, buf []byte) (*Record, error) {
	if len(buf) != size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, size, len(buf))
	}

	rec := &Record{}
	offset := 0
	for _, f := range layout {
		n := f.Size()
		if offset+n > len(buf) {
			return nil, fmt.Errorf("%w: field %s needs bytes %d-%d of %d",
				ErrLayoutInvariant, f.Name, offset, offset+n, len(buf))
		}
		if err := readField(f, buf[offset:offset+n], rec); err != nil {
			return nil, err
		}
		offset += n
	}

	if offset != len(buf) {
		return nil, fmt.Errorf("%w: consumed %d of %d bytes", ErrLayoutInvariant, offset, len(buf))
	}
	return rec, nil
}

// readField copies one field's values from data into its slot in rec.
// data is exactly f.Size() bytes.
func readField(f Field, data []byte, rec *Record) error {
	le := binary.LittleEndian

	switch dst := f.slot(rec).(type) {
	case *uint32:
		*dst = le.Uint32(data)
	case *int32:
		*dst = int32(le.Uint32(data))
	case *float32:
		*dst = math.Float32frombits(le.Uint32(data))
	case *float64:
		*dst = math.Float64frombits(le.Uint64(data))
	case []uint32:
		for i := range dst {
			dst[i] = le.Uint32(data[i*4:])
		}
	case []int32:
		for i := range dst {
			dst[i] = int32(le.Uint32(data[i*4:]))
		}
	case []float32:
		for i := range dst {
			dst[i] = math.Float32frombits(le.Uint32(data[i*4:]))
		}
	case []float64:
		for i := range dst {
			dst[i] = math.Float64frombits(le.Uint64(data[i*8:]))
		}
	default:
		return fmt.Errorf("%w: field %s has unsupported slot %T", ErrLayoutInvariant, f.Name, dst)
	}
	return nil
}
