package display

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/testutil"
	"github.com/banshee-data/netfdm/internal/units"
)

func TestFormat_EndToEndRoll(t *testing.T) {
	in := &fdm.Record{Version: 2, Altitude: 100.0, Phi: 1.5708}
	rec, err := fdm.Decode(testutil.EncodePacket(t, in))
	require.NoError(t, err)

	assert.InDelta(t, 90.0, units.RadiansToDegrees(float64(rec.Phi)), 0.001)

	out := Format(rec, Options{})
	assert.Contains(t, out, "FGNetFDM v2")
	assert.Contains(t, out, "Roll         : 90.000°")
	assert.Contains(t, out, "Longitude    : 0.000000°")
	assert.Contains(t, out, "Altitude     : 100.00 m (328 ft)")
	assert.NotContains(t, out, "\x1b[", "Format output carries no escape codes")
}

func TestFormat_Basic(t *testing.T) {
	out := Format(testutil.SampleRecord(), Options{})

	tests := []struct {
		label string
		want  string
	}{
		{"Roll", "90.000°"},
		{"Pitch", "30.000°"},
		{"Yaw", "270.000°"},
		{"Latitude", "37.775"},
		{"Longitude", "-122.40"},
		{"AGL", "42.50 m"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			var found string
			for _, l := range strings.Split(out, "\n") {
				if strings.HasPrefix(l, tt.label+" ") {
					found = l
				}
			}
			require.NotEmpty(t, found, "no %s line in:\n%s", tt.label, out)
			assert.Contains(t, found, tt.want)
		})
	}

	assert.NotContains(t, out, "Airspeed", "verbose fields hidden by default")
}

func TestFormat_Verbose(t *testing.T) {
	rec := testutil.SampleRecord()
	rec.StallWarning = 0.5

	out := Format(rec, Options{Verbose: true, SpeedUnit: units.MPH})
	assert.Contains(t, out, "Airspeed     : 115.1 mph")
	assert.Contains(t, out, "Climb rate   : 10.0 ft/s")
	assert.Contains(t, out, "Engine 1     : 2400 rpm, running")
	assert.NotContains(t, out, "Engine 2")
	assert.Contains(t, out, "STALL 50%")
	assert.Contains(t, out, "Gear         : airborne")
	assert.Contains(t, out, "Flaps        : 0.25 / 0.25")
}

func TestFormat_VerboseDefaultsToKnots(t *testing.T) {
	rec := testutil.SampleRecord()
	rec.NumEngines = 9
	rec.EngState = [fdm.MaxEngines]uint32{0, 1, 2, 7}
	rec.WOW[0] = 1

	out := Format(rec, Options{Verbose: true, SpeedUnit: "furlongs"})
	assert.Contains(t, out, "Airspeed     : 100.0 kt")
	assert.Contains(t, out, "Engine 1     : 2400 rpm, off")
	assert.Contains(t, out, "Engine 2     : 0 rpm, cranking")
	assert.Contains(t, out, "Engine 4     : 0 rpm, state 7")
	assert.NotContains(t, out, "Engine 5")
	assert.Contains(t, out, "Gear         : weight on wheels")
}

func TestFormat_NonFinite(t *testing.T) {
	rec := &fdm.Record{Altitude: math.NaN(), Phi: float32(math.Inf(1))}
	out := Format(rec, Options{})
	assert.Contains(t, out, "NaN m")
	assert.Contains(t, out, "+Inf°")
}

func TestTerminal_ClearsAndRedraws(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{}, 0)
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

	term.HandleRecord(testutil.SampleRecord(), ingest.PacketMeta{Received: at, Source: "127.0.0.1:49005", Size: fdm.WireSize})

	out := buf.String()
	require.True(t, strings.HasPrefix(out, clearScreen), "frame starts with clear sequence")
	assert.Contains(t, out, "Roll         : 90.000°")
	assert.Contains(t, out, "127.0.0.1:49005  07:08:09.000  408 bytes")
}

func TestTerminal_Throttle(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, Options{}, 100*time.Millisecond)
	start := time.Unix(1700000000, 0)

	for i := 0; i < 10; i++ {
		term.HandleRecord(testutil.SampleRecord(), ingest.PacketMeta{Received: start.Add(time.Duration(i) * 20 * time.Millisecond)})
	}
	assert.Equal(t, 2, strings.Count(buf.String(), clearScreen), "draws at 0 ms and 100 ms")
	assert.Contains(t, buf.String(), "(4 updates skipped)")
}
