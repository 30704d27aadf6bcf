// Package testutil provides shared test utilities and fixtures.
//
// The FDM fixtures here build wire packets with encoding/binary rather than
// the decoder's layout table, so tests compare the decoder against an
// independent encoding of the same struct.
package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/netfdm/internal/fdm"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// EncodePacket serialises rec into an FGNetFDM wire packet.
func EncodePacket(t testing.TB, rec *fdm.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
		t.Fatalf("failed to encode FDM packet: %v", err)
	}
	return buf.Bytes()
}

// SampleRecord returns a plausible in-flight record: 100 m altitude, 90°
// roll, 30° pitch, 270° heading, 100 kt, gear up.
func SampleRecord() *fdm.Record {
	return &fdm.Record{
		Version:    fdm.ProtocolVersion,
		Longitude:  -2.1364,
		Latitude:   0.6593,
		Altitude:   100.0,
		AGL:        42.5,
		Phi:        math.Pi / 2,
		Theta:      math.Pi / 6,
		Psi:        3 * math.Pi / 2,
		VCAS:       100,
		ClimbRate:  10,
		NumEngines: 1,
		EngState:   [fdm.MaxEngines]uint32{2},
		RPM:        [fdm.MaxEngines]float32{2400},
		NumTanks:   2,
		NumWheels:  3,
		Visibility: 10000,
		Elevator:   -0.05,
		LeftFlap:   0.25,
		RightFlap:  0.25,
	}
}

// SamplePacket returns SampleRecord encoded with the altitude replaced.
func SamplePacket(t testing.TB, altitude float64) []byte {
	t.Helper()
	rec := SampleRecord()
	rec.Altitude = altitude
	return EncodePacket(t, rec)
}
