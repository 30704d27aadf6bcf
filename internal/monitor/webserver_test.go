package monitor

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/netfdm/internal/db"
	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/testutil"
)

func serve(t *testing.T, ws *WebServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:50000"
	w := httptest.NewRecorder()
	ws.Handler().ServeHTTP(w, req)
	return w
}

func feed(store *Store, rec *fdm.Record, at time.Time) {
	store.HandleRecord(rec, ingest.PacketMeta{Received: at, Source: "127.0.0.1:49005", Size: fdm.WireSize})
}

func TestStore_LatestAndHistory(t *testing.T) {
	store := NewStore(3)
	_, _, ok := store.Latest()
	assert.False(t, ok)
	assert.Empty(t, store.History())

	t0 := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		rec := testutil.SampleRecord()
		rec.Altitude = float64(i)
		feed(store, rec, t0.Add(time.Duration(i)*time.Second))
	}

	latest, meta, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.0, latest.Altitude)
	assert.Equal(t, "127.0.0.1:49005", meta.Source)
	assert.Nil(t, meta.Raw)

	hist := store.History()
	require.Len(t, hist, 3)
	assert.Equal(t, []float64{2, 3, 4}, []float64{hist[0].AltitudeM, hist[1].AltitudeM, hist[2].AltitudeM})
	assert.InDelta(t, 90.0, hist[0].RollDeg, 1e-4)
}

func TestStore_CopiesRecord(t *testing.T) {
	store := NewStore(0)
	rec := testutil.SampleRecord()
	feed(store, rec, time.Now())
	rec.Altitude = -1

	latest, _, _ := store.Latest()
	assert.Equal(t, 100.0, latest.Altitude)
	assert.Empty(t, store.History())
}

func TestHandleHealth(t *testing.T) {
	ws := NewWebServer(WebServerConfig{})
	w := serve(t, ws, http.MethodGet, "/health")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "fdm", body["service"])
}

func TestHandleLatest(t *testing.T) {
	store := NewStore(10)
	ws := NewWebServer(WebServerConfig{Store: store})

	t.Run("no record yet", func(t *testing.T) {
		w := serve(t, ws, http.MethodGet, "/api/fdm/latest")
		testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
	})

	t.Run("degrees", func(t *testing.T) {
		feed(store, testutil.SampleRecord(), time.Unix(1700000000, 0))
		w := serve(t, ws, http.MethodGet, "/api/fdm/latest")
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)

		var resp LatestResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, uint32(fdm.ProtocolVersion), resp.Version)
		assert.InDelta(t, 90.0, resp.RollDeg, 1e-4)
		assert.InDelta(t, 30.0, resp.PitchDeg, 1e-4)
		assert.InDelta(t, 270.0, resp.YawDeg, 1e-4)
		assert.Equal(t, 100.0, resp.AltitudeM)
		assert.False(t, resp.OnGround)
		require.NotNil(t, resp.Record)
		assert.Equal(t, float32(2400), resp.Record.RPM[0])
	})

	t.Run("non-finite", func(t *testing.T) {
		rec := testutil.SampleRecord()
		rec.Altitude = math.NaN()
		feed(store, rec, time.Unix(1700000001, 0))
		w := serve(t, ws, http.MethodGet, "/api/fdm/latest")
		testutil.AssertStatusCode(t, w.Code, http.StatusInternalServerError)
	})

	t.Run("method", func(t *testing.T) {
		w := serve(t, ws, http.MethodPost, "/api/fdm/latest")
		testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	})
}

func TestHandleStats(t *testing.T) {
	stats := ingest.NewPacketStats()
	stats.AddPacket(fdm.WireSize)
	stats.AddDecoded()
	stats.AddPacket(3)
	stats.AddRejected()
	ws := NewWebServer(WebServerConfig{Stats: stats})

	w := serve(t, ws, http.MethodGet, "/api/fdm/stats")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var snap ingest.StatsSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, int64(2), snap.TotalPackets)
	assert.Equal(t, int64(1), snap.TotalDecoded)
	assert.Equal(t, int64(1), snap.TotalRejected)
}

func TestHandleHistoryAndChart(t *testing.T) {
	store := NewStore(10)
	ws := NewWebServer(WebServerConfig{Store: store})
	t0 := time.Unix(1700000000, 0)
	for i, alt := range []float64{100, math.NaN(), 120} {
		rec := testutil.SampleRecord()
		rec.Altitude = alt
		feed(store, rec, t0.Add(time.Duration(i)*time.Second))
	}

	w := serve(t, ws, http.MethodGet, "/api/fdm/history")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var hist []HistoryPoint
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	require.Len(t, hist, 2)
	assert.Equal(t, 120.0, hist[1].AltitudeM)

	w = serve(t, ws, http.MethodGet, "/debug/charts/altitude")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "echarts")
	assert.Contains(t, w.Body.String(), "2 points")
}

func TestHandleStatus(t *testing.T) {
	store := NewStore(1)
	ws := NewWebServer(WebServerConfig{Store: store, Source: "127.0.0.1:5503"})

	w := serve(t, ws, http.MethodGet, "/")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), "No packets decoded yet")
	assert.Contains(t, w.Body.String(), "127.0.0.1:5503")

	feed(store, testutil.SampleRecord(), time.Now())
	w = serve(t, ws, http.MethodGet, "/")
	assert.Contains(t, w.Body.String(), "90.00°")
	assert.NotContains(t, w.Body.String(), "/debug/tailsql/")

	w = serve(t, ws, http.MethodGet, "/nope")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestHandleSessions(t *testing.T) {
	t.Run("recording disabled", func(t *testing.T) {
		ws := NewWebServer(WebServerConfig{})
		w := serve(t, ws, http.MethodGet, "/api/fdm/sessions")
		testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	})

	restore := monitoring.Mute()
	defer restore()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer database.Close()

	for i := 0; i < 3; i++ {
		_, err := database.StartSession("sim", time.Unix(int64(1700000000+i), 0))
		require.NoError(t, err)
	}
	ws := NewWebServer(WebServerConfig{DB: database})

	w := serve(t, ws, http.MethodGet, "/api/fdm/sessions?limit=2")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var sessions []db.Session
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sessions))
	assert.Len(t, sessions, 2)

	w = serve(t, ws, http.MethodGet, "/api/fdm/sessions?limit=zero")
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = serve(t, ws, http.MethodGet, "/")
	assert.Contains(t, w.Body.String(), "/debug/tailsql/")

	w = serve(t, ws, http.MethodGet, "/debug/db-stats")
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

func TestWebServer_StartStop(t *testing.T) {
	restore := monitoring.Mute()
	defer restore()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ws := NewWebServer(WebServerConfig{Address: addr})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWebServer_StartListenError(t *testing.T) {
	restore := monitoring.Mute()
	defer restore()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ws := NewWebServer(WebServerConfig{Address: ln.Addr().String()})
	err = ws.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to start server"))
}
