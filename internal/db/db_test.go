package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	restore := monitoring.Mute()
	t.Cleanup(restore)

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrationsFS(t *testing.T) {
	migFS, err := getMigrationsFS()
	require.NoError(t, err)

	entries, err := fs.ReadDir(migFS, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_fdm_schema.up.sql")
	assert.Contains(t, names, "000001_fdm_schema.down.sql")
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := setupTestDB(t)
	migFS, err := getMigrationsFS()
	require.NoError(t, err)

	version, dirty, err := db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Already at latest.
	require.NoError(t, db.MigrateUp(migFS))

	require.NoError(t, db.MigrateDown(migFS))
	version, _, err = db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'fdm_records'`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, db.MigrateUp(migFS))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'fdm_records'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrateUp_CustomFS(t *testing.T) {
	restore := monitoring.Mute()
	defer restore()

	db, err := OpenDB(filepath.Join(t.TempDir(), "custom.db"))
	require.NoError(t, err)
	defer db.Close()

	migrationsFS := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE IF EXISTS t1;")},
	}
	require.NoError(t, db.MigrateUp(migrationsFS))

	version, _, err := db.MigrateVersion(migrationsFS)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestNewMigrate_ClosedDB(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	db.Close()

	migFS, err := getMigrationsFS()
	require.NoError(t, err)
	err = db.MigrateUp(migFS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create sqlite driver")
}

func TestOpenDB_BadPath(t *testing.T) {
	_, err := OpenDB(filepath.Join(t.TempDir(), "missing-dir", "x.db"))
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.LatestSession()
	assert.True(t, errors.Is(err, ErrNoSessions))

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first, err := db.StartSession("127.0.0.1:49005", start)
	require.NoError(t, err)
	second, err := db.StartSession("capture.pcap", start.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36, "session ids are UUID strings")

	rec := testutil.SampleRecord()
	raw := testutil.EncodePacket(t, rec)
	require.NoError(t, db.InsertRecord(first, start.Add(time.Second), rec, raw))
	require.NoError(t, db.InsertRecord(first, start.Add(2*time.Second), rec, raw))
	require.NoError(t, db.EndSession(first, start.Add(2*time.Second)))

	sessions, err := db.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].SessionID, "newest first")
	assert.Nil(t, sessions[0].EndedAt)
	assert.Equal(t, int64(0), sessions[0].RecordCount)
	assert.Equal(t, first, sessions[1].SessionID)
	assert.Equal(t, int64(2), sessions[1].RecordCount)
	require.NotNil(t, sessions[1].EndedAt)
	assert.True(t, sessions[1].EndedAt.Equal(start.Add(2*time.Second)))
	assert.True(t, sessions[1].StartedAt.Equal(start))

	latest, err := db.LatestSession()
	require.NoError(t, err)
	assert.Equal(t, second, latest.SessionID)
	assert.Equal(t, "capture.pcap", latest.Source)

	err = db.EndSession("no-such-session", start)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSessionRecords(t *testing.T) {
	db := setupTestDB(t)
	start := time.Unix(1700000000, 0)
	id, err := db.StartSession("sim", start)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec := testutil.SampleRecord()
		rec.Altitude = float64(100 * i)
		rec.CurTime = uint32(1700000000 + i)
		require.NoError(t, db.InsertRecord(id, start.Add(time.Duration(i)*time.Second), rec, testutil.EncodePacket(t, rec)))
	}

	all, err := db.SessionRecords(id, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, r := range all {
		assert.Equal(t, float64(100*i), r.AltitudeM)
		assert.Equal(t, uint32(1700000000+i), r.CurTime)
	}

	r := all[0]
	assert.Equal(t, uint32(fdm.ProtocolVersion), r.Version)
	assert.InDelta(t, 90.0, r.RollDeg, 1e-4)
	assert.InDelta(t, 30.0, r.PitchDeg, 1e-4)
	assert.InDelta(t, 270.0, r.YawDeg, 1e-4)
	assert.InDelta(t, 37.7751, r.LatitudeDeg, 1e-4)
	assert.InDelta(t, 100.0, r.VCASKt, 1e-9)
	assert.True(t, r.ReceivedAt.Equal(start))

	decoded, err := r.Decode()
	require.NoError(t, err)
	assert.Equal(t, float32(2400), decoded.RPM[0])

	limited, err := db.SessionRecords(id, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := db.SessionRecords("other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsertRecord_NonFiniteStoredAsNull(t *testing.T) {
	db := setupTestDB(t)
	id, err := db.StartSession("sim", time.Now())
	require.NoError(t, err)

	rec := testutil.SampleRecord()
	rec.Altitude = math.NaN()
	rec.Phi = float32(math.Inf(1))
	require.NoError(t, db.InsertRecord(id, time.Now(), rec, testutil.EncodePacket(t, rec)))

	var nulls int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM fdm_records WHERE altitude_m IS NULL AND roll_deg IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	recs, err := db.SessionRecords(id, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, math.IsNaN(recs[0].AltitudeM))
	assert.True(t, math.IsNaN(recs[0].RollDeg))
	assert.InDelta(t, 30.0, recs[0].PitchDeg, 1e-4)

	// The raw packet still holds the original bits.
	decoded, err := recs[0].Decode()
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(decoded.Phi), 1))
}

func TestInsertRecord_UnknownSession(t *testing.T) {
	db := setupTestDB(t)
	rec := testutil.SampleRecord()
	err := db.InsertRecord("missing", time.Now(), rec, testutil.EncodePacket(t, rec))
	assert.Error(t, err, "foreign key rejects records without a session")
}

func TestRecorder(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "127.0.0.1:49005")
	assert.Empty(t, rec.SessionID())
	require.NoError(t, rec.Close(), "closing an unused recorder is a no-op")

	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := testutil.SampleRecord()
		r.Altitude = float64(i)
		raw := testutil.EncodePacket(t, r)
		rec.HandleRecord(r, ingest.PacketMeta{Received: start.Add(time.Duration(i) * time.Second), Source: "sim", Size: len(raw), Raw: raw})
	}

	id := rec.SessionID()
	require.NotEmpty(t, id)
	assert.Equal(t, int64(3), rec.Inserted())
	require.NoError(t, rec.Close())

	latest, err := db.LatestSession()
	require.NoError(t, err)
	assert.Equal(t, id, latest.SessionID)
	assert.Equal(t, "127.0.0.1:49005", latest.Source)
	assert.Equal(t, int64(3), latest.RecordCount)
	require.NotNil(t, latest.EndedAt)
	assert.True(t, latest.EndedAt.Equal(start.Add(2*time.Second)))
}

func TestRecorder_InsertFailureDoesNotPanic(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, "sim")
	db.Close()

	r := testutil.SampleRecord()
	rec.HandleRecord(r, ingest.PacketMeta{Received: time.Now(), Raw: testutil.EncodePacket(t, r)})
	assert.Empty(t, rec.SessionID())
	assert.Equal(t, int64(0), rec.Inserted())
}

func TestGetDatabaseStats(t *testing.T) {
	db := setupTestDB(t)
	id, err := db.StartSession("sim", time.Now())
	require.NoError(t, err)
	rec := testutil.SampleRecord()
	for i := 0; i < 4; i++ {
		require.NoError(t, db.InsertRecord(id, time.Now(), rec, testutil.EncodePacket(t, rec)))
	}

	stats, err := db.GetDatabaseStats()
	require.NoError(t, err)
	assert.Greater(t, stats.TotalSizeMB, 0.0)
	require.NotEmpty(t, stats.Tables)
	assert.Equal(t, "fdm_records", stats.Tables[0].Name)
	assert.Equal(t, int64(4), stats.Tables[0].RowCount)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/db-stats", "/debug/backup"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "127.0.0.1:40000"
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			// Should be registered (might return 403 due to auth or 200 if auth passes)
			if w.Code == http.StatusNotFound {
				t.Errorf("Route %s should be registered, got 404", path)
			}
			if w.Code != http.StatusOK {
				return
			}

			switch path {
			case "/debug/db-stats":
				var stats DatabaseStats
				require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
				assert.NotEmpty(t, stats.Tables)
			case "/debug/backup":
				assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=backup-"))
				zr, err := gzip.NewReader(w.Body)
				require.NoError(t, err)
				data, err := io.ReadAll(zr)
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(string(data), "SQLite format 3"))
			}
		})
	}
}
