package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/netfdm/internal/db"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/testutil"
)

func setupDB(t *testing.T) *db.DB {
	t.Helper()
	restore := monitoring.Mute()
	t.Cleanup(restore)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "fdm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestGenerate_LatestSession(t *testing.T) {
	database := setupDB(t)
	t0 := time.Unix(1700000000, 0)

	old, err := database.StartSession("old", t0)
	require.NoError(t, err)
	rec := testutil.SampleRecord()
	require.NoError(t, database.InsertRecord(old, t0, rec, testutil.EncodePacket(t, rec)))

	id, err := database.StartSession("sim", t0.Add(time.Hour))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		rec := testutil.SampleRecord()
		rec.Altitude = float64(100 + 10*i)
		require.NoError(t, database.InsertRecord(id, t0.Add(time.Hour+time.Duration(i)*time.Second), rec, testutil.EncodePacket(t, rec)))
	}

	out := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, generate(&buf, database, "", out, 0))

	text := buf.String()
	assert.Contains(t, text, "Session "+id)
	assert.Contains(t, text, "Samples: 5")
	assert.FileExists(t, filepath.Join(out, "altitude.png"))
	assert.FileExists(t, filepath.Join(out, "attitude.png"))
}

func TestGenerate_Errors(t *testing.T) {
	database := setupDB(t)

	err := generate(&bytes.Buffer{}, database, "", t.TempDir(), 0)
	assert.ErrorIs(t, err, db.ErrNoSessions)

	id, err := database.StartSession("empty", time.Now())
	require.NoError(t, err)
	err = generate(&bytes.Buffer{}, database, id, t.TempDir(), 0)
	assert.ErrorContains(t, err, "has no records")
}
