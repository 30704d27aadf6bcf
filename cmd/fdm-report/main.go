// Command fdm-report summarises a recorded FDM session and writes altitude
// and attitude plots.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/netfdm/internal/config"
	"github.com/banshee-data/netfdm/internal/db"
	"github.com/banshee-data/netfdm/internal/report"
	"github.com/banshee-data/netfdm/internal/version"
)

func main() {
	var dbPath, sessionID, outDir string
	var limit int
	var showVersion bool

	flag.StringVar(&dbPath, "db", config.DefaultDBPath, "path to sqlite db")
	flag.StringVar(&sessionID, "session", "", "session id to report on (default: latest)")
	flag.StringVar(&outDir, "out", ".", "directory for the PNG plots")
	flag.IntVar(&limit, "limit", 0, "maximum records to read (0 for all)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String("fdm-report"))
		return
	}

	if _, err := os.Stat(dbPath); err != nil {
		log.Fatalf("open db: %v", err)
	}
	dbConn, err := db.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	if err := generate(os.Stdout, dbConn, sessionID, outDir, limit); err != nil {
		log.Fatalf("report failed: %v", err)
	}
}

// generate prints the summary of one session (the latest when sessionID is
// empty) and writes altitude.png and attitude.png into outDir.
func generate(w io.Writer, dbConn *db.DB, sessionID, outDir string, limit int) error {
	if sessionID == "" {
		latest, err := dbConn.LatestSession()
		if err != nil {
			return fmt.Errorf("find latest session: %w", err)
		}
		sessionID = latest.SessionID
	}

	records, err := dbConn.SessionRecords(sessionID, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %s has no records", sessionID)
	}

	samples := report.FromStored(records)
	fmt.Fprintf(w, "Session %s\n", sessionID)
	if err := report.WriteSummary(w, report.Summarise(samples)); err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	plots := []struct {
		name string
		fn   func([]report.Sample, string) error
	}{
		{"altitude.png", report.PlotAltitude},
		{"attitude.png", report.PlotAttitude},
	}
	for _, p := range plots {
		path := filepath.Join(outDir, p.name)
		if err := p.fn(samples, path); err != nil {
			return fmt.Errorf("plot %s: %w", p.name, err)
		}
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}
