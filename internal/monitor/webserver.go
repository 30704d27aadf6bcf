// Package monitor serves live FDM telemetry over HTTP.
package monitor

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/netfdm/internal/db"
	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/httputil"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/units"
)

//go:embed status.html
var statusHTML embed.FS

var statusTemplate = template.Must(template.ParseFS(statusHTML, "status.html"))

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Store   *Store
	Stats   *ingest.PacketStats
	DB      *db.DB // optional; enables session listing and admin routes
	Source  string // ingestion source shown on the status page
}

// WebServer exposes the latest record, packet counters and a live chart.
type WebServer struct {
	address string
	store   *Store
	stats   *ingest.PacketStats
	db      *db.DB
	source  string
	started time.Time
	server  *http.Server
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		store:   config.Store,
		stats:   config.Stats,
		db:      config.DB,
		source:  config.Source,
		started: time.Now(),
	}
	if ws.store == nil {
		ws.store = NewStore(0)
	}
	if ws.stats == nil {
		ws.stats = ingest.NewPacketStats()
	}

	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Start serves HTTP until ctx is cancelled, then shuts the server down.
// A listen failure is returned immediately.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// Handler returns the server's routes, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/fdm/latest", ws.handleLatest)
	mux.HandleFunc("/api/fdm/stats", ws.handleStats)
	mux.HandleFunc("/api/fdm/history", ws.handleHistory)
	mux.HandleFunc("/api/fdm/sessions", ws.handleSessions)
	mux.HandleFunc("/debug/charts/altitude", ws.handleAltitudeChart)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("Admin routes disabled: %v", err)
		}
	}
	return mux
}

// LatestResponse is the body of /api/fdm/latest. Angles are in degrees;
// Record carries every field as sent, in radians.
type LatestResponse struct {
	Source       string      `json:"source"`
	ReceivedAt   time.Time   `json:"received_at"`
	Version      uint32      `json:"version"`
	LongitudeDeg float64     `json:"longitude_deg"`
	LatitudeDeg  float64     `json:"latitude_deg"`
	AltitudeM    float64     `json:"altitude_m"`
	AGLM         float64     `json:"agl_m"`
	RollDeg      float64     `json:"roll_deg"`
	PitchDeg     float64     `json:"pitch_deg"`
	YawDeg       float64     `json:"yaw_deg"`
	VCASKt       float64     `json:"vcas_kt"`
	ClimbRate    float64     `json:"climb_rate"`
	OnGround     bool        `json:"on_ground"`
	Record       *fdm.Record `json:"record"`
}

func newLatestResponse(rec fdm.Record, meta ingest.PacketMeta) LatestResponse {
	return LatestResponse{
		Source:       meta.Source,
		ReceivedAt:   meta.Received,
		Version:      rec.Version,
		LongitudeDeg: units.RadiansToDegrees(rec.Longitude),
		LatitudeDeg:  units.RadiansToDegrees(rec.Latitude),
		AltitudeM:    rec.Altitude,
		AGLM:         float64(rec.AGL),
		RollDeg:      units.RadiansToDegrees(float64(rec.Phi)),
		PitchDeg:     units.RadiansToDegrees(float64(rec.Theta)),
		YawDeg:       units.RadiansToDegrees(float64(rec.Psi)),
		VCASKt:       float64(rec.VCAS),
		ClimbRate:    float64(rec.ClimbRate),
		OnGround:     rec.OnGround(),
		Record:       &rec,
	}
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "fdm", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleLatest returns the most recent record. 503 until the first packet
// decodes; 500 if the record holds values JSON cannot carry (NaN, Inf).
func (ws *WebServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	rec, meta, ok := ws.store.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no FDM record received yet")
		return
	}
	httputil.WriteJSONOK(w, newLatestResponse(rec, meta))
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.stats.Snapshot())
}

// handleHistory returns the retained chart points. Non-finite points are
// skipped so one bad packet does not break the whole response.
func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	points := ws.store.History()
	out := make([]HistoryPoint, 0, len(points))
	for _, p := range points {
		if finite(p.AltitudeM, p.VCASKt, p.RollDeg, p.PitchDeg) {
			out = append(out, p)
		}
	}
	httputil.WriteJSONOK(w, out)
}

// handleSessions lists recorded sessions.
// Query params:
//
//	limit (optional, default 50)
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.NotFound(w, "recording is not enabled")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = v
	}
	sessions, err := ws.db.ListSessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list sessions: %v", err))
		return
	}
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

// handleAltitudeChart renders the retained altitude history with go-echarts.
func (ws *WebServer) handleAltitudeChart(w http.ResponseWriter, r *http.Request) {
	points := ws.store.History()

	x := make([]string, 0, len(points))
	alt := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		if !finite(p.AltitudeM) {
			continue
		}
		x = append(x, p.Time.Format("15:04:05.000"))
		alt = append(alt, opts.LineData{Value: p.AltitudeM})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "FDM Altitude", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Altitude", Subtitle: fmt.Sprintf("%d points", len(alt))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Altitude (m)"}),
	)
	line.SetXAxis(x).AddSeries("altitude", alt)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := struct {
		Source string
		Uptime string
		Latest *LatestResponse
		Stats  ingest.StatsSnapshot
		HasDB  bool
	}{
		Source: ws.source,
		Uptime: time.Since(ws.started).Round(time.Second).String(),
		Stats:  ws.stats.Snapshot(),
		HasDB:  ws.db != nil,
	}
	if rec, meta, ok := ws.store.Latest(); ok {
		latest := newLatestResponse(rec, meta)
		data.Latest = &latest
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
