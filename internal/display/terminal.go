package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
)

// clearScreen moves the cursor home and erases the display.
const clearScreen = "\x1b[H\x1b[2J"

// Terminal is an ingest.Sink that redraws the readout for each record,
// at most once per refresh interval.
type Terminal struct {
	out     io.Writer
	styles  styles
	opts    Options
	refresh time.Duration

	mu       sync.Mutex
	lastDraw time.Time
	skipped  int
}

// NewTerminal creates a display writing to out. Colour support is detected
// from out, so a pipe or file receives plain text.
func NewTerminal(out io.Writer, opts Options, refresh time.Duration) *Terminal {
	return &Terminal{
		out:     out,
		styles:  newStyles(lipgloss.NewRenderer(out)),
		opts:    opts,
		refresh: refresh,
	}
}

// HandleRecord implements ingest.Sink. Throttling uses the packet receive
// time so replayed captures redraw at their original pace.
func (t *Terminal) HandleRecord(rec *fdm.Record, meta ingest.PacketMeta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refresh > 0 && !t.lastDraw.IsZero() && meta.Received.Sub(t.lastDraw) < t.refresh {
		t.skipped++
		return
	}
	t.lastDraw = meta.Received

	footer := fmt.Sprintf("%s  %s  %d bytes", meta.Source, meta.Received.Format("15:04:05.000"), meta.Size)
	if t.skipped > 0 {
		footer += fmt.Sprintf("  (%d updates skipped)", t.skipped)
		t.skipped = 0
	}

	// Errors writing to the terminal are not actionable here.
	_, _ = io.WriteString(t.out, clearScreen+formatRecord(t.styles, rec, t.opts)+"\n"+t.styles.section.Render(footer)+"\n")
}
