// Package display renders decoded FDM records as a live terminal readout.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/units"
)

// Options selects what the readout shows.
type Options struct {
	Verbose   bool   // add airspeed, climb rate, engines, gear and controls
	SpeedUnit string // airspeed unit for verbose mode; see units.ValidUnits
}

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	warning lipgloss.Style
	section lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		label: r.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")),
		value: r.NewStyle().
			Bold(true),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		section: r.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

var engineStates = []string{"off", "cranking", "running"}

// Format returns the readout for rec without any colour, as it would appear
// on a dumb terminal.
func Format(rec *fdm.Record, opts Options) string {
	return formatRecord(newStyles(lipgloss.NewRenderer(io.Discard)), rec, opts)
}

func formatRecord(st styles, rec *fdm.Record, opts Options) string {
	var b strings.Builder

	line := func(label, format string, v ...interface{}) {
		b.WriteString(st.label.Render(fmt.Sprintf("%-13s:", label)))
		b.WriteString(" ")
		b.WriteString(st.value.Render(fmt.Sprintf(format, v...)))
		b.WriteString("\n")
	}

	b.WriteString(st.title.Render(fmt.Sprintf("FGNetFDM v%d", rec.Version)))
	b.WriteString("\n\n")

	line("Longitude", "%.6f°", units.RadiansToDegrees(rec.Longitude))
	line("Latitude", "%.6f°", units.RadiansToDegrees(rec.Latitude))
	line("Altitude", "%.2f m (%.0f ft)", rec.Altitude, units.MetersToFeet(rec.Altitude))
	line("AGL", "%.2f m (%.0f ft)", rec.AGL, units.MetersToFeet(float64(rec.AGL)))
	line("Roll", "%.3f°", units.RadiansToDegrees(float64(rec.Phi)))
	line("Pitch", "%.3f°", units.RadiansToDegrees(float64(rec.Theta)))
	line("Yaw", "%.3f°", units.RadiansToDegrees(float64(rec.Psi)))

	if !opts.Verbose {
		return b.String()
	}

	unit := opts.SpeedUnit
	if !units.IsValid(unit) {
		unit = units.KT
	}

	b.WriteString("\n")
	b.WriteString(st.section.Render("Flight"))
	b.WriteString("\n")
	line("Airspeed", "%.1f %s", units.ConvertSpeed(float64(rec.VCAS), unit), unit)
	line("Climb rate", "%.1f ft/s", rec.ClimbRate)
	line("AoA", "%.2f°", units.RadiansToDegrees(float64(rec.Alpha)))
	line("Sideslip", "%.2f°", units.RadiansToDegrees(float64(rec.Beta)))
	if rec.StallWarning > 0 {
		b.WriteString(st.warning.Render(fmt.Sprintf("STALL %.0f%%", rec.StallWarning*100)))
		b.WriteString("\n")
	}

	engines := int(rec.NumEngines)
	if engines > fdm.MaxEngines {
		engines = fdm.MaxEngines
	}
	if engines > 0 {
		b.WriteString("\n")
		b.WriteString(st.section.Render("Engines"))
		b.WriteString("\n")
	}
	for i := 0; i < engines; i++ {
		state := fmt.Sprintf("state %d", rec.EngState[i])
		if int(rec.EngState[i]) < len(engineStates) {
			state = engineStates[rec.EngState[i]]
		}
		line(fmt.Sprintf("Engine %d", i+1), "%.0f rpm, %s", rec.RPM[i], state)
	}

	b.WriteString("\n")
	b.WriteString(st.section.Render("Gear & controls"))
	b.WriteString("\n")
	if rec.OnGround() {
		line("Gear", "weight on wheels")
	} else {
		line("Gear", "airborne")
	}
	line("Elevator", "%+.2f (trim %+.2f)", rec.Elevator, rec.ElevatorTrimTab)
	line("Ailerons", "%+.2f / %+.2f", rec.LeftAileron, rec.RightAileron)
	line("Rudder", "%+.2f", rec.Rudder)
	line("Flaps", "%.2f / %.2f", rec.LeftFlap, rec.RightFlap)

	return b.String()
}
