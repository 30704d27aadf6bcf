package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch

	rollColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	pitchColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	altColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no finite samples to plot")

// PlotAltitude writes a PNG of altitude against seconds since the first sample.
func PlotAltitude(samples []Sample, path string) error {
	p := plot.New()
	p.Title.Text = "Altitude"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Altitude (m)"

	pts := series(samples, func(s Sample) float64 { return s.AltitudeM })
	if len(pts) == 0 {
		return ErrNoSamples
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = altColor
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save altitude plot: %w", err)
	}
	return nil
}

// PlotAttitude writes a PNG of roll and pitch against seconds since the
// first sample.
func PlotAttitude(samples []Sample, path string) error {
	p := plot.New()
	p.Title.Text = "Attitude"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (°)"

	roll := series(samples, func(s Sample) float64 { return s.RollDeg })
	pitch := series(samples, func(s Sample) float64 { return s.PitchDeg })
	if len(roll) == 0 && len(pitch) == 0 {
		return ErrNoSamples
	}
	p.Add(plotter.NewGrid())

	for _, l := range []struct {
		label string
		pts   plotter.XYs
		c     color.Color
	}{
		{"Roll", roll, rollColor},
		{"Pitch", pitch, pitchColor},
	} {
		if len(l.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.pts)
		if err != nil {
			return err
		}
		line.Color = l.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(l.label, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save attitude plot: %w", err)
	}
	return nil
}

// series extracts finite values as (seconds since first sample, value).
func series(samples []Sample, get func(Sample) float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	if len(samples) == 0 {
		return pts
	}
	t0 := samples[0].Time
	for _, s := range samples {
		v := get(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Time.Sub(t0).Seconds(), Y: v})
	}
	return pts
}
