// Package report summarises and plots recorded FDM sessions.
package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/netfdm/internal/db"
)

// Sample is the subset of a recorded record the report works on.
// Angles are in degrees.
type Sample struct {
	Time      time.Time
	AltitudeM float64
	VCASKt    float64
	RollDeg   float64
	PitchDeg  float64
	YawDeg    float64
	ClimbRate float64
}

// FromStored converts recorded rows to samples.
func FromStored(records []db.StoredRecord) []Sample {
	samples := make([]Sample, len(records))
	for i, r := range records {
		samples[i] = Sample{
			Time:      r.ReceivedAt,
			AltitudeM: r.AltitudeM,
			VCASKt:    r.VCASKt,
			RollDeg:   r.RollDeg,
			PitchDeg:  r.PitchDeg,
			YawDeg:    r.YawDeg,
			ClimbRate: r.ClimbRate,
		}
	}
	return samples
}

// Stat describes one channel. N counts the finite values used; the other
// fields are NaN when N is zero.
type Stat struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Summary holds per-channel statistics for a run of samples.
type Summary struct {
	Samples   int           `json:"samples"`
	Duration  time.Duration `json:"duration"`
	Altitude  Stat          `json:"altitude_m"`
	Airspeed  Stat          `json:"vcas_kt"`
	Roll      Stat          `json:"roll_deg"`
	Pitch     Stat          `json:"pitch_deg"`
	ClimbRate Stat          `json:"climb_rate"`
}

// Summarise computes statistics over samples. Non-finite values are left
// out of each channel.
func Summarise(samples []Sample) Summary {
	s := Summary{Samples: len(samples)}
	if len(samples) > 1 {
		s.Duration = samples[len(samples)-1].Time.Sub(samples[0].Time)
	}

	channel := func(get func(Sample) float64) Stat {
		vals := make([]float64, 0, len(samples))
		for _, smp := range samples {
			if v := get(smp); !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
		return describe(vals)
	}

	s.Altitude = channel(func(x Sample) float64 { return x.AltitudeM })
	s.Airspeed = channel(func(x Sample) float64 { return x.VCASKt })
	s.Roll = channel(func(x Sample) float64 { return x.RollDeg })
	s.Pitch = channel(func(x Sample) float64 { return x.PitchDeg })
	s.ClimbRate = channel(func(x Sample) float64 { return x.ClimbRate })
	return s
}

func describe(vals []float64) Stat {
	if len(vals) == 0 {
		nan := math.NaN()
		return Stat{Min: nan, Max: nan, Mean: nan, StdDev: nan}
	}
	st := Stat{
		N:    len(vals),
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: stat.Mean(vals, nil),
	}
	// Sample standard deviation is undefined for one value.
	if len(vals) > 1 {
		st.StdDev = stat.StdDev(vals, nil)
	}
	return st
}

// WriteSummary prints s as an aligned table.
func WriteSummary(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Samples: %d over %v\n\n", s.Samples, s.Duration.Round(time.Millisecond))
	fmt.Fprintln(tw, "Channel\tN\tMin\tMax\tMean\tStdDev")
	rows := []struct {
		name string
		st   Stat
	}{
		{"Altitude (m)", s.Altitude},
		{"Airspeed (kt)", s.Airspeed},
		{"Roll (°)", s.Roll},
		{"Pitch (°)", s.Pitch},
		{"Climb rate (ft/s)", s.ClimbRate},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", r.name, r.st.N, r.st.Min, r.st.Max, r.st.Mean, r.st.StdDev)
	}
	return tw.Flush()
}
