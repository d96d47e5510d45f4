package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/lunar"
)

func main() {
	var timeStr string
	flag.StringVar(&timeStr, "time", "", "UTC time to calculate phase for (RFC3339 format, e.g., 2024-01-15T12:00:00Z)")
	flag.Parse()

	var t time.Time
	if timeStr == "" {
		t = time.Now().UTC()
	} else {
		var err error
		t, err = time.Parse(time.RFC3339, timeStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing time: %v\n", err)
			os.Exit(1)
		}
	}

	if err := printPhase(os.Stdout, ephemeris.NewMeeusProvider("", nil), t); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// phaseAt returns the lunar phase at t from the Sun and Moon positions.
func phaseAt(p ephemeris.Provider, t time.Time) (lunar.Phase, error) {
	t = t.UTC()
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	jd := ephemeris.JulDay(t.Year(), int(t.Month()), t.Day(), hour, ephemeris.Gregorian)

	sun, err := p.CalcUT(jd, ephemeris.Sun, 0)
	if err != nil {
		return lunar.Phase{}, fmt.Errorf("sun: %w", err)
	}
	moon, err := p.CalcUT(jd, ephemeris.Moon, 0)
	if err != nil {
		return lunar.Phase{}, fmt.Errorf("moon: %w", err)
	}
	return lunar.FromLongitudes(sun.Longitude, moon.Longitude), nil
}

func printPhase(w io.Writer, p ephemeris.Provider, t time.Time) error {
	phase, err := phaseAt(p, t)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Moon Phase for %s\n", t.Format(time.RFC3339))
	fmt.Fprintf(w, "  Phase Name:   %s\n", phase.Name.Title())
	fmt.Fprintf(w, "  Illumination: %.1f%%\n", phase.IlluminationPct)
	fmt.Fprintf(w, "  Age:          %.1f days\n", phase.AgeDays)
	fmt.Fprintf(w, "  Elongation:   %.1f°\n", phase.Elongation)
	if phase.Waxing {
		fmt.Fprintf(w, "  Direction:    Waxing\n")
	} else {
		fmt.Fprintf(w, "  Direction:    Waning\n")
	}
	return nil
}
