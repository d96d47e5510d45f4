// Package lunar derives the lunar phase from the ecliptic longitudes of the
// Sun and Moon. Phase names come from the directed elongation so waxing and
// waning phases are told apart; illumination uses the undirected phase
// angle.
package lunar

import (
	"math"
)

// SynodicMonth is the average length of the lunar cycle in days
const SynodicMonth = 29.530588853

// PhaseName is one of the eight conventional lunar phases.
type PhaseName string

const (
	New            PhaseName = "new"
	WaxingCrescent PhaseName = "waxing_crescent"
	FirstQuarter   PhaseName = "first_quarter"
	WaxingGibbous  PhaseName = "waxing_gibbous"
	Full           PhaseName = "full"
	WaningGibbous  PhaseName = "waning_gibbous"
	LastQuarter    PhaseName = "last_quarter"
	WaningCrescent PhaseName = "waning_crescent"
)

// Title returns the name for display, e.g. "Waxing Crescent".
func (n PhaseName) Title() string {
	switch n {
	case New:
		return "New Moon"
	case WaxingCrescent:
		return "Waxing Crescent"
	case FirstQuarter:
		return "First Quarter"
	case WaxingGibbous:
		return "Waxing Gibbous"
	case Full:
		return "Full Moon"
	case WaningGibbous:
		return "Waning Gibbous"
	case LastQuarter:
		return "Last Quarter"
	case WaningCrescent:
		return "Waning Crescent"
	default:
		return string(n)
	}
}

// Phase contains calculated moon phase information
type Phase struct {
	Name PhaseName `json:"phase_name"`
	// Elongation is the directed Sun→Moon angle in [0,360).
	Elongation float64 `json:"elongation_deg"`
	// PhaseAngle is the undirected separation in [0,180].
	PhaseAngle      float64 `json:"phase_angle_deg"`
	IlluminationPct float64 `json:"illumination_pct"`
	// AgeDays is the approximate time since new moon.
	AgeDays float64 `json:"age_days"`
	Waxing  bool    `json:"waxing"`
}

// FromLongitudes computes the phase for the given Sun and Moon ecliptic
// longitudes in degrees.
func FromLongitudes(sunLon, moonLon float64) Phase {
	elongation := normalizeAngle(moonLon - sunLon)
	sep := separation(sunLon, moonLon)

	return Phase{
		Name:            phaseName(elongation),
		Elongation:      round(elongation, 4),
		PhaseAngle:      round(sep, 4),
		IlluminationPct: illumination(sep),
		AgeDays:         elongation / 360 * SynodicMonth,
		Waxing:          elongation < 180,
	}
}

// phaseName maps the directed elongation onto 45° wide phase buckets
// centred on the principal phases.
func phaseName(elongation float64) PhaseName {
	switch a := normalizeAngle(elongation); {
	case a < 22.5 || a >= 337.5:
		return New
	case a < 67.5:
		return WaxingCrescent
	case a < 112.5:
		return FirstQuarter
	case a < 157.5:
		return WaxingGibbous
	case a < 202.5:
		return Full
	case a < 247.5:
		return WaningGibbous
	case a < 292.5:
		return LastQuarter
	default:
		return WaningCrescent
	}
}

// illumination returns the illuminated percentage for a phase angle,
// rounded to two decimals.
func illumination(phaseAngle float64) float64 {
	k := (1 - math.Cos(degToRad(phaseAngle))) / 2
	return round(k*100, 2)
}

// separation returns the undirected angle between two longitudes, 0..180.
func separation(a, b float64) float64 {
	d := math.Abs(normalizeAngle(a) - normalizeAngle(b))
	return math.Min(d, 360-d)
}

// normalizeAngle wraps an angle to the range [0, 360)
func normalizeAngle(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
