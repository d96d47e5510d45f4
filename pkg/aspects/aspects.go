// Package aspects finds the major angular relationships between pairs of
// ecliptic longitudes.
package aspects

import (
	"math"
	"sort"
)

// DefaultOrb is the maximum orb in degrees used when none is given.
const DefaultOrb = 10.0

// Type names a major aspect.
type Type string

const (
	Conjunction Type = "conjunction"
	Sextile     Type = "sextile"
	Square      Type = "square"
	Trine       Type = "trine"
	Opposition  Type = "opposition"
)

var major = []struct {
	kind  Type
	angle float64
}{
	{Conjunction, 0},
	{Sextile, 60},
	{Square, 90},
	{Trine, 120},
	{Opposition, 180},
}

// Angle returns the exact separation of the aspect in degrees, or -1.
func (t Type) Angle() float64 {
	for _, a := range major {
		if a.kind == t {
			return a.angle
		}
	}
	return -1
}

// Aspect relates two bodies. BodyA sorts before BodyB.
type Aspect struct {
	BodyA string  `json:"body_a"`
	BodyB string  `json:"body_b"`
	Type  Type    `json:"type"`
	Orb   float64 `json:"orb_deg"`
}

// Compute returns every aspect within maxOrb between the bodies, keyed by
// name with longitudes in degrees. Each unordered pair appears at most once
// with its closest aspect, and the result is sorted by BodyA then BodyB.
// A non-positive maxOrb selects DefaultOrb.
func Compute(bodies map[string]float64, maxOrb float64) []Aspect {
	if maxOrb <= 0 {
		maxOrb = DefaultOrb
	}

	names := make([]string, 0, len(bodies))
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Aspect
	for i, a := range names {
		for _, b := range names[i+1:] {
			kind, orb, ok := Detect(bodies[a], bodies[b], maxOrb)
			if !ok {
				continue
			}
			out = append(out, Aspect{BodyA: a, BodyB: b, Type: kind, Orb: orb})
		}
	}
	return out
}

// Detect reports the closest major aspect between two longitudes if its orb
// does not exceed maxOrb. The orb is rounded to four decimals.
func Detect(lonA, lonB, maxOrb float64) (Type, float64, bool) {
	sep := Separation(lonA, lonB)

	var (
		best  Type
		bestD = math.Inf(1)
	)
	for _, a := range major {
		d := math.Abs(sep - a.angle)
		if d <= maxOrb && d < bestD {
			best, bestD = a.kind, d
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, math.Round(bestD*1e4) / 1e4, true
}

// Separation returns the undirected angle between two longitudes, 0..180.
func Separation(a, b float64) float64 {
	d := math.Abs(normalize(a) - normalize(b))
	return math.Min(d, 360-d)
}

func normalize(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v
}
