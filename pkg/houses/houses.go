// Package houses computes astrological house cusps and the chart angles
// (ascendant, MC, vertex) from the local sidereal angle, the obliquity of the
// ecliptic and the observer's latitude. All angles are in degrees.
package houses

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// System is a single-letter house system selector ('P' for Placidus, ...).
type System byte

const (
	Placidus      System = 'P'
	Regiomontanus System = 'R'
	Campanus      System = 'C'
	Porphyry      System = 'O'
	Equal         System = 'E'
	EqualAsc      System = 'A' // alias of Equal
	WholeSign     System = 'W'
)

var systemNames = map[System]string{
	Placidus:      "Placidus",
	Regiomontanus: "Regiomontanus",
	Campanus:      "Campanus",
	Porphyry:      "Porphyry",
	Equal:         "Equal",
	EqualAsc:      "Equal",
	WholeSign:     "Whole sign",
}

var (
	// ErrUnknownSystem is returned for selectors not in Systems().
	ErrUnknownSystem = errors.New("unknown house system")
	// ErrPolarCircle is returned when the system has no solution at the
	// requested latitude.
	ErrPolarCircle = errors.New("house system undefined within the polar circles")
	// ErrLatitude is returned for latitudes outside -90..90 or exactly at a pole.
	ErrLatitude = errors.New("latitude out of range")
)

// Name returns the display name of the house system, or "unknown".
func (s System) Name() string {
	if n, ok := systemNames[s]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether s is a supported selector.
func (s System) Valid() bool {
	_, ok := systemNames[s]
	return ok
}

func (s System) String() string {
	return string(rune(s))
}

// MarshalText encodes the selector as its letter.
func (s System) MarshalText() ([]byte, error) {
	return []byte{byte(s)}, nil
}

// UnmarshalText accepts a single-letter selector.
func (s *System) UnmarshalText(text []byte) error {
	sys, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = sys
	return nil
}

// Parse converts a one-letter selector such as "P" into a System.
func Parse(v string) (System, error) {
	if len(v) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSystem, v)
	}
	sys := System(v[0])
	if 'a' <= sys && sys <= 'z' {
		sys -= 'a' - 'A'
	}
	if !sys.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSystem, v)
	}
	return sys, nil
}

// Systems returns every supported selector in a stable order.
func Systems() []System {
	out := make([]System, 0, len(systemNames))
	for s := range systemNames {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Result holds the twelve cusps (1-indexed, Cusps[0] unused) and the angles.
type Result struct {
	Cusps               [13]float64
	Ascendant           float64
	MC                  float64
	ARMC                float64
	Vertex              float64
	EquatorialAscendant float64
}

// Compute returns cusps and angles for the given sidereal angle of the
// meridian (ARMC), true obliquity and geographic latitude.
func Compute(sys System, armc, obliquity, latitude float64) (Result, error) {
	if !sys.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSystem, rune(sys))
	}
	if math.IsNaN(latitude) || math.Abs(latitude) >= 90 {
		return Result{}, fmt.Errorf("%w: %f", ErrLatitude, latitude)
	}

	f := frame{armc: normalize(armc), eps: obliquity, lat: latitude}

	res := Result{
		ARMC:                f.armc,
		Ascendant:           f.ascendant(f.armc, f.lat),
		MC:                  f.mc(),
		EquatorialAscendant: f.ascendant(f.armc, 0),
	}
	// The vertex is the western intersection of the prime vertical with the
	// ecliptic, i.e. the ascendant at the co-latitude half a day away.
	coLat := 90 - latitude
	if latitude < 0 {
		coLat = -90 - latitude
	}
	res.Vertex = f.ascendant(f.armc-180, coLat)

	var err error
	switch sys {
	case Placidus:
		err = f.placidus(&res)
	case Regiomontanus:
		f.regiomontanus(&res)
	case Campanus:
		f.campanus(&res)
	case Porphyry:
		f.porphyry(&res)
	case Equal, EqualAsc:
		for i := 1; i <= 12; i++ {
			res.Cusps[i] = normalize(res.Ascendant + float64(i-1)*30)
		}
	case WholeSign:
		first := math.Floor(res.Ascendant/30) * 30
		for i := 1; i <= 12; i++ {
			res.Cusps[i] = normalize(first + float64(i-1)*30)
		}
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// HouseOf returns the house (1..12) containing the ecliptic longitude lon.
func (r Result) HouseOf(lon float64) int {
	lon = normalize(lon)
	for i := 1; i <= 12; i++ {
		next := i%12 + 1
		start, end := r.Cusps[i], r.Cusps[next]
		span := normalize(end - start)
		if normalize(lon-start) < span {
			return i
		}
	}
	return 12
}

// fillOpposites sets cusps 1, 4, 7, 10 from the angles and mirrors cusps
// 11, 12, 2, 3 onto 5, 6, 8, 9.
func (r *Result) fillOpposites() {
	r.Cusps[1] = r.Ascendant
	r.Cusps[10] = r.MC
	r.Cusps[4] = normalize(r.MC + 180)
	r.Cusps[7] = normalize(r.Ascendant + 180)
	r.Cusps[5] = normalize(r.Cusps[11] + 180)
	r.Cusps[6] = normalize(r.Cusps[12] + 180)
	r.Cusps[8] = normalize(r.Cusps[2] + 180)
	r.Cusps[9] = normalize(r.Cusps[3] + 180)
}

func normalize(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
