// Package ephemeris is the façade a chart driver talks to: Julian day
// conversion, geocentric body positions and house cusps. Positions are
// apparent, tropical, geocentric ecliptic coordinates of date. The numerical
// work is delegated to github.com/soniakeys/meeus/v3.
package ephemeris

import (
	"strings"

	"github.com/chrissnell/birthchart/pkg/houses"
)

// Body identifies a celestial body. Values are consecutive from Sun to
// TrueNode so callers can range over them.
type Body int

const (
	Sun Body = iota
	Moon
	Mercury
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
	Pluto
	MeanNode
	TrueNode
)

// FirstBody and LastBody bound the supported enumeration.
const (
	FirstBody = Sun
	LastBody  = TrueNode
)

var bodyNames = [...]string{
	Sun:      "Sun",
	Moon:     "Moon",
	Mercury:  "Mercury",
	Venus:    "Venus",
	Mars:     "Mars",
	Jupiter:  "Jupiter",
	Saturn:   "Saturn",
	Uranus:   "Uranus",
	Neptune:  "Neptune",
	Pluto:    "Pluto",
	MeanNode: "mean Node",
	TrueNode: "true Node",
}

// Bodies returns every body in enumeration order.
func Bodies() []Body {
	out := make([]Body, 0, LastBody-FirstBody+1)
	for b := FirstBody; b <= LastBody; b++ {
		out = append(out, b)
	}
	return out
}

// Valid reports whether b is within the supported enumeration.
func (b Body) Valid() bool {
	return b >= FirstBody && b <= LastBody
}

// BodyName returns the canonical name of b.
func BodyName(b Body) string {
	if !b.Valid() {
		return "unknown"
	}
	return bodyNames[b]
}

func (b Body) String() string {
	return BodyName(b)
}

// ParseBody looks a body up by its canonical name, case-insensitively.
func ParseBody(name string) (Body, bool) {
	for b := FirstBody; b <= LastBody; b++ {
		if strings.EqualFold(bodyNames[b], name) {
			return b, true
		}
	}
	return 0, false
}

// Calendar selects the calendar a date is expressed in.
type Calendar int

const (
	Gregorian Calendar = iota
	Julian
)

func (c Calendar) String() string {
	if c == Julian {
		return "julian"
	}
	return "gregorian"
}

// ParseCalendar accepts "gregorian", "julian" or their first letters. An
// empty string selects Gregorian.
func ParseCalendar(v string) (Calendar, error) {
	switch strings.ToLower(v) {
	case "", "g", "gregorian":
		return Gregorian, nil
	case "j", "julian":
		return Julian, nil
	}
	return 0, newError(KindInvalidInput, nil, "unknown calendar %q", v)
}

func (c Calendar) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Calendar) UnmarshalText(text []byte) error {
	cal, err := ParseCalendar(string(text))
	if err != nil {
		return err
	}
	*c = cal
	return nil
}

// Flags modify a position or house calculation.
type Flags int

const (
	// FlagSpeed requests daily motion in Position.
	FlagSpeed Flags = 1 << iota
	// FlagTruePos returns geometric positions without light time or aberration.
	FlagTruePos
	// FlagNoNutation refers positions and houses to the mean equinox of date.
	FlagNoNutation
)

// DefaultFlags is what the chart driver uses for body positions.
const DefaultFlags = FlagSpeed

// Source names the theory a position came from.
type Source string

const (
	SourceVSOP87 Source = "vsop87"
	SourceSolar  Source = "meeus-solar"
	SourceMoon   Source = "meeus-moon"
	SourcePluto  Source = "meeus-pluto"
)

// Position is the six-element coordinate vector of a body. Angles are in
// degrees, distance in AU, speeds per day.
type Position struct {
	Longitude      float64 `json:"longitude"`
	Latitude       float64 `json:"latitude"`
	Distance       float64 `json:"distance_au"`
	LongitudeSpeed float64 `json:"speed_deg_per_day"`
	LatitudeSpeed  float64 `json:"latitude_speed"`
	DistanceSpeed  float64 `json:"distance_speed"`
	Flags          Flags   `json:"flags"`
	Source         Source  `json:"source"`
}

// Retrograde reports apparent backward motion along the ecliptic.
func (p Position) Retrograde() bool {
	return p.LongitudeSpeed < 0
}

// Vector returns the position as the conventional six-element array.
func (p Position) Vector() [6]float64 {
	return [6]float64{p.Longitude, p.Latitude, p.Distance, p.LongitudeSpeed, p.LatitudeSpeed, p.DistanceSpeed}
}

// HouseSystem is the single-letter house system selector.
type HouseSystem = houses.System

// HouseSystemName returns the display name for a selector.
func HouseSystemName(s HouseSystem) string {
	return s.Name()
}

// Houses is the result of a house calculation. Cusps is 1-indexed.
type Houses struct {
	System              HouseSystem `json:"system"`
	Cusps               [13]float64 `json:"cusps"`
	Ascendant           float64     `json:"ascendant"`
	MC                  float64     `json:"mc"`
	ARMC                float64     `json:"armc"`
	Vertex              float64     `json:"vertex"`
	EquatorialAscendant float64     `json:"equatorial_ascendant"`
}

// HouseOf returns the house (1..12) containing ecliptic longitude lon.
func (h Houses) HouseOf(lon float64) int {
	return houses.Result{Cusps: h.Cusps}.HouseOf(lon)
}

// Provider is the ephemeris façade consumed by the chart driver.
type Provider interface {
	// CalcUT returns the position of body at Julian day jd (UT).
	CalcUT(jd float64, body Body, flags Flags) (Position, error)
	// Houses returns house cusps and angles for jd (UT) at the given place.
	Houses(jd float64, flags Flags, lat, lon float64, system HouseSystem) (Houses, error)
}
