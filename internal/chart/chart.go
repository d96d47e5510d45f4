// Package chart drives an ephemeris.Provider to build a birth chart: the
// Julian day, one row per body from the Sun to the true node, and the house
// cusps with the ascendant and MC.
package chart

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/birthchart/pkg/aspects"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/houses"
	"github.com/chrissnell/birthchart/pkg/lunar"
)

// ErrInvalidInput is wrapped by every Input validation failure.
var ErrInvalidInput = errors.New("invalid chart input")

// Input is everything needed to cast a chart. Times are UT; any time zone
// conversion happens before a value reaches this type.
type Input struct {
	Subject     string             `json:"subject,omitempty" yaml:"subject"`
	Year        int                `json:"year" yaml:"year"`
	Month       int                `json:"month" yaml:"month"`
	Day         int                `json:"day" yaml:"day"`
	Hour        float64            `json:"hour" yaml:"hour"`
	Calendar    ephemeris.Calendar `json:"calendar" yaml:"calendar"`
	Latitude    float64            `json:"latitude" yaml:"latitude"`
	Longitude   float64            `json:"longitude" yaml:"longitude"`
	HouseSystem houses.System      `json:"house_system" yaml:"house_system"`
}

// DefaultInput is Honolulu, 1961-08-05 05:24 UT, Placidus houses.
func DefaultInput() Input {
	return Input{
		Year:        1961,
		Month:       8,
		Day:         5,
		Hour:        5.4,
		Calendar:    ephemeris.Gregorian,
		Latitude:    21.3,
		Longitude:   -157.86666667,
		HouseSystem: houses.Placidus,
	}
}

// Validate checks the ranges of every field.
func (in Input) Validate() error {
	switch {
	case in.Month < 1 || in.Month > 12:
		return fmt.Errorf("%w: month %d outside 1..12", ErrInvalidInput, in.Month)
	case in.Day < 1 || in.Day > 31:
		return fmt.Errorf("%w: day %d outside 1..31", ErrInvalidInput, in.Day)
	case math.IsNaN(in.Hour) || in.Hour < 0 || in.Hour >= 24:
		return fmt.Errorf("%w: hour %v outside 0..<24", ErrInvalidInput, in.Hour)
	case math.IsNaN(in.Latitude) || in.Latitude < -90 || in.Latitude > 90:
		return fmt.Errorf("%w: latitude %v outside -90..90", ErrInvalidInput, in.Latitude)
	case math.IsNaN(in.Longitude) || in.Longitude < -180 || in.Longitude >= 180:
		return fmt.Errorf("%w: longitude %v outside -180..<180", ErrInvalidInput, in.Longitude)
	case !in.HouseSystem.Valid():
		return fmt.Errorf("%w: %w %q", ErrInvalidInput, houses.ErrUnknownSystem, in.HouseSystem.String())
	}
	return nil
}

// Time returns the input instant for Gregorian dates. Julian calendar dates
// go through the Julian day instead.
func (in Input) Time() time.Time {
	if in.Calendar == ephemeris.Julian {
		y, m, d, h := ephemeris.RevJul(ephemeris.JulDay(in.Year, in.Month, in.Day, in.Hour, in.Calendar))
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Add(time.Duration(h * float64(time.Hour)))
	}
	return time.Date(in.Year, time.Month(in.Month), in.Day, 0, 0, 0, 0, time.UTC).
		Add(time.Duration(in.Hour * float64(time.Hour)))
}

// Placement locates a body in the zodiac and the houses.
type Placement struct {
	Sign       Sign    `json:"sign"`
	SignDegree float64 `json:"sign_degree"`
	House      int     `json:"house,omitempty"`
	Retrograde bool    `json:"retrograde"`
}

// BodyResult is one body row: either a position or the diagnostic that
// explains why there is none.
type BodyResult struct {
	Body      ephemeris.Body     `json:"body"`
	Name      string             `json:"name"`
	Position  ephemeris.Position `json:"position"`
	Placement *Placement         `json:"placement,omitempty"`
	Code      int                `json:"code"`
	Error     string             `json:"error,omitempty"`
	Err       error              `json:"-"`
}

// OK reports whether the body has a position.
func (r BodyResult) OK() bool {
	return r.Code >= 0 && r.Error == ""
}

// Chart is the result of one driver run.
type Chart struct {
	ID        string            `json:"id,omitempty"`
	Input     Input             `json:"input"`
	JulianDay float64           `json:"julian_day"`
	Bodies    []BodyResult      `json:"bodies"`
	Houses    *ephemeris.Houses `json:"houses,omitempty"`
	Lunar     *lunar.Phase      `json:"lunar,omitempty"`
	Aspects   []aspects.Aspect  `json:"aspects,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Body returns the row for b, if present.
func (c *Chart) Body(b ephemeris.Body) (BodyResult, bool) {
	for _, r := range c.Bodies {
		if r.Body == b {
			return r, true
		}
	}
	return BodyResult{}, false
}

// Failed returns the rows without a position.
func (c *Chart) Failed() []BodyResult {
	var out []BodyResult
	for _, r := range c.Bodies {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Options tune Compute.
type Options struct {
	// Flags for body positions. Zero means ephemeris.DefaultFlags.
	Flags ephemeris.Flags
	// HouseFlags are passed to the house calculation.
	HouseFlags ephemeris.Flags
	// Orb is the maximum aspect orb. Zero means aspects.DefaultOrb.
	Orb float64
}

// Compute casts the chart for in. Every body gets a row in enumeration
// order; a failing body keeps its diagnostic and the loop continues. A
// house failure ends the run: the returned chart then holds the body rows
// but no houses, and the error carries the diagnostic.
func Compute(p ephemeris.Provider, in Input, opts Options) (*Chart, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	flags := opts.Flags
	if flags == 0 {
		flags = ephemeris.DefaultFlags
	}

	c := &Chart{
		Input:     in,
		JulianDay: ephemeris.JulDay(in.Year, in.Month, in.Day, in.Hour, in.Calendar),
		Bodies:    make([]BodyResult, 0, ephemeris.LastBody-ephemeris.FirstBody+1),
	}

	for _, b := range ephemeris.Bodies() {
		row := BodyResult{Body: b, Name: ephemeris.BodyName(b)}
		pos, err := p.CalcUT(c.JulianDay, b, flags)
		if err != nil {
			row.Code = ephemeris.Code(err)
			if row.Code >= 0 {
				row.Code = ephemeris.ERR
			}
			row.Error = diagnostic(err)
			row.Err = err
		} else {
			row.Position = pos
		}
		c.Bodies = append(c.Bodies, row)
	}

	h, err := p.Houses(c.JulianDay, opts.HouseFlags, in.Latitude, in.Longitude, in.HouseSystem)
	if err != nil {
		return c, fmt.Errorf("house calculation failed, iret=%d: %w", ephemeris.Code(err), err)
	}
	c.Houses = &h

	c.place()
	c.lunarPhase()
	c.Aspects = aspects.Compute(c.longitudes(), opts.Orb)
	return c, nil
}

func diagnostic(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

func (c *Chart) place() {
	for i := range c.Bodies {
		r := &c.Bodies[i]
		if !r.OK() {
			continue
		}
		sign, deg := SignOf(r.Position.Longitude)
		pl := &Placement{Sign: sign, SignDegree: deg, Retrograde: r.Position.Retrograde()}
		if c.Houses != nil {
			pl.House = c.Houses.HouseOf(r.Position.Longitude)
		}
		r.Placement = pl
	}
}

func (c *Chart) lunarPhase() {
	sun, ok := c.Body(ephemeris.Sun)
	if !ok || !sun.OK() {
		return
	}
	moon, ok := c.Body(ephemeris.Moon)
	if !ok || !moon.OK() {
		return
	}
	phase := lunar.FromLongitudes(sun.Position.Longitude, moon.Position.Longitude)
	c.Lunar = &phase
}

// longitudes returns the successful bodies keyed by name. The true node is
// left out since it nearly coincides with the mean node.
func (c *Chart) longitudes() map[string]float64 {
	out := make(map[string]float64, len(c.Bodies))
	for _, r := range c.Bodies {
		if !r.OK() || r.Body == ephemeris.TrueNode {
			continue
		}
		out[r.Name] = r.Position.Longitude
	}
	return out
}
