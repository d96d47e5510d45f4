package ephemeris

import (
	"math"

	"github.com/soniakeys/meeus/v3/julian"
)

// JulDay converts a calendar date and a decimal UT hour to a Julian day.
// Years use astronomical numbering (year 0 is 1 BC). The result is a pure
// function of its inputs.
func JulDay(year, month, day int, hour float64, cal Calendar) float64 {
	d := float64(day) + hour/24
	if cal == Julian {
		return julian.CalendarJulianToJD(year, month, d)
	}
	return julian.CalendarGregorianToJD(year, month, d)
}

// RevJul converts a Julian day back to a calendar date and decimal hour.
// Dates before 1582-10-15 are returned in the Julian calendar.
func RevJul(jd float64) (year, month, day int, hour float64) {
	y, m, d := julian.JDToCalendar(jd)
	whole := math.Floor(d)
	return y, m, int(whole), (d - whole) * 24
}
