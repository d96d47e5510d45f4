package chart

import (
	"fmt"
	"math"
)

// Sign is a tropical zodiac sign, Aries through Pisces.
type Sign string

var signs = [12]Sign{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// SignOf returns the sign containing ecliptic longitude lon and the degree
// within it, 0 <= deg < 30.
func SignOf(lon float64) (Sign, float64) {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	i := int(lon / 30)
	if i > 11 {
		i = 11
	}
	return signs[i], lon - float64(i)*30
}

// Abbrev returns the three-letter abbreviation of s.
func (s Sign) Abbrev() string {
	if len(s) < 3 {
		return string(s)
	}
	return string(s[:3])
}

// FormatDMS renders a degree value within a sign, e.g. " 3°21'".
func FormatDMS(deg float64) string {
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	return fmt.Sprintf("%2d°%02d'", int(d), int(m))
}
