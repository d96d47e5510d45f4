package ephemeris

import (
	"github.com/soniakeys/meeus/v3/deltat"
)

// deltaT returns TT-UT in days for the given Julian day (UT). Inside
// 1620-2000 it interpolates the tabulated values; outside it falls back to
// the Espenak-Meeus polynomials.
func deltaT(jd float64) float64 {
	y, m, _, _ := RevJul(jd)
	year := float64(y) + (float64(m)-0.5)/12

	var sec float64
	switch {
	case year >= 1620 && year < 2000:
		sec = float64(deltat.Interp10A(jd))
	case year >= 2000 && year < 2005:
		t := year - 2000
		sec = 63.86 + 0.3345*t - 0.060374*t*t + 0.0017275*t*t*t +
			0.000651814*t*t*t*t + 0.00002373599*t*t*t*t*t
	case year >= 2005 && year < 2050:
		t := year - 2000
		sec = 62.92 + 0.32217*t + 0.005589*t*t
	case year >= 2050 && year < 2150:
		u := (year - 1820) / 100
		sec = -20 + 32*u*u - 0.5628*(2150-year)
	case year >= 500 && year < 1600:
		u := (year - 1000) / 100
		sec = 1574.2 - 556.01*u + 71.23472*u*u + 0.319781*u*u*u -
			0.8503463*u*u*u*u - 0.005050998*u*u*u*u*u + 0.0083572073*u*u*u*u*u*u
	case year >= 1600 && year < 1620:
		t := year - 1600
		sec = 120 - 0.9808*t - 0.01532*t*t + t*t*t/7129
	case year >= -500 && year < 500:
		u := year / 100
		sec = 10583.6 - 1014.41*u + 33.78311*u*u - 5.952053*u*u*u -
			0.1798452*u*u*u*u + 0.022174192*u*u*u*u*u + 0.0090316521*u*u*u*u*u*u
	default:
		u := (year - 1820) / 100
		sec = -20 + 32*u*u
	}
	return sec / 86400
}
