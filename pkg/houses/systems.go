package houses

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	deg = math.Pi / 180

	placidusMaxIter   = 100
	placidusTolerance = 1e-10
)

// frame carries the sidereal angle of the meridian, obliquity and latitude,
// all in degrees.
type frame struct {
	armc float64
	eps  float64
	lat  float64
}

// ascendant returns the ecliptic longitude rising at meridian angle theta
// for an observer at (pole) latitude phi.
func (f frame) ascendant(theta, phi float64) float64 {
	t := theta * deg
	e := f.eps * deg
	y := math.Cos(t)
	x := -(math.Sin(t)*math.Cos(e) + math.Tan(phi*deg)*math.Sin(e))
	return normalize(math.Atan2(y, x) / deg)
}

func (f frame) mc() float64 {
	return f.longitudeOfRA(f.armc)
}

// longitudeOfRA returns the ecliptic longitude of the ecliptic point with
// right ascension ra.
func (f frame) longitudeOfRA(ra float64) float64 {
	r := ra * deg
	return normalize(math.Atan2(math.Sin(r), math.Cos(r)*math.Cos(f.eps*deg)) / deg)
}

func (f frame) declinationOf(lon float64) float64 {
	return math.Asin(math.Sin(f.eps*deg)*math.Sin(lon*deg)) / deg
}

// placidus trisects the diurnal and nocturnal semi-arcs of each cusp point.
func (f frame) placidus(res *Result) error {
	if math.Abs(f.lat) >= 90-f.eps {
		return fmt.Errorf("%w: latitude %.6f", ErrPolarCircle, f.lat)
	}

	type cusp struct {
		house int
		// fraction of the semi-arc and whether the point is above the horizon
		frac  float64
		upper bool
	}
	cusps := []cusp{
		{house: 11, frac: 1.0 / 3, upper: true},
		{house: 12, frac: 2.0 / 3, upper: true},
		{house: 2, frac: 2.0 / 3, upper: false},
		{house: 3, frac: 1.0 / 3, upper: false},
	}

	tanLat := math.Tan(f.lat * deg)
	for _, c := range cusps {
		var ra float64
		if c.upper {
			ra = f.armc + 90*c.frac
		} else {
			ra = f.armc + 180 - 90*c.frac
		}

		converged := false
		for i := 0; i < placidusMaxIter; i++ {
			dec := f.declinationOf(f.longitudeOfRA(ra))
			x := tanLat * math.Tan(dec*deg)
			if math.Abs(x) > 1 {
				return fmt.Errorf("%w: cusp %d has no semi-arc at latitude %.6f", ErrPolarCircle, c.house, f.lat)
			}
			ad := math.Asin(x) / deg

			var next float64
			if c.upper {
				next = f.armc + c.frac*(90+ad)
			} else {
				next = f.armc + 180 - c.frac*(90-ad)
			}
			if scalar.EqualWithinAbs(next, ra, placidusTolerance) {
				ra = next
				converged = true
				break
			}
			ra = next
		}
		if !converged {
			return fmt.Errorf("%w: cusp %d did not converge at latitude %.6f", ErrPolarCircle, c.house, f.lat)
		}
		res.Cusps[c.house] = f.longitudeOfRA(ra)
	}

	res.fillOpposites()
	return nil
}

// regiomontanus divides the celestial equator into equal arcs and projects
// them onto the ecliptic along circles through the horizon's north and south
// points.
func (f frame) regiomontanus(res *Result) {
	tanLat := math.Tan(f.lat * deg)
	for house, h := range map[int]float64{11: 30, 12: 60, 2: 120, 3: 150} {
		pole := math.Atan(tanLat*math.Sin(h*deg)) / deg
		res.Cusps[house] = f.ascendant(f.armc+h-90, pole)
	}
	res.fillOpposites()
}

// campanus divides the prime vertical into equal arcs.
func (f frame) campanus(res *Result) {
	cosLat := math.Cos(f.lat * deg)
	sinLat := math.Sin(f.lat * deg)
	for house, h := range map[int]float64{11: 30, 12: 60, 2: 120, 3: 150} {
		offset := math.Atan2(cosLat*math.Sin(h*deg), math.Cos(h*deg)) / deg
		pole := math.Asin(sinLat*math.Sin(h*deg)) / deg
		res.Cusps[house] = f.ascendant(f.armc+offset-90, pole)
	}
	res.fillOpposites()
}

// porphyry trisects the ecliptic arcs between the angles.
func (f frame) porphyry(res *Result) {
	ic := normalize(res.MC + 180)
	upper := normalize(res.Ascendant - res.MC)
	lower := normalize(ic - res.Ascendant)

	res.Cusps[11] = normalize(res.MC + upper/3)
	res.Cusps[12] = normalize(res.MC + 2*upper/3)
	res.Cusps[2] = normalize(res.Ascendant + lower/3)
	res.Cusps[3] = normalize(res.Ascendant + 2*lower/3)
	res.fillOpposites()
}
