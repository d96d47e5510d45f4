package ephemeris

import (
	"errors"
	"math"
	"sync"
	"testing"

	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats/scalar"
)

var birthJD = JulDay(1961, 8, 5, 5.4, Gregorian)

func angleDiff(a, b float64) float64 {
	return math.Abs(angleDelta(a, b))
}

func TestCalcUTAnalyticBodies(t *testing.T) {
	p := NewMeeusProvider("", nil)

	tests := []struct {
		body      Body
		longitude float64
		tolerance float64
		source    Source
	}{
		{Sun, 132.5498, 0.02, SourceSolar},
		{Moon, 63.35, 0.1, SourceMoon},
		{MeanNode, 147.892, 0.02, SourceMoon},
		{TrueNode, 147.892, 2.0, SourceMoon},
	}

	for _, tt := range tests {
		t.Run(BodyName(tt.body), func(t *testing.T) {
			pos, err := p.CalcUT(birthJD, tt.body, FlagSpeed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d := angleDiff(pos.Longitude, tt.longitude); d > tt.tolerance {
				t.Errorf("longitude = %.6f, expected %.4f ±%.2f", pos.Longitude, tt.longitude, tt.tolerance)
			}
			if pos.Source != tt.source {
				t.Errorf("source = %q, expected %q", pos.Source, tt.source)
			}
			if pos.Flags != FlagSpeed {
				t.Errorf("flags = %d, expected %d", pos.Flags, FlagSpeed)
			}
		})
	}
}

func TestCalcUTSpeeds(t *testing.T) {
	p := NewMeeusProvider("", nil)

	tests := []struct {
		body       Body
		min, max   float64
		retrograde bool
	}{
		{Sun, 0.95, 0.97, false},
		{Moon, 11.5, 15.5, false},
		{MeanNode, -0.06, -0.05, true},
	}
	for _, tt := range tests {
		t.Run(BodyName(tt.body), func(t *testing.T) {
			pos, err := p.CalcUT(birthJD, tt.body, FlagSpeed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pos.LongitudeSpeed < tt.min || pos.LongitudeSpeed > tt.max {
				t.Errorf("speed = %.6f, expected in [%.2f, %.2f]", pos.LongitudeSpeed, tt.min, tt.max)
			}
			if pos.Retrograde() != tt.retrograde {
				t.Errorf("Retrograde() = %v, expected %v", pos.Retrograde(), tt.retrograde)
			}
		})
	}

	t.Run("no speed without the flag", func(t *testing.T) {
		pos, err := p.CalcUT(birthJD, Moon, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v := pos.Vector(); v[3] != 0 || v[4] != 0 || v[5] != 0 {
			t.Errorf("speeds = %v, expected zeros", v[3:])
		}
	})
}

func TestCalcUTDistances(t *testing.T) {
	p := NewMeeusProvider("", nil)

	sun, err := p.CalcUT(birthJD, Sun, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sun.Distance < 1.01 || sun.Distance > 1.02 {
		t.Errorf("Sun distance = %f AU, expected ~1.0144", sun.Distance)
	}

	moon, err := p.CalcUT(birthJD, Moon, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moon.Distance < 0.0023 || moon.Distance > 0.0028 {
		t.Errorf("Moon distance = %f AU, expected 0.0023..0.0028", moon.Distance)
	}
	if math.Abs(moon.Latitude) > 5.5 {
		t.Errorf("Moon latitude = %f, expected within ±5.5°", moon.Latitude)
	}
}

func TestCalcUTFlags(t *testing.T) {
	p := NewMeeusProvider("", nil)

	apparent, err := p.CalcUT(birthJD, Sun, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	geometric, err := p.CalcUT(birthJD, Sun, FlagTruePos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// aberration moves the Sun back by about 20.5"
	if d := angleDelta(geometric.Longitude, apparent.Longitude) * 3600; d < 19 || d > 22 {
		t.Errorf("aberration = %.2f\", expected ~20.5\"", d)
	}

	mean, err := p.CalcUT(birthJD, Sun, FlagNoNutation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := math.Abs(angleDelta(apparent.Longitude, mean.Longitude)) * 3600; d > 20 {
		t.Errorf("nutation in longitude = %.2f\", expected under 20\"", d)
	}
}

func TestCalcUTFailures(t *testing.T) {
	p := NewMeeusProvider("", nil)

	t.Run("planet without data files", func(t *testing.T) {
		for _, body := range []Body{Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune} {
			_, err := p.CalcUT(birthJD, body, FlagSpeed)
			if KindOf(err) != KindDataUnavailable {
				t.Errorf("%s: err = %v, expected data unavailable", BodyName(body), err)
			}
			if Code(err) >= 0 {
				t.Errorf("%s: code = %d, expected negative", BodyName(body), Code(err))
			}
			if err != nil && err.Error() == "" {
				t.Errorf("%s: empty diagnostic", BodyName(body))
			}
		}
	})

	t.Run("unknown body", func(t *testing.T) {
		_, err := p.CalcUT(birthJD, Body(42), 0)
		if KindOf(err) != KindUnknownBody {
			t.Errorf("err = %v, expected unknown body", err)
		}
	})

	t.Run("pluto outside its theory", func(t *testing.T) {
		_, err := p.CalcUT(JulDay(1800, 1, 1, 0, Gregorian), Pluto, 0)
		if KindOf(err) != KindOutOfRange {
			t.Errorf("err = %v, expected out of range", err)
		}
	})

	t.Run("invalid julian day", func(t *testing.T) {
		_, err := p.CalcUT(math.NaN(), Sun, 0)
		if KindOf(err) != KindInvalidInput {
			t.Errorf("err = %v, expected invalid input", err)
		}
	})

	t.Run("empty ephemeris path", func(t *testing.T) {
		bp := NewMeeusProvider(t.TempDir(), nil)
		_, err := bp.CalcUT(birthJD, Mars, 0)
		var e *Error
		if !errors.As(err, &e) || e.Kind != KindDataUnavailable {
			t.Fatalf("err = %v, expected data unavailable", err)
		}
		// the Sun falls back to the analytic theory
		sun, err := bp.CalcUT(birthJD, Sun, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sun.Source != SourceSolar {
			t.Errorf("source = %q, expected %q", sun.Source, SourceSolar)
		}
	})
}

// circularOrbit moves uniformly on a circle in the ecliptic plane, the same
// for the equinox of date and J2000.
type circularOrbit struct {
	jde0   float64
	lon0   float64 // degrees at jde0
	rate   float64 // degrees per day
	radius float64 // AU
}

func (o circularOrbit) Position(jde float64) (unit.Angle, unit.Angle, float64) {
	return unit.AngleFromDeg(o.lon0 + o.rate*(jde-o.jde0)), 0, o.radius
}

func (o circularOrbit) Position2000(jde float64) (unit.Angle, unit.Angle, float64) {
	return o.Position(jde)
}

// Earth at longitude 0 and Venus at quadrature put the geocentric Venus at
// atan2(0.72, -1) with the Sun at 180 degrees.
func TestCalcUTPlanetPipeline(t *testing.T) {
	jd := JulDay(1992, 12, 20, 0, Gregorian)
	jde := jd + deltaT(jd)

	newProvider := func(venusRate float64) *MeeusProvider {
		p := NewMeeusProvider("", nil)
		p.planets[pp.Earth] = circularOrbit{jde0: jde, radius: 1}
		p.planets[pp.Venus] = circularOrbit{jde0: jde, lon0: 90, rate: venusRate, radius: 0.72}
		return p
	}

	tests := []struct {
		name      string
		venusRate float64
		flags     Flags
		longitude float64
		distance  float64
	}{
		{"geometric", 1.6, FlagTruePos | FlagNoNutation, 144.2461127, 1.2322337},
		{"aberration only for a stationary planet", 0, FlagNoNutation, 144.2414925, 1.2322337},
		{"light time and aberration", 1.6, FlagNoNutation, 144.2376057, 1.2321176},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := newProvider(tt.venusRate).CalcUT(jd, Venus, tt.flags)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d := angleDiff(pos.Longitude, tt.longitude); d > 1e-6 {
				t.Errorf("longitude = %.7f, expected %.7f", pos.Longitude, tt.longitude)
			}
			if math.Abs(pos.Latitude) > 1e-9 {
				t.Errorf("latitude = %g, expected 0", pos.Latitude)
			}
			if !scalar.EqualWithinAbs(pos.Distance, tt.distance, 1e-6) {
				t.Errorf("distance = %.7f, expected %.7f", pos.Distance, tt.distance)
			}
			if pos.Source != SourceVSOP87 {
				t.Errorf("source = %q, expected %q", pos.Source, SourceVSOP87)
			}
		})
	}

	t.Run("sun from loaded earth", func(t *testing.T) {
		sun, err := newProvider(0).CalcUT(jd, Sun, FlagTruePos|FlagNoNutation)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if angleDiff(sun.Longitude, 180) > 1e-9 || sun.Source != SourceVSOP87 {
			t.Errorf("Sun = %.7f from %q, expected 180 from VSOP87", sun.Longitude, sun.Source)
		}
	})
}

// 1992 Oct 13.0 TD: astrometric J2000 RA 15h31m43.8s, Dec -4°27'29" is
// ecliptic 231.6954, 14.1890, or 231.5946 for the equinox of date.
func TestCalcUTPluto(t *testing.T) {
	jde := 2448908.5
	jd := jde - deltaT(jde)

	tests := []struct {
		name string
		p    *MeeusProvider
	}{
		{"solar theory earth", NewMeeusProvider("", nil)},
		{"missing data files", NewMeeusProvider(t.TempDir(), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := tt.p.CalcUT(jd, Pluto, FlagSpeed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// nutation and aberration stay under 40"
			if d := angleDiff(pos.Longitude, 231.5946); d > 0.015 {
				t.Errorf("longitude = %.6f, expected ~231.5946", pos.Longitude)
			}
			if math.Abs(pos.Latitude-14.1890) > 0.01 {
				t.Errorf("latitude = %.6f, expected ~14.1890", pos.Latitude)
			}
			if pos.Distance < 29.5 || pos.Distance > 31 {
				t.Errorf("distance = %f AU, expected ~30.5", pos.Distance)
			}
			if math.Abs(pos.LongitudeSpeed) > 0.05 {
				t.Errorf("speed = %f, expected under 0.05 deg/day", pos.LongitudeSpeed)
			}
			if pos.Source != SourcePluto {
				t.Errorf("source = %q, expected %q", pos.Source, SourcePluto)
			}
		})
	}
}

func TestHouses(t *testing.T) {
	p := NewMeeusProvider("", nil)

	h, err := p.Houses(birthJD, 0, 21.3, -157.86666667, 'P')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := angleDiff(h.Ascendant, 318.0458); d > 0.02 {
		t.Errorf("Ascendant = %.6f, expected ~318.0458", h.Ascendant)
	}
	if d := angleDiff(h.MC, 238.8878); d > 0.02 {
		t.Errorf("MC = %.6f, expected ~238.8878", h.MC)
	}
	if h.Cusps[1] != h.Ascendant || h.Cusps[10] != h.MC {
		t.Errorf("cusp 1/10 = %f/%f, expected ascendant/MC %f/%f", h.Cusps[1], h.Cusps[10], h.Ascendant, h.MC)
	}
	if h.Cusps[0] != 0 {
		t.Errorf("Cusps[0] = %f, expected unused zero", h.Cusps[0])
	}
	if HouseSystemName(h.System) != "Placidus" {
		t.Errorf("system name = %q", HouseSystemName(h.System))
	}
	if !scalar.EqualWithinAbs(h.Cusps[7], math.Mod(h.Ascendant+180, 360), 1e-9) {
		t.Errorf("cusp 7 = %f, expected opposite of ascendant", h.Cusps[7])
	}
}

func TestHousesFailures(t *testing.T) {
	p := NewMeeusProvider("", nil)

	tests := []struct {
		name   string
		lat    float64
		lon    float64
		system HouseSystem
		kind   ErrorKind
	}{
		{"unknown system", 21.3, -157.86666667, 'Z', KindUnknownHouseSystem},
		{"placidus above the arctic circle", 78.2, 15.6, 'P', KindPolarCircle},
		{"latitude out of range", 91, 0, 'P', KindInvalidInput},
		{"longitude out of range", 0, 180, 'P', KindInvalidInput},
		{"pole", 90, 0, 'E', KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := p.Houses(birthJD, 0, tt.lat, tt.lon, tt.system)
			if KindOf(err) != tt.kind {
				t.Fatalf("err = %v (kind %v), expected %v", err, KindOf(err), tt.kind)
			}
			if Code(err) != ERR {
				t.Errorf("code = %d, expected %d", Code(err), ERR)
			}
			if h != (Houses{}) {
				t.Errorf("expected zero Houses on failure, got %+v", h)
			}
		})
	}
}

func TestProviderConcurrentUse(t *testing.T) {
	p := NewMeeusProvider(t.TempDir(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := FirstBody; b <= LastBody; b++ {
				p.CalcUT(birthJD, b, FlagSpeed)
			}
		}()
	}
	wg.Wait()
}

func TestBodies(t *testing.T) {
	bodies := Bodies()
	if len(bodies) != 12 {
		t.Fatalf("len(Bodies()) = %d, expected 12", len(bodies))
	}
	for i, b := range bodies {
		if int(b) != i {
			t.Errorf("Bodies()[%d] = %d", i, b)
		}
	}
	if b, ok := ParseBody("TRUE node"); !ok || b != TrueNode {
		t.Errorf("ParseBody(\"TRUE node\") = %v, %v", b, ok)
	}
	if _, ok := ParseBody("vulcan"); ok {
		t.Error("ParseBody(\"vulcan\") succeeded")
	}
	if BodyName(Body(-1)) != "unknown" {
		t.Errorf("BodyName(-1) = %q", BodyName(Body(-1)))
	}
}
