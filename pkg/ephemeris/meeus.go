package ephemeris

import (
	"math"
	"sync"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	pp "github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chrissnell/birthchart/pkg/houses"
)

const (
	kmPerAU             = 149597870.7
	lightDaysPerAU      = 0.0057755183
	aberrationConstant  = 20.49552 // arcseconds
	meanLunarDistanceAU = 0.002569555
	speedStep           = 0.01 // days, half-width of the central difference

	// Validity of the Meeus Pluto series, 1885-01-01 to 2099-12-31.
	plutoFirstJDE = 2409542.5
	plutoLastJDE  = 2488069.5
)

var vsopBodies = map[Body]int{
	Mercury: pp.Mercury,
	Venus:   pp.Venus,
	Mars:    pp.Mars,
	Jupiter: pp.Jupiter,
	Saturn:  pp.Saturn,
	Uranus:  pp.Uranus,
	Neptune: pp.Neptune,
}

// heliocentric is a planetary theory giving ecliptic L, B and R (AU), either
// for the equinox of date or for J2000. *pp.V87Planet implements it.
type heliocentric interface {
	Position(jde float64) (L, B unit.Angle, R float64)
	Position2000(jde float64) (L, B unit.Angle, R float64)
}

// MeeusProvider implements Provider on top of github.com/soniakeys/meeus.
// When no VSOP87 Earth is available the Sun and Pluto use the analytic solar
// theory for Earth's position; the Moon and the lunar nodes never need data
// files. Mercury through Neptune need the VSOP87B files under the ephemeris
// path.
//
// A MeeusProvider is safe for concurrent use.
type MeeusProvider struct {
	path   string
	logger *zap.SugaredLogger

	mu      sync.Mutex
	planets map[int]heliocentric
	loadErr map[int]error
}

// NewMeeusProvider creates a provider reading VSOP87B files from ephePath.
// An empty path disables the VSOP87 planets.
func NewMeeusProvider(ephePath string, logger *zap.SugaredLogger) *MeeusProvider {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MeeusProvider{
		path:    ephePath,
		logger:  logger,
		planets: make(map[int]heliocentric),
		loadErr: make(map[int]error),
	}
}

// EphemerisPath returns the directory the provider loads VSOP87 files from.
func (p *MeeusProvider) EphemerisPath() string {
	return p.path
}

func (p *MeeusProvider) planet(ibody int) (heliocentric, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.planets[ibody]; ok {
		return v, nil
	}
	if err, ok := p.loadErr[ibody]; ok {
		return nil, err
	}

	var err error
	if p.path == "" {
		err = newError(KindDataUnavailable, nil, "no ephemeris path configured for VSOP87B.%s", vsopExt[ibody])
	} else {
		var v *pp.V87Planet
		v, err = pp.LoadPlanetPath(ibody, p.path)
		if err == nil {
			p.logger.Debugf("loaded VSOP87B.%s from %s", vsopExt[ibody], p.path)
			p.planets[ibody] = v
			return v, nil
		}
		err = newError(KindDataUnavailable, err, "VSOP87B.%s not readable in %s: %v", vsopExt[ibody], p.path, err)
	}
	p.logger.Warnf("ephemeris data unavailable: %v", err)
	p.loadErr[ibody] = err
	return nil, err
}

// CalcUT returns the apparent geocentric position of body at jd (UT).
func (p *MeeusProvider) CalcUT(jd float64, body Body, flags Flags) (Position, error) {
	if math.IsNaN(jd) || math.IsInf(jd, 0) {
		return Position{}, newError(KindInvalidInput, nil, "invalid Julian day %v", jd)
	}
	if !body.Valid() {
		return Position{}, newError(KindUnknownBody, nil, "illegal planet number %d", int(body))
	}

	jde := jd + deltaT(jd)
	pos, err := p.position(jde, body, flags)
	if err != nil {
		return Position{}, err
	}

	if flags&FlagSpeed != 0 {
		before, err := p.position(jde-speedStep, body, flags)
		if err != nil {
			return Position{}, err
		}
		after, err := p.position(jde+speedStep, body, flags)
		if err != nil {
			return Position{}, err
		}
		pos.LongitudeSpeed = angleDelta(after.Longitude, before.Longitude) / (2 * speedStep)
		pos.LatitudeSpeed = (after.Latitude - before.Latitude) / (2 * speedStep)
		pos.DistanceSpeed = (after.Distance - before.Distance) / (2 * speedStep)
	}
	pos.Flags = flags
	return pos, nil
}

// position computes the position at a dynamical time jde, without speeds.
func (p *MeeusProvider) position(jde float64, body Body, flags Flags) (Position, error) {
	var (
		lon, lat unit.Angle
		dist     float64
		sunLon   unit.Angle
		aberrate bool
		source   Source
	)

	switch body {
	case Sun:
		if earth, err := p.planet(pp.Earth); err == nil {
			l0, b0, r0 := earth.Position(jde)
			lon, lat, dist = l0+math.Pi, -b0, r0
			source = SourceVSOP87
		} else {
			T := base.J2000Century(jde)
			lon, _ = solar.True(T)
			dist = solar.Radius(T)
			source = SourceSolar
		}
		// light time for the Sun reduces to the aberration term
		if flags&FlagTruePos == 0 {
			lon -= unit.AngleFromSec(20.4898 / dist)
		}

	case Moon:
		var km float64
		lon, lat, km = moonposition.Position(jde)
		dist = km / kmPerAU
		source = SourceMoon

	case MeanNode:
		lon, dist, source = moonposition.Node(jde), meanLunarDistanceAU, SourceMoon

	case TrueNode:
		lon, dist, source = moonposition.TrueNode(jde), meanLunarDistanceAU, SourceMoon

	case Pluto:
		if jde < plutoFirstJDE || jde > plutoLastJDE {
			return Position{}, newError(KindOutOfRange, nil, "jd %f outside Pluto theory range 1885-2099", jde)
		}
		l0, b0, r0, sun := p.earth2000(jde)
		v := geocentric(toVec(l0, b0, r0), flags, pluto.Heliocentric, jde)
		ecl := &coord.Ecliptic{}
		ecl.Lon, ecl.Lat, dist = fromVec(v)
		precess.NewEclipticPrecessor(2000, base.JDEToJulianYear(jde)).Precess(ecl, ecl)
		lon, lat = ecl.Lon, ecl.Lat
		sunLon, aberrate = sun, true
		source = SourcePluto

	default:
		ibody, ok := vsopBodies[body]
		if !ok {
			return Position{}, newError(KindUnknownBody, nil, "illegal planet number %d", int(body))
		}
		earth, err := p.planet(pp.Earth)
		if err != nil {
			return Position{}, err
		}
		planet, err := p.planet(ibody)
		if err != nil {
			return Position{}, err
		}
		l0, b0, r0 := earth.Position(jde)
		v := geocentric(toVec(l0, b0, r0), flags, planet.Position, jde)
		lon, lat, dist = fromVec(v)
		sunLon, aberrate = l0+math.Pi, true
		source = SourceVSOP87
	}

	if aberrate && flags&FlagTruePos == 0 {
		lon, lat = aberration(lon, lat, sunLon)
	}
	if flags&FlagNoNutation == 0 {
		dpsi, _ := nutation.Nutation(jde)
		lon += dpsi
	}

	return Position{
		Longitude: unit.PMod(lon.Deg(), 360),
		Latitude:  lat.Deg(),
		Distance:  dist,
		Source:    source,
	}, nil
}

// earth2000 returns Earth's heliocentric position on the J2000 ecliptic and
// the geometric longitude of the Sun for the equinox of date. Without VSOP87
// data Earth comes from the solar theory, precessed back to J2000.
func (p *MeeusProvider) earth2000(jde float64) (l, b unit.Angle, r float64, sunLon unit.Angle) {
	if earth, err := p.planet(pp.Earth); err == nil {
		ld, _, _ := earth.Position(jde)
		l, b, r = earth.Position2000(jde)
		return l, b, r, ld + math.Pi
	}
	T := base.J2000Century(jde)
	s, _ := solar.True(T)
	ecl := &coord.Ecliptic{Lon: s + math.Pi}
	precess.NewEclipticPrecessor(base.JDEToJulianYear(jde), 2000).Precess(ecl, ecl)
	return ecl.Lon, ecl.Lat, solar.Radius(T), s
}

// Houses computes cusps and angles for jd (UT) at latitude lat, longitude lon.
func (p *MeeusProvider) Houses(jd float64, flags Flags, lat, lon float64, system HouseSystem) (Houses, error) {
	if math.IsNaN(jd) || math.IsInf(jd, 0) {
		return Houses{}, newError(KindInvalidInput, nil, "invalid Julian day %v", jd)
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Houses{}, newError(KindInvalidInput, nil, "latitude %f outside -90..90", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon >= 180 {
		return Houses{}, newError(KindInvalidInput, nil, "longitude %f outside -180..180", lon)
	}
	if !system.Valid() {
		return Houses{}, newError(KindUnknownHouseSystem, houses.ErrUnknownSystem, "unknown house system %q", rune(system))
	}

	jde := jd + deltaT(jd)
	_, deps := nutation.Nutation(jde)
	eps := nutation.MeanObliquity(jde)

	var st unit.Time
	if flags&FlagNoNutation != 0 {
		st = sidereal.Mean(jd)
	} else {
		st = sidereal.Apparent(jd)
		eps += deps
	}

	// 240 seconds of sidereal time per degree
	armc := float64(st)/240 + lon

	res, err := houses.Compute(system, armc, eps.Deg(), lat)
	if err != nil {
		return Houses{}, houseError(err)
	}
	return Houses{
		System:              system,
		Cusps:               res.Cusps,
		Ascendant:           res.Ascendant,
		MC:                  res.MC,
		ARMC:                res.ARMC,
		Vertex:              res.Vertex,
		EquatorialAscendant: res.EquatorialAscendant,
	}, nil
}

// geocentric returns the geocentric vector of a body given Earth's
// heliocentric vector, correcting for light time unless FlagTruePos is set.
func geocentric(earth r3.Vec, flags Flags, helio func(jde float64) (unit.Angle, unit.Angle, float64), jde float64) r3.Vec {
	tau := 0.0
	var v r3.Vec
	for i := 0; i < 3; i++ {
		l, b, r := helio(jde - tau)
		v = r3.Sub(toVec(l, b, r), earth)
		if flags&FlagTruePos != 0 {
			break
		}
		tau = lightDaysPerAU * r3.Norm(v)
	}
	return v
}

// aberration applies the annual aberration to ecliptic coordinates, ignoring
// the small terms in the eccentricity of Earth's orbit.
func aberration(lon, lat, sunLon unit.Angle) (unit.Angle, unit.Angle) {
	k := unit.AngleFromSec(aberrationConstant)
	d := (sunLon - lon).Rad()
	dLon := unit.Angle(-k.Rad() * math.Cos(d) / math.Cos(lat.Rad()))
	dLat := unit.Angle(-k.Rad() * math.Sin(lat.Rad()) * math.Sin(d))
	return lon + dLon, lat + dLat
}

func toVec(l, b unit.Angle, r float64) r3.Vec {
	sb, cb := math.Sincos(b.Rad())
	sl, cl := math.Sincos(l.Rad())
	return r3.Vec{X: r * cb * cl, Y: r * cb * sl, Z: r * sb}
}

func fromVec(v r3.Vec) (lon, lat unit.Angle, dist float64) {
	dist = r3.Norm(v)
	lon = unit.Angle(math.Atan2(v.Y, v.X))
	lat = unit.Angle(math.Atan2(v.Z, math.Hypot(v.X, v.Y)))
	return lon, lat, dist
}

// angleDelta returns a-b in degrees wrapped to (-180, 180].
func angleDelta(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
