// Package sgp4 implements the SGP4/SDP4 simplified perturbation theory for
// propagating mean orbital elements. States are immutable once built and
// Propagate has no side effects, so a State may be shared across goroutines.
package sgp4

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/star/tleprop/internal/orbit"
)

const (
	twoPi = 2 * math.Pi
	x2o3  = 2.0 / 3.0

	// deepSpacePeriod is the orbital period, in minutes, at or above which
	// the deep-space theory applies.
	deepSpacePeriod = 225.0

	temp4 = 1.5e-12
)

// Regime is the propagation theory chosen for a State.
type Regime int

const (
	NearEarth Regime = iota
	DeepSpace
)

func (r Regime) String() string {
	if r == DeepSpace {
		return "deep-space"
	}
	return "near-earth"
}

// Resonance classifies deep-space orbits that need resonance integration.
type Resonance int

const (
	NoResonance Resonance = iota
	Synchronous           // one-day period, geosynchronous
	HalfDay               // twelve-hour period with high eccentricity, Molniya-like
)

func (r Resonance) String() string {
	switch r {
	case Synchronous:
		return "synchronous"
	case HalfDay:
		return "half-day"
	}
	return "none"
}

// SingularCase flags the special branches a State takes.
type SingularCase uint8

const (
	// NearCircular drops the eccentricity-divided drag terms (e ≤ 1e-4).
	NearCircular SingularCase = 1 << iota
	// SimplifiedDrag truncates the drag polynomial (perigee below 220 km or
	// deep-space).
	SimplifiedDrag
	// RetrogradeEquatorial guards the 1/(1+cos i) long-period coefficient.
	RetrogradeEquatorial
	// LowInclination applies the Lyddane modification to deep-space
	// periodics (i < 0.2 rad).
	LowInclination
)

// State is an initialized propagator for one element set.
type State struct {
	el     orbit.Elements
	grav   Gravity
	mode   OpsMode
	regime Regime
	flags  SingularCase

	noUnkozai float64 // recovered mean motion, rad/min
	a         float64 // recovered semi-major axis, earth radii
	gsto      float64 // sidereal time at epoch, rad

	cosio, sinio        float64
	con41, x1mth2       float64
	x7thm1, eta, sinmao float64

	mdot, argpdot, nodedot float64

	cc1, cc4, cc5 float64
	d2, d3, d4    float64
	delmo, omgcof float64
	xmcof, nodecf float64
	t2cof, t3cof  float64
	t4cof, t5cof  float64
	xlcof, aycof  float64

	deep *deepSpace
}

// New initializes a propagator. It fails with *ElementsError when the
// recovered perigee lies below the Earth's surface or the state at epoch is
// not physical, and with a wrapped *orbit.RangeError for out-of-domain
// elements.
func New(el orbit.Elements, cfg Config) (*State, error) {
	if cfg.Gravity.XKE == 0 {
		return nil, errors.New("sgp4: config has no gravity model")
	}
	if err := el.Validate(); err != nil {
		return nil, fmt.Errorf("sgp4: %w", err)
	}

	g := cfg.Gravity
	s := &State{el: el, grav: g, mode: cfg.Mode}

	ecco := el.Eccentricity
	inclo := el.Inclination
	argpo := el.ArgPerigee
	bstar := el.BStar

	// Recover the original mean motion and semi-major axis.
	eccsq := ecco * ecco
	omeosq := 1 - eccsq
	rteosq := math.Sqrt(omeosq)
	s.cosio = math.Cos(inclo)
	cosio2 := s.cosio * s.cosio

	ak := math.Pow(g.XKE/el.MeanMotion, x2o3)
	d1 := 0.75 * g.J2 * (3*cosio2 - 1) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1 - del*del - del*(1.0/3.0+134*del*del/81))
	del = d1 / (adel * adel)
	s.noUnkozai = el.MeanMotion / (1 + del)

	ao := math.Pow(g.XKE/s.noUnkozai, x2o3)
	s.sinio = math.Sin(inclo)
	po := ao * omeosq
	con42 := 1 - 5*cosio2
	s.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1 - ecco)
	s.gsto = siderealTime(el.EpochDays, cfg.Mode)
	s.a = math.Pow(s.noUnkozai*g.TUMin, -x2o3)

	if rp < 1 {
		return nil, &ElementsError{
			CatalogNumber: el.CatalogNumber,
			Reason:        fmt.Sprintf("perigee %.1f km below the surface", (rp-1)*g.RadiusEarthKm),
		}
	}

	if ecco <= 1e-4 {
		s.flags |= NearCircular
	}
	if rp < 220/g.RadiusEarthKm+1 {
		s.flags |= SimplifiedDrag
	}

	// Atmospheric density parameters, lowered for perigees under 156 km.
	sfour := 78/g.RadiusEarthKm + 1
	qzms24temp := (120 - 78) / g.RadiusEarthKm
	perigee := (rp - 1) * g.RadiusEarthKm
	if perigee < 156 {
		sfour = perigee - 78
		if perigee < 98 {
			sfour = 20
		}
		qzms24temp = (120 - sfour) / g.RadiusEarthKm
		sfour = sfour/g.RadiusEarthKm + 1
	}
	qzms24 := qzms24temp * qzms24temp * qzms24temp * qzms24temp

	pinvsq := 1 / posq
	tsi := 1 / (ao - sfour)
	s.eta = ao * ecco * tsi
	etasq := s.eta * s.eta
	eeta := ecco * s.eta
	psisq := math.Abs(1 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * s.noUnkozai * (ao*(1+1.5*etasq+eeta*(4+etasq)) +
		0.375*g.J2*tsi/psisq*s.con41*(8+3*etasq*(8+etasq)))
	s.cc1 = bstar * cc2
	cc3 := 0.0
	if ecco > 1e-4 {
		cc3 = -2 * coef * tsi * g.J3OJ2 * s.noUnkozai * s.sinio / ecco
	}
	s.x1mth2 = 1 - cosio2
	s.cc4 = 2 * s.noUnkozai * coef1 * ao * omeosq *
		(s.eta*(2+0.5*etasq) + ecco*(0.5+2*etasq) -
			g.J2*tsi/(ao*psisq)*
				(-3*s.con41*(1-2*eeta+etasq*(1.5-0.5*eeta))+
					0.75*s.x1mth2*(2*etasq-eeta*(1+etasq))*math.Cos(2*argpo)))
	s.cc5 = 2 * coef1 * ao * omeosq * (1 + 2.75*(etasq+eeta) + eeta*etasq)

	// Secular rates from J2 and J4.
	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * g.J2 * pinvsq * s.noUnkozai
	temp2 := 0.5 * temp1 * g.J2 * pinvsq
	temp3 := -0.46875 * g.J4 * pinvsq * pinvsq * s.noUnkozai
	s.mdot = s.noUnkozai + 0.5*temp1*rteosq*s.con41 + 0.0625*temp2*rteosq*(13-78*cosio2+137*cosio4)
	s.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7-114*cosio2+395*cosio4) + temp3*(3-36*cosio2+49*cosio4)
	xhdot1 := -temp1 * s.cosio
	s.nodedot = xhdot1 + (0.5*temp2*(4-19*cosio2)+2*temp3*(3-7*cosio2))*s.cosio
	xpidot := s.argpdot + s.nodedot

	s.omgcof = bstar * cc3 * math.Cos(argpo)
	if ecco > 1e-4 {
		s.xmcof = -x2o3 * coef * bstar / eeta
	}
	s.nodecf = 3.5 * omeosq * xhdot1 * s.cc1
	s.t2cof = 1.5 * s.cc1
	s.xlcof, s.aycof = longPeriodCoefficients(g.J3OJ2, s.sinio, s.cosio)
	if math.Abs(s.cosio+1) <= temp4 {
		s.flags |= RetrogradeEquatorial
	}
	delmotemp := 1 + s.eta*math.Cos(el.MeanAnomaly)
	s.delmo = delmotemp * delmotemp * delmotemp
	s.sinmao = math.Sin(el.MeanAnomaly)
	s.x7thm1 = 7*cosio2 - 1

	s.regime = classifyRegime(twoPi / s.noUnkozai)
	if s.regime == DeepSpace {
		s.flags |= SimplifiedDrag
		if inclo < 0.2 {
			s.flags |= LowInclination
		}
		s.deep = initDeepSpace(s, eccsq, xpidot)
	}

	if s.flags&SimplifiedDrag == 0 {
		cc1sq := s.cc1 * s.cc1
		s.d2 = 4 * ao * tsi * cc1sq
		temp := s.d2 * tsi * s.cc1 / 3
		s.d3 = (17*ao + sfour) * temp
		s.d4 = 0.5 * temp * ao * tsi * (221*ao + 31*sfour) * s.cc1
		s.t3cof = s.d2 + 2*cc1sq
		s.t4cof = 0.25 * (3*s.d3 + s.cc1*(12*s.d2+10*cc1sq))
		s.t5cof = 0.2 * (3*s.d4 + 12*s.cc1*s.d3 + 6*s.d2*s.d2 + 15*cc1sq*(2*s.d2+cc1sq))
	}

	if _, err := s.Propagate(0); err != nil && !IsWarning(err) {
		return nil, &ElementsError{CatalogNumber: el.CatalogNumber, Reason: "state at epoch", Err: err}
	}
	return s, nil
}

// classifyRegime selects the theory from the period in minutes. The
// boundary value itself is deep-space.
func classifyRegime(periodMinutes float64) Regime {
	if periodMinutes >= deepSpacePeriod {
		return DeepSpace
	}
	return NearEarth
}

func longPeriodCoefficients(j3oj2, sinio, cosio float64) (xlcof, aycof float64) {
	den := 1 + cosio
	if math.Abs(den) <= temp4 {
		den = temp4
	}
	return -0.25 * j3oj2 * sinio * (3 + 5*cosio) / den, -0.5 * j3oj2 * sinio
}

// siderealTime returns Greenwich sidereal time in radians for an epoch given
// in days since 1949 December 31 00:00 UT.
func siderealTime(epoch float64, mode OpsMode) float64 {
	if mode == AFSPC {
		const (
			c1     = 1.72027916940703639e-2
			thgr70 = 1.7321343856509374
			fk5r   = 5.07551419432269442e-15
		)
		ts70 := epoch - 7305
		ds70 := math.Floor(ts70 + 1e-8)
		tfrac := ts70 - ds70
		gsto := math.Mod(thgr70+c1*ds70+(c1+twoPi)*tfrac+ts70*ts70*fk5r, twoPi)
		if gsto < 0 {
			gsto += twoPi
		}
		return gsto
	}
	return GMST(epoch + 2433281.5)
}

// GMST returns Greenwich mean sidereal time (IAU-82) in radians for a UT1
// Julian date.
func GMST(jdut1 float64) float64 {
	tut1 := (jdut1 - 2451545) / 36525
	temp := -6.2e-6*tut1*tut1*tut1 + 0.093104*tut1*tut1 +
		(876600*3600+8640184.812866)*tut1 + 67310.54841
	temp = math.Mod(temp*(math.Pi/180)/240, twoPi)
	if temp < 0 {
		temp += twoPi
	}
	return temp
}

// Elements returns the elements the state was built from.
func (s *State) Elements() orbit.Elements { return s.el }

// Gravity returns the geopotential constants in use.
func (s *State) Gravity() Gravity { return s.grav }

// Regime returns the theory selected at initialization.
func (s *State) Regime() Regime { return s.regime }

// Resonance returns the deep-space resonance class.
func (s *State) Resonance() Resonance {
	if s.deep == nil {
		return NoResonance
	}
	return s.deep.irez
}

// SingularCases reports which special-case branches are active.
func (s *State) SingularCases() SingularCase { return s.flags }

// RecoveredMeanMotion returns the Brouwer mean motion in rad/min.
func (s *State) RecoveredMeanMotion() float64 { return s.noUnkozai }

// SemiMajorAxis returns the recovered semi-major axis in km.
func (s *State) SemiMajorAxis() float64 { return s.a * s.grav.RadiusEarthKm }

// PerigeeAltitude returns the mean perigee height above the equatorial
// radius in km.
func (s *State) PerigeeAltitude() float64 {
	return (s.a*(1-s.el.Eccentricity) - 1) * s.grav.RadiusEarthKm
}

// ApogeeAltitude returns the mean apogee height above the equatorial radius
// in km.
func (s *State) ApogeeAltitude() float64 {
	return (s.a*(1+s.el.Eccentricity) - 1) * s.grav.RadiusEarthKm
}

// SiderealTimeAtEpoch returns the Greenwich sidereal angle at epoch, rad.
func (s *State) SiderealTimeAtEpoch() float64 { return s.gsto }

// PropagateTo propagates to an absolute time.
func (s *State) PropagateTo(t time.Time) (StateVector, error) {
	return s.Propagate(s.el.MinutesSinceEpoch(t))
}
