package sgp4

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	keplerMaxIterations = 10
	keplerTolerance     = 1e-12
	keplerMaxStep       = 0.95
)

// StateVector is a position and velocity in the TEME frame.
type StateVector struct {
	Tsince     float64 // minutes from epoch
	Position   r3.Vec  // km
	Velocity   r3.Vec  // km/s
	Iterations int     // Kepler iterations used
}

// Propagate computes the state tsince minutes from epoch (negative values
// propagate backwards). It is pure: repeated calls with the same argument
// return identical vectors regardless of call order.
//
// A *ConvergenceWarning is returned together with a usable vector when the
// Kepler solver exhausts its iteration cap. A *PropagationError is returned
// for non-physical states; for Decayed the vector is still filled in.
func (s *State) Propagate(tsince float64) (StateVector, error) {
	g := &s.grav
	el := &s.el
	t := tsince

	// Secular gravity and atmospheric drag.
	xmdf := el.MeanAnomaly + s.mdot*t
	argpdf := el.ArgPerigee + s.argpdot*t
	nodedf := el.RAAN + s.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + s.nodecf*t2
	tempa := 1 - s.cc1*t
	tempe := el.BStar * s.cc4 * t
	templ := s.t2cof * t2

	if s.flags&SimplifiedDrag == 0 {
		delomg := s.omgcof * t
		delmtemp := 1 + s.eta*math.Cos(xmdf)
		delm := s.xmcof * (delmtemp*delmtemp*delmtemp - s.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - s.d2*t2 - s.d3*t3 - s.d4*t4
		tempe = tempe + el.BStar*s.cc5*(math.Sin(mm)-s.sinmao)
		templ = templ + s.t3cof*t3 + t4*(s.t4cof+t*s.t5cof)
	}

	nm := s.noUnkozai
	em := el.Eccentricity
	inclm := el.Inclination
	if s.regime == DeepSpace {
		em, argpm, inclm, mm, nodem, nm = s.deep.secular(s, t, em, argpm, inclm, mm, nodem)
	}

	if nm <= 0 {
		return StateVector{}, &PropagationError{Tsince: t, Code: MeanMotion, Value: nm}
	}
	am := math.Pow(g.XKE/nm, x2o3) * tempa * tempa
	nm = g.XKE / math.Pow(am, 1.5)
	em -= tempe
	if em >= 1 || em < -0.001 {
		return StateVector{}, &PropagationError{Tsince: t, Code: MeanEccentricity, Value: em}
	}
	if em < 1e-6 {
		em = 1e-6
	}
	mm += s.noUnkozai * templ
	xlm := mm + argpm + nodem

	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	// Lunar-solar periodics.
	ep, xincp, argpp, nodep, mp := em, inclm, argpm, nodem, mm
	sinip, cosip := s.sinio, s.cosio
	xlcof, aycof := s.xlcof, s.aycof
	con41, x1mth2, x7thm1 := s.con41, s.x1mth2, s.x7thm1
	if s.regime == DeepSpace {
		ep, xincp, nodep, argpp, mp = s.deep.periodics(t, s.mode, ep, xincp, nodep, argpp, mp)
		if xincp < 0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0 || ep > 1 {
			return StateVector{}, &PropagationError{Tsince: t, Code: PerturbedEccentricity, Value: ep}
		}

		sinip = math.Sin(xincp)
		cosip = math.Cos(xincp)
		xlcof, aycof = longPeriodCoefficients(g.J3OJ2, sinip, cosip)
		cosisq := cosip * cosip
		con41 = 3*cosisq - 1
		x1mth2 = 1 - cosisq
		x7thm1 = 7*cosisq - 1
	}

	// Long-period periodics.
	axnl := ep * math.Cos(argpp)
	temp := 1 / (am * (1 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	u := math.Mod(xl-nodep, twoPi)
	k := solveKepler(u, axnl, aynl)
	sineo1, coseo1 := k.sin, k.cos

	// Short-period periodics.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1 - el2)
	if pl < 0 {
		return StateVector{}, &PropagationError{Tsince: t, Code: SemiLatusRectum, Value: pl}
	}
	rl := am * (1 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1 - el2)
	temp = esine / (1 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1 - 2*sinu*sinu
	temp = 1 / pl
	temp1 := 0.5 * g.J2 * temp
	temp2 := temp1 * temp

	mrt := rl*(1-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/g.XKE
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/g.XKE

	// Orientation vectors.
	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	vkmpersec := g.RadiusEarthKm * g.XKE / 60
	sv := StateVector{
		Tsince:     t,
		Position:   r3.Vec{X: mrt * ux, Y: mrt * uy, Z: mrt * uz},
		Velocity:   r3.Vec{X: mvt*ux + rvdot*vx, Y: mvt*uy + rvdot*vy, Z: mvt*uz + rvdot*vz},
		Iterations: k.iterations,
	}
	sv.Position = r3.Scale(g.RadiusEarthKm, sv.Position)
	sv.Velocity = r3.Scale(vkmpersec, sv.Velocity)

	if mrt < 1 {
		return sv, &PropagationError{Tsince: t, Code: Decayed, Value: mrt * g.RadiusEarthKm}
	}
	if !k.converged {
		return sv, &ConvergenceWarning{Tsince: t, Iterations: k.iterations, Residual: k.residual}
	}
	return sv, nil
}

type keplerSolution struct {
	eo1        float64 // eccentric longitude
	sin, cos   float64 // of the estimate the last correction was computed from
	residual   float64 // last Newton correction
	iterations int
	converged  bool
}

// solveKepler solves Kepler's equation for the eccentric longitude E+ω,
// u = E − axnl·sin(E) + aynl·cos(E), with Newton steps clamped to ±0.95 rad.
func solveKepler(u, axnl, aynl float64) keplerSolution {
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	ktr := 0
	for math.Abs(tem5) >= keplerTolerance && ktr < keplerMaxIterations {
		sineo1, coseo1 = math.Sincos(eo1)
		tem5 = 1 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= keplerMaxStep {
			tem5 = math.Copysign(keplerMaxStep, tem5)
		}
		eo1 += tem5
		ktr++
	}
	return keplerSolution{
		eo1:        eo1,
		sin:        sineo1,
		cos:        coseo1,
		residual:   tem5,
		iterations: ktr,
		converged:  math.Abs(tem5) < keplerTolerance,
	}
}
