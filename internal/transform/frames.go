// Package transform rotates propagator output out of the TEME frame.
//
// TEME → ECEF uses the GMST-only rotation (TEME → PEF), ignoring polar motion
// and the equation of the equinoxes. The error stays under ~50 m, which is
// well inside SGP4's own accuracy.
package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/sgp4"
)

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

var zAxis = r3.Vec{Z: 1}

// JulianDate converts t to a UT Julian date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich mean sidereal time (IAU-82) in radians.
func GMST(t time.Time) float64 {
	return sgp4.GMST(JulianDate(t))
}

// TEMEToECEF rotates a TEME state (km, km/s) into ECEF at time t.
func TEMEToECEF(pos, vel r3.Vec, t time.Time) (r3.Vec, r3.Vec) {
	return TEMEToECEFWithGMST(pos, vel, GMST(t))
}

// TEMEToECEFWithGMST is TEMEToECEF with a precomputed sidereal angle, for
// rotating many satellites to the same instant.
//
//	r_ecef = R3(θ)·r_teme
//	v_ecef = R3(θ)·v_teme − ω × r_ecef
func TEMEToECEFWithGMST(pos, vel r3.Vec, gmst float64) (r3.Vec, r3.Vec) {
	rot := r3.NewRotation(-gmst, zAxis)
	r := rot.Rotate(pos)
	v := r3.Sub(rot.Rotate(vel), r3.Cross(r3.Vec{Z: OmegaEarth}, r))
	return r, v
}

// ValidateECEF reports whether an ECEF position (km) is finite and between
// 6200 km and 50000 km from the geocentre.
func ValidateECEF(pos r3.Vec) bool {
	for _, c := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	const (
		minRadius = 6200.0
		maxRadius = 50000.0
	)
	mag := r3.Norm(pos)
	return mag >= minRadius && mag <= maxRadius
}
