package sgp4

import (
	"fmt"
	"math"
	"strings"
)

// Gravity is a set of geopotential constants. Propagation results depend on
// the model; element sets are generated against WGS72.
type Gravity struct {
	Name          string
	Mu            float64 // km³/s²
	RadiusEarthKm float64
	XKE           float64 // sqrt(mu) in earth radii³/min²
	TUMin         float64 // minutes per time unit
	J2, J3, J4    float64
	J3OJ2         float64
}

func newGravity(name string, mu, re, j2, j3, j4 float64) Gravity {
	xke := 60 / math.Sqrt(re*re*re/mu)
	return Gravity{
		Name:          name,
		Mu:            mu,
		RadiusEarthKm: re,
		XKE:           xke,
		TUMin:         1 / xke,
		J2:            j2,
		J3:            j3,
		J4:            j4,
		J3OJ2:         j3 / j2,
	}
}

var (
	// WGS72Old uses the truncated xke of the original Spacetrack report.
	WGS72Old = Gravity{
		Name:          "wgs72old",
		Mu:            398600.79964,
		RadiusEarthKm: 6378.135,
		XKE:           0.0743669161,
		TUMin:         1 / 0.0743669161,
		J2:            0.001082616,
		J3:            -0.00000253881,
		J4:            -0.00000165597,
		J3OJ2:         -0.00000253881 / 0.001082616,
	}
	WGS72 = newGravity("wgs72", 398600.8, 6378.135, 0.001082616, -0.00000253881, -0.00000165597)
	WGS84 = newGravity("wgs84", 398600.5, 6378.137, 0.00108262998905, -0.00000253215306, -0.00000161098761)
)

// GravityByName looks up a model by its case-insensitive name.
func GravityByName(name string) (Gravity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wgs72old":
		return WGS72Old, nil
	case "wgs72":
		return WGS72, nil
	case "wgs84":
		return WGS84, nil
	}
	return Gravity{}, fmt.Errorf("unknown gravity model %q (want wgs72old, wgs72 or wgs84)", name)
}

// OpsMode selects between the historical AFSPC computations and the
// improved ones for sidereal time and node wrapping.
type OpsMode int

const (
	Improved OpsMode = iota
	AFSPC
)

func (m OpsMode) String() string {
	if m == AFSPC {
		return "afspc"
	}
	return "improved"
}

// ParseOpsMode accepts "improved"/"i" and "afspc"/"a".
func ParseOpsMode(s string) (OpsMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "improved", "i", "":
		return Improved, nil
	case "afspc", "a":
		return AFSPC, nil
	}
	return 0, fmt.Errorf("unknown operation mode %q (want improved or afspc)", s)
}

// Config is the explicit input to New. There is no package-level default
// state; DefaultConfig is a plain value.
type Config struct {
	Gravity Gravity
	Mode    OpsMode
}

// DefaultConfig returns WGS72 constants in improved mode.
func DefaultConfig() Config {
	return Config{Gravity: WGS72, Mode: Improved}
}
