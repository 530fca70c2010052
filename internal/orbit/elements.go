// Package orbit holds mean orbital elements in the units the propagator
// works in: radians, minutes and earth radii.
package orbit

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"

	"github.com/star/tleprop/internal/tle"
)

const (
	minutesPerDay = 1440.0

	// RevPerDayToRadPerMin converts rev/day to rad/min.
	RevPerDayToRadPerMin = 2 * math.Pi / minutesPerDay

	// jd1950 is the Julian date of 1949 December 31 00:00 UT, the origin of
	// the day count the propagator uses for its epoch.
	jd1950 = 2433281.5
)

// Elements are mean orbital elements at an epoch. Mean motion is the Kozai
// mean motion from the element set; the propagator recovers the Brouwer
// value itself.
type Elements struct {
	CatalogNumber int
	Epoch         time.Time
	JulianDate    float64 // Julian date of the epoch (UT)
	EpochDays     float64 // days since 1949 December 31 00:00 UT

	BStar float64 // 1/earth radii
	NDot  float64 // rad/min²
	NDDot float64 // rad/min³

	Inclination  float64 // rad
	RAAN         float64 // rad
	Eccentricity float64
	ArgPerigee   float64 // rad
	MeanAnomaly  float64 // rad
	MeanMotion   float64 // rad/min
}

// RangeError reports an element outside its legal domain.
type RangeError struct {
	Field  string
	Value  float64
	Domain string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %v outside %s", e.Field, e.Value, e.Domain)
}

// FromTLE converts a decoded element set to propagator units and validates
// the element ranges.
func FromTLE(es tle.ElementSet) (Elements, error) {
	jd := julian.CalendarGregorianToJD(tle.FullYear(es.EpochYear), 1, es.EpochDay)
	el := Elements{
		CatalogNumber: es.CatalogNumber,
		Epoch:         es.Epoch,
		JulianDate:    jd,
		EpochDays:     jd - jd1950,
		BStar:         es.BStar,
		// The record stores ṅ/2 and n̈/6.
		NDot:         2 * es.MeanMotionDot * RevPerDayToRadPerMin / minutesPerDay,
		NDDot:        6 * es.MeanMotionDDot * RevPerDayToRadPerMin / (minutesPerDay * minutesPerDay),
		Inclination:  unit.AngleFromDeg(es.Inclination).Rad(),
		RAAN:         unit.AngleFromDeg(es.RAAN).Rad(),
		Eccentricity: es.Eccentricity,
		ArgPerigee:   unit.AngleFromDeg(es.ArgPerigee).Rad(),
		MeanAnomaly:  unit.AngleFromDeg(es.MeanAnomaly).Rad(),
		MeanMotion:   es.MeanMotion * RevPerDayToRadPerMin,
	}
	if err := el.Validate(); err != nil {
		return Elements{}, fmt.Errorf("satellite %d: %w", es.CatalogNumber, err)
	}
	return el, nil
}

// Validate checks every element against its legal domain.
func (e Elements) Validate() error {
	switch {
	case math.IsNaN(e.Eccentricity) || e.Eccentricity < 0 || e.Eccentricity >= 1:
		return &RangeError{Field: "eccentricity", Value: e.Eccentricity, Domain: "[0, 1)"}
	case math.IsNaN(e.Inclination) || e.Inclination < 0 || e.Inclination > math.Pi:
		return &RangeError{Field: "inclination", Value: unit.Angle(e.Inclination).Deg(), Domain: "[0°, 180°]"}
	case math.IsNaN(e.MeanMotion) || e.MeanMotion <= 0:
		return &RangeError{Field: "mean motion", Value: e.MeanMotion / RevPerDayToRadPerMin, Domain: "(0, ∞) rev/day"}
	}
	for _, a := range []struct {
		name string
		v    float64
	}{{"right ascension of ascending node", e.RAAN}, {"argument of perigee", e.ArgPerigee}, {"mean anomaly", e.MeanAnomaly}} {
		if math.IsNaN(a.v) || a.v < 0 || a.v > 2*math.Pi {
			return &RangeError{Field: a.name, Value: unit.Angle(a.v).Deg(), Domain: "[0°, 360°]"}
		}
	}
	return nil
}

// Period returns the orbital period implied by the Kozai mean motion.
func (e Elements) Period() time.Duration {
	return time.Duration(2 * math.Pi / e.MeanMotion * float64(time.Minute))
}

// MinutesSinceEpoch returns the signed elapsed minutes from the epoch to t.
func (e Elements) MinutesSinceEpoch(t time.Time) float64 {
	return t.Sub(e.Epoch).Minutes()
}
