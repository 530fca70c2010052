package propagation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/orbit"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/tle"
	"github.com/star/tleprop/internal/transform"
)

// Satellite is an element set with its initialized propagator state.
// Immutable; safe for concurrent use.
type Satellite struct {
	Set   tle.ElementSet
	State *sgp4.State
}

// NewSatellite converts and initializes an element set.
func NewSatellite(es tle.ElementSet, cfg sgp4.Config) (*Satellite, error) {
	el, err := orbit.FromTLE(es)
	if err != nil {
		return nil, err
	}
	st, err := sgp4.New(el, cfg)
	if err != nil {
		return nil, fmt.Errorf("satellite %d: %w", es.CatalogNumber, err)
	}
	return &Satellite{Set: es, State: st}, nil
}

// CatalogNumber returns the NORAD catalog number.
func (s *Satellite) CatalogNumber() int { return s.Set.CatalogNumber }

// At propagates to t. gmst is only used for FrameECEF; pass NaN to have it
// computed from t.
func (s *Satellite) At(t time.Time, frame Frame, gmst float64) (Position, error) {
	sv, err := s.State.PropagateTo(t)
	warning := sgp4.IsWarning(err)
	if err != nil && !warning {
		return Position{}, fmt.Errorf("satellite %d: %w", s.Set.CatalogNumber, err)
	}

	pos := Position{
		CatalogNumber: s.Set.CatalogNumber,
		Time:          t,
		Tsince:        sv.Tsince,
		Frame:         FrameTEME,
		Position:      sv.Position,
		Velocity:      sv.Velocity,
		Warning:       warning,
	}
	if frame == FrameECEF {
		if math.IsNaN(gmst) {
			gmst = transform.GMST(t)
		}
		pos.Position, pos.Velocity = transform.TEMEToECEFWithGMST(sv.Position, sv.Velocity, gmst)
		pos.Frame = FrameECEF
	}
	return pos, nil
}

// Speed returns |v| in km/s.
func (p Position) Speed() float64 { return r3.Norm(p.Velocity) }

// initFailureReason maps an initialization error onto a metrics label.
func initFailureReason(err error) string {
	var ee *sgp4.ElementsError
	var re *orbit.RangeError
	switch {
	case errors.As(err, &ee):
		return "elements"
	case errors.As(err, &re):
		return "range"
	}
	return "other"
}
