package sgp4

import (
	"errors"
	"fmt"
)

// ElementsError reports element sets that cannot be propagated at all,
// such as a perigee below the Earth's surface.
type ElementsError struct {
	CatalogNumber int
	Reason        string
	Err           error
}

func (e *ElementsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("satellite %d: elements not propagatable: %s: %v", e.CatalogNumber, e.Reason, e.Err)
	}
	return fmt.Sprintf("satellite %d: elements not propagatable: %s", e.CatalogNumber, e.Reason)
}

func (e *ElementsError) Unwrap() error { return e.Err }

// ConvergenceWarning accompanies a valid StateVector when the Kepler solver
// ran out of iterations. The vector holds the best estimate.
type ConvergenceWarning struct {
	Tsince     float64
	Iterations int
	Residual   float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("kepler solver did not converge at %.6f min after %d iterations (residual %.3e)", w.Tsince, w.Iterations, w.Residual)
}

// IsWarning reports whether err is only a ConvergenceWarning, in which case
// the returned StateVector is usable.
func IsWarning(err error) bool {
	var w *ConvergenceWarning
	return errors.As(err, &w)
}

// ErrorCode classifies a propagation failure.
type ErrorCode int

const (
	MeanEccentricity      ErrorCode = 1 // mean eccentricity outside [-0.001, 1)
	MeanMotion            ErrorCode = 2 // mean motion not positive
	PerturbedEccentricity ErrorCode = 3 // perturbed eccentricity outside [0, 1]
	SemiLatusRectum       ErrorCode = 4 // semi-latus rectum negative
	Decayed               ErrorCode = 6 // orbit radius below one earth radius
)

func (c ErrorCode) String() string {
	switch c {
	case MeanEccentricity:
		return "mean eccentricity out of range"
	case MeanMotion:
		return "mean motion not positive"
	case PerturbedEccentricity:
		return "perturbed eccentricity out of range"
	case SemiLatusRectum:
		return "semi-latus rectum negative"
	case Decayed:
		return "satellite decayed"
	}
	return fmt.Sprintf("error code %d", int(c))
}

// PropagationError reports a non-physical state at a particular time.
type PropagationError struct {
	Tsince float64
	Code   ErrorCode
	Value  float64
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed at %.6f min: %s (%g)", e.Tsince, e.Code, e.Value)
}
