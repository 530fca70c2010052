package propagation

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/sgp4"
)

// Frame names the reference frame of a Position.
type Frame string

const (
	FrameTEME Frame = "teme"
	FrameECEF Frame = "ecef"
)

// ParseFrame accepts "teme" or "ecef" in any case.
func ParseFrame(s string) (Frame, error) {
	switch f := Frame(strings.ToLower(strings.TrimSpace(s))); f {
	case FrameTEME, FrameECEF:
		return f, nil
	case "":
		return FrameTEME, nil
	}
	return "", fmt.Errorf("unknown frame %q (want teme or ecef)", s)
}

// Keyframe holds the positions of many satellites at a single point in time.
type Keyframe struct {
	Timestamp  time.Time
	Satellites []Position
}

// Position is one satellite's state at one time.
type Position struct {
	CatalogNumber int
	Time          time.Time
	Tsince        float64 // minutes from the element set epoch
	Frame         Frame
	Position      r3.Vec // km
	Velocity      r3.Vec // km/s
	Warning       bool   // Kepler solver hit its iteration cap
}

// Sample is one point of a single-satellite time series. Err is nil, a
// *sgp4.ConvergenceWarning (State usable) or a *sgp4.PropagationError.
type Sample struct {
	Tsince float64
	State  sgp4.StateVector
	Err    error
}

// PropConfig holds propagation settings.
type PropConfig struct {
	Workers int           // worker pool size
	Step    time.Duration // keyframe interval
	Horizon time.Duration // GenerateFrames span
	Frame   Frame
	SGP4    sgp4.Config
}
