// Package passes predicts when satellites rise above an observer's horizon.
package passes

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/transform"
)

// GroundTrackPoint is the sub-satellite point at one instant of a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	LatDeg    float64   `json:"lat_deg"`
	LonDeg    float64   `json:"lon_deg"`
	AltKm     float64   `json:"alt_km"`
	Elevation float64   `json:"elevation_deg"`
}

// Pass is one interval during which a satellite stays at or above the
// requested minimum elevation.
type Pass struct {
	Rise         time.Time          `json:"rise"`
	Culmination  time.Time          `json:"culmination"`
	Set          time.Time          `json:"set"`
	Duration     float64            `json:"duration_s"`
	MaxElevation float64            `json:"max_elevation_deg"`
	RiseAzimuth  float64            `json:"rise_azimuth_deg"`
	MaxAzimuth   float64            `json:"max_azimuth_deg"`
	SetAzimuth   float64            `json:"set_azimuth_deg"`
	GroundTrack  []GroundTrackPoint `json:"ground_track,omitempty"`
}

// SatellitePasses holds the passes found for one satellite. Passes found
// before a propagation failure are kept alongside Error.
type SatellitePasses struct {
	CatalogNumber int    `json:"norad_id"`
	Name          string `json:"name,omitempty"`
	Passes        []Pass `json:"passes"`
	Error         string `json:"error,omitempty"`
}

// Request describes a prediction window.
type Request struct {
	Observer     transform.Observer
	Satellites   []*propagation.Satellite
	Start        time.Time
	Duration     time.Duration
	MinElevation float64 // degrees
	MaxPasses    int     // per satellite; 0 means no limit
	GroundTrack  bool
	Workers      int // 0 means runtime.NumCPU
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	crossingEpsilon = 100 * time.Millisecond
	minPassDuration = 10 * time.Second
)

// Predict scans every satellite of req concurrently. Results keep the order
// of req.Satellites.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]SatellitePasses, len(req.Satellites))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, sat := range req.Satellites {
		results[i] = SatellitePasses{CatalogNumber: sat.CatalogNumber(), Name: sat.Set.Name}
		if err := ctx.Err(); err != nil {
			results[i].Error = err.Error()
			continue
		}

		wg.Add(1)
		go func(res *SatellitePasses, sat *propagation.Satellite) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				res.Error = ctx.Err().Error()
				return
			}

			s := scanner{sat: sat, obs: req.Observer, minEl: req.MinElevation, track: req.GroundTrack}
			passes, err := s.scan(ctx, req.Start, req.Start.Add(req.Duration), req.MaxPasses)
			res.Passes = passes
			if err != nil {
				res.Error = err.Error()
			}
		}(&results[i], sat)
	}

	wg.Wait()
	return results
}

type scanner struct {
	sat   *propagation.Satellite
	obs   transform.Observer
	minEl float64
	track bool
}

func (s scanner) look(t time.Time) (transform.LookAngles, r3.Vec, error) {
	pos, err := s.sat.At(t, propagation.FrameECEF, math.NaN())
	if err != nil {
		return transform.LookAngles{}, r3.Vec{}, err
	}
	return s.obs.Look(pos.Position), pos.Position, nil
}

func (s scanner) visible(t time.Time) (bool, error) {
	la, _, err := s.look(t)
	return la.ElevationDeg >= s.minEl, err
}

// scan steps through [start, end] coarsely and bisects each visibility
// change. A pass already in progress at start rises at start; one still in
// progress at end sets at end.
func (s scanner) scan(ctx context.Context, start, end time.Time, maxPasses int) ([]Pass, error) {
	var passes []Pass

	up, err := s.visible(start)
	if err != nil {
		return nil, err
	}
	var rise time.Time
	if up {
		rise = start
	}

	for t := start; t.Before(end); {
		if err := ctx.Err(); err != nil {
			return passes, err
		}
		next := t.Add(coarseStep)
		if next.After(end) {
			next = end
		}
		nextUp, err := s.visible(next)
		if err != nil {
			return passes, err
		}

		switch {
		case nextUp && !up:
			if _, rise, err = s.crossing(t, next, true); err != nil {
				return passes, err
			}
		case !nextUp && up:
			set, _, err := s.crossing(t, next, false)
			if err != nil {
				return passes, err
			}
			if set.Sub(rise) >= minPassDuration {
				p, err := s.describe(rise, set)
				if err != nil {
					return passes, err
				}
				passes = append(passes, p)
				if maxPasses > 0 && len(passes) >= maxPasses {
					return passes, nil
				}
			}
		}
		t, up = next, nextUp
	}

	if up && end.Sub(rise) >= minPassDuration {
		p, err := s.describe(rise, end)
		if err != nil {
			return passes, err
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// crossing narrows [lo, hi] around a visibility change and returns the
// bracket. For a rise hi is the first visible instant; for a set lo is the
// last.
func (s scanner) crossing(lo, hi time.Time, rising bool) (time.Time, time.Time, error) {
	for hi.Sub(lo) > crossingEpsilon {
		mid := lo.Add(hi.Sub(lo) / 2)
		up, err := s.visible(mid)
		if err != nil {
			return lo, hi, err
		}
		if up == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo, hi, nil
}

// describe samples a pass at one-second resolution for its culmination and
// optional ground track.
func (s scanner) describe(rise, set time.Time) (Pass, error) {
	p := Pass{
		Rise:         rise,
		Set:          set,
		Duration:     set.Sub(rise).Seconds(),
		MaxElevation: math.Inf(-1),
	}

	nextTrack := rise
	for t := rise; ; t = t.Add(fineStep) {
		if t.After(set) {
			t = set
		}
		la, ecef, err := s.look(t)
		if err != nil {
			return Pass{}, err
		}

		if t.Equal(rise) {
			p.RiseAzimuth = la.AzimuthDeg
		}
		if la.ElevationDeg > p.MaxElevation {
			p.MaxElevation = la.ElevationDeg
			p.MaxAzimuth = la.AzimuthDeg
			p.Culmination = t
		}
		if s.track && (!t.Before(nextTrack) || t.Equal(set)) {
			geo := transform.ECEFToGeodetic(ecef)
			p.GroundTrack = append(p.GroundTrack, GroundTrackPoint{
				Time:      t,
				LatDeg:    geo.LatDeg,
				LonDeg:    geo.LonDeg,
				AltKm:     geo.AltKm,
				Elevation: la.ElevationDeg,
			})
			nextTrack = t.Add(groundTrackStep)
		}
		if t.Equal(set) {
			p.SetAzimuth = la.AzimuthDeg
			return p, nil
		}
	}
}
