package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/transform"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	sat        *Satellite
	targetTime time.Time
	frame      Frame
	gmst       float64 // precomputed GMST for targetTime
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	position      Position
	err           error
	catalogNumber int
}

// BatchStats counts the outcomes of one PropagateBatch call.
type BatchStats struct {
	OK       int // includes warnings
	Warnings int
	Failed   int
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// PropagateBatch propagates all satellites to the target time using the worker pool.
// Returns results for all satellites that succeeded. Failed satellites are logged and skipped.
// Result order is not the input order.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, sats []*Satellite, targetTime time.Time, frame Frame) ([]Position, BatchStats) {
	if len(sats) == 0 {
		return nil, BatchStats{}
	}
	start := time.Now()

	// One sidereal angle serves every satellite.
	gmst := math.NaN()
	if frame == FrameECEF {
		gmst = transform.GMST(targetTime)
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				pos, err := job.sat.At(job.targetTime, job.frame, job.gmst)
				result := propagateResult{position: pos, err: err, catalogNumber: job.sat.CatalogNumber()}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sat := range sats {
			job := propagateJob{
				sat:        sat,
				targetTime: targetTime,
				frame:      frame,
				gmst:       gmst,
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]Position, 0, len(sats))
	var stats BatchStats
	for result := range results {
		if result.err != nil {
			stats.Failed++
			wp.logger.Warn("propagation failed",
				"norad_id", result.catalogNumber,
				"error", result.err,
			)
			continue
		}
		stats.OK++
		if result.position.Warning {
			stats.Warnings++
		}
		positions = append(positions, result.position)
	}

	metrics.RecordPropagation(time.Since(start), stats.OK-stats.Warnings, stats.Warnings, stats.Failed)
	return positions, stats
}

// seriesChunk is the number of grid points one worker takes at a time.
const seriesChunk = 256

// MaxSeriesLength caps a single time grid regardless of any caller budget.
const MaxSeriesLength = 10_000_000

// SeriesLength returns the number of samples PropagateSeries produces for
// the grid, or an error for an invalid grid or one longer than
// MaxSeriesLength.
func SeriesLength(start, stop, step float64) (int, error) {
	switch {
	case math.IsNaN(start) || math.IsNaN(stop) || math.IsNaN(step):
		return 0, errors.New("time grid contains NaN")
	case math.IsInf(start, 0) || math.IsInf(stop, 0) || math.IsInf(step, 0):
		return 0, errors.New("time grid must be finite")
	case step == 0:
		return 0, errors.New("step must be non-zero")
	}
	span := (stop - start) / step
	switch {
	case math.IsNaN(span) || math.IsInf(span, 0):
		return 0, fmt.Errorf("step %g is too small for %g..%g", step, start, stop)
	case span < 0:
		return 0, fmt.Errorf("step %g does not move from %g towards %g", step, start, stop)
	}
	n := math.Floor(span+1e-9) + 1
	if n > MaxSeriesLength {
		return 0, fmt.Errorf("time grid has %.0f samples, limit %d", n, MaxSeriesLength)
	}
	return int(n), nil
}

// PropagateSeries propagates one satellite over start, start+step, ... up to
// stop inclusive (minutes from epoch). The output is preallocated and filled
// by the pool in chunks; sample order follows the grid.
func (wp *WorkerPool) PropagateSeries(ctx context.Context, sat *Satellite, start, stop, step float64) ([]Sample, error) {
	n, err := SeriesLength(start, stop, step)
	if err != nil {
		return nil, err
	}
	begin := time.Now()
	samples := make([]Sample, n)

	chunks := make(chan int, wp.workers)
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lo := range chunks {
				hi := min(lo+seriesChunk, n)
				for j := lo; j < hi; j++ {
					ts := start + float64(j)*step
					sv, err := sat.State.Propagate(ts)
					samples[j] = Sample{Tsince: ts, State: sv, Err: err}
				}
			}
		}()
	}

feed:
	for lo := 0; lo < n; lo += seriesChunk {
		select {
		case chunks <- lo:
		case <-ctx.Done():
			break feed
		}
	}
	close(chunks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ok, warnings, failed int
	for _, s := range samples {
		switch {
		case s.Err == nil:
			ok++
		case sgp4.IsWarning(s.Err):
			warnings++
		default:
			failed++
		}
	}
	metrics.RecordPropagation(time.Since(begin), ok, warnings, failed)
	return samples, nil
}
