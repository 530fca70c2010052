package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/tle"
)

var (
	// ErrNoDataset is returned before any catalog has been loaded.
	ErrNoDataset = errors.New("no TLE dataset loaded")
	// ErrUnknownSatellite is returned for catalog numbers not in the dataset
	// or whose elements failed to initialize.
	ErrUnknownSatellite = errors.New("satellite not in catalog")
)

// stateCache holds initialized satellites for a specific dataset.
// Immutable after construction; safe for concurrent reads.
type stateCache struct {
	dataset *tle.Dataset
	sats    []*Satellite
	byID    map[int]*Satellite
	skipped int
}

// Propagator orchestrates propagation of the catalog held in a tle.Store.
type Propagator struct {
	store   *tle.Store
	pool    *WorkerPool
	config  PropConfig
	logger  *slog.Logger
	cache   atomic.Pointer[stateCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *tle.Store, config PropConfig, logger *slog.Logger) *Propagator {
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
	}
}

// Pool returns the worker pool shared by all callers.
func (p *Propagator) Pool() *WorkerPool { return p.pool }

// Config returns the propagation settings.
func (p *Propagator) Config() PropConfig { return p.config }

// states returns initialized satellites for the current dataset, rebuilding
// them when the dataset has changed (double-checked locking).
func (p *Propagator) states() (*stateCache, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	if c := p.cache.Load(); c != nil && c.dataset == ds {
		return c, nil
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if c := p.cache.Load(); c != nil && c.dataset == ds {
		return c, nil
	}

	c := &stateCache{
		dataset: ds,
		sats:    make([]*Satellite, 0, len(ds.Satellites)),
		byID:    make(map[int]*Satellite, len(ds.Satellites)),
	}
	for _, es := range ds.Satellites {
		if _, ok := c.byID[es.CatalogNumber]; ok {
			continue
		}
		sat, err := NewSatellite(es, p.config.SGP4)
		if err != nil {
			p.logger.Warn("sgp4 init failed", "norad_id", es.CatalogNumber, "error", err)
			metrics.RecordInitFailure(initFailureReason(err))
			c.skipped++
			continue
		}
		c.sats = append(c.sats, sat)
		c.byID[es.CatalogNumber] = sat
	}

	p.logger.Info("sgp4 state cache rebuilt",
		"cached", len(c.sats),
		"skipped", c.skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	p.cache.Store(c)
	return c, nil
}

// Satellite returns the initialized satellite for a catalog number.
func (p *Propagator) Satellite(catalogNumber int) (*Satellite, error) {
	c, err := p.states()
	if err != nil {
		return nil, err
	}
	sat, ok := c.byID[catalogNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSatellite, catalogNumber)
	}
	return sat, nil
}

// Satellites returns every initialized satellite of the current dataset.
func (p *Propagator) Satellites() ([]*Satellite, error) {
	c, err := p.states()
	if err != nil {
		return nil, err
	}
	return c.sats, nil
}

// PropagateToTime generates a single keyframe at the given target time.
// Uses the current TLE dataset from the store.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time) (*Keyframe, error) {
	c, err := p.states()
	if err != nil {
		return nil, err
	}

	p.logger.Debug("propagating",
		"satellite_count", len(c.sats),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.pool.Workers(),
	)

	start := time.Now()
	positions, stats := p.pool.PropagateBatch(ctx, c.sats, targetTime, p.config.Frame)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("propagation complete",
		"success", stats.OK,
		"warnings", stats.Warnings,
		"errors", stats.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Keyframe{
		Timestamp:  targetTime,
		Satellites: positions,
	}, nil
}

// GenerateFrames generates keyframes from startTime over the configured horizon
// at the configured step interval.
func (p *Propagator) GenerateFrames(ctx context.Context, startTime time.Time) ([]*Keyframe, error) {
	if p.config.Step <= 0 {
		return nil, fmt.Errorf("keyframe step must be positive, got %s", p.config.Step)
	}

	numFrames := int(p.config.Horizon/p.config.Step) + 1
	keyframes := make([]*Keyframe, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return keyframes, ctx.Err()
		default:
		}

		targetTime := startTime.Add(time.Duration(i) * p.config.Step)
		kf, err := p.PropagateToTime(ctx, targetTime)
		if err != nil {
			return keyframes, fmt.Errorf("keyframe %d at %s: %w", i, targetTime.Format(time.RFC3339), err)
		}
		keyframes = append(keyframes, kf)
	}

	return keyframes, nil
}
