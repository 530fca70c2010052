package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/httputil"
	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/orbit"
	"github.com/star/tleprop/internal/passes"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/tle"
	"github.com/star/tleprop/internal/transform"
)

const (
	defaultStopMin = 1440.0
	defaultStepMin = 1.0
)

type tleRequest struct {
	Name  string `json:"name,omitempty"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

func (t tleRequest) parse() (tle.ElementSet, error) {
	if t.Name != "" {
		return tle.ParseWithName(t.Name, t.Line1, t.Line2)
	}
	return tle.Parse(t.Line1, t.Line2)
}

// elementError describes a rejected element set as extra response fields.
func elementError(err error) map[string]any {
	var (
		fe *tle.FormatError
		ce *tle.ChecksumError
		ie *tle.InconsistentIDError
		re *orbit.RangeError
		ee *sgp4.ElementsError
	)
	switch {
	case errors.As(err, &fe):
		return map[string]any{"kind": "format", "line": fe.Line, "column": fe.Column, "field": fe.Field}
	case errors.As(err, &ce):
		return map[string]any{"kind": "checksum", "line": ce.Line, "computed": ce.Computed, "recorded": ce.Recorded}
	case errors.As(err, &ie):
		return map[string]any{"kind": "inconsistent_id", "line1_id": ie.Line1ID, "line2_id": ie.Line2ID}
	case errors.As(err, &re):
		return map[string]any{"kind": "range", "field": re.Field}
	case errors.As(err, &ee):
		return map[string]any{"kind": "elements", "reason": ee.Reason}
	}
	return nil
}

type elementsResponse struct {
	NoradID        int       `json:"norad_id"`
	Name           string    `json:"name,omitempty"`
	Classification string    `json:"classification"`
	Designator     string    `json:"designator"`
	Epoch          time.Time `json:"epoch"`
	MeanMotionDot  float64   `json:"mean_motion_dot"`
	MeanMotionDDot float64   `json:"mean_motion_ddot"`
	BStar          float64   `json:"bstar"`
	ElementSetNo   int       `json:"element_set_no"`
	Inclination    float64   `json:"inclination_deg"`
	RAAN           float64   `json:"raan_deg"`
	Eccentricity   float64   `json:"eccentricity"`
	ArgPerigee     float64   `json:"arg_perigee_deg"`
	MeanAnomaly    float64   `json:"mean_anomaly_deg"`
	MeanMotion     float64   `json:"mean_motion_rev_per_day"`
	RevNumber      int       `json:"rev_number"`

	PeriodMin       float64 `json:"period_min"`
	SemiMajorAxisKm float64 `json:"semi_major_axis_km"`
	PerigeeKm       float64 `json:"perigee_altitude_km"`
	ApogeeKm        float64 `json:"apogee_altitude_km"`
	Regime          string  `json:"regime"`
	Resonance       string  `json:"resonance"`
}

// parseHandler decodes an element set and reports its initialized orbit.
// POST /api/v1/tle/parse {"name":"...","line1":"...","line2":"..."}
func parseHandler(cfg propagation.PropConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tleRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		es, err := req.parse()
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), elementError(err))
			return
		}
		sat, err := propagation.NewSatellite(es, cfg.SGP4)
		if err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error(), elementError(err))
			return
		}

		st := sat.State
		httputil.WriteJSON(w, http.StatusOK, elementsResponse{
			NoradID:         es.CatalogNumber,
			Name:            es.Name,
			Classification:  string(es.Classification),
			Designator:      es.Designator,
			Epoch:           es.Epoch,
			MeanMotionDot:   es.MeanMotionDot,
			MeanMotionDDot:  es.MeanMotionDDot,
			BStar:           es.BStar,
			ElementSetNo:    es.ElementSetNo,
			Inclination:     es.Inclination,
			RAAN:            es.RAAN,
			Eccentricity:    es.Eccentricity,
			ArgPerigee:      es.ArgPerigee,
			MeanAnomaly:     es.MeanAnomaly,
			MeanMotion:      es.MeanMotion,
			RevNumber:       es.RevNumber,
			PeriodMin:       st.Elements().Period().Minutes(),
			SemiMajorAxisKm: st.SemiMajorAxis(),
			PerigeeKm:       st.PerigeeAltitude(),
			ApogeeKm:        st.ApogeeAltitude(),
			Regime:          st.Regime().String(),
			Resonance:       st.Resonance().String(),
		})
	}
}

type propagateRequest struct {
	tleRequest
	NoradIDs []int    `json:"norad_ids,omitempty"`
	StartMin float64  `json:"start_min"`
	StopMin  *float64 `json:"stop_min,omitempty"`
	StepMin  *float64 `json:"step_min,omitempty"`
	Frame    string   `json:"frame,omitempty"`
	Gravity  string   `json:"gravity,omitempty"`
	OpsMode  string   `json:"opsmode,omitempty"`
}

type sampleResponse struct {
	TsinceMin float64     `json:"tsince_min"`
	Time      time.Time   `json:"time"`
	Position  *[3]float64 `json:"position_km,omitempty"`
	Velocity  *[3]float64 `json:"velocity_km_s,omitempty"`
	Warning   string      `json:"warning,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code,omitempty"`
}

type seriesResponse struct {
	NoradID int              `json:"norad_id"`
	Name    string           `json:"name,omitempty"`
	Epoch   time.Time        `json:"epoch"`
	Frame   string           `json:"frame"`
	Gravity string           `json:"gravity"`
	Samples []sampleResponse `json:"samples"`
}

// propagateHandler runs a time grid for a caller-supplied element set or for
// catalog satellites. Times are minutes from each satellite's epoch.
// POST /api/v1/propagate
// positionBudget is the per-request sample limit; a non-positive setting
// still stops at propagation.MaxSeriesLength.
func positionBudget(maxPositions int) int {
	if maxPositions <= 0 || maxPositions > propagation.MaxSeriesLength {
		return propagation.MaxSeriesLength
	}
	return maxPositions
}

func propagateHandler(logger *slog.Logger, prop *propagation.Propagator, maxPositions int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req propagateRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		frame, err := propagation.ParseFrame(req.Frame)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		cfg, custom, err := requestConfig(prop.Config().SGP4, req.Gravity, req.OpsMode)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		stop, step := defaultStopMin, defaultStepMin
		if req.StopMin != nil {
			stop = *req.StopMin
		}
		if req.StepMin != nil {
			step = *req.StepMin
		}
		n, err := propagation.SeriesLength(req.StartMin, stop, step)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		hasTLE := req.Line1 != "" || req.Line2 != ""
		switch {
		case hasTLE && len(req.NoradIDs) > 0:
			httputil.WriteError(w, http.StatusBadRequest, "give either line1/line2 or norad_ids, not both", nil)
			return
		case !hasTLE && len(req.NoradIDs) == 0:
			httputil.WriteError(w, http.StatusBadRequest, "line1/line2 or norad_ids required", nil)
			return
		}

		count := len(req.NoradIDs)
		if hasTLE {
			count = 1
		}
		if limit := positionBudget(maxPositions); n > limit/count {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("request needs %d positions, over the limit", n*count),
				map[string]any{"max_positions": limit, "requested": n * count})
			return
		}

		var sats []*propagation.Satellite
		if hasTLE {
			es, err := req.parse()
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error(), elementError(err))
				return
			}
			sat, err := propagation.NewSatellite(es, cfg)
			if err != nil {
				httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error(), elementError(err))
				return
			}
			sats = append(sats, sat)
		} else {
			sats, err = catalogSatellites(prop, req.NoradIDs, cfg, custom)
			if err != nil {
				writeLookupError(w, err)
				return
			}
		}

		out := make([]seriesResponse, 0, len(sats))
		for _, sat := range sats {
			samples, err := prop.Pool().PropagateSeries(r.Context(), sat, req.StartMin, stop, step)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					logger.Debug("propagate request abandoned", "norad_id", sat.CatalogNumber(), "error", err)
					return
				}
				httputil.WriteError(w, http.StatusInternalServerError, err.Error(), nil)
				return
			}
			out = append(out, seriesResponse{
				NoradID: sat.CatalogNumber(),
				Name:    sat.Set.Name,
				Epoch:   sat.Set.Epoch,
				Frame:   string(frame),
				Gravity: sat.State.Gravity().Name,
				Samples: encodeSamples(sat, samples, frame),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"satellites": out})
	}
}

// requestConfig overlays per-request model choices on the server default.
// custom reports whether anything was overridden.
func requestConfig(base sgp4.Config, gravity, opsmode string) (sgp4.Config, bool, error) {
	cfg := base
	custom := false
	if gravity != "" {
		g, err := sgp4.GravityByName(gravity)
		if err != nil {
			return cfg, false, err
		}
		cfg.Gravity = g
		custom = true
	}
	if opsmode != "" {
		m, err := sgp4.ParseOpsMode(opsmode)
		if err != nil {
			return cfg, false, err
		}
		cfg.Mode = m
		custom = true
	}
	return cfg, custom, nil
}

// catalogSatellites resolves catalog numbers, reinitializing element sets
// when the request overrides the model.
func catalogSatellites(prop *propagation.Propagator, ids []int, cfg sgp4.Config, custom bool) ([]*propagation.Satellite, error) {
	sats := make([]*propagation.Satellite, 0, len(ids))
	for _, id := range ids {
		sat, err := prop.Satellite(id)
		if err != nil {
			return nil, err
		}
		if custom {
			if sat, err = propagation.NewSatellite(sat.Set, cfg); err != nil {
				return nil, err
			}
		}
		sats = append(sats, sat)
	}
	return sats, nil
}

func encodeSamples(sat *propagation.Satellite, samples []propagation.Sample, frame propagation.Frame) []sampleResponse {
	out := make([]sampleResponse, len(samples))
	for i, s := range samples {
		t := sat.Set.Epoch.Add(time.Duration(s.Tsince * float64(time.Minute)))
		sr := sampleResponse{TsinceMin: s.Tsince, Time: t}
		if s.State.Position != (r3.Vec{}) {
			pos, vel := s.State.Position, s.State.Velocity
			if frame == propagation.FrameECEF {
				pos, vel = transform.TEMEToECEF(pos, vel, t)
			}
			p, v := vec3(pos), vec3(vel)
			sr.Position, sr.Velocity = &p, &v
		}
		var pe *sgp4.PropagationError
		switch {
		case s.Err == nil:
		case sgp4.IsWarning(s.Err):
			sr.Warning = s.Err.Error()
		case errors.As(s.Err, &pe):
			sr.Error = pe.Error()
			sr.ErrorCode = int(pe.Code)
		default:
			sr.Error = s.Err.Error()
		}
		out[i] = sr
	}
	return out
}

func vec3(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

type satelliteResponse struct {
	NoradID   int                   `json:"norad_id"`
	Name      string                `json:"name,omitempty"`
	Time      time.Time             `json:"time"`
	TsinceMin float64               `json:"tsince_min"`
	Frame     string                `json:"frame"`
	Position  [3]float64            `json:"position_km"`
	Velocity  [3]float64            `json:"velocity_km_s"`
	SpeedKmS  float64               `json:"speed_km_s"`
	Warning   bool                  `json:"warning,omitempty"`
	Subpoint  transform.Geodetic    `json:"subpoint"`
	Look      *transform.LookAngles `json:"look,omitempty"`
}

// satelliteHandler returns one catalog satellite's state.
// GET /api/v1/satellites/{norad_id}?t=RFC3339&frame=teme|ecef&lat=&lon=&alt=
func satelliteHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tle.ParseCatalogNumber(r.PathValue("norad_id"))
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id", nil)
			return
		}
		q := r.URL.Query()

		t := time.Now().UTC()
		if v := q.Get("t"); v != "" {
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid t parameter, want RFC 3339", nil)
				return
			}
			t = parsed.UTC()
		}
		frame, err := propagation.ParseFrame(q.Get("frame"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		observer, hasObserver, err := parseObserver(q.Get("lat"), q.Get("lon"), q.Get("alt"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		sat, err := prop.Satellite(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}

		pos, err := sat.At(t, propagation.FrameTEME, math.NaN())
		if err != nil {
			logger.Debug("satellite propagation failed", "norad_id", id, "error", err)
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		ecef, ecefVel := transform.TEMEToECEF(pos.Position, pos.Velocity, t)
		if frame == propagation.FrameECEF {
			pos.Position, pos.Velocity, pos.Frame = ecef, ecefVel, propagation.FrameECEF
		}

		resp := satelliteResponse{
			NoradID:   id,
			Name:      sat.Set.Name,
			Time:      t,
			TsinceMin: pos.Tsince,
			Frame:     string(pos.Frame),
			Position:  vec3(pos.Position),
			Velocity:  vec3(pos.Velocity),
			SpeedKmS:  pos.Speed(),
			Warning:   pos.Warning,
			Subpoint:  transform.ECEFToGeodetic(ecef),
		}
		if hasObserver {
			look := observer.Look(ecef)
			resp.Look = &look
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func parseObserver(lat, lon, alt string) (transform.Observer, bool, error) {
	if lat == "" && lon == "" {
		if alt != "" {
			return transform.Observer{}, false, errors.New("alt requires lat and lon")
		}
		return transform.Observer{}, false, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return transform.Observer{}, false, errors.New("invalid lat parameter, must be -90..90")
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || lo < -180 || lo > 360 {
		return transform.Observer{}, false, errors.New("invalid lon parameter, must be -180..360")
	}
	var al float64
	if alt != "" {
		if al, err = strconv.ParseFloat(alt, 64); err != nil || math.IsNaN(al) {
			return transform.Observer{}, false, errors.New("invalid alt parameter")
		}
	}
	return transform.NewObserver(la, lo, al), true, nil
}

const (
	defaultPassHours = 24.0
	maxPassHours     = 240.0
	defaultMinEl     = 10.0
	defaultMaxPasses = 10
	maxMaxPasses     = 100
)

type passesResponse struct {
	Observer transform.Geodetic `json:"observer"`
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	MinElDeg float64            `json:"min_elevation_deg"`
	passes.SatellitePasses
}

// passesHandler predicts passes of one catalog satellite over an observer.
// GET /api/v1/satellites/{norad_id}/passes?lat=&lon=&alt=&start=&hours=&min_el=&max=&track=
func passesHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tle.ParseCatalogNumber(r.PathValue("norad_id"))
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id", nil)
			return
		}
		q := r.URL.Query()

		observer, hasObserver, err := parseObserver(q.Get("lat"), q.Get("lon"), q.Get("alt"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if !hasObserver {
			httputil.WriteError(w, http.StatusBadRequest, "lat and lon are required", nil)
			return
		}

		start := time.Now().UTC()
		if v := q.Get("start"); v != "" {
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid start parameter, want RFC 3339", nil)
				return
			}
			start = parsed.UTC()
		}
		hours := defaultPassHours
		if v := q.Get("hours"); v != "" {
			hours, err = strconv.ParseFloat(v, 64)
			if err != nil || !(hours > 0 && hours <= maxPassHours) {
				httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid hours parameter, must be in (0, %g]", maxPassHours), nil)
				return
			}
		}
		minEl := defaultMinEl
		if v := q.Get("min_el"); v != "" {
			minEl, err = strconv.ParseFloat(v, 64)
			if err != nil || minEl < -5 || minEl >= 90 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid min_el parameter, must be -5..90", nil)
				return
			}
		}
		maxPasses := defaultMaxPasses
		if v := q.Get("max"); v != "" {
			maxPasses, err = strconv.Atoi(v)
			if err != nil || maxPasses < 1 || maxPasses > maxMaxPasses {
				httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid max parameter, must be 1..%d", maxMaxPasses), nil)
				return
			}
		}
		track, _ := strconv.ParseBool(q.Get("track"))

		sat, err := prop.Satellite(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}

		duration := time.Duration(hours * float64(time.Hour))
		results := passes.Predict(r.Context(), passes.Request{
			Observer:     observer,
			Satellites:   []*propagation.Satellite{sat},
			Start:        start,
			Duration:     duration,
			MinElevation: minEl,
			MaxPasses:    maxPasses,
			GroundTrack:  track,
			Workers:      1,
		})
		res := results[0]
		if res.Error != "" && len(res.Passes) == 0 {
			logger.Debug("pass prediction failed", "norad_id", id, "error", res.Error)
			httputil.WriteError(w, http.StatusUnprocessableEntity, res.Error, nil)
			return
		}
		if res.Passes == nil {
			res.Passes = []passes.Pass{}
		}
		httputil.WriteJSON(w, http.StatusOK, passesResponse{
			Observer:        observer.Geodetic,
			Start:           start,
			End:             start.Add(duration),
			MinElDeg:        minEl,
			SatellitePasses: res,
		})
	}
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.Is(err, propagation.ErrUnknownSatellite):
		httputil.WriteError(w, http.StatusNotFound, err.Error(), nil)
	default:
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error(), elementError(err))
	}
}

type frameSatellite struct {
	NoradID int        `json:"norad_id"`
	P       [3]float64 `json:"p"`
	V       [3]float64 `json:"v"`
	Warning bool       `json:"warning,omitempty"`
}

type frameResponse struct {
	T          time.Time        `json:"t"`
	Satellites []frameSatellite `json:"satellites"`
}

// framesHandler propagates the whole catalog over the configured horizon.
// GET /api/v1/frames?start=RFC3339
func framesHandler(logger *slog.Logger, prop *propagation.Propagator, maxPositions int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		if v := r.URL.Query().Get("start"); v != "" {
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid start parameter, want RFC 3339", nil)
				return
			}
			start = parsed.UTC()
		}

		sats, err := prop.Satellites()
		if err != nil {
			writeLookupError(w, err)
			return
		}
		cfg := prop.Config()
		if cfg.Step <= 0 {
			httputil.WriteError(w, http.StatusInternalServerError, "keyframe step is not configured", nil)
			return
		}
		requested := (int(cfg.Horizon/cfg.Step) + 1) * len(sats)
		if limit := positionBudget(maxPositions); requested > limit {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("catalog horizon needs %d positions, over the limit", requested),
				map[string]any{"max_positions": limit, "requested": requested})
			return
		}

		keyframes, err := prop.GenerateFrames(r.Context(), start)
		if err != nil {
			if r.Context().Err() != nil {
				logger.Debug("frames request abandoned", "error", err)
				return
			}
			httputil.WriteError(w, http.StatusInternalServerError, err.Error(), nil)
			return
		}

		out := make([]frameResponse, len(keyframes))
		for i, kf := range keyframes {
			fs := make([]frameSatellite, len(kf.Satellites))
			for j, p := range kf.Satellites {
				fs[j] = frameSatellite{NoradID: p.CatalogNumber, P: vec3(p.Position), V: vec3(p.Velocity), Warning: p.Warning}
			}
			out[i] = frameResponse{T: kf.Timestamp, Satellites: fs}
		}
		frame := cfg.Frame
		if frame == "" {
			frame = propagation.FrameTEME
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"frame": frame, "frames": out})
	}
}

type metadataResponse struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds int       `json:"age_seconds"`
	Count      int       `json:"count"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

func newMetadata(ds *tle.Dataset) metadataResponse {
	return metadataResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC(),
		AgeSeconds: int(time.Since(ds.FetchedAt).Seconds()),
		Count:      len(ds.Satellites),
		EpochMin:   ds.EpochRange.Min.UTC(),
		EpochMax:   ds.EpochRange.Max.UTC(),
	}
}

// metadataHandler describes the loaded catalog.
// GET /api/v1/tle/metadata
func metadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, propagation.ErrNoDataset.Error(), nil)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newMetadata(ds))
	}
}

// fetchHandler triggers a catalog refresh.
// POST /api/v1/tle/fetch
func fetchHandler(logger *slog.Logger, store *tle.Store, fetcher *tle.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetcher == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "catalog fetching is disabled", nil)
			return
		}
		ds, err := store.Refresh(r.Context(), fetcher, logger)
		if errors.Is(err, tle.ErrRefreshInProgress) {
			httputil.WriteError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		if err != nil {
			logger.Warn("catalog refresh failed", "source", fetcher.SourceURL(), "error", err)
			httputil.WriteError(w, http.StatusBadGateway, err.Error(), nil)
			return
		}
		metrics.SetCatalogSize(len(ds.Satellites))
		metrics.SetCatalogAge(0)
		httputil.WriteJSON(w, http.StatusOK, newMetadata(ds))
	}
}
