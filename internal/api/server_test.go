package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/auth"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/tle"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	vanguardLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	vanguardLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testStore(t *testing.T) *tle.Store {
	t.Helper()
	var sets []tle.ElementSet
	for _, p := range [][3]string{{"ISS (ZARYA)", issLine1, issLine2}, {"VANGUARD 1", vanguardLine1, vanguardLine2}} {
		es, err := tle.ParseWithName(p[0], p[1], p[2])
		if err != nil {
			t.Fatal(err)
		}
		sets = append(sets, es)
	}
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", time.Now(), sets))
	return store
}

func testPropagator(store *tle.Store) *propagation.Propagator {
	return propagation.NewPropagator(store, propagation.PropConfig{
		Workers: 2,
		Step:    time.Minute,
		Horizon: 10 * time.Minute,
		SGP4:    sgp4.DefaultConfig(),
	}, testLogger())
}

func testServer(t *testing.T, cfg Config, store *tle.Store, fetcher *tle.Fetcher) http.Handler {
	t.Helper()
	return NewServer(cfg, testLogger(), store, fetcher, testPropagator(store), nil).Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func tleBody(extra string) string {
	return fmt.Sprintf(`{"line1":%q,"line2":%q%s}`, issLine1, issLine2, extra)
}

// TestPropagateBudget verifies that requests exceeding the max positions
// budget are rejected with 400 instead of consuming unbounded CPU.
func TestPropagateBudget(t *testing.T) {
	h := testServer(t, Config{MaxPositions: 10000}, testStore(t), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"one-minute grid over sixty days", tleBody(`,"stop_min":86400,"step_min":1`), http.StatusBadRequest},
		{"two satellites just over", `{"norad_ids":[5,25544],"stop_min":5000,"step_min":1}`, http.StatusBadRequest},
		{"default grid", tleBody(""), http.StatusOK},
		{"two satellites within", `{"norad_ids":[5,25544],"stop_min":4998,"step_min":1}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/propagate", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				resp := decode(t, w)
				if resp["error"] == nil {
					t.Error("expected error field in response")
				}
				if resp["max_positions"] == nil {
					t.Error("expected max_positions field in response")
				}
			}
		})
	}
}

// TestPropagateUnlimitedBudget checks that max_positions 0 still stops at
// the series length ceiling instead of allocating the grid.
func TestPropagateUnlimitedBudget(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)

	tests := []struct {
		name      string
		body      string
		wantLimit bool
	}{
		{"denormal step", tleBody(`,"step_min":1e-300`), false},
		{"negative denormal step", tleBody(`,"start_min":10,"stop_min":0,"step_min":-1e-300`), false},
		{"microsecond-scale step over a day", tleBody(`,"stop_min":1440,"step_min":1e-6`), false},
		{"two satellites over the ceiling", `{"norad_ids":[5,25544],"stop_min":6000000,"step_min":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/propagate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			resp := decode(t, w)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
			if tt.wantLimit && resp["max_positions"] != float64(propagation.MaxSeriesLength) {
				t.Errorf("max_positions = %v, want %d", resp["max_positions"], propagation.MaxSeriesLength)
			}
		})
	}
}

func TestPropagateReferencePoint(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)

	w := do(h, http.MethodPost, "/api/v1/propagate", `{"norad_ids":[5],"stop_min":720,"step_min":360}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Satellites []seriesResponse `json:"satellites"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Satellites) != 1 || len(resp.Satellites[0].Samples) != 3 {
		t.Fatalf("unexpected shape: %+v", resp)
	}
	s := resp.Satellites[0].Samples[1]
	if s.TsinceMin != 360 || s.Position == nil {
		t.Fatalf("sample = %+v", s)
	}
	want := [3]float64{-7154.03120202, -3783.17682504, -3536.19412294}
	for i := range want {
		if math.Abs(s.Position[i]-want[i]) > 1e-6 {
			t.Errorf("position[%d] = %.8f, want %.8f", i, s.Position[i], want[i])
		}
	}
	if resp.Satellites[0].Gravity != "wgs72" {
		t.Errorf("gravity = %q", resp.Satellites[0].Gravity)
	}
}

func TestPropagateRequestErrors(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"empty body", "", http.StatusBadRequest, ""},
		{"unknown field", `{"lines":[]}`, http.StatusBadRequest, ""},
		{"nothing to propagate", `{"stop_min":10}`, http.StatusBadRequest, ""},
		{"both sources", tleBody(`,"norad_ids":[5]`), http.StatusBadRequest, ""},
		{"zero step", tleBody(`,"step_min":0`), http.StatusBadRequest, ""},
		{"backwards step", tleBody(`,"start_min":10,"stop_min":0,"step_min":1`), http.StatusBadRequest, ""},
		{"bad frame", tleBody(`,"frame":"j2000"`), http.StatusBadRequest, ""},
		{"bad gravity", tleBody(`,"gravity":"egm96"`), http.StatusBadRequest, ""},
		{"bad checksum", fmt.Sprintf(`{"line1":%q,"line2":%q}`, issLine1[:68]+"0", issLine2), http.StatusBadRequest, "checksum"},
		{"unknown satellite", `{"norad_ids":[99999]}`, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/propagate", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decode(t, w)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
			if tt.wantKind != "" && resp["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", resp["kind"], tt.wantKind)
			}
		})
	}
}

func TestEncodeSamplesOutcomes(t *testing.T) {
	es, err := tle.Parse(issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	sat, err := propagation.NewSatellite(es, sgp4.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	sv := sgp4.StateVector{
		Position: r3.Vec{X: 22000, Y: 1500, Z: 0},
		Velocity: r3.Vec{X: -0.5, Y: 6, Z: 0},
	}
	samples := []propagation.Sample{
		{Tsince: 0, State: sv},
		{Tsince: 1, State: sv, Err: &sgp4.ConvergenceWarning{Tsince: 1, Iterations: 10, Residual: -5e-5}},
		{Tsince: 2, State: sv, Err: &sgp4.PropagationError{Tsince: 2, Code: sgp4.Decayed, Value: 6000}},
		{Tsince: 3, Err: &sgp4.PropagationError{Tsince: 3, Code: sgp4.MeanEccentricity, Value: 1.2}},
	}

	out := encodeSamples(sat, samples, propagation.FrameTEME)
	if len(out) != 4 {
		t.Fatalf("got %d samples, want 4", len(out))
	}

	if out[0].Warning != "" || out[0].Error != "" || out[0].Position == nil {
		t.Errorf("clean sample = %+v", out[0])
	}

	w := out[1]
	if !strings.Contains(w.Warning, "did not converge") {
		t.Errorf("warning = %q", w.Warning)
	}
	if w.Error != "" || w.ErrorCode != 0 {
		t.Errorf("warning sample carries an error: %+v", w)
	}
	if w.Position == nil || w.Position[0] != 22000 || w.Velocity == nil || w.Velocity[1] != 6 {
		t.Errorf("warning sample lost its vector: %+v", w)
	}
	body, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(body, []byte(`"warning":"kepler solver did not converge`)) {
		t.Errorf("encoded sample = %s", body)
	}

	if d := out[2]; d.ErrorCode != int(sgp4.Decayed) || d.Warning != "" || d.Position == nil {
		t.Errorf("decayed sample = %+v", d)
	}
	if f := out[3]; f.ErrorCode != int(sgp4.MeanEccentricity) || f.Position != nil {
		t.Errorf("failed sample = %+v", f)
	}
}

func TestPropagateModelOverride(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)

	w := do(h, http.MethodPost, "/api/v1/propagate", `{"norad_ids":[25544],"stop_min":0,"gravity":"wgs84","opsmode":"afspc","frame":"ecef"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Satellites []seriesResponse `json:"satellites"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if got := resp.Satellites[0]; got.Gravity != "wgs84" || got.Frame != "ecef" || len(got.Samples) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestParseHandler(t *testing.T) {
	h := testServer(t, Config{}, tle.NewStore(), nil)

	w := do(h, http.MethodPost, "/api/v1/tle/parse", fmt.Sprintf(`{"name":"VANGUARD 1","line1":%q,"line2":%q}`, vanguardLine1, vanguardLine2))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp elementsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.NoradID != 5 || resp.Name != "VANGUARD 1" || resp.Classification != "U" {
		t.Errorf("identity = %d %q %q", resp.NoradID, resp.Name, resp.Classification)
	}
	if resp.Regime != "near-earth" || resp.Resonance != "none" {
		t.Errorf("regime = %s/%s", resp.Regime, resp.Resonance)
	}
	if resp.PeriodMin < 132 || resp.PeriodMin > 134 {
		t.Errorf("period = %.3f min", resp.PeriodMin)
	}
	if resp.PerigeeKm >= resp.ApogeeKm {
		t.Errorf("perigee %.1f >= apogee %.1f", resp.PerigeeKm, resp.ApogeeKm)
	}

	w = do(h, http.MethodPost, "/api/v1/tle/parse", fmt.Sprintf(`{"line1":%q,"line2":%q}`, issLine2, issLine1))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("swapped lines: status = %d", w.Code)
	}
	if resp := decode(t, w); resp["kind"] != "format" || resp["line"] != float64(1) {
		t.Errorf("swapped lines: %v", resp)
	}
}

func TestSatelliteHandler(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)
	at := "2008-09-20T13:25:40Z"

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"teme", "/api/v1/satellites/25544?t=" + at, http.StatusOK},
		{"ecef", "/api/v1/satellites/25544?frame=ecef&t=" + at, http.StatusOK},
		{"zero-padded id", "/api/v1/satellites/00005?t=2000-06-28T00:00:00Z", http.StatusOK},
		{"unknown", "/api/v1/satellites/99999", http.StatusNotFound},
		{"bad id", "/api/v1/satellites/iss", http.StatusBadRequest},
		{"bad time", "/api/v1/satellites/25544?t=yesterday", http.StatusBadRequest},
		{"bad frame", "/api/v1/satellites/25544?frame=gcrs", http.StatusBadRequest},
		{"lat without lon", "/api/v1/satellites/25544?lat=10", http.StatusBadRequest},
		{"alt alone", "/api/v1/satellites/25544?alt=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, tt.target, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestSatelliteLookAngles(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)
	at := "2008-09-20T13:25:40Z"

	w := do(h, http.MethodGet, "/api/v1/satellites/25544?frame=ecef&t="+at, "")
	var first satelliteResponse
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}
	if first.Frame != "ecef" || first.Look != nil {
		t.Fatalf("frame = %s, look = %v", first.Frame, first.Look)
	}
	if first.Subpoint.AltKm < 300 || first.Subpoint.AltKm > 450 {
		t.Errorf("subpoint altitude = %.1f km", first.Subpoint.AltKm)
	}
	if first.SpeedKmS < 7 || first.SpeedKmS > 8 {
		t.Errorf("ecef speed = %.3f km/s", first.SpeedKmS)
	}

	target := fmt.Sprintf("/api/v1/satellites/25544?t=%s&lat=%f&lon=%f", at, first.Subpoint.LatDeg, first.Subpoint.LonDeg)
	w = do(h, http.MethodGet, target, "")
	var second satelliteResponse
	if err := json.NewDecoder(w.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if second.Look == nil {
		t.Fatal("expected look angles")
	}
	if second.Look.ElevationDeg < 89 {
		t.Errorf("elevation = %.3f, want ~90", second.Look.ElevationDeg)
	}
	if math.Abs(second.Look.RangeKm-first.Subpoint.AltKm) > 1 {
		t.Errorf("range = %.3f, altitude = %.3f", second.Look.RangeKm, first.Subpoint.AltKm)
	}
	if second.Frame != "teme" {
		t.Errorf("frame = %s", second.Frame)
	}
}

func TestNoCatalog(t *testing.T) {
	h := testServer(t, Config{}, tle.NewStore(), nil)

	for _, target := range []string{"/api/v1/satellites/25544", "/api/v1/tle/metadata"} {
		if w := do(h, http.MethodGet, target, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", target, w.Code)
		}
	}
	if w := do(h, http.MethodPost, "/api/v1/tle/fetch", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("fetch disabled: status = %d, want 503", w.Code)
	}
	// A caller-supplied element set does not need the catalog.
	if w := do(h, http.MethodPost, "/api/v1/propagate", tleBody(`,"stop_min":10`)); w.Code != http.StatusOK {
		t.Errorf("propagate: status = %d", w.Code)
	}
}

func TestFetchAndMetadata(t *testing.T) {
	catalog := fmt.Sprintf("VANGUARD 1\n%s\n%s\n", vanguardLine1, vanguardLine2)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, catalog)
	}))
	defer upstream.Close()

	store := tle.NewStore()
	h := testServer(t, Config{}, store, tle.NewFetcher(upstream.URL, testLogger()))

	if w := do(h, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before fetch = %d, want 503", w.Code)
	}

	w := do(h, http.MethodPost, "/api/v1/tle/fetch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d: %s", w.Code, w.Body.String())
	}

	w = do(h, http.MethodGet, "/api/v1/tle/metadata", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metadata status = %d", w.Code)
	}
	var meta metadataResponse
	json.NewDecoder(w.Body).Decode(&meta)
	if meta.Count != 1 || meta.Source != upstream.URL {
		t.Errorf("metadata = %+v", meta)
	}
	wantEpoch := time.Date(2000, 6, 27, 18, 50, 19, 733_000_000, time.UTC)
	if d := meta.EpochMin.Sub(wantEpoch); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("epoch_min = %s", meta.EpochMin)
	}

	if w := do(h, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz after fetch = %d, want 200", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/satellites/5?t=2000-06-28T00:00:00Z", ""); w.Code != http.StatusOK {
		t.Errorf("fetched satellite status = %d", w.Code)
	}
}

func TestFetchUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := testServer(t, Config{}, tle.NewStore(), tle.NewFetcher(upstream.URL, testLogger()))
	if w := do(h, http.MethodPost, "/api/v1/tle/fetch", ""); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := testServer(t, Config{RatePerSec: 0.01, RateBurst: 2}, testStore(t), nil)

	for i := 0; i < 2; i++ {
		if w := do(h, http.MethodGet, "/api/v1/tle/metadata", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := do(h, http.MethodGet, "/api/v1/tle/metadata", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// Probes are never limited.
	if w := do(h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestIPRateLimiterEvictsIdle(t *testing.T) {
	l := newIPRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	if l.size() != 2 {
		t.Fatalf("size = %d, want 2", l.size())
	}

	now = now.Add(limiterIdle + time.Minute)
	if !l.allow("10.0.0.3") {
		t.Error("fresh ip should be allowed")
	}
	if l.size() != 1 {
		t.Errorf("size after sweep = %d, want 1", l.size())
	}
}

func TestAuthChain(t *testing.T) {
	h := testServer(t, Config{Auth: auth.Config{Enabled: true, Token: "tok"}}, testStore(t), nil)

	if w := do(h, http.MethodGet, "/api/v1/tle/metadata", ""); w.Code != http.StatusOK {
		t.Errorf("metadata status = %d, want 200", w.Code)
	}
	if w := do(h, http.MethodPost, "/api/v1/propagate", tleBody("")); w.Code != http.StatusUnauthorized {
		t.Errorf("propagate without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tle/parse", bytes.NewBufferString(tleBody("")))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("parse with token = %d, want 200", w.Code)
	}
}

func TestFramesHandler(t *testing.T) {
	store := testStore(t)

	h := testServer(t, Config{MaxPositions: 10}, store, nil)
	w := do(h, http.MethodGet, "/api/v1/frames", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("over budget: status = %d, want 400", w.Code)
	}
	if resp := decode(t, w); resp["requested"] != float64(22) {
		t.Errorf("requested = %v, want 22", resp["requested"])
	}

	h = testServer(t, Config{}, store, nil)
	if w := do(h, http.MethodGet, "/api/v1/frames?start=noon", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad start: status = %d", w.Code)
	}
	w = do(h, http.MethodGet, "/api/v1/frames?start=2008-09-20T13:25:40Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Frame  string          `json:"frame"`
		Frames []frameResponse `json:"frames"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Frame != "teme" || len(resp.Frames) != 11 {
		t.Fatalf("frame = %s, frames = %d", resp.Frame, len(resp.Frames))
	}
	if got := resp.Frames[10].T.Sub(resp.Frames[0].T); got != 10*time.Minute {
		t.Errorf("span = %s, want 10m", got)
	}
	found := false
	for _, s := range resp.Frames[0].Satellites {
		if s.NoradID == 25544 {
			found = true
		}
	}
	if !found {
		t.Error("ISS missing from first frame")
	}
}

func TestPassesHandler(t *testing.T) {
	h := testServer(t, Config{}, testStore(t), nil)

	for _, target := range []string{
		"/api/v1/satellites/25544/passes",
		"/api/v1/satellites/25544/passes?lat=40.7&lon=-74&hours=0",
		"/api/v1/satellites/25544/passes?lat=40.7&lon=-74&hours=1000",
		"/api/v1/satellites/25544/passes?lat=40.7&lon=-74&min_el=90",
		"/api/v1/satellites/25544/passes?lat=40.7&lon=-74&max=0",
		"/api/v1/satellites/25544/passes?lat=40.7&lon=-74&start=today",
		"/api/v1/satellites/iss/passes?lat=40.7&lon=-74",
	} {
		if w := do(h, http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
	if w := do(h, http.MethodGet, "/api/v1/satellites/99999/passes?lat=40.7&lon=-74", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown satellite: status = %d, want 404", w.Code)
	}

	w := do(h, http.MethodGet, "/api/v1/satellites/25544/passes?lat=40.7128&lon=-74.006&start=2008-09-20T13:25:40Z&min_el=0&max=3&track=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		NoradID int    `json:"norad_id"`
		Name    string `json:"name"`
		End     time.Time
		Passes  []struct {
			Rise        time.Time         `json:"rise"`
			Set         time.Time         `json:"set"`
			MaxEl       float64           `json:"max_elevation_deg"`
			GroundTrack []json.RawMessage `json:"ground_track"`
		} `json:"passes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.NoradID != 25544 || resp.Name != "ISS (ZARYA)" {
		t.Errorf("satellite = %d %q", resp.NoradID, resp.Name)
	}
	if want := time.Date(2008, 9, 21, 13, 25, 40, 0, time.UTC); !resp.End.Equal(want) {
		t.Errorf("end = %v, want %v", resp.End, want)
	}
	if len(resp.Passes) == 0 || len(resp.Passes) > 3 {
		t.Fatalf("got %d passes, want 1..3", len(resp.Passes))
	}
	for i, p := range resp.Passes {
		if !p.Set.After(p.Rise) || p.MaxEl <= 0 {
			t.Errorf("pass %d: rise %v set %v max %.2f", i, p.Rise, p.Set, p.MaxEl)
		}
		if len(p.GroundTrack) < 2 {
			t.Errorf("pass %d: ground track missing", i)
		}
	}
}
