package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/star/tleprop/internal/passes"
	"github.com/star/tleprop/internal/tle"
)

const (
	vanguardLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	vanguardLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
	issLine1      = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2      = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPropagateCSV(t *testing.T) {
	out, err := run(t, "", "propagate", "--line1", vanguardLine1, "--line2", vanguardLine2,
		"--stop", "720", "--step", "360", "--format", "csv")
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want header + 3", len(records))
	}
	if records[0][0] != "norad_id" {
		t.Errorf("header = %v", records[0])
	}
	r := records[2]
	if r[0] != "5" || r[1] != "360" || r[3] != "teme" || r[10] != "ok" {
		t.Errorf("row = %v", r)
	}
	if !strings.HasPrefix(r[4], "-7154.0312") || !strings.HasPrefix(r[5], "-3783.1768") {
		t.Errorf("position = %s, %s", r[4], r[5])
	}
}

func TestPropagateCatalogFromStdin(t *testing.T) {
	catalog := strings.Join([]string{"ISS (ZARYA)", issLine1, issLine2, "VANGUARD 1", vanguardLine1, vanguardLine2}, "\n")

	out, err := run(t, catalog, "propagate", "--norad", "25544", "--stop", "90", "--step", "45", "--frame", "ecef", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []row
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for _, r := range rows {
		if r.NoradID != 25544 || r.Frame != "ecef" || r.Position == nil {
			t.Errorf("row = %+v", r)
		}
	}
}

func TestPropagateTable(t *testing.T) {
	out, err := run(t, "", "propagate", "--line1", issLine1, "--line2", issLine2, "--stop", "0")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "tsince") || !strings.Contains(lines[1], "25544") {
		t.Errorf("table:\n%s", out)
	}
}

func TestPropagateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "xml"}},
		{"bad frame", []string{"--frame", "j2000"}},
		{"bad gravity", []string{"--gravity", "egm96"}},
		{"zero step", []string{"--step", "0"}},
		{"denormal step", []string{"--step", "1e-300"}},
		{"oversized grid", []string{"--stop", "1440", "--step", "1e-6"}},
		{"wrong direction", []string{"--start", "10", "--stop", "0", "--step", "1"}},
		{"line1 alone", []string{"--line1", vanguardLine1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"propagate"}, tt.args...)
			if tt.name != "line1 alone" {
				args = append(args, "--line1", vanguardLine1, "--line2", vanguardLine2)
			}
			if _, err := run(t, "", args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := run(t, "", "propagate"); err == nil {
		t.Error("empty stdin: expected error")
	}
}

func TestCheck(t *testing.T) {
	catalog := strings.Join([]string{"ISS (ZARYA)", issLine1, issLine2, "BROKEN", vanguardLine1[:68] + "0", vanguardLine2}, "\n")

	out, err := run(t, catalog, "check")
	if err == nil {
		t.Error("expected error for invalid record")
	}
	if !strings.Contains(out, "25544 ISS (ZARYA) (near-earth") {
		t.Errorf("missing ok line:\n%s", out)
	}
	if !strings.Contains(out, "-:4: FAIL") || !strings.Contains(out, "checksum") {
		t.Errorf("missing failure line:\n%s", out)
	}
	if !strings.Contains(out, "2 record(s), 1 invalid") {
		t.Errorf("missing summary:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "good.txt")
	if err := os.WriteFile(path, []byte(issLine1+"\n"+issLine2+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if out, err := run(t, "", "check", "--no-init", path); err != nil {
		t.Errorf("valid file: %v\n%s", err, out)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "catalog.txt")
	os.WriteFile(good, []byte("VANGUARD 1\n"+vanguardLine1+"\n"+vanguardLine2+"\n"), 0o600)
	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, []byte("nothing here\n"), 0o600)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := tle.NewStore()
	if err := loadCatalogFile(store, good, logger); err != nil {
		t.Fatal(err)
	}
	ds := store.Get()
	if ds == nil || len(ds.Satellites) != 1 || ds.Source != "file:"+good {
		t.Fatalf("dataset = %+v", ds)
	}

	if err := loadCatalogFile(store, empty, logger); err == nil {
		t.Error("empty catalog: expected error")
	}
	if err := loadCatalogFile(store, filepath.Join(dir, "missing.txt"), logger); err == nil {
		t.Error("missing file: expected error")
	}
	if store.Get() != ds {
		t.Error("failed loads must not replace the dataset")
	}
}

func TestLoggerFlags(t *testing.T) {
	g := &globalFlags{logLevel: "loud", logFormat: "json"}
	if _, err := g.logger(io.Discard); err == nil {
		t.Error("bad level: expected error")
	}
	g = &globalFlags{logLevel: "warn", logFormat: "xml"}
	if _, err := g.logger(io.Discard); err == nil {
		t.Error("bad format: expected error")
	}
	g = &globalFlags{logLevel: "DEBUG", logFormat: "text"}
	if _, err := g.logger(io.Discard); err != nil {
		t.Error(err)
	}
}

func TestPasses(t *testing.T) {
	args := []string{"passes", "--line1", issLine1, "--line2", issLine2, "--name", "ISS",
		"--lat", "40.7128", "--lon", "-74.006", "--start", "2008-09-20T13:25:40Z", "--min-el", "0", "--max", "2"}

	out, err := run(t, "", append(args, "--format", "json")...)
	if err != nil {
		t.Fatal(err)
	}
	var results []passes.SatellitePasses
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].CatalogNumber != 25544 || results[0].Name != "ISS" {
		t.Fatalf("results = %+v", results)
	}
	if n := len(results[0].Passes); n == 0 || n > 2 {
		t.Fatalf("got %d passes, want 1..2", n)
	}
	if len(results[0].Passes[0].GroundTrack) == 0 {
		t.Error("json output should carry the ground track")
	}

	out, err = run(t, "", args...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "rise (UTC)") || !strings.Contains(out, "25544") {
		t.Errorf("table output:\n%s", out)
	}

	if _, err := run(t, "", "passes", "--line1", issLine1, "--line2", issLine2, "--lat", "40"); err == nil {
		t.Error("expected an error without --lon")
	}
	if _, err := run(t, "", append(args, "--hours", "0")...); err == nil {
		t.Error("expected an error for --hours 0")
	}
}
