package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/tleprop/internal/passes"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/transform"
)

type passesOptions struct {
	src           propagateOptions
	lat, lon, alt float64
	start         string
	hours         float64
	minEl         float64
	max           int
	format        string
}

func newPassesCmd(g *globalFlags) *cobra.Command {
	o := &passesOptions{}
	cmd := &cobra.Command{
		Use:   "passes",
		Short: "Predict passes over a ground observer",
		Example: `  tleprop passes -f stations.txt --norad 25544 --lat 40.7128 --lon -74.006 --hours 48
  tleprop passes --line1 "1 25544U ..." --line2 "2 25544 ..." --lat 51.5 --lon 0 --min-el 20 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(cmd.Context(), g, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.src.name, "name", "", "satellite name for --line1/--line2")
	f.StringVar(&o.src.line1, "line1", "", "TLE line 1")
	f.StringVar(&o.src.line2, "line2", "", "TLE line 2")
	f.StringVarP(&o.src.file, "file", "f", "-", "catalog file, - for standard input")
	f.StringSliceVar(&o.src.norad, "norad", nil, "only predict these catalog numbers")
	f.StringVar(&o.src.gravity, "gravity", "wgs72", "gravity model: wgs72old, wgs72 or wgs84")
	f.StringVar(&o.src.opsmode, "opsmode", "improved", "operation mode: improved or afspc")
	f.IntVar(&o.src.workers, "workers", runtime.NumCPU(), "concurrent satellites")
	f.Float64Var(&o.lat, "lat", 0, "observer latitude, degrees north")
	f.Float64Var(&o.lon, "lon", 0, "observer longitude, degrees east")
	f.Float64Var(&o.alt, "alt", 0, "observer altitude, km above the ellipsoid")
	f.StringVar(&o.start, "start", "", "window start, RFC 3339 (default now)")
	f.Float64Var(&o.hours, "hours", 24, "window length in hours")
	f.Float64Var(&o.minEl, "min-el", 10, "minimum elevation in degrees")
	f.IntVar(&o.max, "max", 0, "maximum passes per satellite, 0 for no limit")
	f.StringVar(&o.format, "format", "table", "output format: table or json")
	cmd.MarkFlagsRequiredTogether("line1", "line2")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func runPasses(ctx context.Context, g *globalFlags, o *passesOptions, stdin io.Reader, stdout io.Writer) error {
	logger, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	if o.lat < -90 || o.lat > 90 {
		return fmt.Errorf("--lat: %g out of range -90..90", o.lat)
	}
	if o.hours <= 0 {
		return errors.New("--hours must be positive")
	}
	if o.format != "table" && o.format != "json" {
		return fmt.Errorf("--format: unknown format %q (want table or json)", o.format)
	}
	start := time.Now().UTC()
	if o.start != "" {
		if start, err = time.Parse(time.RFC3339Nano, o.start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		start = start.UTC()
	}
	cfg, err := o.src.sgp4Config()
	if err != nil {
		return err
	}

	sets, err := o.src.elementSets(stdin, logger)
	if err != nil {
		return err
	}
	var sats []*propagation.Satellite
	for _, es := range sets {
		sat, err := propagation.NewSatellite(es, cfg)
		if err != nil {
			logger.Warn("sgp4 init failed", "norad_id", es.CatalogNumber, "error", err)
			continue
		}
		sats = append(sats, sat)
	}
	if len(sats) == 0 {
		return errors.New("no element sets to predict")
	}

	results := passes.Predict(ctx, passes.Request{
		Observer:     transform.NewObserver(o.lat, o.lon, o.alt),
		Satellites:   sats,
		Start:        start,
		Duration:     time.Duration(o.hours * float64(time.Hour)),
		MinElevation: o.minEl,
		MaxPasses:    o.max,
		GroundTrack:  o.format == "json",
		Workers:      o.src.workers,
	})
	for _, r := range results {
		if r.Error != "" {
			logger.Warn("pass prediction stopped early", "norad_id", r.CatalogNumber, "error", r.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return writePassTable(stdout, results)
}

func writePassTable(w io.Writer, results []passes.SatellitePasses) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "norad\tname\trise (UTC)\taz\tculmination\tmax el\tset\taz\tduration\t")
	const layout = "2006-01-02 15:04:05"
	for _, r := range results {
		for _, p := range r.Passes {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\t%s\t%.1f\t%s\t%.0f\t%s\t\n",
				r.CatalogNumber, r.Name,
				p.Rise.Format(layout), p.RiseAzimuth,
				p.Culmination.Format("15:04:05"), p.MaxElevation,
				p.Set.Format("15:04:05"), p.SetAzimuth,
				time.Duration(p.Duration*float64(time.Second)).Round(time.Second))
		}
	}
	return tw.Flush()
}
