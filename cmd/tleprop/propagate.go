package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/tle"
)

type propagateOptions struct {
	name, line1, line2 string
	file               string
	norad              []string
	start, stop, step  float64
	gravity, opsmode   string
	frame              string
	format             string
	workers            int
}

func newPropagateCmd(g *globalFlags) *cobra.Command {
	o := &propagateOptions{}
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Propagate element sets over a time grid",
		Long: `Propagate one element set given with --line1/--line2, or every element set
of a catalog read from --file (or standard input), over start..stop in steps
of step minutes from each element set's epoch.`,
		Example: `  tleprop propagate --line1 "1 00005U ..." --line2 "2 00005 ..." --stop 4320 --step 360
  curl -s "$CATALOG_URL" | tleprop propagate --norad 25544 --frame ecef --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropagate(cmd.Context(), g, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.name, "name", "", "satellite name for --line1/--line2")
	f.StringVar(&o.line1, "line1", "", "TLE line 1")
	f.StringVar(&o.line2, "line2", "", "TLE line 2")
	f.StringVarP(&o.file, "file", "f", "-", "catalog file, - for standard input")
	f.StringSliceVar(&o.norad, "norad", nil, "only propagate these catalog numbers")
	f.Float64Var(&o.start, "start", 0, "first time, minutes from epoch")
	f.Float64Var(&o.stop, "stop", 1440, "last time, minutes from epoch")
	f.Float64Var(&o.step, "step", 360, "time step in minutes (negative to go backwards)")
	f.StringVar(&o.gravity, "gravity", "wgs72", "gravity model: wgs72old, wgs72 or wgs84")
	f.StringVar(&o.opsmode, "opsmode", "improved", "operation mode: improved or afspc")
	f.StringVar(&o.frame, "frame", "teme", "output frame: teme or ecef")
	f.StringVar(&o.format, "format", "table", "output format: table, csv or json")
	f.IntVar(&o.workers, "workers", runtime.NumCPU(), "propagation workers")
	cmd.MarkFlagsRequiredTogether("line1", "line2")
	return cmd
}

func (o *propagateOptions) sgp4Config() (sgp4.Config, error) {
	g, err := sgp4.GravityByName(o.gravity)
	if err != nil {
		return sgp4.Config{}, fmt.Errorf("--gravity: %w", err)
	}
	m, err := sgp4.ParseOpsMode(o.opsmode)
	if err != nil {
		return sgp4.Config{}, fmt.Errorf("--opsmode: %w", err)
	}
	return sgp4.Config{Gravity: g, Mode: m}, nil
}

// elementSets returns the element sets selected by the options.
func (o *propagateOptions) elementSets(stdin io.Reader, logger *slog.Logger) ([]tle.ElementSet, error) {
	if o.line1 != "" {
		es, err := tle.ParseWithName(o.name, o.line1, o.line2)
		if err != nil {
			return nil, err
		}
		return []tle.ElementSet{es}, nil
	}

	r := stdin
	if o.file != "-" {
		f, err := os.Open(o.file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	sets, err := tle.ParseCatalog(r, logger)
	if err != nil {
		return nil, err
	}
	if len(o.norad) == 0 {
		return sets, nil
	}

	want := make(map[int]bool, len(o.norad))
	for _, s := range o.norad {
		id, ok := tle.ParseCatalogNumber(s)
		if !ok {
			return nil, fmt.Errorf("--norad: invalid catalog number %q", s)
		}
		want[id] = true
	}
	var out []tle.ElementSet
	for _, es := range sets {
		if want[es.CatalogNumber] {
			out = append(out, es)
		}
	}
	return out, nil
}

func runPropagate(ctx context.Context, g *globalFlags, o *propagateOptions, stdin io.Reader, stdout io.Writer) error {
	logger, err := g.logger(os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := o.sgp4Config()
	if err != nil {
		return err
	}
	frame, err := propagation.ParseFrame(o.frame)
	if err != nil {
		return fmt.Errorf("--frame: %w", err)
	}
	out, err := newRowWriter(o.format, stdout)
	if err != nil {
		return err
	}
	if _, err := propagation.SeriesLength(o.start, o.stop, o.step); err != nil {
		return err
	}

	sets, err := o.elementSets(stdin, logger)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return errors.New("no element sets to propagate")
	}

	pool := propagation.NewWorkerPool(o.workers, logger)

	var failed []string
	for _, es := range sets {
		sat, err := propagation.NewSatellite(es, cfg)
		if err != nil {
			failed = append(failed, err.Error())
			logger.Warn("sgp4 init failed", "norad_id", es.CatalogNumber, "error", err)
			continue
		}
		samples, err := pool.PropagateSeries(ctx, sat, o.start, o.stop, o.step)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if err := out.write(newRow(sat, s, frame)); err != nil {
				return err
			}
		}
	}
	if err := out.flush(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d element set(s) could not be initialized: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}
