package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/tle"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	var skipInit bool
	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Validate catalog files and report format and checksum errors",
		Long: `Decode every record of the given catalogs (standard input when no file is
given) and report, per record, the format, checksum or range error that
rejects it. Unless --no-init is set, valid records are also initialized
for SGP4 so that non-propagatable orbits are reported too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return checkCatalog(cmd.OutOrStdout(), "-", cmd.InOrStdin(), !skipInit)
			}
			var bad int
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				err = checkCatalog(cmd.OutOrStdout(), path, f, !skipInit)
				f.Close()
				if err != nil {
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d file(s) contain invalid records", bad, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipInit, "no-init", false, "only decode, do not initialize the propagator")
	return cmd
}

func checkCatalog(w io.Writer, source string, r io.Reader, init bool) error {
	entries, err := tle.ReadCatalog(r)
	if err != nil {
		return err
	}
	var bad int
	for _, e := range entries {
		where := fmt.Sprintf("%s:%d", source, e.LineIndex+1)
		if e.Err != nil {
			bad++
			fmt.Fprintf(w, "%s: FAIL %v\n", where, e.Err)
			continue
		}
		label := fmt.Sprintf("%05d", e.Set.CatalogNumber)
		if e.Name != "" {
			label += " " + e.Name
		}
		if !init {
			fmt.Fprintf(w, "%s: ok   %s\n", where, label)
			continue
		}
		sat, err := propagation.NewSatellite(e.Set, sgp4.DefaultConfig())
		if err != nil {
			bad++
			fmt.Fprintf(w, "%s: FAIL %s: %v\n", where, label, err)
			continue
		}
		st := sat.State
		fmt.Fprintf(w, "%s: ok   %s (%s, period %.2f min, perigee %.1f km)\n",
			where, label, st.Regime(), st.Elements().Period().Minutes(), st.PerigeeAltitude())
	}
	fmt.Fprintf(w, "%s: %d record(s), %d invalid\n", source, len(entries), bad)
	if bad > 0 {
		return fmt.Errorf("%s: %d invalid record(s)", source, bad)
	}
	return nil
}
