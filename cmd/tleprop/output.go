package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/transform"
)

// row is one output sample. Position and velocity are absent when the
// propagator produced no state.
type row struct {
	NoradID   int         `json:"norad_id"`
	TsinceMin float64     `json:"tsince_min"`
	Time      time.Time   `json:"time"`
	Frame     string      `json:"frame"`
	Position  *[3]float64 `json:"position_km,omitempty"`
	Velocity  *[3]float64 `json:"velocity_km_s,omitempty"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
}

func newRow(sat *propagation.Satellite, s propagation.Sample, frame propagation.Frame) row {
	t := sat.Set.Epoch.Add(time.Duration(s.Tsince * float64(time.Minute))).UTC()
	r := row{NoradID: sat.CatalogNumber(), TsinceMin: s.Tsince, Time: t, Frame: string(frame), Status: "ok"}
	if s.State.Position != (r3.Vec{}) {
		pos, vel := s.State.Position, s.State.Velocity
		if frame == propagation.FrameECEF {
			pos, vel = transform.TEMEToECEF(pos, vel, t)
		}
		p := [3]float64{pos.X, pos.Y, pos.Z}
		v := [3]float64{vel.X, vel.Y, vel.Z}
		r.Position, r.Velocity = &p, &v
	}

	var pe *sgp4.PropagationError
	switch {
	case s.Err == nil:
	case sgp4.IsWarning(s.Err):
		r.Status = "warning"
		r.Error = s.Err.Error()
	case errors.As(s.Err, &pe):
		r.Status = "error " + strconv.Itoa(int(pe.Code))
		r.Error = pe.Error()
	default:
		r.Status = "error"
		r.Error = s.Err.Error()
	}
	return r
}

type rowWriter interface {
	write(row) error
	flush() error
}

func newRowWriter(format string, w io.Writer) (rowWriter, error) {
	switch format {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "norad\ttsince\tx\ty\tz\tvx\tvy\tvz\tstatus\t")
		return &tableWriter{tw: tw}, nil
	case "csv":
		cw := csv.NewWriter(w)
		err := cw.Write([]string{"norad_id", "tsince_min", "time", "frame", "x_km", "y_km", "z_km", "vx_km_s", "vy_km_s", "vz_km_s", "status"})
		return &csvWriter{cw: cw}, err
	case "json":
		return &jsonWriter{w: w}, nil
	}
	return nil, fmt.Errorf("--format: unknown format %q (want table, csv or json)", format)
}

type tableWriter struct{ tw *tabwriter.Writer }

func (t *tableWriter) write(r row) error {
	if r.Position == nil {
		_, err := fmt.Fprintf(t.tw, "%d\t%.8f\t\t\t\t\t\t\t%s\t\n", r.NoradID, r.TsinceMin, r.Status)
		return err
	}
	p, v := r.Position, r.Velocity
	_, err := fmt.Fprintf(t.tw, "%d\t%.8f\t%.8f\t%.8f\t%.8f\t%.9f\t%.9f\t%.9f\t%s\t\n",
		r.NoradID, r.TsinceMin, p[0], p[1], p[2], v[0], v[1], v[2], r.Status)
	return err
}

func (t *tableWriter) flush() error { return t.tw.Flush() }

type csvWriter struct{ cw *csv.Writer }

func (c *csvWriter) write(r row) error {
	rec := []string{
		strconv.Itoa(r.NoradID),
		strconv.FormatFloat(r.TsinceMin, 'f', -1, 64),
		r.Time.Format(time.RFC3339Nano),
		r.Frame,
		"", "", "", "", "", "",
		r.Status,
	}
	if r.Position != nil {
		for i := 0; i < 3; i++ {
			rec[4+i] = strconv.FormatFloat(r.Position[i], 'f', 8, 64)
			rec[7+i] = strconv.FormatFloat(r.Velocity[i], 'f', 9, 64)
		}
	}
	return c.cw.Write(rec)
}

func (c *csvWriter) flush() error {
	c.cw.Flush()
	return c.cw.Error()
}

// jsonWriter buffers rows and writes a single array on flush.
type jsonWriter struct {
	w    io.Writer
	rows []row
}

func (j *jsonWriter) write(r row) error {
	j.rows = append(j.rows, r)
	return nil
}

func (j *jsonWriter) flush() error {
	if j.rows == nil {
		j.rows = []row{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.rows)
}
