// Package report renders diagnostic charts for a training run.
package report

import (
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// PlotModelReport draws one bar per candidate with its held-out R².
// The image format follows the extension of path (.png, .svg, .pdf).
func PlotModelReport(names []string, scores []float64, path string) error {
	if len(names) == 0 || len(names) != len(scores) {
		return errors.NewValueError("PlotModelReport", "names and scores must be non-empty and of equal length")
	}
	p := plot.New()
	p.Title.Text = "Candidate models"
	p.Y.Label.Text = "Test R²"

	values := make(plotter.Values, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		values[i] = s
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	p.Add(bars)
	p.NominalX(names...)

	width := vg.Length(len(names)) * vg.Inch
	if width < 4*vg.Inch {
		width = 4 * vg.Inch
	}
	return save(p, width, 4*vg.Inch, path)
}

// PlotPredictions draws predicted against actual values together with the
// identity line.
func PlotPredictions(yTrue, yPred []float64, path string) error {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return errors.NewValueError("PlotPredictions", "yTrue and yPred must be non-empty and of equal length")
	}
	p := plot.New()
	p.Title.Text = "Predicted vs actual"
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"

	pts := make(plotter.XYs, len(yTrue))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
		lo = math.Min(lo, math.Min(yTrue[i], yPred[i]))
		hi = math.Max(hi, math.Max(yTrue[i], yPred[i]))
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build scatter")
	}
	p.Add(s)

	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "failed to build identity line")
	}
	l.LineStyle.Width = vg.Points(1)
	l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(l)

	return save(p, 4*vg.Inch, 4*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("mkdir", filepath.Dir(path), err)
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
