package diagnostics

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

var (
	beforeColor = color.NRGBA{R: 70, G: 110, B: 200, A: 140}
	afterColor  = color.NRGBA{R: 220, G: 90, B: 60, A: 140}
)

// PlotSink writes one PNG per observation with the before and after target
// histograms overlaid, each normalised to unit area.
type PlotSink struct {
	Dir    string
	Bins   int
	Width  vg.Length
	Height vg.Length

	logger log.Logger
}

// NewPlotSink writes into dir, creating it if needed.
func NewPlotSink(dir string, logger log.Logger) (*PlotSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create plot directory %s", dir)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &PlotSink{
		Dir:    dir,
		Bins:   30,
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
		logger: logger.With(log.ComponentKey, "diagnostics"),
	}, nil
}

// Path returns the file an observation is written to.
func (s *PlotSink) Path(o Observation) string {
	run := o.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	if run == "" {
		run = "run"
	}
	return filepath.Join(s.Dir, fmt.Sprintf("%s-fold%02d.png", run, o.Fold))
}

// Observe renders o. Failures are logged, never returned.
func (s *PlotSink) Observe(o Observation) {
	path := s.Path(o)
	if err := s.Render(o, path); err != nil {
		s.logger.Error("failed to write distribution plot", err, log.FoldKey, o.Fold)
		return
	}
	s.logger.Debug("distribution plot written", log.FoldKey, o.Fold, "path", path)
}

// Render draws o into path. The image format follows the file extension.
func (s *PlotSink) Render(o Observation, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Target distribution, fold %d", o.Fold)
	p.X.Label.Text = "target"
	p.Y.Label.Text = "density"

	for _, series := range []struct {
		name   string
		values []float64
		fill   color.Color
	}{
		{"before", o.Before, beforeColor},
		{"after", o.After, afterColor},
	} {
		if len(series.values) == 0 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(series.values), s.Bins)
		if err != nil {
			return errors.Wrapf(err, "histogram %s", series.name)
		}
		h.Normalize(1)
		h.FillColor = series.fill
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		p.Legend.Add(fmt.Sprintf("%s (n=%d)", series.name, len(series.values)), h)
	}
	p.Legend.Top = true

	if err := p.Save(s.Width, s.Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
