package telemetry

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pthm-cable/voxsoc/criticality"
)

// WriteLogLogPlot renders the observed log-log points of d and its fitted
// line. The image format follows the extension of path.
func WriteLogLogPlot(path, title string, d criticality.Distribution) error {
	if len(d.Points) == 0 {
		return fmt.Errorf("plotting %s: no points", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "log extent"
	p.Y.Label.Text = "log count"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(d.Points))
	for i, pt := range d.Points {
		xys[i].X, xys[i].Y = pt.X, pt.Y
	}
	observed, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("plotting %s: %w", title, err)
	}
	observed.GlyphStyle.Radius = vg.Points(3)
	p.Add(observed)
	p.Legend.Add("observed", observed)

	if len(xys) >= 2 {
		fit := plotter.NewFunction(d.Fit.Predict)
		fit.XMin, fit.XMax = xys[0].X, xys[len(xys)-1].X
		fit.Color = color.RGBA{R: 200, A: 255}
		fit.Width = vg.Points(1.5)
		p.Add(fit)
		p.Legend.Add(fmt.Sprintf("fit (R²=%.3f, KS=%.3f)", d.Fit.R2, d.KS), fit)
	}

	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
