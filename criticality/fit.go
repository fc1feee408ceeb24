package criticality

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one sample of a log-log distribution.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LogLog maps a histogram to (log(bucket+shift), log(count)) points in
// ascending bucket order.
func LogLog(h Histogram, shift int, log func(float64) float64) []Point {
	buckets := h.Buckets()
	pts := make([]Point, len(buckets))
	for i, b := range buckets {
		pts[i] = Point{X: log(float64(b + shift)), Y: log(float64(h[b]))}
	}
	return pts
}

// Fit is an ordinary least-squares line y = Intercept + Slope*x.
type Fit struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	R2        float64 `json:"r2"`
}

// Predict evaluates the line at x.
func (f Fit) Predict(x float64) float64 { return f.Intercept + f.Slope*x }

// FitLine regresses Y on X. An undefined R² (constant X or Y, fewer than
// two points) is reported as 0.
func FitLine(pts []Point) Fit {
	if len(pts) == 0 {
		return Fit{}
	}
	xs, ys := split(pts)
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return Fit{Intercept: alpha, Slope: beta, R2: r2}
}

// CumulativeKS returns the largest absolute gap between the running sums of
// predicted and observed Y, scanned in point order. With sorted set, both
// sequences are sorted ascending first. Any NaN input yields NaN.
func CumulativeKS(pts []Point, fit Fit, sorted bool) float64 {
	predicted, observed := predictions(pts, fit)
	if sorted {
		slices.Sort(predicted)
		slices.Sort(observed)
	}
	floats.CumSum(predicted, predicted)
	floats.CumSum(observed, observed)

	var d float64
	for i := range predicted {
		d = math.Max(d, math.Abs(predicted[i]-observed[i]))
	}
	return d
}

// TwoSampleKS returns the two-sample Kolmogorov-Smirnov statistic between
// the predicted and observed Y values.
func TwoSampleKS(pts []Point, fit Fit) float64 {
	if len(pts) == 0 {
		return math.NaN()
	}
	predicted, observed := predictions(pts, fit)
	slices.Sort(predicted)
	slices.Sort(observed)
	return stat.KolmogorovSmirnov(predicted, nil, observed, nil)
}

func predictions(pts []Point, fit Fit) (predicted, observed []float64) {
	predicted = make([]float64, len(pts))
	observed = make([]float64, len(pts))
	for i, p := range pts {
		predicted[i] = fit.Predict(p.X)
		observed[i] = p.Y
	}
	return predicted, observed
}

func split(pts []Point) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	return xs, ys
}
