// Package spectral fits flux-versus-frequency polynomials to running catalog
// entries and caches them on the entry.
//
// The model is log10(S) = sum_k c_k * log10(nu)^k. Its order is chosen by
// raising it from zero while each step improves chi-square by more than a
// configured ratio.
package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/errors"
)

// StopPolicy selects the model returned when order selection stops on the
// ratio test.
type StopPolicy string

const (
	// StopPrevious returns the last model that passed the ratio test.
	StopPrevious StopPolicy = conf.StopPolicyPrevious
	// StopFailing returns the model that failed the ratio test.
	StopFailing StopPolicy = conf.StopPolicyFailing
)

// ErrNoData indicates there is nothing to fit.
var ErrNoData = errors.NewStd("no usable flux measurements")

// Point is one band's contribution to a fit.
type Point struct {
	X float64 // log10(frequency / Hz)
	Y float64 // log10(flux / Jy)
	W float64 // inverse variance of Y
}

// PointFromFlux converts a band's weighted-mean flux into a fit point. ok is
// false for non-positive or non-finite values, which have no logarithm.
func PointFromFlux(frequency, flux, fluxErr float64) (Point, bool) {
	if !(frequency > 0) || !(flux > 0) || !(fluxErr > 0) ||
		math.IsInf(frequency, 0) || math.IsInf(flux, 0) || math.IsInf(fluxErr, 0) {
		return Point{}, false
	}
	// sigma(log10 S) = sigma_S / (S ln 10)
	w := flux * math.Ln10 / fluxErr
	return Point{X: math.Log10(frequency), Y: math.Log10(flux), W: w * w}, true
}

// Model is a fitted polynomial.
type Model struct {
	Order     int
	Coeffs    []float64 // c_0 .. c_Order
	ChiSquare float64
}

// Eval returns the model at x = log10(frequency).
func (m Model) Eval(x float64) float64 {
	y := 0.0
	for k := len(m.Coeffs) - 1; k >= 0; k-- {
		y = y*x + m.Coeffs[k]
	}
	return y
}

// Fitter selects and fits polynomial models.
type Fitter struct {
	maxOrder int
	ratio    float64
	policy   StopPolicy
}

// NewFitter creates a Fitter from spectral settings.
func NewFitter(s *conf.SpectralSettings) *Fitter {
	return &Fitter{maxOrder: s.MaxOrder, ratio: s.ChiSquareRatio, policy: StopPolicy(s.StopPolicy)}
}

// Fit chooses the order and fits points.
//
// Orders 0, 1, ... are fitted while order <= min(maxOrder, len(points)-1).
// Each step is accepted when prevChi2/curChi2 > ratio. When a step is
// rejected, StopPrevious returns the last accepted model and StopFailing the
// rejected one. When the order limit is reached the last accepted model is
// returned under either policy.
func (f *Fitter) Fit(points []Point) (Model, error) {
	if len(points) == 0 {
		return Model{}, ErrNoData
	}

	limit := min(f.maxOrder, len(points)-1)
	best, err := fitOrder(points, 0)
	if err != nil {
		return Model{}, err
	}

	for order := 1; order <= limit; order++ {
		cur, err := fitOrder(points, order)
		if err != nil {
			return Model{}, err
		}
		if best.ChiSquare/cur.ChiSquare > f.ratio {
			best = cur
			continue
		}
		if f.policy == StopFailing {
			return cur, nil
		}
		return best, nil
	}
	return best, nil
}

// fitOrder solves the weighted least squares problem for one order by QR.
func fitOrder(points []Point, order int) (Model, error) {
	n, p := len(points), order+1
	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, pt := range points {
		sw := math.Sqrt(pt.W)
		xk := 1.0
		for k := range p {
			a.Set(i, k, sw*xk)
			xk *= pt.X
		}
		b.SetVec(i, sw*pt.Y)
	}

	var qr mat.QR
	qr.Factorize(a)
	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return Model{}, errors.New(fmt.Errorf("order %d fit: %w", order, err)).
			Component("spectral").
			Category(errors.CategoryProcessing).
			Context("points", n).
			Build()
	}

	m := Model{Order: order, Coeffs: make([]float64, p)}
	for k := range p {
		m.Coeffs[k] = c.AtVec(k)
	}
	for _, pt := range points {
		r := pt.Y - m.Eval(pt.X)
		m.ChiSquare += pt.W * r * r
	}
	return m, nil
}
