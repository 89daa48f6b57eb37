package rates

import (
	"fmt"
	"math"
	"sort"
)

// cubicSpline interpolates (x, y) knots with not-a-knot end conditions.
// Points outside the knot range evaluate on the boundary polynomials, so the
// curve extends smoothly past both ends.
type cubicSpline struct {
	xs []float64
	ys []float64
	m  []float64 // second derivatives at the knots
}

// newCubicSpline fits a spline through the knots. xs must be strictly
// increasing and hold at least four points; not-a-knot conditions need the
// two extra interior constraints.
func newCubicSpline(xs, ys []float64) (*cubicSpline, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, fmt.Errorf("spline: %d xs for %d ys", n, len(ys))
	}
	if n < 4 {
		return nil, fmt.Errorf("spline: need at least 4 points, got %d", n)
	}
	for i := 1; i < n; i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("spline: xs not strictly increasing at index %d", i)
		}
	}

	h := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
	}

	// Solve for the knot second derivatives. Rows 1..n-2 are the usual
	// continuity equations; the first and last rows pin the third derivative
	// across the second and second-to-last knots (not-a-knot).
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n+1)
	}

	a[0][0] = h[1]
	a[0][1] = -(h[0] + h[1])
	a[0][2] = h[0]

	for i := 1; i < n-1; i++ {
		a[i][i-1] = h[i-1]
		a[i][i] = 2 * (h[i-1] + h[i])
		a[i][i+1] = h[i]
		a[i][n] = 6 * ((ys[i+1]-ys[i])/h[i] - (ys[i]-ys[i-1])/h[i-1])
	}

	a[n-1][n-3] = h[n-2]
	a[n-1][n-2] = -(h[n-3] + h[n-2])
	a[n-1][n-1] = h[n-3]

	m, err := solveLinear(a)
	if err != nil {
		return nil, fmt.Errorf("spline: %w", err)
	}

	return &cubicSpline{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
		m:  m,
	}, nil
}

// evaluate returns the spline value at x. Outside [xs[0], xs[n-1]] the
// nearest boundary segment's cubic keeps going.
func (s *cubicSpline) evaluate(x float64) float64 {
	n := len(s.xs)
	i := sort.SearchFloat64s(s.xs, x)
	if i > 0 {
		i--
	}
	if i > n-2 {
		i = n - 2
	}

	h := s.xs[i+1] - s.xs[i]
	left := s.xs[i+1] - x
	right := x - s.xs[i]

	return s.m[i]*left*left*left/(6*h) +
		s.m[i+1]*right*right*right/(6*h) +
		(s.ys[i]-s.m[i]*h*h/6)*left/h +
		(s.ys[i+1]-s.m[i+1]*h*h/6)*right/h
}

// solveLinear solves the augmented system in place with partial pivoting.
// Each row holds n coefficients and the constant term.
func solveLinear(a [][]float64) ([]float64, error) {
	n := len(a)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if a[pivot][col] == 0 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := a[row][n]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}

	return x, nil
}
