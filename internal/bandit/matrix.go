package bandit

import (
	"errors"
	"math"
)

// errNotPositiveDefinite is returned by cholesky when the input matrix is
// not (numerically) symmetric positive definite.
var errNotPositiveDefinite = errors.New("bandit: matrix is not positive definite")

// cholesky computes the lower-triangular factor L such that A = L*L^T for a
// symmetric positive definite matrix A. Returns errNotPositiveDefinite if a
// diagonal pivot is non-positive (extreme ill-conditioning).
func cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	l := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errNotPositiveDefinite
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// choleskySolve solves A*x = rhs given A's Cholesky factor L (A = L*L^T) via
// forward then back substitution.
func choleskySolve(l [][]float64, rhs []float64) []float64 {
	n := len(l)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := rhs[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * y[k]
		}
		y[i] = sum / l[i][i]
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// quadForm computes x^T * Ainv * x given A's Cholesky factor, i.e. x . solve(A, x).
func quadForm(l [][]float64, x []float64) float64 {
	ainvX := choleskySolve(l, x)
	var sum float64
	for i := range x {
		sum += x[i] * ainvX[i]
	}
	return sum
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func identity(n int, scale float64) [][]float64 {
	m := newMatrix(n)
	for i := 0; i < n; i++ {
		m[i][i] = scale
	}
	return m
}

func cloneMatrix(a [][]float64) [][]float64 {
	m := make([][]float64, len(a))
	for i, row := range a {
		m[i] = append([]float64(nil), row...)
	}
	return m
}

func cloneVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}

// addOuterProduct adds x*x^T into a in place: a[i][j] += x[i]*x[j].
func addOuterProduct(a [][]float64, x []float64) {
	for i := range x {
		for j := range x {
			a[i][j] += x[i] * x[j]
		}
	}
}

// addScaled adds scale*x into b in place: b[i] += scale*x[i].
func addScaled(b []float64, scale float64, x []float64) {
	for i := range x {
		b[i] += scale * x[i]
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
