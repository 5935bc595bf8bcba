// Copyright 2020 Aleksandr Demakin. All rights reserved.

package blas

import (
	"github.com/avdva/posit"
)

// Crout computes the LU decomposition of a square matrix with Crout's method.
// The result holds L on and below the diagonal and U above it,
// the diagonal of U is implicitly 1. Every element is computed with one rounding.
// A zero pivot yields NaR, or an error if the format's policy is SignalInvalid.
func Crout[P posit.Params](a *Matrix[P]) (*Matrix[P], error) {
	if a.rows != a.cols {
		return nil, Error.New("matrix is not square: %dx%d", a.rows, a.cols)
	}
	n := a.rows
	lu := NewMatrix[P](n, n)
	q, err := posit.NewQuire[P](n)
	if err != nil {
		return nil, err
	}
	for k := 0; k < n; k++ {
		for i := k; i < n; i++ {
			q.Reset()
			if err := q.Add(a.At(i, k)); err != nil {
				return nil, err
			}
			for p := 0; p < k; p++ {
				if err := q.SubtractAccumulate(lu.At(i, p), lu.At(p, k)); err != nil {
					return nil, err
				}
			}
			lu.Set(i, k, q.ToPosit())
		}
		pivot := lu.At(k, k)
		for j := k + 1; j < n; j++ {
			q.Reset()
			if err := q.Add(a.At(k, j)); err != nil {
				return nil, err
			}
			for p := 0; p < k; p++ {
				if err := q.SubtractAccumulate(lu.At(k, p), lu.At(p, j)); err != nil {
					return nil, err
				}
			}
			v, err := q.ToPosit().Div(pivot)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			lu.Set(k, j, v)
		}
	}
	return lu, nil
}

// SolveCrout solves a*x = b, where lu is the result of Crout(a).
func SolveCrout[P posit.Params](lu *Matrix[P], b Vector[P]) (Vector[P], error) {
	n := lu.rows
	if lu.cols != n || len(b) != n {
		return nil, Error.New("can't solve %dx%d system with %d values", lu.rows, lu.cols, len(b))
	}
	q, err := posit.NewQuire[P](max(n, 1))
	if err != nil {
		return nil, err
	}
	// L*y = b
	y := make(Vector[P], n)
	for i := 0; i < n; i++ {
		q.Reset()
		if err := q.Add(b[i]); err != nil {
			return nil, err
		}
		for k := 0; k < i; k++ {
			if err := q.SubtractAccumulate(lu.At(i, k), y[k]); err != nil {
				return nil, err
			}
		}
		if y[i], err = q.ToPosit().Div(lu.At(i, i)); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	// U*x = y
	x := make(Vector[P], n)
	for i := n - 1; i >= 0; i-- {
		q.Reset()
		if err := q.Add(y[i]); err != nil {
			return nil, err
		}
		for k := i + 1; k < n; k++ {
			if err := q.SubtractAccumulate(lu.At(i, k), x[k]); err != nil {
				return nil, err
			}
		}
		x[i] = q.ToPosit()
	}
	return x, nil
}
