// Copyright 2020 Aleksandr Demakin. All rights reserved.

// Package blas implements basic linear algebra over posits.
// Inner products are fused: every element of a result is accumulated in a quire
// and rounded once, so results do not depend on the order of the terms.
package blas

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/errs"
	"golang.org/x/sync/errgroup"

	"github.com/avdva/posit"
	mu "github.com/avdva/posit/internal/mathutil"
)

// Error is the class of dimension and argument errors.
var Error = errs.Class("blas")

// ctxCheckInterval is the number of terms between context checks in ParallelDot.
const ctxCheckInterval = 1024

// Vector is a dense vector.
type Vector[P posit.Params] []posit.Posit[P]

// VectorFromFloat64 returns a vector of the posits nearest to values.
func VectorFromFloat64[P posit.Params](values []float64) Vector[P] {
	v := make(Vector[P], len(values))
	for i, f := range values {
		v[i] = posit.FromFloat64[P](f)
	}
	return v
}

// Float64 returns v converted to float64 values.
func (v Vector[P]) Float64() []float64 {
	result := make([]float64, len(v))
	for i, p := range v {
		result[i] = p.Float64()
	}
	return result
}

func (v Vector[P]) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	return b.String()
}

// DotQuire accumulates the inner product of x and y in a new quire.
func DotQuire[P posit.Params](x, y Vector[P]) (*posit.Quire[P], error) {
	if len(x) != len(y) {
		return nil, Error.New("vector lengths differ: %d and %d", len(x), len(y))
	}
	q, err := posit.NewQuire[P](max(len(x), 1))
	if err != nil {
		return nil, err
	}
	for i := range x {
		if err := q.Accumulate(x[i], y[i]); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Dot returns the inner product of x and y with a single rounding.
func Dot[P posit.Params](x, y Vector[P]) (posit.Posit[P], error) {
	q, err := DotQuire(x, y)
	if err != nil {
		return posit.Posit[P]{}, err
	}
	return q.ToPosit(), nil
}

// NaiveDot returns the inner product of x and y, rounding after every operation.
func NaiveDot[P posit.Params](x, y Vector[P]) (posit.Posit[P], error) {
	var sum posit.Posit[P]
	if len(x) != len(y) {
		return sum, Error.New("vector lengths differ: %d and %d", len(x), len(y))
	}
	for i := range x {
		sum = sum.Add(x[i].Mul(y[i]))
	}
	return sum, nil
}

// ParallelDotQuire splits the inner product into partitions, accumulates
// them concurrently and merges the partial quires. The result is identical
// to DotQuire for any number of partitions.
func ParallelDotQuire[P posit.Params](ctx context.Context, x, y Vector[P], partitions int) (*posit.Quire[P], error) {
	if len(x) != len(y) {
		return nil, Error.New("vector lengths differ: %d and %d", len(x), len(y))
	}
	if partitions < 1 {
		return nil, Error.New("invalid number of partitions %d", partitions)
	}
	partitions = max(min(partitions, len(x)), 1)
	chunk := max(mu.CeilDiv(len(x), partitions), 1)
	parts := make([]*posit.Quire[P], partitions)
	g, ctx := errgroup.WithContext(ctx)
	for i := range parts {
		lo, hi := min(i*chunk, len(x)), min((i+1)*chunk, len(x))
		q, err := posit.NewQuire[P](max(hi-lo, 1))
		if err != nil {
			return nil, err
		}
		parts[i] = q
		g.Go(func() error {
			for j := lo; j < hi; j++ {
				if (j-lo)%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := q.Accumulate(x[j], y[j]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total, err := posit.NewQuire[P](max(len(x), 1))
	if err != nil {
		return nil, err
	}
	for _, q := range parts {
		if err := total.Merge(q); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// ParallelDot returns the inner product of x and y computed by ParallelDotQuire.
func ParallelDot[P posit.Params](ctx context.Context, x, y Vector[P], partitions int) (posit.Posit[P], error) {
	q, err := ParallelDotQuire(ctx, x, y, partitions)
	if err != nil {
		return posit.Posit[P]{}, err
	}
	return q.ToPosit(), nil
}

// Matrix is a dense row-major matrix.
type Matrix[P posit.Params] struct {
	rows, cols int
	data       []posit.Posit[P]
}

// NewMatrix returns a zero matrix.
func NewMatrix[P posit.Params](rows, cols int) *Matrix[P] {
	return &Matrix[P]{rows: rows, cols: cols, data: make([]posit.Posit[P], rows*cols)}
}

// MatrixFromFloat64 returns a matrix of the posits nearest to the given rows.
func MatrixFromFloat64[P posit.Params](rows [][]float64) (*Matrix[P], error) {
	var cols int
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m := NewMatrix[P](len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, Error.New("row %d has %d elements, expected %d", i, len(row), cols)
		}
		for j, f := range row {
			m.Set(i, j, posit.FromFloat64[P](f))
		}
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix[P]) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *Matrix[P]) Cols() int {
	return m.cols
}

// At returns the element at row i and column j.
func (m *Matrix[P]) At(i, j int) posit.Posit[P] {
	return m.data[i*m.cols+j]
}

// Set sets the element at row i and column j.
func (m *Matrix[P]) Set(i, j int, v posit.Posit[P]) {
	m.data[i*m.cols+j] = v
}

// Row returns row i. The vector shares memory with m.
func (m *Matrix[P]) Row(i int) Vector[P] {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Col returns a copy of column j.
func (m *Matrix[P]) Col(j int) Vector[P] {
	v := make(Vector[P], m.rows)
	for i := range v {
		v[i] = m.At(i, j)
	}
	return v
}

// Float64 returns m converted to float64 rows.
func (m *Matrix[P]) Float64() [][]float64 {
	result := make([][]float64, m.rows)
	for i := range result {
		result[i] = m.Row(i).Float64()
	}
	return result
}

func (m *Matrix[P]) String() string {
	var b strings.Builder
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			fmt.Fprintf(&b, "%14v", m.At(i, j))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MatVec returns a*x with fused inner products.
func MatVec[P posit.Params](a *Matrix[P], x Vector[P]) (Vector[P], error) {
	if a.cols != len(x) {
		return nil, Error.New("can't multiply %dx%d matrix by a vector of %d", a.rows, a.cols, len(x))
	}
	result := make(Vector[P], a.rows)
	for i := range result {
		p, err := Dot(a.Row(i), x)
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// MatMul returns a*b with fused inner products.
func MatMul[P posit.Params](a, b *Matrix[P]) (*Matrix[P], error) {
	if a.cols != b.rows {
		return nil, Error.New("can't multiply %dx%d and %dx%d matrices", a.rows, a.cols, b.rows, b.cols)
	}
	result := NewMatrix[P](a.rows, b.cols)
	q, err := posit.NewQuire[P](max(a.cols, 1))
	if err != nil {
		return nil, err
	}
	for i := 0; i < a.rows; i++ {
		for j := 0; j < b.cols; j++ {
			q.Reset()
			for k := 0; k < a.cols; k++ {
				if err := q.Accumulate(a.At(i, k), b.At(k, j)); err != nil {
					return nil, err
				}
			}
			result.Set(i, j, q.ToPosit())
		}
	}
	return result, nil
}
