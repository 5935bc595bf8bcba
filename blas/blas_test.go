// Copyright 2020 Aleksandr Demakin. All rights reserved.

package blas

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/avdva/posit"
)

var signal32 = posit.MustFormat(32, 2, posit.WithPolicy(posit.SignalInvalid))

type sig32 struct{}

func (sig32) Format() *posit.Format { return signal32 }

var seed = flag.Int64("seed", 1, "seed of the randomized tests")

func newRand(t testing.TB) *rand.Rand {
	t.Logf("seed %d", *seed)
	return rand.New(rand.NewSource(*seed))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func bitsEqual[P posit.Params]() cmp.Option {
	return cmp.Comparer(func(a, b posit.Posit[P]) bool { return a.Bits() == b.Bits() })
}

func randomVector[P posit.Params](rnd *rand.Rand, n int) Vector[P] {
	v := make(Vector[P], n)
	for i := range v {
		v[i] = posit.FromFloat64[P](rnd.NormFloat64() * float64(int(1)<<uint(rnd.Intn(40))))
	}
	return v
}

// triangular returns the factors of the 5x5 test system.
func triangular[P posit.Params](t *testing.T) (l, u *Matrix[P]) {
	var err error
	u, err = MatrixFromFloat64[P]([][]float64{
		{1, 2, 3, 4, 5},
		{0, 1, 2, 3, 4},
		{0, 0, 1, 2, 3},
		{0, 0, 0, 1, 2},
		{0, 0, 0, 0, 1},
	})
	require.NoError(t, err)
	l, err = MatrixFromFloat64[P]([][]float64{
		{1, 0, 0, 0, 0},
		{2, 1, 0, 0, 0},
		{3, 2, 1, 0, 0},
		{4, 3, 2, 1, 0},
		{5, 4, 3, 2, 1},
	})
	require.NoError(t, err)
	return l, u
}

func TestDot(t *testing.T) {
	a := assert.New(t)
	x := VectorFromFloat64[posit.P32E2]([]float64{1e8, 1, -1e8})
	y := VectorFromFloat64[posit.P32E2]([]float64{1, 1, 1})
	fused, err := Dot(x, y)
	a.NoError(err)
	a.Equal(posit.One[posit.P32E2](), fused)
	naive, err := NaiveDot(x, y)
	a.NoError(err)
	a.True(naive.IsZero())

	empty, err := Dot(Vector[posit.P32E2]{}, Vector[posit.P32E2]{})
	a.NoError(err)
	a.True(empty.IsZero())

	_, err = Dot(x, y[:2])
	a.True(Error.Has(err))
	_, err = NaiveDot(x, y[:2])
	a.True(Error.Has(err))

	x[1] = posit.NaR[posit.P32E2]()
	nar, err := Dot(x, y)
	a.NoError(err)
	a.True(nar.IsNaR())
}

func TestDotOrderIndependent(t *testing.T) {
	r := require.New(t)
	rnd := newRand(t)
	for i := 0; i < 50; i++ {
		n := 1 + rnd.Intn(200)
		x, y := randomVector[posit.P16E1](rnd, n), randomVector[posit.P16E1](rnd, n)
		expected, err := Dot(x, y)
		r.NoError(err)
		perm := rnd.Perm(n)
		px, py := make(Vector[posit.P16E1], n), make(Vector[posit.P16E1], n)
		for j, k := range perm {
			px[j], py[j] = x[k], y[k]
		}
		actual, err := Dot(px, py)
		r.NoError(err)
		r.Equal(expected, actual)
	}
}

func TestParallelDot(t *testing.T) {
	r := require.New(t)
	rnd := newRand(t)
	ctx := context.Background()
	for _, n := range []int{1, 2, 7, 100, 5000} {
		x, y := randomVector[posit.P32E2](rnd, n), randomVector[posit.P32E2](rnd, n)
		expected, err := DotQuire(x, y)
		r.NoError(err)
		for _, partitions := range []int{1, 2, 3, 8, n + 5} {
			t.Run(fmt.Sprintf("%d/%d", n, partitions), func(t *testing.T) {
				q, err := ParallelDotQuire(ctx, x, y, partitions)
				require.NoError(t, err)
				assert.True(t, expected.Equal(q))
				p, err := ParallelDot(ctx, x, y, partitions)
				require.NoError(t, err)
				assert.Equal(t, expected.ToPosit(), p)
				eb, err := expected.MarshalBinary()
				require.NoError(t, err)
				qb, err := q.MarshalBinary()
				require.NoError(t, err)
				assert.Equal(t, eb, qb)
			})
		}
	}
}

func TestParallelDotErrors(t *testing.T) {
	a := assert.New(t)
	x := VectorFromFloat64[posit.P32E2]([]float64{1, 2, 3})
	_, err := ParallelDot(context.Background(), x, x[:1], 2)
	a.True(Error.Has(err))
	_, err = ParallelDot(context.Background(), x, x, 0)
	a.True(Error.Has(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ParallelDot(ctx, x, x, 2)
	a.ErrorIs(err, context.Canceled)

	y := VectorFromFloat64[sig32]([]float64{1, 2, 3})
	y[2] = posit.NaR[sig32]()
	_, err = ParallelDot(context.Background(), y, y, 3)
	a.True(posit.ArithmeticError.Has(err))

	empty, err := ParallelDot(context.Background(), Vector[posit.P32E2]{}, nil, 4)
	a.NoError(err)
	a.True(empty.IsZero())
}

func TestMatrix(t *testing.T) {
	a := assert.New(t)
	m, err := MatrixFromFloat64[posit.P16E1]([][]float64{{1, 2, 3}, {4, 5, 6}})
	a.NoError(err)
	a.Equal(2, m.Rows())
	a.Equal(3, m.Cols())
	a.Equal(posit.FromInt64[posit.P16E1](6), m.At(1, 2))
	a.Equal([]float64{2, 5}, m.Col(1).Float64())
	a.Equal([][]float64{{1, 2, 3}, {4, 5, 6}}, m.Float64())
	m.Row(0)[0] = posit.FromInt64[posit.P16E1](7)
	a.Equal(posit.FromInt64[posit.P16E1](7), m.At(0, 0))
	a.Equal("[7 2 3]", m.Row(0).String())
	a.Equal(fmt.Sprintf("%14s%14s%14s\n%14s%14s%14s\n", "7", "2", "3", "4", "5", "6"), m.String())

	_, err = MatrixFromFloat64[posit.P16E1]([][]float64{{1, 2}, {3}})
	a.True(Error.Has(err))
	empty, err := MatrixFromFloat64[posit.P16E1](nil)
	a.NoError(err)
	a.Equal(0, empty.Rows())
}

func TestMatMul(t *testing.T) {
	a := assert.New(t)
	l, u := triangular[posit.P32E2](t)
	prod, err := MatMul(l, u)
	a.NoError(err)
	a.Equal([][]float64{
		{1, 2, 3, 4, 5},
		{2, 5, 8, 11, 14},
		{3, 8, 14, 20, 26},
		{4, 11, 20, 30, 40},
		{5, 14, 26, 40, 55},
	}, prod.Float64())

	_, err = MatMul(l, NewMatrix[posit.P32E2](3, 3))
	a.True(Error.Has(err))

	x := VectorFromFloat64[posit.P32E2]([]float64{1, 1, 1, 1, 1})
	b, err := MatVec(prod, x)
	a.NoError(err)
	a.Equal([]float64{15, 40, 71, 105, 140}, b.Float64())
	_, err = MatVec(prod, x[:4])
	a.True(Error.Has(err))
}

func TestCrout(t *testing.T) {
	r := require.New(t)
	l, u := triangular[posit.P32E2](t)
	a, err := MatMul(l, u)
	r.NoError(err)
	lu, err := Crout(a)
	r.NoError(err)
	// L has a unit diagonal here, so the factors are recovered exactly.
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i >= j {
				r.Equal(l.At(i, j), lu.At(i, j), "%d %d", i, j)
			} else {
				r.Equal(u.At(i, j), lu.At(i, j), "%d %d", i, j)
			}
		}
	}

	expected := VectorFromFloat64[posit.P32E2]([]float64{1, -2, 3, -4, 5})
	b, err := MatVec(a, expected)
	r.NoError(err)
	x, err := SolveCrout(lu, b)
	r.NoError(err)
	r.Empty(cmp.Diff(expected, x, bitsEqual[posit.P32E2]()))

	_, err = Crout(NewMatrix[posit.P32E2](2, 3))
	r.True(Error.Has(err))
	_, err = SolveCrout(lu, b[:3])
	r.True(Error.Has(err))
}

func TestCroutEpsilon(t *testing.T) {
	r := require.New(t)
	l, u := triangular[posit.P32E2](t)
	a, err := MatMul(l, u)
	r.NoError(err)
	epsplus := posit.One[posit.P32E2]().Add(posit.Epsilon[posit.P32E2]())
	expected := Vector[posit.P32E2]{epsplus, epsplus, epsplus, epsplus, epsplus}
	b, err := MatVec(a, expected)
	r.NoError(err)
	lu, err := Crout(a)
	r.NoError(err)
	x, err := SolveCrout(lu, b)
	r.NoError(err)
	for i := range x {
		r.InDelta(expected[i].Float64(), x[i].Float64(), 1e-4)
	}
}

func TestCroutZeroPivot(t *testing.T) {
	a := assert.New(t)
	m, err := MatrixFromFloat64[sig32]([][]float64{{0, 1}, {1, 0}})
	a.NoError(err)
	_, err = Crout(m)
	a.True(Error.Has(err))
	a.True(posit.ArithmeticError.Has(err))

	// without signaling the pivot turns into NaR.
	p, err := MatrixFromFloat64[posit.P32E2]([][]float64{{0, 1}, {1, 0}})
	a.NoError(err)
	lu, err := Crout(p)
	a.NoError(err)
	a.True(lu.At(0, 1).IsNaR())
	x, err := SolveCrout(lu, VectorFromFloat64[posit.P32E2]([]float64{1, 1}))
	a.NoError(err)
	a.True(x[0].IsNaR())
}

func BenchmarkDot(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	x, y := randomVector[posit.P32E2](rnd, 1000), randomVector[posit.P32E2](rnd, 1000)
	var p posit.Posit[posit.P32E2]
	for i := 0; i < b.N; i++ {
		p, _ = Dot(x, y)
	}
	b.ReportMetric(p.Float64(), "dummy_metric")
}

func BenchmarkParallelDot(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	x, y := randomVector[posit.P32E2](rnd, 100000), randomVector[posit.P32E2](rnd, 100000)
	var p posit.Posit[posit.P32E2]
	for i := 0; i < b.N; i++ {
		p, _ = ParallelDot(context.Background(), x, y, 8)
	}
	b.ReportMetric(p.Float64(), "dummy_metric")
}
