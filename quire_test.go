// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type term[P Params] struct {
	a, b Posit[P]
	sub  bool
}

func randomTerms[P Params](rnd *rand.Rand, count int) []term[P] {
	terms := make([]term[P], count)
	for i := range terms {
		terms[i] = term[P]{a: FromBits[P](rnd.Uint64()), b: FromBits[P](rnd.Uint64()), sub: rnd.Intn(2) == 0}
		if terms[i].a.IsNaR() {
			terms[i].a = One[P]()
		}
		if terms[i].b.IsNaR() {
			terms[i].b = MaxPos[P]()
		}
	}
	return terms
}

func accumulateAll[P Params](q *Quire[P], terms []term[P]) error {
	for _, t := range terms {
		var err error
		if t.sub {
			err = q.SubtractAccumulate(t.a, t.b)
		} else {
			err = q.Accumulate(t.a, t.b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func exactSum[P Params](terms []term[P]) *big.Rat {
	f := FormatOf[P]()
	sum := new(big.Rat)
	for _, t := range terms {
		p := new(big.Rat).Mul(ratOf(f, t.a.bits), ratOf(f, t.b.bits))
		if t.sub {
			sum.Sub(sum, p)
		} else {
			sum.Add(sum, p)
		}
	}
	return sum
}

func TestNewQuire(t *testing.T) {
	a := assert.New(t)
	_, err := NewQuire[P32E2](0)
	a.True(InternalError.Has(err))
	_, err = NewQuire[P32E2](-1)
	a.True(InternalError.Has(err))
	q, err := NewQuire[P32E2](10)
	if a.NoError(err) {
		a.True(q.IsZero())
		a.False(q.IsNaR())
		a.Equal(0, q.Count())
		a.Equal(10, q.Capacity())
		a.True(q.ToPosit().IsZero())
	}
}

func TestQuireScenario(t *testing.T) {
	a := assert.New(t)
	two, three, one := FromInt64[P16E1](2), FromInt64[P16E1](3), One[P16E1]()
	q1, _ := NewQuire[P16E1](2)
	a.NoError(q1.Accumulate(two, three))
	a.NoError(q1.Accumulate(one, one))
	q2, _ := NewQuire[P16E1](2)
	a.NoError(q2.Accumulate(one, one))
	a.NoError(q2.Accumulate(two, three))
	a.True(q1.Equal(q2))
	a.Equal(7.0, q1.ToPosit().Float64())
	a.Equal(q1.ToPosit(), q2.ToPosit())
}

func quireExactness[P Params](t *testing.T, capacity int) {
	r := require.New(t)
	rnd := newRand(t)
	for i := 0; i < 50; i++ {
		terms := randomTerms[P](rnd, 1+rnd.Intn(capacity))
		q, err := NewQuire[P](capacity)
		r.NoError(err)
		r.NoError(accumulateAll(q, terms))
		r.NoError(checkRat(exactSum(terms), q.ToPosit()))

		// any permutation gives the same register.
		rnd.Shuffle(len(terms), func(i, j int) { terms[i], terms[j] = terms[j], terms[i] })
		q2, _ := NewQuire[P](capacity)
		r.NoError(accumulateAll(q2, terms))
		r.True(q.Equal(q2))
		b1, _ := q.MarshalBinary()
		b2, _ := q2.MarshalBinary()
		r.Equal(b1, b2)

		// so does any partitioning.
		cut := rnd.Intn(len(terms) + 1)
		left, _ := NewQuire[P](capacity)
		right, _ := NewQuire[P](capacity)
		r.NoError(accumulateAll(left, terms[:cut]))
		r.NoError(accumulateAll(right, terms[cut:]))
		r.NoError(left.Merge(right))
		r.True(q.Equal(left))
		r.Equal(len(terms), left.Count())
	}
}

func TestQuireExactness(t *testing.T) {
	t.Run("p8e0", func(t *testing.T) { quireExactness[P8E0](t, 64) })
	t.Run("std8", func(t *testing.T) { quireExactness[Std8](t, 64) })
	t.Run("p16e1", func(t *testing.T) { quireExactness[P16E1](t, 200) })
	t.Run("p32e2", func(t *testing.T) { quireExactness[P32E2](t, 200) })
}

func TestQuireExtremes(t *testing.T) {
	a := assert.New(t)
	q, _ := NewQuire[P8E0](1000)
	for i := 0; i < 1000; i++ {
		a.NoError(q.Accumulate(MaxPos[P8E0](), MaxPos[P8E0]()))
	}
	a.Equal(MaxPos[P8E0](), q.ToPosit())
	q.Reset()
	for i := 0; i < 1000; i++ {
		a.NoError(q.SubtractAccumulate(MaxPos[P8E0](), MaxPos[P8E0]()))
	}
	a.Equal(MaxPos[P8E0]().Neg(), q.ToPosit())

	q.Reset()
	a.NoError(q.Accumulate(MinPos[P8E0](), MinPos[P8E0]()))
	a.False(q.IsZero())
	a.Equal(MinPos[P8E0](), q.ToPosit())
	a.NoError(q.SubtractAccumulate(MinPos[P8E0](), MinPos[P8E0]()))
	a.True(q.IsZero())
	a.Equal(Zero[P8E0](), q.ToPosit())

	// a huge sum of tiny values.
	q64, _ := NewQuire[P64E3](3)
	a.NoError(q64.Add(MaxPos[P64E3]()))
	a.NoError(q64.Accumulate(MinPos[P64E3](), MinPos[P64E3]()))
	a.NoError(q64.Sub(MaxPos[P64E3]()))
	a.False(q64.IsZero())
	a.Equal(MinPos[P64E3](), q64.ToPosit())
}

func TestQuireCapacity(t *testing.T) {
	a := assert.New(t)
	q, _ := NewQuire[P32E2](2)
	one := One[P32E2]()
	a.NoError(q.Add(one))
	a.NoError(q.Add(one))
	before, _ := q.MarshalBinary()
	err := q.Add(one)
	a.True(QuireError.Has(err))
	a.False(ArithmeticError.Has(err))
	after, _ := q.MarshalBinary()
	a.Equal(before, after)
	a.Equal(2, q.Count())
	a.Equal(2.0, q.ToPosit().Float64())

	other, _ := NewQuire[P32E2](5)
	a.NoError(other.Add(one))
	a.True(QuireError.Has(q.Merge(other)))
	a.Equal(2, q.Count())

	q.Reset()
	a.Equal(0, q.Count())
	a.True(q.IsZero())
	a.NoError(q.Merge(other))
	a.Equal(1, q.Count())
	a.Equal(one, q.ToPosit())
}

func TestQuireNaR(t *testing.T) {
	a := assert.New(t)
	q, _ := NewQuire[P32E2](4)
	a.NoError(q.Add(One[P32E2]()))
	a.NoError(q.Accumulate(NaR[P32E2](), Zero[P32E2]()))
	a.True(q.IsNaR())
	a.False(q.IsZero())
	a.NoError(q.Add(One[P32E2]()))
	a.True(q.IsNaR())
	a.True(q.ToPosit().IsNaR())
	a.Equal(3, q.Count())

	other, _ := NewQuire[P32E2](4)
	a.NoError(other.Add(One[P32E2]()))
	a.NoError(other.Merge(q))
	a.True(other.IsNaR())
	a.True(other.Equal(q))

	q.Reset()
	a.False(q.IsNaR())
	a.True(q.ToPosit().IsZero())

	qs, _ := NewQuire[sig16](4)
	err := qs.Accumulate(One[sig16](), NaR[sig16]())
	a.True(ArithmeticError.Has(err))
	a.True(qs.IsNaR())
}

func TestQuireSelfMerge(t *testing.T) {
	a := assert.New(t)
	q, _ := NewQuire[P16E1](4)
	a.NoError(q.Accumulate(FromInt64[P16E1](3), FromFloat64[P16E1](0.5)))
	a.NoError(q.Merge(q))
	a.Equal(2, q.Count())
	a.Equal(3.0, q.ToPosit().Float64())
}

func TestQuireEqualCapacities(t *testing.T) {
	a := assert.New(t)
	small, _ := NewQuire[P16E1](1)
	large, _ := NewQuire[P16E1](1 << 20)
	x := FromFloat64[P16E1](-2.75)
	a.NoError(small.Add(x))
	a.NoError(large.Add(x))
	a.True(small.Equal(large))
	a.True(large.Equal(small))
	a.NoError(large.Merge(small))
	a.Equal(FromFloat64[P16E1](-5.5), large.ToPosit())
	a.False(small.Equal(large))
}

func TestQuireString(t *testing.T) {
	a := assert.New(t)
	q, _ := NewQuire[P32E2](3)
	a.NoError(q.Accumulate(FromInt64[P32E2](2), FromFloat64[P32E2](0.75)))
	a.Equal("quire<32,2>[1/3] 1.5", q.String())
	a.Equal("quire<32,2>[1/3] 1.5", fmt.Sprint(q))
}

func BenchmarkQuire(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	terms := randomTerms[P32E2](rnd, 1024)
	q, _ := NewQuire[P32E2](len(terms))
	var p Posit[P32E2]
	for i := 0; i < b.N; i++ {
		q.Reset()
		if err := accumulateAll(q, terms); err != nil {
			b.Fatal(err)
		}
		p = q.ToPosit()
	}
	b.ReportMetric(p.Float64(), "dummy_metric")
}
