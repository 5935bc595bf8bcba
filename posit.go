// Copyright 2020 Aleksandr Demakin. All rights reserved.

// Package posit implements posit numbers, a tapered-precision alternative to
// IEEE 754 floating point, and the quire, a fixed-point register for
// computing sums of products without intermediate rounding.
//
// A posit of width nbits with es exponent bits represents
//
//	(-1)^sign * useed^k * 2^e * (1 + f/2^fbits), where useed = 2^(2^es).
//
// There is a single zero (all bits clear) and a single not-a-real value, NaR
// (only the sign bit set). Every arithmetic operation is correctly rounded:
// the result is the posit nearest to the exact result, ties to even.
// Results above maxpos saturate to maxpos, there are no infinities.
//
// The format is chosen at compile time with a Params type:
//
//	a := posit.FromFloat64[posit.P32E2](1.5)
//	b := posit.FromInt64[posit.P32E2](2)
//	fmt.Println(a.Mul(b)) // 3
package posit

import (
	"math"
	"math/big"
	"math/bits"
)

// Posit is a posit number in the format selected by P.
// The zero value is 0. Posit values are immutable and safe for concurrent use.
type Posit[P Params] struct {
	bits uint64
}

func (x Posit[P]) format() *Format {
	var p P
	return p.Format()
}

// FromBits returns a posit with the given bit pattern.
// Bits above nbits are ignored.
func FromBits[P Params](b uint64) Posit[P] {
	return Posit[P]{bits: b & FormatOf[P]().mask}
}

// Zero returns 0.
func Zero[P Params]() Posit[P] {
	return Posit[P]{}
}

// One returns 1.
func One[P Params]() Posit[P] {
	return Posit[P]{bits: FormatOf[P]().nar >> 1}
}

// NaR returns the not-a-real value.
func NaR[P Params]() Posit[P] {
	return Posit[P]{bits: FormatOf[P]().nar}
}

// MaxPos returns the largest positive value.
func MaxPos[P Params]() Posit[P] {
	return Posit[P]{bits: FormatOf[P]().nar - 1}
}

// MinPos returns the smallest positive value.
func MinPos[P Params]() Posit[P] {
	return Posit[P]{bits: 1}
}

// Epsilon returns the difference between 1 and the next larger value.
func Epsilon[P Params]() Posit[P] {
	one := One[P]()
	return one.Next().Sub(one)
}

// FromFloat64 returns the posit nearest to v, ties to even.
// NaN and infinities become NaR.
func FromFloat64[P Params](v float64) Posit[P] {
	f := FormatOf[P]()
	switch {
	case v == 0:
		return Posit[P]{}
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Posit[P]{bits: f.nar}
	}
	b := math.Float64bits(v)
	exp := int(b >> 52 & 0x7ff)
	mant := b & (1<<52 - 1)
	if exp == 0 { // subnormal
		exp = 1
	} else {
		mant |= 1 << 52
	}
	lz := bits.LeadingZeros64(mant)
	// v = mant * 2^(exp-1075)
	return Posit[P]{bits: f.encode(b>>63 == 1, exp-1075+63-lz, mant<<uint(lz), false)}
}

// FromFloat32 returns the posit nearest to v, ties to even.
// NaN and infinities become NaR.
func FromFloat32[P Params](v float32) Posit[P] {
	return FromFloat64[P](float64(v))
}

// FromUint64 returns the posit nearest to v.
func FromUint64[P Params](v uint64) Posit[P] {
	return Posit[P]{bits: fromUint64(FormatOf[P](), false, v)}
}

// FromInt64 returns the posit nearest to v.
func FromInt64[P Params](v int64) Posit[P] {
	if v < 0 {
		return Posit[P]{bits: fromUint64(FormatOf[P](), true, uint64(-v))}
	}
	return Posit[P]{bits: fromUint64(FormatOf[P](), false, uint64(v))}
}

func fromUint64(f *Format, neg bool, v uint64) uint64 {
	if v == 0 {
		return 0
	}
	lz := bits.LeadingZeros64(v)
	return f.encode(neg, 63-lz, v<<uint(lz), false)
}

// Bits returns the bit pattern of x in the low nbits bits.
func (x Posit[P]) Bits() uint64 {
	return x.bits
}

// Fields returns the decoded fields of x.
func (x Posit[P]) Fields() Fields {
	return x.format().split(x.bits)
}

// FromFields encodes fields, as returned by Fields, back into a posit.
func FromFields[P Params](fl Fields) Posit[P] {
	f := FormatOf[P]()
	return Posit[P]{bits: f.join(fl) & f.mask}
}

// IsNaR returns true if x is not-a-real.
func (x Posit[P]) IsNaR() bool {
	return x.bits == x.format().nar
}

// IsZero returns true if x == 0.
func (x Posit[P]) IsZero() bool {
	return x.bits == 0
}

// Sign returns -1 if x < 0, 0 if x is 0 or NaR, 1 if x > 0.
func (x Posit[P]) Sign() int {
	f := x.format()
	switch {
	case x.bits == 0 || x.bits == f.nar:
		return 0
	case x.bits&f.nar != 0:
		return -1
	default:
		return 1
	}
}

// Float64 returns the float64 nearest to x, ties to even.
// NaR becomes NaN. Values outside the float64 range become ±Inf or ±0.
func (x Posit[P]) Float64() float64 {
	f := x.format()
	switch x.bits {
	case 0:
		return 0
	case f.nar:
		return math.NaN()
	}
	u := f.unpack(x.bits)
	if -1022 <= u.scale && u.scale <= 1023 {
		// the conversion of sig rounds to 53 bits, Ldexp is exact in the normal range.
		r := math.Ldexp(float64(u.sig), u.scale-63)
		if u.neg {
			r = -r
		}
		return r
	}
	r, _ := u.bigFloat().Float64()
	return r
}

// Float32 returns the float32 nearest to x, ties to even.
// NaR becomes NaN. Values outside the float32 range become ±Inf or ±0.
func (x Posit[P]) Float32() float32 {
	f := x.format()
	switch x.bits {
	case 0:
		return 0
	case f.nar:
		return float32(math.NaN())
	}
	r, _ := f.unpack(x.bits).bigFloat().Float32()
	return r
}

func (u unpacked) bigFloat() *big.Float {
	r := new(big.Float).SetUint64(u.sig)
	r.SetMantExp(r, u.scale-63)
	if u.neg {
		r.Neg(r)
	}
	return r
}

// Int64 returns x truncated toward zero.
// Values outside the int64 range saturate, NaR becomes 0.
func (x Posit[P]) Int64() int64 {
	f := x.format()
	if x.bits == 0 || x.bits == f.nar {
		return 0
	}
	u := f.unpack(x.bits)
	switch {
	case u.scale < 0:
		return 0
	case u.scale >= 63:
		if u.neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	v := int64(u.sig >> uint(63-u.scale))
	if u.neg {
		return -v
	}
	return v
}

// Neg returns -x. NaR stays NaR.
func (x Posit[P]) Neg() Posit[P] {
	return Posit[P]{bits: -x.bits & x.format().mask}
}

// Abs returns |x|. NaR stays NaR.
func (x Posit[P]) Abs() Posit[P] {
	if x.Sign() < 0 {
		return x.Neg()
	}
	return x
}

// Next returns the posit with the next bit pattern: the next larger value.
// The patterns form a ring, so maxpos.Next() is NaR and NaR.Next() is -maxpos.
func (x Posit[P]) Next() Posit[P] {
	return Posit[P]{bits: (x.bits + 1) & x.format().mask}
}

// Prev returns the posit with the previous bit pattern: the next smaller value.
// The patterns form a ring, so (-maxpos).Prev() is NaR and NaR.Prev() is maxpos.
func (x Posit[P]) Prev() Posit[P] {
	return Posit[P]{bits: (x.bits - 1) & x.format().mask}
}

// ordinal returns a number, which preserves the order of posit values.
// Posits are ordered like the signed integers with the same bit pattern.
func (x Posit[P]) ordinal() int64 {
	return int64(x.bits << uint(64-x.format().nbits))
}

// Cmp compares two values.
// Returns -1 if x < y, 0 if x == y, 1 if x > y. If either value is NaR,
// the values are unordered, and ordered is false.
func (x Posit[P]) Cmp(y Posit[P]) (c int, ordered bool) {
	if x.IsNaR() || y.IsNaR() {
		return 0, false
	}
	a, b := x.ordinal(), y.ordinal()
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	default:
		return 0, true
	}
}

// Eq returns x == y. NaR is not equal to anything, including itself.
func (x Posit[P]) Eq(y Posit[P]) bool {
	c, ok := x.Cmp(y)
	return ok && c == 0
}

// Ne returns !(x == y). It is true if either value is NaR.
func (x Posit[P]) Ne(y Posit[P]) bool {
	return !x.Eq(y)
}

// Lt returns x < y.
func (x Posit[P]) Lt(y Posit[P]) bool {
	c, ok := x.Cmp(y)
	return ok && c < 0
}

// Le returns x <= y.
func (x Posit[P]) Le(y Posit[P]) bool {
	c, ok := x.Cmp(y)
	return ok && c <= 0
}

// Gt returns x > y.
func (x Posit[P]) Gt(y Posit[P]) bool {
	c, ok := x.Cmp(y)
	return ok && c > 0
}

// Ge returns x >= y.
func (x Posit[P]) Ge(y Posit[P]) bool {
	c, ok := x.Cmp(y)
	return ok && c >= 0
}
