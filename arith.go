// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"math/bits"

	mu "github.com/avdva/posit/internal/mathutil"
)

// Add returns x+y, correctly rounded.
func (x Posit[P]) Add(y Posit[P]) Posit[P] {
	return Posit[P]{bits: x.format().add(x.bits, y.bits)}
}

// Sub returns x-y, correctly rounded.
func (x Posit[P]) Sub(y Posit[P]) Posit[P] {
	return x.Add(y.Neg())
}

// Mul returns x*y, correctly rounded.
func (x Posit[P]) Mul(y Posit[P]) Posit[P] {
	return Posit[P]{bits: x.format().mul(x.bits, y.bits)}
}

// Div returns x/y, correctly rounded.
// Division by zero or by/of NaR yields NaR. The error is non-nil
// only if the format's policy is SignalInvalid.
func (x Posit[P]) Div(y Posit[P]) (Posit[P], error) {
	q, err := x.format().div(x.bits, y.bits)
	return Posit[P]{bits: q}, err
}

// Inv returns 1/x, see Div.
func (x Posit[P]) Inv() (Posit[P], error) {
	return One[P]().Div(x)
}

// Sqrt returns the square root of x, correctly rounded.
// The root of a negative number or NaR is NaR. The error is non-nil
// only if the format's policy is SignalInvalid.
func (x Posit[P]) Sqrt() (Posit[P], error) {
	r, err := x.format().sqrt(x.bits)
	return Posit[P]{bits: r}, err
}

// FMA returns a*b+c computed with a single rounding.
func FMA[P Params](a, b, c Posit[P]) Posit[P] {
	if a.IsNaR() || b.IsNaR() || c.IsNaR() {
		return NaR[P]()
	}
	q := newQuire[P](2)
	// two terms never exceed the capacity.
	_ = q.Accumulate(a, b)
	_ = q.Add(c)
	return q.ToPosit()
}

func (f *Format) add(a, b uint64) uint64 {
	switch {
	case a == f.nar || b == f.nar:
		return f.nar
	case a == 0:
		return b
	case b == 0:
		return a
	}
	ua, ub := f.unpack(a), f.unpack(b)
	if ua.scale < ub.scale || ua.scale == ub.scale && ua.sig < ub.sig {
		ua, ub = ub, ua
	}
	// align the smaller operand in a 128-bit window, remember lost bits.
	x := mu.Uint128{Hi: ua.sig}
	y, sticky := mu.Uint128{Hi: ub.sig}.RshSticky(uint(ua.scale - ub.scale))
	scale := ua.scale
	if ua.neg == ub.neg {
		sum, carry := x.Add(y)
		if carry != 0 {
			var lost bool
			sum, lost = sum.RshSticky(1)
			sum.Hi |= 1 << 63
			sticky = sticky || lost
			scale++
		}
		x = sum
	} else {
		x, _ = x.Sub(y)
		if sticky {
			// the exact difference lies strictly between x-1 and x.
			x, _ = x.Sub(mu.Uint128{Lo: 1})
		}
		if x.IsZero() {
			return 0
		}
		lz := x.LeadingZeros()
		x = x.Lsh(uint(lz))
		scale -= lz
	}
	return f.encode(ua.neg, scale, x.Hi, sticky || x.Lo != 0)
}

func (f *Format) mul(a, b uint64) uint64 {
	switch {
	case a == f.nar || b == f.nar:
		return f.nar
	case a == 0 || b == 0:
		return 0
	}
	ua, ub := f.unpack(a), f.unpack(b)
	// sigA*sigB is in [2^126, 2^128).
	p := mu.Mul64(ua.sig, ub.sig)
	scale := ua.scale + ub.scale
	if p.Hi>>63 == 0 {
		p = p.Lsh(1)
	} else {
		scale++
	}
	return f.encode(ua.neg != ub.neg, scale, p.Hi, p.Lo != 0)
}

func (f *Format) div(a, b uint64) (uint64, error) {
	switch {
	case a == f.nar || b == f.nar:
		return f.nar, f.invalid("NaR operand in division")
	case b == 0:
		return f.nar, f.invalid("division by zero")
	case a == 0:
		return 0, nil
	}
	ua, ub := f.unpack(a), f.unpack(b)
	scale := ua.scale - ub.scale
	// the quotient of the significands is scaled to [2^63, 2^64).
	var hi, lo uint64
	if ua.sig < ub.sig {
		hi = ua.sig
		scale--
	} else {
		hi, lo = ua.sig>>1, ua.sig<<63
	}
	q, rem := bits.Div64(hi, lo, ub.sig)
	return f.encode(ua.neg != ub.neg, scale, q, rem != 0), nil
}

func (f *Format) sqrt(a uint64) (uint64, error) {
	switch {
	case a == f.nar:
		return f.nar, f.invalid("square root of NaR")
	case a == 0:
		return 0, nil
	case a&f.nar != 0:
		return f.nar, f.invalid("square root of a negative number")
	}
	u := f.unpack(a)
	// make the scale even, the root of the radicand gets its top bit at 63.
	x := mu.Uint128{Hi: u.sig >> 1, Lo: u.sig << 63}
	if u.scale&1 != 0 {
		x = mu.Uint128{Hi: u.sig}
	}
	root, exact := mu.Sqrt128(x)
	return f.encode(false, u.scale>>1, root, !exact), nil
}
