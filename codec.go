// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"math"
	"math/bits"
)

// Fields is the decoded content of a posit bit pattern.
//
//	 sign  regime      exponent   fraction
//	|s|r r r ... r ~r|e e ... e|f f f ... f|
//
// The regime is a run of identical bits terminated by the opposite bit.
// The exponent and fraction take whatever bits are left, in that order,
// so at extreme magnitudes the exponent can be truncated and the fraction empty.
type Fields struct {
	// NaR is set for the not-a-real pattern. Other fields are zero then.
	NaR bool
	// Neg is set for negative values. The other fields describe the absolute value.
	Neg bool
	// Regime is the regime value k.
	Regime int
	// RegimeBits is the length of the regime field, including the terminating bit if present.
	RegimeBits int
	// Exponent is the exponent value e. Truncated low bits read as zeros.
	Exponent uint64
	// ExponentBits is the number of exponent bits present in the pattern.
	ExponentBits int
	// Fraction holds the fraction bits, right-aligned.
	Fraction uint64
	// FractionBits is the number of fraction bits.
	FractionBits int
}

// unpacked is a non-zero real value: (-1)^neg * sig/2^63 * 2^scale.
type unpacked struct {
	neg   bool
	scale int
	sig   uint64 // the hidden bit is bit 63
}

// split decodes a bit pattern into its fields.
// The pattern must fit into nbits. Zero yields zero fields.
func (f *Format) split(p uint64) Fields {
	var fl Fields
	if p == f.nar {
		fl.NaR = true
		return fl
	}
	if p&f.nar != 0 {
		fl.Neg = true
		p = -p & f.mask
	}
	if p == 0 {
		return fl
	}
	// drop the sign bit and left-align the rest.
	z := p << uint(65-f.nbits)
	var run int
	if z>>63 == 1 {
		run = bits.LeadingZeros64(^z)
		fl.Regime = run - 1
	} else {
		run = bits.LeadingZeros64(z)
		fl.Regime = -run
	}
	avail := f.nbits - 1
	fl.RegimeBits = min(run+1, avail)
	rest := z << uint(run+1)
	remaining := avail - fl.RegimeBits
	fl.ExponentBits = min(remaining, f.es)
	fl.Exponent = rest >> uint(64-f.es)
	fl.FractionBits = remaining - fl.ExponentBits
	if fl.FractionBits > 0 {
		fl.Fraction = rest << uint(f.es) >> uint(64-fl.FractionBits)
	}
	return fl
}

// join is the inverse of split. It expects fields produced by split.
func (f *Format) join(fl Fields) uint64 {
	if fl.NaR {
		return f.nar
	}
	if fl.RegimeBits == 0 {
		return 0
	}
	var p uint64
	if fl.Regime >= 0 {
		p = math.MaxUint64 << uint(63-fl.Regime)
	} else {
		p = 1 << uint(63+fl.Regime)
	}
	pos := fl.RegimeBits // bits used after the sign
	if fl.ExponentBits > 0 {
		p |= fl.Exponent >> uint(f.es-fl.ExponentBits) << uint(64-fl.ExponentBits) >> uint(pos)
		pos += fl.ExponentBits
	}
	if fl.FractionBits > 0 {
		p |= fl.Fraction << uint(64-fl.FractionBits) >> uint(pos)
	}
	p = p >> uint(65-f.nbits)
	if fl.Neg {
		p = -p & f.mask
	}
	return p
}

// unpack decodes a non-zero, non-NaR pattern.
func (f *Format) unpack(p uint64) unpacked {
	fl := f.split(p)
	return unpacked{
		neg:   fl.Neg,
		scale: fl.Regime<<uint(f.es) + int(fl.Exponent),
		sig:   1<<63 | fl.Fraction<<uint(63-fl.FractionBits),
	}
}

// encode rounds (-1)^neg * sig/2^63 * 2^scale to the nearest posit, ties to even.
// The top bit of sig must be set, sticky reports non-zero bits below sig.
// Values above maxpos saturate to maxpos, and non-zero values below minpos
// become minpos: the result is never zero or NaR.
func (f *Format) encode(neg bool, scale int, sig uint64, sticky bool) uint64 {
	var p uint64
	switch {
	case scale >= f.maxScale:
		p = f.nar - 1
	case scale < -f.maxScale:
		p = 1
	default:
		p = f.round(scale, sig, sticky)
	}
	if neg {
		p = -p & f.mask
	}
	return p
}

// round builds the regime, exponent and fraction bit string for a value
// within (minpos, maxpos) and rounds it to nbits-1 bits.
func (f *Format) round(scale int, sig uint64, sticky bool) uint64 {
	es := uint(f.es)
	k := scale >> es
	e := uint64(scale - k<<es)

	// the string is kept left-aligned in hi:lo.
	var hi uint64
	var regimeBits int
	if k >= 0 {
		hi = math.MaxUint64 << uint(63-k)
		regimeBits = k + 2
	} else {
		hi = 1 << uint(63+k)
		regimeBits = -k + 1
	}
	frac := sig << 1
	tail := frac >> es
	if es > 0 {
		tail |= e << (64 - es)
		sticky = sticky || frac<<(64-es) != 0
	}
	hi |= tail >> uint(regimeBits)
	lo := tail << uint(64-regimeBits)

	n := uint(f.nbits)
	p := hi >> (65 - n)
	guard := hi >> (64 - n) & 1
	sticky = sticky || lo != 0 || hi&(1<<(64-n)-1) != 0
	if guard == 1 && (sticky || p&1 == 1) {
		p++
	}
	return p
}
