// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"fmt"
	"math"
	"sync"
)

const (
	// MinNBits is the smallest supported posit width.
	MinNBits = 3
	// MaxNBits is the largest supported posit width.
	MaxNBits = 64
	// MaxES is the largest supported exponent field width.
	// Larger values make the quire register grow as 2^es.
	MaxES = 8
)

// Format describes a posit configuration: its total width, exponent field width,
// exception policy and the default number of printed digits.
// A Format is immutable and can be shared between goroutines.
type Format struct {
	nbits  int
	es     int
	policy Policy
	digits int

	mask     uint64 // nbits ones
	nar      uint64 // sign bit only
	maxScale int    // binary scale of maxpos
}

// Option configures a Format.
type Option func(*Format)

// WithPolicy sets the exception policy, see Policy.
func WithPolicy(p Policy) Option {
	return func(f *Format) {
		f.policy = p
	}
}

// WithDigits sets the default number of significant digits used by String.
func WithDigits(digits int) Option {
	return func(f *Format) {
		f.digits = digits
	}
}

// NewFormat returns a validated format for a (nbits, es) pair.
// It requires MinNBits <= nbits <= MaxNBits, and 0 <= es < nbits-2, es <= MaxES.
func NewFormat(nbits, es int, opts ...Option) (*Format, error) {
	if nbits < MinNBits || nbits > MaxNBits {
		return nil, InternalError.New("nbits %d out of range [%d, %d]", nbits, MinNBits, MaxNBits)
	}
	if es < 0 || es >= nbits-2 || es > MaxES {
		return nil, InternalError.New("es %d is not valid for nbits %d", es, nbits)
	}
	f := &Format{
		nbits:    nbits,
		es:       es,
		nar:      1 << (nbits - 1),
		mask:     math.MaxUint64 >> (64 - nbits),
		maxScale: (nbits - 2) << es,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.policy != PropagateNaR && f.policy != SignalInvalid {
		return nil, InternalError.New("unknown policy %d", int(f.policy))
	}
	if f.digits < 0 {
		return nil, InternalError.New("negative digits %d", f.digits)
	}
	if f.digits == 0 {
		f.digits = f.roundTripDigits()
	}
	return f, nil
}

// MustFormat is like NewFormat, but panics on error.
func MustFormat(nbits, es int, opts ...Option) *Format {
	f, err := NewFormat(nbits, es, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

type formatKey struct {
	nbits, es, digits int
	policy            Policy
}

var formats sync.Map // formatKey -> *Format

// Lookup returns a process-wide shared format for the given configuration,
// creating it on first use.
func Lookup(nbits, es int, opts ...Option) (*Format, error) {
	f, err := NewFormat(nbits, es, opts...)
	if err != nil {
		return nil, err
	}
	key := formatKey{nbits: f.nbits, es: f.es, digits: f.digits, policy: f.policy}
	actual, _ := formats.LoadOrStore(key, f)
	return actual.(*Format), nil
}

// NBits returns the total width in bits.
func (f *Format) NBits() int {
	return f.nbits
}

// ES returns the width of the exponent field.
func (f *Format) ES() int {
	return f.es
}

// Policy returns the exception policy.
func (f *Format) Policy() Policy {
	return f.policy
}

// Digits returns the default number of significant digits for String.
func (f *Format) Digits() int {
	return f.digits
}

// UseedScale returns log2(useed) = 2^es.
func (f *Format) UseedScale() int {
	return 1 << f.es
}

// Useed returns useed = 2^(2^es).
func (f *Format) Useed() float64 {
	return math.Ldexp(1, f.UseedScale())
}

// MaxPosScale returns the binary scale of maxpos, (nbits-2)*2^es.
func (f *Format) MaxPosScale() int {
	return f.maxScale
}

// MinPosScale returns the binary scale of minpos, -(nbits-2)*2^es.
func (f *Format) MinPosScale() int {
	return -f.maxScale
}

// MaxPos returns maxpos as a float64. It is +Inf if maxpos exceeds the float64 range.
func (f *Format) MaxPos() float64 {
	return math.Ldexp(1, f.maxScale)
}

// MinPos returns minpos as a float64. It is 0 if minpos is below the float64 range.
func (f *Format) MinPos() float64 {
	return math.Ldexp(1, -f.maxScale)
}

// FractionBits returns the number of fraction bits of the values in [1, useed).
func (f *Format) FractionBits() int {
	return f.nbits - 3 - f.es
}

// Epsilon returns the distance between 1 and the next representable value.
func (f *Format) Epsilon() float64 {
	return math.Ldexp(1, -f.FractionBits())
}

// String returns a short description like "posit<32,2>".
func (f *Format) String() string {
	return fmt.Sprintf("posit<%d,%d>", f.nbits, f.es)
}

// DynamicRange returns a description of the scales covered by the format.
func (f *Format) DynamicRange() string {
	return fmt.Sprintf("%s useed scale %5d   minpos scale %10d   maxpos scale %10d",
		f.String(), f.UseedScale(), f.MinPosScale(), f.MaxPosScale())
}

// roundTripDigits returns the number of decimal digits that is enough
// to distinguish the values with the maximum precision.
func (f *Format) roundTripDigits() int {
	const log10of2 = 0.30102999566398119521
	return int(math.Ceil(float64(f.FractionBits()+1)*log10of2)) + 1
}

// Params selects the format of Posit and Quire values at compile time.
// Different Params types produce distinct Posit types, so values of different
// formats can't be mixed.
//
// A custom format is declared as:
//
//	var p20 = posit.MustFormat(20, 1, posit.WithPolicy(posit.SignalInvalid))
//
//	type P20 struct{}
//
//	func (P20) Format() *posit.Format { return p20 }
type Params interface {
	Format() *Format
}

// FormatOf returns the format selected by P.
func FormatOf[P Params]() *Format {
	var p P
	return p.Format()
}

var (
	p8e0  = sync.OnceValue(func() *Format { return MustFormat(8, 0) })
	p16e1 = sync.OnceValue(func() *Format { return MustFormat(16, 1) })
	p32e2 = sync.OnceValue(func() *Format { return MustFormat(32, 2) })
	p64e3 = sync.OnceValue(func() *Format { return MustFormat(64, 3) })
	std8  = sync.OnceValue(func() *Format { return MustFormat(8, 2) })
	std16 = sync.OnceValue(func() *Format { return MustFormat(16, 2) })
	std32 = sync.OnceValue(func() *Format { return MustFormat(32, 2) })
	std64 = sync.OnceValue(func() *Format { return MustFormat(64, 2) })
)

type (
	// P8E0 is an 8-bit posit without exponent bits.
	P8E0 struct{}
	// P16E1 is a 16-bit posit with 1 exponent bit.
	P16E1 struct{}
	// P32E2 is a 32-bit posit with 2 exponent bits.
	P32E2 struct{}
	// P64E3 is a 64-bit posit with 3 exponent bits.
	P64E3 struct{}
	// Std8 is the 8-bit posit of the 2022 standard (es = 2).
	Std8 struct{}
	// Std16 is the 16-bit posit of the 2022 standard (es = 2).
	Std16 struct{}
	// Std32 is the 32-bit posit of the 2022 standard (es = 2).
	Std32 struct{}
	// Std64 is the 64-bit posit of the 2022 standard (es = 2).
	Std64 struct{}
)

func (P8E0) Format() *Format  { return p8e0() }
func (P16E1) Format() *Format { return p16e1() }
func (P32E2) Format() *Format { return p32e2() }
func (P64E3) Format() *Format { return p64e3() }
func (Std8) Format() *Format  { return std8() }
func (Std16) Format() *Format { return std16() }
func (Std32) Format() *Format { return std32() }
func (Std64) Format() *Format { return std64() }
