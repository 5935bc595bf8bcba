// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	mu "github.com/avdva/posit/internal/mathutil"
)

const (
	delim  = '.'
	narStr = "NaR"
)

var (
	manyZeros = bytes.Repeat([]byte{'0'}, 256)
	bigFive   = big.NewInt(5)
	bigTen    = big.NewInt(10)
)

// Decimal returns the exact value of x. NaR becomes 0.
func (x Posit[P]) Decimal() decimal.Decimal {
	f := x.format()
	if x.bits == 0 || x.bits == f.nar {
		return decimal.Zero
	}
	m, e := quireTerm(f.unpack(x.bits))
	v := new(big.Int).SetUint64(m)
	if e >= 0 {
		v.Lsh(v, uint(e))
		e = 0
	} else {
		// m*2^e = m*5^-e * 10^e
		v.Mul(v, new(big.Int).Exp(bigFive, big.NewInt(int64(-e)), nil))
	}
	if x.bits&f.nar != 0 {
		v.Neg(v)
	}
	return decimal.NewFromBigInt(v, int32(e))
}

// String returns x with the default number of significant digits of its format.
func (x Posit[P]) String() string {
	return x.Text('g', -1)
}

// Text converts x to a string according to the format verb and precision,
// like strconv.FormatFloat:
//
//	'e' -d.dddde±dd, prec is the number of digits after the point;
//	'f' -ddd.dddd, prec is the number of digits after the point;
//	'g' 'e' for large exponents, 'f' otherwise, prec is the number of significant digits.
//
// A negative prec selects the default number of significant digits of the format.
// Rounding is done on the exact decimal value, ties to even. NaR is "NaR".
func (x Posit[P]) Text(verb byte, prec int) string {
	f := x.format()
	if x.bits == f.nar {
		return narStr
	}
	d := x.Decimal()
	var b strings.Builder
	if d.Sign() < 0 {
		b.WriteByte('-')
		d = d.Neg()
	}
	switch verb {
	case 'f':
		if prec >= 0 {
			b.WriteString(d.StringFixedBank(int32(prec)))
			break
		}
		digits, exp := trimZeros(roundSignificant(d, f.digits))
		formatAsDecimal(&b, digits, exp)
	case 'e':
		n := f.digits
		if prec >= 0 {
			n = prec + 1
		}
		digits, exp := roundSignificant(d, n)
		if prec < 0 {
			digits, exp = trimZeros(digits, exp)
		}
		formatWithExponent(&b, digits, exp)
	default:
		n := f.digits
		if prec == 0 {
			n = 1
		} else if prec > 0 {
			n = prec
		}
		digits, exp := trimZeros(roundSignificant(d, n))
		if lead := len(digits) - 1 + exp; lead < -4 || lead >= n {
			formatWithExponent(&b, digits, exp)
		} else {
			formatAsDecimal(&b, digits, exp)
		}
	}
	return b.String()
}

// roundSignificant rounds a non-negative d to n significant digits, ties to even.
// It returns exactly n digits and the exponent of the last one.
func roundSignificant(d decimal.Decimal, n int) (digits string, exp int) {
	if d.IsZero() {
		return string(zeroBytes(n)), 1 - n
	}
	s := d.Coefficient().String()
	lead := len(s) - 1 + int(d.Exponent())
	r := d.RoundBank(int32(n - 1 - lead))
	s, exp = r.Coefficient().String(), int(r.Exponent())
	if len(s) > n { // 9.99 -> 10.0
		exp += len(s) - n
		s = s[:n]
	}
	return s, exp
}

func trimZeros(digits string, exp int) (string, int) {
	for len(digits) > 1 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		exp++
	}
	if digits == "0" {
		exp = 0
	}
	return digits, exp
}

func formatAsDecimal(b *strings.Builder, digits string, exp int) {
	switch {
	case exp >= 0:
		b.WriteString(digits)
		if digits != "0" {
			b.Write(zeroBytes(exp))
		}
	default:
		if diff := len(digits) + exp; diff <= 0 { // add leading zeros and a delimiter
			b.WriteByte('0')
			b.WriteByte(delim)
			b.Write(zeroBytes(-diff))
			b.WriteString(digits)
		} else { // insert a delimiter
			b.WriteString(digits[:diff])
			b.WriteByte(delim)
			b.WriteString(digits[diff:])
		}
	}
}

func formatWithExponent(b *strings.Builder, digits string, exp int) {
	b.WriteByte(digits[0])
	if len(digits) > 1 {
		b.WriteByte(delim)
		b.WriteString(digits[1:])
	}
	lead := len(digits) - 1 + exp
	b.WriteByte('e')
	if lead < 0 {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	lead = mu.AbsInt(lead)
	if lead < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(lead))
}

func zeroBytes(count int) []byte {
	if count <= len(manyZeros) {
		return manyZeros[:count]
	}
	result := bytes.Repeat(manyZeros, count/len(manyZeros))
	if rem := count % len(manyZeros); rem > 0 {
		result = append(result, manyZeros[:rem]...)
	}
	return result
}

// Format implements fmt.Formatter.
// It supports the verbs of Text, their upper-case versions, 'v' and 's' as 'g',
// and 'x', 'X', 'b' for the bit pattern. Precision, width and flags '+', '-' are honoured.
func (x Posit[P]) Format(s fmt.State, verb rune) {
	prec, ok := s.Precision()
	if !ok {
		prec = -1
	}
	var str string
	switch verb {
	case 'x':
		str = strconv.FormatUint(x.bits, 16)
	case 'X':
		str = strings.ToUpper(strconv.FormatUint(x.bits, 16))
	case 'b':
		str = strconv.FormatUint(x.bits, 2)
	case 'e', 'f', 'g':
		str = x.Text(byte(verb), prec)
	case 'E', 'F', 'G':
		str = strings.ToUpper(x.Text(byte(verb)+'a'-'A', prec))
	case 'v', 's':
		str = x.Text('g', prec)
	default:
		fmt.Fprintf(s, "%%!%c(posit=%s)", verb, x.String())
		return
	}
	if s.Flag('+') && x.Sign() >= 0 && !x.IsNaR() {
		str = "+" + str
	}
	if w, ok := s.Width(); ok && w > len(str) {
		pad := strings.Repeat(" ", w-len(str))
		if s.Flag('-') {
			str += pad
		} else {
			str = pad + str
		}
	}
	io.WriteString(s, str)
}

// Parse returns the posit nearest to the decimal number in s, ties to even.
// It accepts the forms of decimal.NewFromString, like "-1.25" or "3e-7",
// and "NaR", "NaN", "Inf" in any case, which all become NaR.
func Parse[P Params](s string) (Posit[P], error) {
	f := FormatOf[P]()
	s = strings.TrimSpace(s)
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nar", "nan", "inf", "infinity":
		return Posit[P]{bits: f.nar}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Posit[P]{}, fmt.Errorf("parsing failed: %w", err)
	}
	return Posit[P]{bits: f.fromDecimal(d)}, nil
}

// MustParse is like Parse, but panics on error.
func MustParse[P Params](s string) Posit[P] {
	p, err := Parse[P](s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromDecimal returns the posit nearest to d, ties to even.
func FromDecimal[P Params](d decimal.Decimal) Posit[P] {
	return Posit[P]{bits: FormatOf[P]().fromDecimal(d)}
}

func (f *Format) fromDecimal(d decimal.Decimal) uint64 {
	if d.IsZero() {
		return 0
	}
	c := d.Coefficient()
	neg := c.Sign() < 0
	c.Abs(c)
	exp := int(d.Exponent())
	// 10^lead <= |d| < 10^(lead+1), and 8^n < 10^n.
	lead := len(c.String()) - 1 + exp
	switch {
	case lead > 0 && 3*lead > f.maxScale+1:
		return f.encode(neg, f.maxScale, 1<<63, false)
	case lead < -1 && -3*(lead+1) > f.maxScale+1:
		return f.encode(neg, -f.maxScale-1, 1<<63, false)
	}
	var sig uint64
	var scale int
	var sticky bool
	if exp >= 0 {
		c.Mul(c, new(big.Int).Exp(bigTen, big.NewInt(int64(exp)), nil))
		sig, scale, sticky = bigSig(c)
	} else {
		den := new(big.Int).Exp(bigTen, big.NewInt(int64(-exp)), nil)
		// at least 65 quotient bits, the remainder goes to sticky.
		k := 65 + den.BitLen() - c.BitLen()
		if k < 0 {
			k = 0
		}
		c.Lsh(c, uint(k))
		rem := new(big.Int)
		c.QuoRem(c, den, rem)
		sig, scale, sticky = bigSig(c)
		scale -= k
		sticky = sticky || rem.Sign() != 0
	}
	return f.encode(neg, scale, sig, sticky)
}

// bigSig returns the top 64 bits of a positive n, the scale of its top bit,
// and whether any of the lower bits is set.
func bigSig(n *big.Int) (sig uint64, scale int, sticky bool) {
	l := n.BitLen()
	if l <= 64 {
		return n.Uint64() << uint(64-l), l - 1, false
	}
	shift := uint(l - 64)
	sig = new(big.Int).Rsh(n, shift).Uint64()
	return sig, l - 1, n.TrailingZeroBits() < shift
}
