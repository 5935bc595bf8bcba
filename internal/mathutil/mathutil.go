package mathutil

import (
	"math/bits"
	"unsafe"
)

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi, Lo uint64
}

// Mul64 returns the full 128-bit product of a and b.
func Mul64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// IsZero returns true if u == 0.
func (u Uint128) IsZero() bool {
	return u.Hi|u.Lo == 0
}

// Cmp compares two values.
// Returns -1 if u < v, 0 if u == v, 1 if u > v
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi > v.Hi:
		return 1
	case u.Hi < v.Hi:
		return -1
	case u.Lo > v.Lo:
		return 1
	case u.Lo < v.Lo:
		return -1
	default:
		return 0
	}
}

// Add returns u+v and the carry out of the top bit.
func (u Uint128) Add(v Uint128) (sum Uint128, carry uint64) {
	var c uint64
	sum.Lo, c = bits.Add64(u.Lo, v.Lo, 0)
	sum.Hi, carry = bits.Add64(u.Hi, v.Hi, c)
	return sum, carry
}

// Sub returns u-v and the borrow out of the top bit.
func (u Uint128) Sub(v Uint128) (diff Uint128, borrow uint64) {
	var b uint64
	diff.Lo, b = bits.Sub64(u.Lo, v.Lo, 0)
	diff.Hi, borrow = bits.Sub64(u.Hi, v.Hi, b)
	return diff, borrow
}

// Lsh returns u << n. Bits shifted past the top are lost.
func (u Uint128) Lsh(n uint) Uint128 {
	switch {
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Hi: u.Lo << (n - 64)}
	default:
		return Uint128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
	}
}

// Rsh returns u >> n.
func (u Uint128) Rsh(n uint) Uint128 {
	switch {
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Lo: u.Hi >> (n - 64)}
	default:
		return Uint128{Hi: u.Hi >> n, Lo: u.Lo>>n | u.Hi<<(64-n)}
	}
}

// RshSticky returns u >> n and whether any of the shifted out bits was set.
func (u Uint128) RshSticky(n uint) (Uint128, bool) {
	switch {
	case n == 0:
		return u, false
	case n >= 128:
		return Uint128{}, !u.IsZero()
	}
	return u.Rsh(n), !u.Lsh(128 - n).IsZero()
}

// LeadingZeros returns the number of leading zero bits in u; 128 for u == 0.
func (u Uint128) LeadingZeros() int {
	if u.Hi != 0 {
		return bits.LeadingZeros64(u.Hi)
	}
	return 64 + bits.LeadingZeros64(u.Lo)
}

// Sqrt128 returns floor(sqrt(x)) and whether the root is exact.
// The root is produced one bit per step, so the remainder is exact as well.
func Sqrt128(x Uint128) (root uint64, exact bool) {
	var res Uint128
	bit := Uint128{Hi: 1 << 62}
	for bit.Cmp(x) > 0 {
		bit = bit.Rsh(2)
	}
	for !bit.IsZero() {
		t, _ := res.Add(bit)
		if x.Cmp(t) >= 0 {
			x, _ = x.Sub(t)
			res, _ = res.Rsh(1).Add(bit)
		} else {
			res = res.Rsh(1)
		}
		bit = bit.Rsh(2)
	}
	return res.Lo, x.IsZero()
}

// BinaryDigits returns the number of bits needed to represent value.
func BinaryDigits(value uint64) int {
	return int(8*unsafe.Sizeof(uint64(0))) - bits.LeadingZeros64(value)
}

// AbsInt returns |val|.
func AbsInt(val int) int {
	mask := val >> (unsafe.Sizeof(int(0))*8 - 1)
	return (val + mask) ^ mask
}

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
