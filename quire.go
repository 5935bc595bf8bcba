// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	mu "github.com/avdva/posit/internal/mathutil"
)

// Quire is a fixed-point register, which accumulates sums of products exactly.
// While at most Capacity terms are accumulated, the register holds the exact
// sum, which does not depend on the order of the terms. ToPosit rounds it once.
//
// The register is a two's-complement integer of 64-bit little-endian limbs
// scaled by 2^-2*maxScale, so the product of two minpos values is its lowest bit.
//
// A Quire must not be used concurrently. Parallel reductions use one Quire
// per goroutine and combine them with Merge.
type Quire[P Params] struct {
	limbs    []uint64
	width    int // significant bits, including the sign
	capacity int
	count    int
	nar      bool
}

// NewQuire returns an empty quire, which can accumulate up to capacity terms exactly.
func NewQuire[P Params](capacity int) (*Quire[P], error) {
	if capacity < 1 {
		return nil, InternalError.New("quire capacity %d must be positive", capacity)
	}
	return newQuire[P](capacity), nil
}

func newQuire[P Params](capacity int) *Quire[P] {
	f := FormatOf[P]()
	width := quireFracBits(f) + 2*f.maxScale + 2 + mu.BinaryDigits(uint64(capacity)) + 1
	return &Quire[P]{
		limbs:    make([]uint64, width/64+1),
		width:    width,
		capacity: capacity,
	}
}

func quireFracBits(f *Format) int {
	return 2 * f.maxScale
}

// Reset sets the quire to zero and clears its term count.
func (q *Quire[P]) Reset() {
	for i := range q.limbs {
		q.limbs[i] = 0
	}
	q.count = 0
	q.nar = false
}

// Capacity returns the maximum number of terms.
func (q *Quire[P]) Capacity() int {
	return q.capacity
}

// Count returns the number of accumulated terms.
func (q *Quire[P]) Count() int {
	return q.count
}

// IsNaR returns true if a NaR was accumulated since the last Reset.
func (q *Quire[P]) IsNaR() bool {
	return q.nar
}

// IsZero returns true if the register is exactly zero.
func (q *Quire[P]) IsZero() bool {
	if q.nar {
		return false
	}
	for _, l := range q.limbs {
		if l != 0 {
			return false
		}
	}
	return true
}

// Accumulate adds a*b to the register exactly.
func (q *Quire[P]) Accumulate(a, b Posit[P]) error {
	return q.accumulate(a, b, false)
}

// SubtractAccumulate subtracts a*b from the register exactly.
func (q *Quire[P]) SubtractAccumulate(a, b Posit[P]) error {
	return q.accumulate(a, b, true)
}

// Add adds a to the register. It counts as one term.
func (q *Quire[P]) Add(a Posit[P]) error {
	return q.accumulate(a, One[P](), false)
}

// Sub subtracts a from the register. It counts as one term.
func (q *Quire[P]) Sub(a Posit[P]) error {
	return q.accumulate(a, One[P](), true)
}

func (q *Quire[P]) accumulate(a, b Posit[P], negate bool) error {
	if q.count >= q.capacity {
		return QuireError.New("capacity %d exceeded", q.capacity)
	}
	f := a.format()
	if a.IsNaR() || b.IsNaR() {
		q.count++
		q.nar = true
		return f.invalid("NaR accumulated")
	}
	q.count++
	if q.nar || a.IsZero() || b.IsZero() {
		return nil
	}
	ma, ea := quireTerm(f.unpack(a.bits))
	mb, eb := quireTerm(f.unpack(b.bits))
	neg := (a.bits&f.nar != 0) != (b.bits&f.nar != 0) != negate
	m := mu.Mul64(ma, mb)
	offset := ea + eb + quireFracBits(f)
	q.addShifted(neg, m, offset)
	if !q.inRange() {
		q.addShifted(!neg, m, offset)
		q.count--
		return QuireError.New("register overflow")
	}
	return nil
}

// quireTerm returns an odd m and e such as m*2^e is the absolute value of u.
func quireTerm(u unpacked) (m uint64, e int) {
	tz := bits.TrailingZeros64(u.sig)
	return u.sig >> uint(tz), u.scale - 63 + tz
}

// addShifted adds or subtracts m*2^offset.
func (q *Quire[P]) addShifted(neg bool, m mu.Uint128, offset int) {
	w, s := offset/64, uint(offset%64)
	var t [3]uint64
	t[0] = m.Lo << s
	if s == 0 {
		t[1] = m.Hi
	} else {
		t[1] = m.Hi<<s | m.Lo>>(64-s)
		t[2] = m.Hi >> (64 - s)
	}
	var c uint64
	for i := w; i < len(q.limbs); i++ {
		var v uint64
		if i-w < len(t) {
			v = t[i-w]
		} else if c == 0 {
			break
		}
		if neg {
			q.limbs[i], c = bits.Sub64(q.limbs[i], v, c)
		} else {
			q.limbs[i], c = bits.Add64(q.limbs[i], v, c)
		}
	}
}

// inRange returns true if the register value fits into its width.
func (q *Quire[P]) inRange() bool {
	top := len(q.limbs) - 1
	var ext uint64
	if q.limbs[top]>>63 == 1 {
		ext = math.MaxUint64
	}
	i, s := (q.width-1)/64, uint((q.width-1)%64)
	for j := top; j > i; j-- {
		if q.limbs[j] != ext {
			return false
		}
	}
	return q.limbs[i]>>s == ext>>s
}

// Merge adds the register of other to q. The combined term count must not
// exceed the capacity of q. other is not modified, unless it is q itself.
func (q *Quire[P]) Merge(other *Quire[P]) error {
	if q.count+other.count > q.capacity {
		return QuireError.New("merged count %d exceeds capacity %d", q.count+other.count, q.capacity)
	}
	if !other.nar && !other.fitsIn(len(q.limbs)) {
		return QuireError.New("register overflow")
	}
	q.count += other.count
	q.nar = q.nar || other.nar
	if q.nar {
		return nil
	}
	src := make([]uint64, len(q.limbs))
	for i := range src {
		src[i] = other.limb(i)
	}
	prev := append([]uint64(nil), q.limbs...)
	var c uint64
	for i := range q.limbs {
		q.limbs[i], c = bits.Add64(q.limbs[i], src[i], c)
	}
	if !q.inRange() {
		copy(q.limbs, prev)
		q.count -= other.count
		return QuireError.New("register overflow")
	}
	return nil
}

// limb returns the i-th limb of the sign-extended register.
func (q *Quire[P]) limb(i int) uint64 {
	if i < len(q.limbs) {
		return q.limbs[i]
	}
	if q.limbs[len(q.limbs)-1]>>63 == 1 {
		return math.MaxUint64
	}
	return 0
}

// fitsIn returns true if the register value can be held by n limbs.
func (q *Quire[P]) fitsIn(n int) bool {
	if n >= len(q.limbs) {
		return true
	}
	var ext uint64
	if q.limbs[len(q.limbs)-1]>>63 == 1 {
		ext = math.MaxUint64
	}
	for _, l := range q.limbs[n:] {
		if l != ext {
			return false
		}
	}
	return q.limbs[n-1]>>63 == ext>>63
}

// ToPosit returns the register value rounded to the nearest posit.
// The quire is not changed.
func (q *Quire[P]) ToPosit() Posit[P] {
	f := FormatOf[P]()
	if q.nar {
		return Posit[P]{bits: f.nar}
	}
	abs := q.limbs
	neg := q.limbs[len(q.limbs)-1]>>63 == 1
	if neg {
		abs = negateLimbs(q.limbs)
	}
	h := topBit(abs)
	if h < 0 {
		return Posit[P]{}
	}
	sig, sticky := bitsBelow(abs, h)
	return Posit[P]{bits: f.encode(neg, h-quireFracBits(f), sig, sticky)}
}

func negateLimbs(limbs []uint64) []uint64 {
	res := make([]uint64, len(limbs))
	var b uint64
	for i, l := range limbs {
		res[i], b = bits.Sub64(0, l, b)
	}
	return res
}

// topBit returns the index of the highest set bit, or -1.
func topBit(limbs []uint64) int {
	for i := len(limbs) - 1; i >= 0; i-- {
		if limbs[i] != 0 {
			return i*64 + 63 - bits.LeadingZeros64(limbs[i])
		}
	}
	return -1
}

// bitsBelow returns 64 bits with the bit h at the top, and whether any lower bit is set.
func bitsBelow(limbs []uint64, h int) (uint64, bool) {
	lo := h - 63
	if lo <= 0 {
		return limbs[0] << uint(-lo), false
	}
	w, s := lo/64, uint(lo%64)
	sig := limbs[w] >> s
	if s > 0 && w+1 < len(limbs) {
		sig |= limbs[w+1] << (64 - s)
	}
	sticky := s > 0 && limbs[w]<<(64-s) != 0
	for i := 0; i < w && !sticky; i++ {
		sticky = limbs[i] != 0
	}
	return sig, sticky
}

// Equal returns true if both quires hold the same register state.
func (q *Quire[P]) Equal(other *Quire[P]) bool {
	if q.nar || other.nar {
		return q.nar == other.nar
	}
	for i := 0; i < max(len(q.limbs), len(other.limbs)); i++ {
		if q.limb(i) != other.limb(i) {
			return false
		}
	}
	return true
}

// MarshalBinary returns the register state: one byte, which is 1 for NaR,
// followed by the limbs in little-endian order.
// Two quires with equal values of the same capacity have equal encodings.
func (q *Quire[P]) MarshalBinary() ([]byte, error) {
	data := make([]byte, 1+8*len(q.limbs))
	if q.nar {
		data[0] = 1
		return data, nil
	}
	for i, l := range q.limbs {
		binary.LittleEndian.PutUint64(data[1+8*i:], l)
	}
	return data, nil
}

// String returns a summary of the quire and its rounded value.
func (q *Quire[P]) String() string {
	return fmt.Sprintf("quire<%d,%d>[%d/%d] %v",
		FormatOf[P]().nbits, FormatOf[P]().es, q.count, q.capacity, q.ToPosit())
}
