// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	// JSONMode defines the way all values are marshaled into json, see JSONMode* constants.
	// This variable is not thread-safe, so this should be changed on program start.
	JSONMode = JSONModeString
)

const (
	// JSONModeString produces values as strings with the default digits, like `"1.2345678"`.
	JSONModeString = iota
	// JSONModeFloat marshals values as numbers, like `1.2345678`.
	JSONModeFloat
	// JSONModeBits marshals the bit pattern as a hex string, like `"0x40000000"`.
	JSONModeBits
	// JSONModeME marshals the exact value as a binary mantissa and exponent, like `{"m":-3,"e":-1}`.
	JSONModeME
)

type jsonME struct {
	M int64 `json:"m"`
	E int   `json:"e"`
}

// MarshalJSON marshals x according to current JSONMode.
// See JSONMode and JSONMode* constants. NaR is always marshaled as `"NaR"`.
func (x Posit[P]) MarshalJSON() ([]byte, error) {
	return x.toJSON(JSONMode)
}

func (x Posit[P]) toJSON(mode int) ([]byte, error) {
	if x.IsNaR() {
		return []byte(`"` + narStr + `"`), nil
	}
	switch mode {
	case JSONModeFloat:
		return []byte(x.String()), nil
	case JSONModeBits:
		return []byte(`"` + x.hexBits() + `"`), nil
	case JSONModeME:
		var me jsonME
		if !x.IsZero() {
			f := x.format()
			m, e := quireTerm(f.unpack(x.bits))
			me.M, me.E = int64(m), e
			if x.Sign() < 0 {
				me.M = -me.M
			}
		}
		return json.Marshal(me)
	default:
		return []byte(`"` + x.String() + `"`), nil
	}
}

func (x Posit[P]) hexBits() string {
	digits := (x.format().nbits + 3) / 4
	return fmt.Sprintf("0x%0*x", digits, x.bits)
}

// UnmarshalJSON unmarshals a string, a number, or an object produced by MarshalJSON.
// null is ignored.
func (x *Posit[P]) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case len(s) == 0:
		return fmt.Errorf("empty json")
	case s == "null":
		return nil
	case s[0] == '{':
		var me jsonME
		if err := json.Unmarshal(data, &me); err != nil {
			return err
		}
		*x = fromME[P](me)
		return nil
	case s[0] == '"':
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	return x.UnmarshalText([]byte(s))
}

func fromME[P Params](me jsonME) Posit[P] {
	if me.M == 0 {
		return Posit[P]{}
	}
	m := uint64(me.M)
	if me.M < 0 {
		m = -m
	}
	lz := bits.LeadingZeros64(m)
	f := FormatOf[P]()
	return Posit[P]{bits: f.encode(me.M < 0, 63-lz+me.E, m<<uint(lz), false)}
}

// MarshalText returns the result of String.
func (x Posit[P]) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText parses a decimal number, see Parse, or a "0x"-prefixed bit pattern.
func (x *Posit[P]) UnmarshalText(text []byte) error {
	s := string(text)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return fmt.Errorf("parsing failed: %w", err)
		}
		if b&^FormatOf[P]().mask != 0 {
			return fmt.Errorf("parsing failed: pattern %s is wider than %s", s, FormatOf[P]())
		}
		*x = Posit[P]{bits: b}
		return nil
	}
	p, err := Parse[P](s)
	if err != nil {
		return err
	}
	*x = p
	return nil
}
