// Copyright 2020 Aleksandr Demakin. All rights reserved.

package posit

import (
	"github.com/zeebo/errs"
)

var (
	// ArithmeticError is the class of errors returned for operations whose
	// mathematical result is undefined (division by zero, square root of a
	// negative number, NaR operands), if the format's policy is SignalInvalid.
	ArithmeticError = errs.Class("posit arithmetic")
	// QuireError is the class of errors returned when a quire's capacity
	// or register range would be exceeded. These are reported regardless of the policy.
	QuireError = errs.Class("quire")
	// InternalError is the class of errors for invalid configurations and
	// malformed state. These are reported regardless of the policy.
	InternalError = errs.Class("posit internal")
)

// Policy defines what happens when an operation has no real result.
type Policy int

const (
	// PropagateNaR returns NaR silently. This is the default.
	PropagateNaR Policy = iota
	// SignalInvalid returns NaR together with an ArithmeticError.
	SignalInvalid
)

// String returns the name of the policy.
func (p Policy) String() string {
	switch p {
	case PropagateNaR:
		return "propagate-nar"
	case SignalInvalid:
		return "signal-invalid"
	default:
		return "unknown"
	}
}

// ParsePolicy returns a policy by its name, see Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "propagate-nar":
		return PropagateNaR, nil
	case "signal-invalid":
		return SignalInvalid, nil
	}
	return PropagateNaR, InternalError.New("unknown policy %q", s)
}

// invalid reports an operation without a real result according to the policy.
func (f *Format) invalid(format string, args ...interface{}) error {
	if f.policy != SignalInvalid {
		return nil
	}
	return ArithmeticError.New(format, args...)
}
