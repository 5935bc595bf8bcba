// Copyright 2020 Aleksandr Demakin. All rights reserved.

package main

import "github.com/avdva/posit"

// Formats of the signal-invalid policy. They mirror the predefined formats
// of the posit package, but report operations without a real result as errors.
var (
	sig8e0  = posit.MustFormat(8, 0, posit.WithPolicy(posit.SignalInvalid))
	sig16e1 = posit.MustFormat(16, 1, posit.WithPolicy(posit.SignalInvalid))
	sig32e2 = posit.MustFormat(32, 2, posit.WithPolicy(posit.SignalInvalid))
	sig64e3 = posit.MustFormat(64, 3, posit.WithPolicy(posit.SignalInvalid))
	sig8e2  = posit.MustFormat(8, 2, posit.WithPolicy(posit.SignalInvalid))
	sig16e2 = posit.MustFormat(16, 2, posit.WithPolicy(posit.SignalInvalid))
	sig64e2 = posit.MustFormat(64, 2, posit.WithPolicy(posit.SignalInvalid))
)

type (
	sigP8E0  struct{}
	sigP16E1 struct{}
	sigP32E2 struct{}
	sigP64E3 struct{}
	sigStd8  struct{}
	sigStd16 struct{}
	sigStd64 struct{}
)

func (sigP8E0) Format() *posit.Format  { return sig8e0 }
func (sigP16E1) Format() *posit.Format { return sig16e1 }
func (sigP32E2) Format() *posit.Format { return sig32e2 }
func (sigP64E3) Format() *posit.Format { return sig64e3 }
func (sigStd8) Format() *posit.Format  { return sig8e2 }
func (sigStd16) Format() *posit.Format { return sig16e2 }
func (sigStd64) Format() *posit.Format { return sig64e2 }
