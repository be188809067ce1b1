// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
)

// Bus is the transfer contract shared by FullDuplex and HalfDuplex.
//
// Every operation is synchronous; Flush is the rendezvous point a caller
// uses to wait until all prior operations completed on the wire.
type Bus interface {
	// Read clocks len(words) words in from the slave.
	Read(words []byte) error
	// Write clocks words out to the slave, ignoring incoming bits.
	Write(words []byte) error
	// Transfer writes w and reads r simultaneously.
	Transfer(r, w []byte) error
	// TransferInPlace writes words and replaces them with the words read.
	TransferInPlace(words []byte) error
	// Flush waits until the bus is idle.
	Flush() error
	// Duplex returns conn.Full or conn.Half.
	Duplex() conn.Duplex
	String() string
}

var (
	// ErrPinFault is matched by every *PinFault.
	ErrPinFault = errors.New("bitbang: pin fault")
	// ErrUnsupported is returned in strict mode by operations the bus
	// topology cannot perform.
	ErrUnsupported = errors.New("bitbang: operation not supported on this topology")
	// ErrLength is returned when read and write buffers of a full duplex
	// exchange cannot be reconciled.
	ErrLength = errors.New("bitbang: read and write buffers differ in length")
)

// PinFault is the first pin operation error seen during a strict operation.
type PinFault struct {
	Pin string // Bus line name: SCK, MOSI, MISO or SDA.
	Op  string // "high", "low", "set" or "read".
	Err error
}

func (p *PinFault) Error() string {
	return fmt.Sprintf("bitbang: %s %s: %v", p.Pin, p.Op, p.Err)
}

// Unwrap returns the pin error.
func (p *PinFault) Unwrap() error {
	return p.Err
}

// Is makes errors.Is(err, ErrPinFault) hold.
func (p *PinFault) Is(target error) bool {
	return target == ErrPinFault
}

// Opts holds the bus options.
type Opts struct {
	// Strict reports the first pin fault of an operation instead of
	// discarding it, and makes HalfDuplex return ErrUnsupported for
	// Transfer and TransferInPlace. Operations are never aborted midway.
	Strict bool
	// Pad makes FullDuplex.Transfer run for max(len(r), len(w)) words:
	// Fill is sent once w is exhausted and words received once r is full
	// are discarded. Without Pad, buffers of different lengths panic.
	Pad bool
	// Fill is the word sent while padding.
	Fill byte

	_ struct{}
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{Fill: 0xFF}

// faults remembers the first pin fault of an operation.
type faults struct {
	strict bool
	err    error
}

func (f *faults) note(pin, op string, err error) {
	if err != nil && f.strict && f.err == nil {
		f.err = &PinFault{Pin: pin, Op: op, Err: err}
	}
}

// sample reads p and returns 1 when it is high. A failed read counts as low.
func (f *faults) sample(pin string, p InputPin) byte {
	h, err := p.IsHigh()
	f.note(pin, "read", err)
	if err == nil && h {
		return 1
	}
	return 0
}

func nameOf(p interface{}, def string) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return def
}
