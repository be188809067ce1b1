// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
)

// HalfDuplex is a bus sharing one data line for both directions.
//
// SDA must be pulled up externally; this is not verified.
type HalfDuplex struct {
	sck  OutputPin
	sda  IOPin
	opts Opts
}

// NewHalfDuplex returns a bus clocked on sck that exchanges data on sda.
// The clock is driven high before returning.
//
// opts can be nil, in which case DefaultOpts is used. Pad and Fill are
// ignored.
func NewHalfDuplex(sck OutputPin, sda IOPin, opts *Opts) (*HalfDuplex, error) {
	if sck == nil || sda == nil {
		return nil, errors.New("bitbang: half duplex bus needs SCK and SDA")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	h := &HalfDuplex{sck: sck, sda: sda, opts: *opts}
	t := h.faults()
	t.note("SCK", "high", h.sck.SetHigh())
	if t.err != nil {
		return nil, t.err
	}
	return h, nil
}

func (h *HalfDuplex) String() string {
	return fmt.Sprintf("HalfDuplex{SCK:%s SDA:%s}", nameOf(h.sck, "?"), nameOf(h.sda, "?"))
}

// Duplex implements Bus.
func (h *HalfDuplex) Duplex() conn.Duplex {
	return conn.Half
}

// Read implements Bus.
//
// SDA is driven high first so the slave can pull it down.
func (h *HalfDuplex) Read(words []byte) error {
	t := h.faults()
	t.note("SDA", "high", h.sda.SetHigh())
	for i := range words {
		for range 8 {
			h.pulse(&t)
			words[i] = words[i]<<1 | t.sample("SDA", h.sda)
		}
	}
	return t.err
}

// Write implements Bus.
func (h *HalfDuplex) Write(words []byte) error {
	t := h.faults()
	for _, w := range words {
		for bit := range 8 {
			t.note("SDA", "set", h.sda.SetState(level(w, bit)))
			h.pulse(&t)
		}
	}
	return t.err
}

// Transfer cannot be done on a single wire. It leaves both buffers
// untouched and returns nil, or ErrUnsupported in strict mode. Sequence
// Write and Read instead.
func (h *HalfDuplex) Transfer(r, w []byte) error {
	return h.unsupported()
}

// TransferInPlace has the same limitation as Transfer.
func (h *HalfDuplex) TransferInPlace(words []byte) error {
	return h.unsupported()
}

// Flush implements Bus.
func (h *HalfDuplex) Flush() error {
	return nil
}

func (h *HalfDuplex) unsupported() error {
	if h.opts.Strict {
		return ErrUnsupported
	}
	return nil
}

func (h *HalfDuplex) pulse(t *faults) {
	t.note("SCK", "low", h.sck.SetLow())
	t.note("SCK", "high", h.sck.SetHigh())
}

func (h *HalfDuplex) faults() faults {
	return faults{strict: h.opts.Strict}
}

var _ Bus = &HalfDuplex{}
