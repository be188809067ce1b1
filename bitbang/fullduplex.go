// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// FullDuplex is a bus with separate MOSI and MISO lines.
//
// It owns its pins; nothing else may drive them while it is in use.
type FullDuplex struct {
	sck  OutputPin
	mosi OutputPin
	miso InputPin
	opts Opts
}

// NewFullDuplex returns a bus clocked on sck, writing on mosi and reading on
// miso. The clock is driven high before returning.
//
// opts can be nil, in which case DefaultOpts is used.
func NewFullDuplex(sck, mosi OutputPin, miso InputPin, opts *Opts) (*FullDuplex, error) {
	if sck == nil || mosi == nil || miso == nil {
		return nil, errors.New("bitbang: full duplex bus needs SCK, MOSI and MISO")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	f := &FullDuplex{sck: sck, mosi: mosi, miso: miso, opts: *opts}
	t := f.faults()
	t.note("SCK", "high", f.sck.SetHigh())
	if t.err != nil {
		return nil, t.err
	}
	return f, nil
}

func (f *FullDuplex) String() string {
	return fmt.Sprintf("FullDuplex{SCK:%s MOSI:%s MISO:%s}", nameOf(f.sck, "?"), nameOf(f.mosi, "?"), nameOf(f.miso, "?"))
}

// Duplex implements Bus.
func (f *FullDuplex) Duplex() conn.Duplex {
	return conn.Full
}

// Read implements Bus.
//
// MOSI is left as it was before the call.
func (f *FullDuplex) Read(words []byte) error {
	t := f.faults()
	for i := range words {
		for range 8 {
			f.pulse(&t)
			words[i] = words[i]<<1 | t.sample("MISO", f.miso)
		}
	}
	return t.err
}

// Write implements Bus. MISO is not sampled.
func (f *FullDuplex) Write(words []byte) error {
	t := f.faults()
	for _, w := range words {
		for bit := range 8 {
			t.note("MOSI", "set", f.mosi.SetState(level(w, bit)))
			f.pulse(&t)
		}
	}
	return t.err
}

// Transfer implements Bus.
//
// Unless Opts.Pad is set, r and w must have the same length; otherwise it
// panics before touching any pin. r and w may be the same slice.
func (f *FullDuplex) Transfer(r, w []byte) error {
	if len(r) != len(w) && !f.opts.Pad {
		panic("bitbang: read and write buffers must be the same length")
	}
	n := max(len(r), len(w))
	t := f.faults()
	for i := range n {
		out := f.opts.Fill
		if i < len(w) {
			out = w[i]
		}
		in := f.exchange(&t, out, false)
		if i < len(r) {
			r[i] = in
		}
	}
	return t.err
}

// TransferInPlace implements Bus.
//
// Each word is fully sent before it is overwritten by the word received.
func (f *FullDuplex) TransferInPlace(words []byte) error {
	t := f.faults()
	for i := range words {
		words[i] = f.exchange(&t, words[i], true)
	}
	return t.err
}

// Flush implements Bus. Operations are complete when they return so there
// is nothing to wait for.
func (f *FullDuplex) Flush() error {
	return nil
}

// exchange sends out and returns the word received meanwhile. When preset
// is true MOSI is driven high before each bit value.
func (f *FullDuplex) exchange(t *faults, out byte, preset bool) byte {
	var in byte
	for bit := range 8 {
		if preset {
			t.note("MOSI", "high", f.mosi.SetHigh())
		}
		t.note("MOSI", "set", f.mosi.SetState(level(out, bit)))
		f.pulse(t)
		in = in<<1 | t.sample("MISO", f.miso)
	}
	return in
}

// pulse drives the clock low then back to its idle high level.
func (f *FullDuplex) pulse(t *faults) {
	t.note("SCK", "low", f.sck.SetLow())
	t.note("SCK", "high", f.sck.SetHigh())
}

func (f *FullDuplex) faults() faults {
	return faults{strict: f.opts.Strict}
}

// level returns bit number bit of w, counting from the most significant.
func level(w byte, bit int) gpio.Level {
	return gpio.Level((w<<bit)&0x80 != 0)
}

var _ Bus = &FullDuplex{}
