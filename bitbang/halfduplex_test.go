// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/softspi/bitbang"
	"github.com/GermanBionicSystems/softspi/bitbang/bitbangtest"
	"github.com/GermanBionicSystems/softspi/trace"
)

func newHalfDuplex(t *testing.T, opts *bitbang.Opts) (*bitbang.HalfDuplex, *bitbangtest.Rig) {
	t.Helper()
	rig := bitbangtest.NewHalfDuplex()
	bus, err := rig.HalfDuplex(opts)
	if err != nil {
		t.Fatal(err)
	}
	return bus, rig
}

func TestNewHalfDuplex(t *testing.T) {
	bus, rig := newHalfDuplex(t, nil)
	checkIdle(t, rig)
	if bus.Duplex() != conn.Half {
		t.Errorf("Duplex() = %s", bus.Duplex())
	}
	if s := bus.String(); s != "HalfDuplex{SCK:SCK SDA:SDA}" {
		t.Errorf("String() = %q", s)
	}
	if _, err := bitbang.NewHalfDuplex(rig.SCK, nil, nil); err == nil {
		t.Error("expected error for missing SDA")
	}
}

func TestHalfDuplexWrite(t *testing.T) {
	bus, rig := newHalfDuplex(t, nil)
	if err := bus.Write([]byte{0xA5}); err != nil {
		t.Fatal(err)
	}
	want := []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low, gpio.Low, gpio.High, gpio.Low, gpio.High}
	if diff := cmp.Diff(rig.Trace.Levels("SDA", trace.Drive), want); diff != "" {
		t.Errorf("SDA difference (-got +want):\n%s", diff)
	}
	if n := rig.Pulses(); n != 8 {
		t.Errorf("got %d clock pulses, want 8", n)
	}
	if diff := cmp.Diff(rig.Slave.Received(), []byte{0xA5}); diff != "" {
		t.Errorf("slave difference (-got +want):\n%s", diff)
	}
	checkIdle(t, rig)
}

func TestHalfDuplexRead(t *testing.T) {
	bus, rig := newHalfDuplex(t, nil)
	rig.Slave.Load(0x00, 0xFF)
	rig.Trace.Reset()
	got := make([]byte, 2)
	if err := bus.Read(got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, []byte{0x00, 0xFF}); diff != "" {
		t.Errorf("Read() difference (-got +want):\n%s", diff)
	}
	// The line is driven high once, before the first clock pulse.
	ev := rig.Trace.Events()
	if ev[0].Line != "SDA" || ev[0].Kind != trace.Drive || ev[0].Level != gpio.High {
		t.Errorf("first event is %s, want SDA driven high", ev[0])
	}
	if diff := cmp.Diff(rig.Trace.Levels("SDA", trace.Drive), []gpio.Level{gpio.High}); diff != "" {
		t.Errorf("SDA drives difference (-got +want):\n%s", diff)
	}
	if n := rig.Pulses(); n != 16 {
		t.Errorf("got %d clock pulses, want 16", n)
	}
	checkIdle(t, rig)
}

func TestHalfDuplexRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		words []byte
	}{
		{"empty", nil},
		{"one", []byte{0xA5}},
		{"edges", []byte{0x00, 0xFF, 0x80, 0x01}},
		{"ascii", []byte("half duplex")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bus, rig := newHalfDuplex(t, nil)
			if err := bus.Write(tc.words); err != nil {
				t.Fatal(err)
			}
			got := make([]byte, len(tc.words))
			if err := bus.Read(got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(got, tc.words, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(rig.Slave.Received(), tc.words, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("slave shifted in its own answer (-got +want):\n%s", diff)
			}
			checkIdle(t, rig)
		})
	}
}

func TestHalfDuplexTransferUnsupported(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts *bitbang.Opts
		want error
	}{
		{"default", nil, nil},
		{"strict", &bitbang.Opts{Strict: true}, bitbang.ErrUnsupported},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bus, rig := newHalfDuplex(t, tc.opts)
			rig.Slave.Load(0x11, 0x22)
			rig.Trace.Reset()
			r := []byte{0xAA, 0xBB}
			w := []byte{0xCC, 0xDD}
			if err := bus.Transfer(r, w); !errors.Is(err, tc.want) {
				t.Errorf("Transfer() = %v, want %v", err, tc.want)
			}
			buf := []byte{0xEE}
			if err := bus.TransferInPlace(buf); !errors.Is(err, tc.want) {
				t.Errorf("TransferInPlace() = %v, want %v", err, tc.want)
			}
			if diff := cmp.Diff([][]byte{r, w, buf}, [][]byte{{0xAA, 0xBB}, {0xCC, 0xDD}, {0xEE}}); diff != "" {
				t.Errorf("buffers changed (-got +want):\n%s", diff)
			}
			if ev := rig.Trace.Events(); len(ev) != 0 {
				t.Errorf("pins touched: %v", ev)
			}
			if err := bus.Flush(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestHalfDuplexFaults(t *testing.T) {
	stuck := errors.New("stuck")
	for _, strict := range []bool{false, true} {
		bus, rig := newHalfDuplex(t, &bitbang.Opts{Strict: strict})
		rig.SDA.Err = stuck
		werr := bus.Write([]byte{0x55})
		got := []byte{0xFF}
		rerr := bus.Read(got)
		if n := rig.Pulses(); n != 16 {
			t.Errorf("strict=%t: got %d clock pulses, want 16", strict, n)
		}
		if got[0] != 0 {
			t.Errorf("strict=%t: failed samples read %#x, want 0", strict, got[0])
		}
		for _, err := range []error{werr, rerr} {
			if !strict {
				if err != nil {
					t.Errorf("default options returned %v", err)
				}
				continue
			}
			var f *bitbang.PinFault
			if !errors.As(err, &f) || f.Pin != "SDA" || !errors.Is(err, stuck) {
				t.Errorf("got %v, want SDA fault", err)
			}
		}
	}
}
