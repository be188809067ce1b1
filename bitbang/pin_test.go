// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestOut(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO1"}
	o := Out(p)
	if err := o.SetHigh(); err != nil || p.L != gpio.High {
		t.Fatalf("SetHigh: %v, level %s", err, p.L)
	}
	if err := o.SetLow(); err != nil || p.L != gpio.Low {
		t.Fatalf("SetLow: %v, level %s", err, p.L)
	}
	if err := o.SetState(gpio.High); err != nil || p.L != gpio.High {
		t.Fatalf("SetState: %v, level %s", err, p.L)
	}
	if s := nameOf(o, "?"); s != p.String() {
		t.Errorf("name %q, want %q", s, p.String())
	}
}

func TestIn(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO2", L: gpio.High}
	in := In(p, gpio.Float)
	h, err := in.IsHigh()
	if err != nil || !h {
		t.Fatalf("IsHigh() = %t, %v", h, err)
	}
	if p.P != gpio.Float {
		t.Errorf("pull %s, want Float", p.P)
	}
	p.L = gpio.Low
	if h, _ := in.IsHigh(); h {
		t.Error("IsHigh() = true after the line went low")
	}
}

func TestInOut(t *testing.T) {
	p := &dirPin{Pin: &gpiotest.Pin{N: "GPIO3"}}
	b := InOut(p, gpio.PullUp)
	if err := b.SetLow(); err != nil || p.L != gpio.Low || !p.output {
		t.Fatalf("SetLow: %v, level %s, output %t", err, p.L, p.output)
	}
	// Driving high releases the line to the pull up.
	if err := b.SetHigh(); err != nil || p.output {
		t.Fatalf("SetHigh: %v, output %t", err, p.output)
	}
	if p.P != gpio.PullUp {
		t.Errorf("pull %s, want PullUp", p.P)
	}
	if err := b.SetState(gpio.Low); err != nil || !p.output {
		t.Fatalf("SetState(Low): %v, output %t", err, p.output)
	}
	h, err := b.IsHigh()
	if err != nil || !h {
		t.Fatalf("IsHigh() = %t, %v", h, err)
	}
	if p.output {
		t.Error("sampling left the line driven")
	}
}

func TestInOutReleasedDuringRead(t *testing.T) {
	sda := &dirPin{Pin: &gpiotest.Pin{N: "SDA"}}
	var driven []bool
	sck := &clockPin{Pin: &gpiotest.Pin{N: "SCK"}, falling: func() {
		driven = append(driven, sda.output)
	}}
	bus, err := NewHalfDuplex(Out(sck), InOut(sda, gpio.PullUp), nil)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the line driven low.
	if err := bus.Write([]byte{0x00}); err != nil {
		t.Fatal(err)
	}
	driven = nil
	if err := bus.Read(make([]byte, 1)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(driven, make([]bool, 8)); diff != "" {
		t.Errorf("SDA driven at falling edges (-got +want):\n%s", diff)
	}
}

func TestInOutHalfDuplex(t *testing.T) {
	sck := &gpiotest.Pin{N: "SCK"}
	sda := &gpiotest.Pin{N: "SDA"}
	bus, err := NewHalfDuplex(Out(sck), InOut(sda, gpio.PullUp), nil)
	if err != nil {
		t.Fatal(err)
	}
	if sck.L != gpio.High {
		t.Error("clock is not idle high")
	}
	if err := bus.Write([]byte{0x00}); err != nil {
		t.Fatal(err)
	}
	if sda.L != gpio.Low {
		t.Errorf("SDA %s after writing zeros", sda.L)
	}
	// Nobody pulls the line down, so the pull up reads as ones.
	got := []byte{0}
	if err := bus.Read(got); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xFF {
		t.Errorf("got %#x, want 0xff", got[0])
	}
}

func TestPinFault(t *testing.T) {
	f := &PinFault{Pin: "SCK", Op: "low", Err: errString("boom")}
	if s := f.Error(); s != "bitbang: SCK low: boom" {
		t.Errorf("Error() = %q", s)
	}
}

// dirPin remembers whether the pin was last configured as an output.
type dirPin struct {
	*gpiotest.Pin
	output bool
}

func (p *dirPin) Out(l gpio.Level) error {
	p.output = true
	return p.Pin.Out(l)
}

func (p *dirPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.output = false
	return p.Pin.In(pull, edge)
}

// clockPin calls falling whenever it is driven low.
type clockPin struct {
	*gpiotest.Pin
	falling func()
}

func (p *clockPin) Out(l gpio.Level) error {
	if l == gpio.Low {
		p.falling()
	}
	return p.Pin.Out(l)
}

type errString string

func (e errString) Error() string {
	return string(e)
}
