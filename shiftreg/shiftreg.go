// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package shiftreg drives a chain of 74HC595 serial to parallel shift
// registers as output pins.
//
// The registers only need a clock, a data line and a latch, which makes them
// the usual first device on a bit banged bus: wire SRCLK to SCK, SER to
// MOSI and RCLK to chip select. The outputs are latched on the rising edge
// of chip select, at the end of each transaction.
//
// # Datasheet
//
// https://www.nexperia.com/product/74HC595D
package shiftreg

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/conn/v3/spi"
)

const devName = "74HC595"

// ErrNotImplemented is returned by features the registers do not have.
var ErrNotImplemented = errors.New("shiftreg: not implemented")

// Dev is a chain of one to eight 74HC595. Output Qn of the chip closest to
// the bus is bit n; the next chip in the chain holds bits 8 to 15 and so on.
type Dev struct {
	// Pins has eight outputs per chip.
	Pins []gpio.PinOut

	mu    sync.Mutex
	conn  spi.Conn
	chips int
	value uint64
	valid bool
}

// New returns a chain of chips registers on conn.
//
// The outputs are unknown until the first write.
func New(conn spi.Conn, chips int) (*Dev, error) {
	if conn == nil {
		return nil, errors.New("shiftreg: nil connection")
	}
	if chips < 1 || chips > 8 {
		return nil, fmt.Errorf("shiftreg: %d chips, must be between 1 and 8", chips)
	}
	d := &Dev{conn: conn, chips: chips, Pins: make([]gpio.PinOut, 8*chips)}
	for i := range d.Pins {
		d.Pins[i] = &Pin{dev: d, number: i, name: fmt.Sprintf("%s_Q%d", devName, i)}
	}
	return d, nil
}

// Out sets the outputs selected by mask to value. Nothing is sent when the
// outputs already hold it.
func (d *Dev) Out(value, mask uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return errors.New("shiftreg: halted")
	}
	// Wraps to all ones for eight chips.
	mask &= uint64(1)<<(8*d.chips) - 1
	next := (d.value &^ mask) | (value & mask)
	if d.valid && next == d.value {
		return nil
	}
	// The word for the farthest chip goes out first.
	w := make([]byte, d.chips)
	for i := range w {
		w[i] = byte(next >> (8 * (d.chips - 1 - i)))
	}
	if err := d.conn.Tx(w, nil); err != nil {
		return err
	}
	d.value, d.valid = next, true
	return nil
}

// Group returns outputs of the chain as a gpio.Group, so they can be set in
// a single transaction. Bit n of a group value maps to output pins[n].
func (d *Dev) Group(pins ...int) (gpio.Group, error) {
	gr := &Group{dev: d, pins: make([]*Pin, len(pins))}
	for i, n := range pins {
		if n < 0 || n >= len(d.Pins) {
			return nil, fmt.Errorf("shiftreg: no output %d", n)
		}
		gr.pins[i] = d.Pins[n].(*Pin)
	}
	return gr, nil
}

// Value returns the last value written.
func (d *Dev) Value() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Halt implements conn.Resource. The outputs keep their state.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = nil
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%d chips on %s}", devName, d.chips, d.conn)
}

// Pin is one output of the chain.
type Pin struct {
	dev    *Dev
	name   string
	number int
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.name
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.number
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "Out"
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	mask := uint64(1) << p.number
	var v uint64
	if l {
		v = mask
	}
	return p.dev.Out(v, mask)
}

// PWM is not supported.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

func (p *Pin) String() string {
	return p.name
}

// Group is a set of outputs written together.
type Group struct {
	dev  *Dev
	pins []*Pin
}

// Pins implements gpio.Group.
func (gr *Group) Pins() []pin.Pin {
	out := make([]pin.Pin, len(gr.pins))
	for i, p := range gr.pins {
		out[i] = p
	}
	return out
}

// ByOffset implements gpio.Group.
func (gr *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(gr.pins) {
		return nil
	}
	return gr.pins[offset]
}

// ByName implements gpio.Group.
func (gr *Group) ByName(name string) pin.Pin {
	for _, p := range gr.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// ByNumber implements gpio.Group.
func (gr *Group) ByNumber(number int) pin.Pin {
	for _, p := range gr.pins {
		if p.number == number {
			return p
		}
	}
	return nil
}

// Out sets the group outputs selected by mask to value in one write. A zero
// mask selects the whole group.
func (gr *Group) Out(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = gpio.GPIOValue(1)<<len(gr.pins) - 1
	}
	var v, m uint64
	for i, p := range gr.pins {
		bit := gpio.GPIOValue(1) << i
		if mask&bit == 0 {
			continue
		}
		m |= uint64(1) << p.number
		if value&bit != 0 {
			v |= uint64(1) << p.number
		}
	}
	return gr.dev.Out(v, m)
}

// Read is not supported; the outputs cannot be read back.
func (gr *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	return 0, gpio.ErrGroupFeatureNotImplemented
}

// WaitForEdge is not supported.
func (gr *Group) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt implements conn.Resource.
func (gr *Group) Halt() error {
	return nil
}

func (gr *Group) String() string {
	names := make([]string, len(gr.pins))
	for i, p := range gr.pins {
		names[i] = p.name
	}
	return fmt.Sprintf("%s[%s]", devName, strings.Join(names, " "))
}

var _ gpio.PinOut = &Pin{}
var _ gpio.Group = &Group{}
