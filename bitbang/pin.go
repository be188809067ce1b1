// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"periph.io/x/conn/v3/gpio"
)

// OutputPin is a pin the bus can drive.
type OutputPin interface {
	SetHigh() error
	SetLow() error
	SetState(l gpio.Level) error
}

// InputPin is a pin the bus can sample.
//
// An error is treated as "not high".
type InputPin interface {
	IsHigh() (bool, error)
}

// IOPin is a bidirectional pin, as used for the shared data line of a
// HalfDuplex bus.
type IOPin interface {
	InputPin
	OutputPin
}

// Out adapts a periph output pin.
func Out(p gpio.PinOut) OutputPin {
	return &outPin{p: p}
}

// In adapts a periph input pin. The pin is configured as an input with the
// given pull on its first sample.
func In(p gpio.PinIn, pull gpio.Pull) InputPin {
	return &inPin{p: p, pull: pull}
}

// InOut adapts a periph bidirectional pin as an open drain line.
//
// Driving it low makes it an output. Driving it high releases it: the pin
// becomes an input with the given pull so a slave can drive the line. For
// the shared line of a HalfDuplex bus pull should be gpio.PullUp unless an
// external resistor is fitted, in which case gpio.Float is fine.
func InOut(p gpio.PinIO, pull gpio.Pull) IOPin {
	return &ioPin{p: p, pull: pull}
}

type outPin struct {
	p gpio.PinOut
}

func (o *outPin) SetHigh() error {
	return o.p.Out(gpio.High)
}

func (o *outPin) SetLow() error {
	return o.p.Out(gpio.Low)
}

func (o *outPin) SetState(l gpio.Level) error {
	return o.p.Out(l)
}

func (o *outPin) String() string {
	return o.p.String()
}

type inPin struct {
	p     gpio.PinIn
	pull  gpio.Pull
	ready bool
}

func (i *inPin) IsHigh() (bool, error) {
	if !i.ready {
		if err := i.p.In(i.pull, gpio.NoEdge); err != nil {
			return false, err
		}
		i.ready = true
	}
	return i.p.Read() == gpio.High, nil
}

func (i *inPin) String() string {
	return i.p.String()
}

type ioPin struct {
	p     gpio.PinIO
	pull  gpio.Pull
	input bool
}

func (b *ioPin) SetHigh() error {
	return b.release()
}

func (b *ioPin) SetLow() error {
	b.input = false
	return b.p.Out(gpio.Low)
}

func (b *ioPin) SetState(l gpio.Level) error {
	if l {
		return b.release()
	}
	return b.SetLow()
}

func (b *ioPin) IsHigh() (bool, error) {
	if err := b.release(); err != nil {
		return false, err
	}
	return b.p.Read() == gpio.High, nil
}

func (b *ioPin) release() error {
	if b.input {
		return nil
	}
	if err := b.p.In(b.pull, gpio.NoEdge); err != nil {
		return err
	}
	b.input = true
	return nil
}

func (b *ioPin) String() string {
	return b.p.String()
}

var _ OutputPin = &outPin{}
var _ InputPin = &inPin{}
var _ IOPin = &ioPin{}
