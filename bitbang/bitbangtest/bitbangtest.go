// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbangtest is meant to be used to test bit banged buses and the
// drivers built on top of them.
//
// A Rig wires simulated pins to a simulated slave. On a full duplex rig the
// slave behaves like a chain of shift registers clocked in SPI mode 3 with
// its last stage wired to MISO: on every rising clock edge it shifts out
// its last stage and shifts in MOSI. Writing words to a chain as long as
// the words then reading the same number of words thus returns them.
package bitbangtest

import (
	"sync"

	"github.com/GermanBionicSystems/softspi/bitbang"
	"github.com/GermanBionicSystems/softspi/trace"
	"periph.io/x/conn/v3/gpio"
)

// Pin is a simulated line.
//
// The line level is the wired AND of what the master and the slave drive,
// both defaulting to high as if the line was pulled up.
type Pin struct {
	N string
	// Err, when set, is returned by every operation and the level is left
	// unchanged.
	Err error
	// OnDrive is called with the new level after each successful drive by
	// the master.
	OnDrive func(l gpio.Level)

	mu       sync.Mutex
	master   gpio.Level
	slave    gpio.Level
	released bool
}

// NewPin returns a pulled up line.
func NewPin(name string) *Pin {
	return &Pin{N: name, master: gpio.High, slave: gpio.High}
}

func (p *Pin) String() string {
	return p.N
}

// SetHigh drives the line high. On a shared line it also means the master
// released it to the pull up.
func (p *Pin) SetHigh() error {
	return p.drive(gpio.High, true)
}

// SetLow drives the line low.
func (p *Pin) SetLow() error {
	return p.drive(gpio.Low, false)
}

// SetState drives the line to l.
func (p *Pin) SetState(l gpio.Level) error {
	return p.drive(l, false)
}

// IsHigh samples the line.
func (p *Pin) IsHigh() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return false, p.Err
	}
	return bool(p.master && p.slave), nil
}

// Level returns the line level.
func (p *Pin) Level() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master && p.slave
}

// Released reports whether the last drive by the master was SetHigh.
func (p *Pin) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Present sets the level driven by the slave side.
func (p *Pin) Present(l gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slave = l
}

func (p *Pin) drive(l gpio.Level, release bool) error {
	p.mu.Lock()
	if p.Err != nil {
		p.mu.Unlock()
		return p.Err
	}
	p.master = l
	p.released = release
	// The slave lets go of the line whenever the master takes it.
	p.slave = gpio.High
	cb := p.OnDrive
	p.mu.Unlock()
	if cb != nil {
		cb(l)
	}
	return nil
}

// Slave is a simulated shift register chain.
type Slave struct {
	// Depth is the length of the chain in bits.
	//
	// In full duplex a bit shifted in comes back out Depth clock pulses
	// later; the chain starts out holding the pull up. When Depth is 0 the
	// slave only shifts out what was loaded.
	//
	// In half duplex the slave answers with the oldest bits it holds and
	// Depth bounds how many are kept, 0 meaning no limit.
	Depth int

	mu       sync.Mutex
	bits     []gpio.Level
	received []byte
	acc      byte
	nacc     int
	latched  []byte
}

// Load queues words to be shifted out, most significant bit first, as if
// they had been shifted in last.
func (s *Slave) Load(words ...byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range words {
		for bit := range 8 {
			s.push(gpio.Level((w<<bit)&0x80 != 0))
		}
	}
}

// Received returns every complete word shifted in by the master.
func (s *Slave) Received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.received...)
}

// Latched returns the last complete word received at each rising edge of
// the chip select line, like the storage register of a 74HC595.
func (s *Slave) Latched() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.latched...)
}

// Pending returns the number of bits queued.
func (s *Slave) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bits)
}

// shift clocks the chain once, shifting in l and returning its last stage.
func (s *Slave) shift(in gpio.Level) gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receive(in)
	if s.Depth == 0 {
		return s.pop()
	}
	s.fill()
	out := s.pop()
	s.push(in)
	return out
}

// send pops the oldest bit without shifting anything in.
func (s *Slave) send() gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pop()
}

// sink shifts in l without shifting anything out.
func (s *Slave) sink(in gpio.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(in)
	s.receive(in)
}

func (s *Slave) latch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) != 0 {
		s.latched = append(s.latched, s.received[len(s.received)-1])
	}
}

// fill pads the output end of the chain with the pull up.
func (s *Slave) fill() {
	n := s.Depth - len(s.bits)
	if n <= 0 {
		return
	}
	bits := make([]gpio.Level, n, s.Depth)
	for i := range bits {
		bits[i] = gpio.High
	}
	s.bits = append(bits, s.bits...)
}

func (s *Slave) pop() gpio.Level {
	if len(s.bits) == 0 {
		return gpio.High
	}
	l := s.bits[0]
	s.bits = s.bits[1:]
	return l
}

func (s *Slave) push(l gpio.Level) {
	s.bits = append(s.bits, l)
	if s.Depth > 0 && len(s.bits) > s.Depth {
		s.bits = s.bits[len(s.bits)-s.Depth:]
	}
}

func (s *Slave) receive(l gpio.Level) {
	s.acc <<= 1
	if l {
		s.acc |= 1
	}
	if s.nacc++; s.nacc == 8 {
		s.received = append(s.received, s.acc)
		s.acc, s.nacc = 0, 0
	}
}

// Rig is a set of simulated lines wired to a Slave.
//
// Every line handed to a bus by Rig is wrapped by Trace.
type Rig struct {
	SCK   *Pin
	MOSI  *Pin
	MISO  *Pin
	SDA   *Pin
	CS    *Pin
	Slave *Slave
	Trace trace.Recorder

	clock gpio.Level
	sel   gpio.Level
}

// NewFullDuplex returns a rig with SCK, MOSI, MISO and CS.
func NewFullDuplex() *Rig {
	r := &Rig{SCK: NewPin("SCK"), MOSI: NewPin("MOSI"), MISO: NewPin("MISO"), CS: NewPin("CS"), Slave: &Slave{}}
	r.wire()
	r.SCK.OnDrive = r.edge(func() {
		r.MISO.Present(r.Slave.shift(r.MOSI.Level()))
	})
	return r
}

// NewHalfDuplex returns a rig with SCK, SDA and CS.
//
// The slave drives SDA only while the master has released it.
func NewHalfDuplex() *Rig {
	r := &Rig{SCK: NewPin("SCK"), SDA: NewPin("SDA"), CS: NewPin("CS"), Slave: &Slave{}}
	r.wire()
	r.SCK.OnDrive = r.edge(func() {
		if r.SDA.Released() {
			r.SDA.Present(r.Slave.send())
		} else {
			r.Slave.sink(r.SDA.Level())
		}
	})
	return r
}

// FullDuplex returns a traced full duplex bus on the rig.
func (r *Rig) FullDuplex(opts *bitbang.Opts) (*bitbang.FullDuplex, error) {
	return bitbang.NewFullDuplex(r.Trace.Output("SCK", r.SCK), r.Trace.Output("MOSI", r.MOSI), r.Trace.Input("MISO", r.MISO), opts)
}

// HalfDuplex returns a traced half duplex bus on the rig.
func (r *Rig) HalfDuplex(opts *bitbang.Opts) (*bitbang.HalfDuplex, error) {
	return bitbang.NewHalfDuplex(r.Trace.Output("SCK", r.SCK), r.Trace.InOut("SDA", r.SDA), opts)
}

// ChipSelect returns the traced chip select line.
func (r *Rig) ChipSelect() bitbang.OutputPin {
	return r.Trace.Output("CS", r.CS)
}

// Pulses returns the number of rising clock edges recorded.
func (r *Rig) Pulses() int {
	return r.Trace.Rising("SCK")
}

func (r *Rig) wire() {
	r.clock = gpio.High
	r.sel = gpio.High
	r.CS.OnDrive = func(l gpio.Level) {
		if r.sel == gpio.Low && l == gpio.High {
			r.Slave.latch()
		}
		r.sel = l
	}
}

func (r *Rig) edge(rising func()) func(gpio.Level) {
	return func(l gpio.Level) {
		if r.clock == gpio.Low && l == gpio.High {
			rising()
		}
		r.clock = l
	}
}
