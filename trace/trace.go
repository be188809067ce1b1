// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package trace records the activity of bit banged bus lines.
//
// Wrap the pins handed to a bitbang bus with a Recorder to get an ordered
// log of every level driven and sampled. The log can be queried directly
// or rendered with termwave or waveplot.
package trace

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/softspi/bitbang"
	"periph.io/x/conn/v3/gpio"
)

// Kind tells whether an event is a drive or a sample.
type Kind uint8

const (
	Drive Kind = iota
	Sample
)

func (k Kind) String() string {
	if k == Sample {
		return "Sample"
	}
	return "Drive"
}

// Event is one pin operation.
type Event struct {
	Seq   int
	Line  string
	Kind  Kind
	Level gpio.Level
	Err   error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("#%d %s %s %s: %v", e.Seq, e.Line, e.Kind, e.Level, e.Err)
	}
	return fmt.Sprintf("#%d %s %s %s", e.Seq, e.Line, e.Kind, e.Level)
}

// Recorder is an ordered log of events. The zero value is ready to use and
// it is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	lines  []string
}

// Record appends an event and returns its sequence number.
func (r *Recorder) Record(line string, k Kind, l gpio.Level, err error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := false
	for _, n := range r.lines {
		if n == line {
			seen = true
			break
		}
	}
	if !seen {
		r.lines = append(r.lines, line)
	}
	e := Event{Seq: len(r.events), Line: line, Kind: k, Level: l, Err: err}
	r.events = append(r.events, e)
	return e.Seq
}

// Events returns a copy of the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Lines returns the line names in order of first appearance.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Levels returns the levels of every event of kind k on line.
func (r *Recorder) Levels(line string, k Kind) []gpio.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []gpio.Level
	for _, e := range r.events {
		if e.Line == line && e.Kind == k {
			out = append(out, e.Level)
		}
	}
	return out
}

// Rising counts the low to high transitions driven on line.
func (r *Recorder) Rising(line string) int {
	n := 0
	prev := gpio.High
	first := true
	for _, l := range r.Levels(line, Drive) {
		if !first && prev == gpio.Low && l == gpio.High {
			n++
		}
		prev = l
		first = false
	}
	return n
}

// Last returns the last level driven on line and whether there was any.
func (r *Recorder) Last(line string) (gpio.Level, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if e := r.events[i]; e.Line == line && e.Kind == Drive {
			return e.Level, true
		}
	}
	return gpio.Low, false
}

// Reset clears the log but keeps the known lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Output wraps p so every drive is recorded under line.
func (r *Recorder) Output(line string, p bitbang.OutputPin) bitbang.OutputPin {
	return &pin{r: r, line: line, out: p}
}

// Input wraps p so every sample is recorded under line.
func (r *Recorder) Input(line string, p bitbang.InputPin) bitbang.InputPin {
	return &pin{r: r, line: line, in: p}
}

// InOut wraps a bidirectional pin.
func (r *Recorder) InOut(line string, p bitbang.IOPin) bitbang.IOPin {
	return &pin{r: r, line: line, out: p, in: p}
}

type pin struct {
	r    *Recorder
	line string
	out  bitbang.OutputPin
	in   bitbang.InputPin
}

func (p *pin) SetHigh() error {
	err := p.out.SetHigh()
	p.r.Record(p.line, Drive, gpio.High, err)
	return err
}

func (p *pin) SetLow() error {
	err := p.out.SetLow()
	p.r.Record(p.line, Drive, gpio.Low, err)
	return err
}

func (p *pin) SetState(l gpio.Level) error {
	err := p.out.SetState(l)
	p.r.Record(p.line, Drive, l, err)
	return err
}

func (p *pin) IsHigh() (bool, error) {
	h, err := p.in.IsHigh()
	// A failed sample reads as low.
	h = h && err == nil
	p.r.Record(p.line, Sample, gpio.Level(h), err)
	return h, err
}

func (p *pin) String() string {
	return p.line
}

var _ bitbang.IOPin = &pin{}
