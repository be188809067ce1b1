// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termwave renders a recorded bus trace to the terminal using ANSI
// color codes.
//
// Each line is a row and each recorded event is a column. Driven lines show
// their level over time; sampled lines show a block at each sample.
//
// Useful to eyeball a bus while the logic analyzer is out on loan.
package termwave

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/softspi/trace"
)

// Opts represents the options available for the renderer.
type Opts struct {
	// Width caps the number of columns; 0 means one column per event.
	Width   int
	Palette *ansi256.Palette
	High    color.NRGBA
	Low     color.NRGBA
	// Sampled is the color of a sample read high; samples read low use Low.
	Sampled color.NRGBA

	_ struct{}
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	High:    color.NRGBA{0x00, 0xD0, 0x00, 0xFF},
	Low:     color.NRGBA{0x20, 0x20, 0x80, 0xFF},
	Sampled: color.NRGBA{0xFF, 0xC0, 0x00, 0xFF},
}

// Dev writes traces to a terminal.
type Dev struct {
	w       io.Writer
	opts    Opts
	palette ansi256.Palette
	buf     bytes.Buffer
}

// New returns a Dev that writes to the console.
func New(opts *Opts) *Dev {
	return NewWriter(colorable.NewColorableStdout(), opts)
}

// NewWriter returns a Dev that writes to w.
func NewWriter(w io.Writer, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Dev{w: w, opts: *opts, palette: *p}
}

func (d *Dev) String() string {
	return "TermWave"
}

// Halt resets the terminal attributes.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// Render writes one row per line of r.
func (d *Dev) Render(r *trace.Recorder) error {
	events := r.Events()
	if d.opts.Width > 0 && len(events) > d.opts.Width {
		events = events[:d.opts.Width]
	}
	lines := r.Lines()
	pad := 0
	for _, l := range lines {
		pad = max(pad, len(l))
	}
	d.buf.Reset()
	for _, name := range lines {
		_, _ = fmt.Fprintf(&d.buf, "\033[0m%-*s ", pad, name)
		sampledOnly := d.isSampled(name, events)
		var level gpio.Level
		known := false
		for _, e := range events {
			switch {
			case e.Line == name && e.Kind == trace.Sample:
				c := d.opts.Low
				if e.Level {
					c = d.opts.Sampled
				}
				_, _ = io.WriteString(&d.buf, d.palette.Block(c))
			case e.Line == name:
				level, known = e.Level, true
				_, _ = io.WriteString(&d.buf, d.block(level))
			case sampledOnly || !known:
				// Samples are instants and an undriven line has no level yet.
				_, _ = d.buf.WriteString("\033[0m ")
			default:
				_, _ = io.WriteString(&d.buf, d.block(level))
			}
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

func (d *Dev) block(l gpio.Level) string {
	if l {
		return d.palette.Block(d.opts.High)
	}
	return d.palette.Block(d.opts.Low)
}

// isSampled reports whether name is only ever sampled.
func (d *Dev) isSampled(name string, events []trace.Event) bool {
	for _, e := range events {
		if e.Line == name && e.Kind == trace.Drive {
			return false
		}
	}
	return true
}

var _ fmt.Stringer = &Dev{}
