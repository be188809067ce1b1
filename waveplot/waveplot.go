// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package waveplot draws a recorded bus trace as a timing diagram image.
package waveplot

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/softspi/trace"
)

// Opts represents the options available for the diagram.
type Opts struct {
	Step       int // Horizontal pixels per event.
	RowHeight  int
	Background color.Color
	Trace      color.Color
	Sample     color.Color
	Label      color.Color

	_ struct{}
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Step:       8,
	RowHeight:  32,
	Background: color.White,
	Trace:      color.NRGBA{0x00, 0x60, 0xC0, 0xFF},
	Sample:     color.NRGBA{0xE0, 0x40, 0x00, 0xFF},
	Label:      color.Black,
}

const (
	margin    = 8
	pad       = 6 // Vertical space between a level and the row border.
	glyphW    = 7 // basicfont.Face7x13
	lineWidth = 2
)

// Geometry returns the y coordinates of the high and low levels of row and
// the x coordinate of column.
func Geometry(lines []string, opts *Opts, row, column int) (high, low, x float64) {
	if opts == nil {
		opts = &DefaultOpts
	}
	top := float64(margin + row*opts.RowHeight)
	return top + pad, top + float64(opts.RowHeight-pad), float64(left(lines) + column*opts.Step)
}

// Draw renders r. opts can be nil, in which case DefaultOpts is used.
func Draw(r *trace.Recorder, opts *Opts) image.Image {
	if opts == nil {
		opts = &DefaultOpts
	}
	events := r.Events()
	lines := r.Lines()
	w := left(lines) + len(events)*opts.Step + margin
	h := 2*margin + len(lines)*opts.RowHeight
	dc := gg.NewContext(w, h)
	dc.SetColor(opts.Background)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(lineWidth)
	step := float64(opts.Step)

	for row, name := range lines {
		yHigh, yLow, _ := Geometry(lines, opts, row, 0)
		dc.SetColor(opts.Label)
		dc.DrawStringAnchored(name, margin, (yHigh+yLow)/2, 0, 0.5)

		y := func(l gpio.Level) float64 {
			if l {
				return yHigh
			}
			return yLow
		}
		var level gpio.Level
		known := false
		for col, e := range events {
			_, _, x := Geometry(lines, opts, row, col)
			if e.Line == name && e.Kind == trace.Drive {
				if known && e.Level != level {
					dc.SetColor(opts.Trace)
					dc.DrawLine(x, yHigh, x, yLow)
					dc.Stroke()
				}
				level, known = e.Level, true
			}
			if known {
				dc.SetColor(opts.Trace)
				dc.DrawLine(x, y(level), x+step, y(level))
				dc.Stroke()
			}
			if e.Line == name && e.Kind == trace.Sample {
				dc.SetColor(opts.Sample)
				dc.DrawCircle(x+step/2, y(e.Level), step/4+1)
				dc.Fill()
			}
		}
	}
	return dc.Image()
}

// Encode writes r as a PNG image.
func Encode(w io.Writer, r *trace.Recorder, opts *Opts) error {
	return gg.NewContextForImage(Draw(r, opts)).EncodePNG(w)
}

func left(lines []string) int {
	n := 0
	for _, l := range lines {
		n = max(n, len(l))
	}
	return 2*margin + n*glyphW
}
