// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/softspi/bitbang"
	"github.com/GermanBionicSystems/softspi/termwave"
	"github.com/GermanBionicSystems/softspi/trace"
	"github.com/GermanBionicSystems/softspi/waveplot"
)

// session is an open bus and the trace of its pins.
type session struct {
	bus  bitbang.Bus
	port *bitbang.Port
	rec  trace.Recorder
}

// run opens the bus described by the global flags, calls fn and renders the
// trace if asked to.
func run(c *cli.Context, logger *zap.SugaredLogger, fn func(s *session) error) (err error) {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "initializing host drivers")
	}
	s, err := open(c)
	if err != nil {
		return err
	}
	logger.Debugw("opened", "bus", s.bus.String())
	defer func() {
		err = multierr.Combine(err, s.port.Close(), s.render(c))
	}()
	return fn(s)
}

func open(c *cli.Context) (*session, error) {
	s := &session{}
	opts := bitbang.DefaultOpts
	opts.Strict = c.Bool(flagStrict)

	sck, err := pinByName(c.String(flagSCK))
	if err != nil {
		return nil, err
	}
	clk := s.rec.Output("SCK", bitbang.Out(sck))
	switch {
	case c.IsSet(flagSDA):
		if c.IsSet(flagMOSI) || c.IsSet(flagMISO) {
			return nil, errors.New("--sda excludes --mosi and --miso")
		}
		sda, err := pinByName(c.String(flagSDA))
		if err != nil {
			return nil, err
		}
		s.bus, err = bitbang.NewHalfDuplex(clk, s.rec.InOut("SDA", bitbang.InOut(sda, gpio.PullUp)), &opts)
		if err != nil {
			return nil, err
		}
	case c.IsSet(flagMOSI) && c.IsSet(flagMISO):
		mosi, err := pinByName(c.String(flagMOSI))
		if err != nil {
			return nil, err
		}
		miso, err := pinByName(c.String(flagMISO))
		if err != nil {
			return nil, err
		}
		s.bus, err = bitbang.NewFullDuplex(clk, s.rec.Output("MOSI", bitbang.Out(mosi)), s.rec.Input("MISO", bitbang.In(miso, gpio.PullUp)), &opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("either --sda or both --mosi and --miso are required")
	}

	var cs bitbang.OutputPin
	if c.IsSet(flagCS) {
		p, err := pinByName(c.String(flagCS))
		if err != nil {
			return nil, err
		}
		cs = s.rec.Output("CS", bitbang.Out(p))
	}
	if s.port, err = bitbang.NewPort(s.bus, cs); err != nil {
		return nil, err
	}
	return s, nil
}

// connect opens a mode 3 connection on the port, so chip select frames
// every transaction.
func (s *session) connect() (spi.Conn, error) {
	mode := spi.Mode3
	if s.bus.Duplex() == conn.Half {
		mode |= spi.HalfDuplex
	}
	return s.port.Connect(physic.MegaHertz, mode, 8)
}

func (s *session) render(c *cli.Context) error {
	if c.Bool(flagTrace) {
		d := termwave.New(nil)
		if err := multierr.Combine(d.Render(&s.rec), d.Halt()); err != nil {
			return err
		}
	}
	if name := c.String(flagPNG); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		return multierr.Combine(waveplot.Encode(f, &s.rec, nil), f.Close())
	}
	return nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no pin %q", name)
	}
	return p, nil
}
