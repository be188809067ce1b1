// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Port exposes a Bus as a periph.io SPI port, so drivers written against
// spi.Port and spi.Conn work unchanged on bit banged pins.
type Port struct {
	mu    sync.Mutex
	bus   Bus
	cs    OutputPin
	limit physic.Frequency
	conn  *Conn
}

// NewPort returns a port over bus. cs is an optional active low chip select;
// it is driven high (deasserted) right away.
func NewPort(bus Bus, cs OutputPin) (*Port, error) {
	if bus == nil {
		return nil, errors.New("bitbang: nil bus")
	}
	p := &Port{bus: bus, cs: cs}
	if cs != nil {
		if err := cs.SetHigh(); err != nil {
			return nil, fmt.Errorf("bitbang: deasserting CS: %w", err)
		}
	}
	return p, nil
}

func (p *Port) String() string {
	return "bitbang." + p.bus.String()
}

// Close implements spi.PortCloser. Chip select is left deasserted.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.conn != nil && p.conn.selected {
		err = p.cs.SetHigh()
	}
	p.conn = nil
	return multierr.Append(err, p.bus.Flush())
}

// LimitSpeed implements spi.PortCloser.
//
// The speed is only recorded; bits are clocked as fast as the pins allow.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	if f < 0 {
		return errors.New("bitbang: invalid speed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit = f
	return nil
}

// Connect implements spi.Port.
//
// Only spi.Mode3 with 8 bits words, most significant bit first, is
// supported. spi.HalfDuplex must be set if and only if the bus is half
// duplex. spi.NoCS leaves chip select alone.
func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil, errors.New("bitbang: already connected")
	}
	if f < 0 {
		return nil, errors.New("bitbang: invalid speed")
	}
	if mode&3 != spi.Mode3 {
		return nil, fmt.Errorf("bitbang: unsupported mode %s; the clock idles high and samples on the rising edge", mode&3)
	}
	if mode&spi.LSBFirst != 0 {
		return nil, errors.New("bitbang: least significant bit first is not supported")
	}
	if bits != 8 {
		return nil, fmt.Errorf("bitbang: unsupported %d bits per word", bits)
	}
	if (mode&spi.HalfDuplex != 0) != (p.bus.Duplex() == conn.Half) {
		return nil, fmt.Errorf("bitbang: mode %s does not match %s bus", mode, p.bus.Duplex())
	}
	if p.limit != 0 && (f == 0 || f > p.limit) {
		f = p.limit
	}
	p.conn = &Conn{port: p, freq: f, useCS: p.cs != nil && mode&spi.NoCS == 0}
	return p.conn, nil
}

// Conn is a connection on a Port.
type Conn struct {
	port     *Port
	freq     physic.Frequency
	useCS    bool
	selected bool
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s@%s", c.port, c.freq)
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return c.port.bus.Duplex()
}

// Tx implements conn.Conn.
//
// On a full duplex bus w and r must have the same length unless one of
// them is empty. On a half duplex bus w is written first, then r is read.
func (c *Conn) Tx(w, r []byte) error {
	c.port.mu.Lock()
	defer c.port.mu.Unlock()
	return c.tx(w, r, false)
}

// TxPackets implements spi.Conn.
//
// KeepCS holds chip select asserted into the next packet.
func (c *Conn) TxPackets(p []spi.Packet) error {
	for i := range p {
		if p[i].BitsPerWord != 0 && p[i].BitsPerWord != 8 {
			return fmt.Errorf("bitbang: packet %d: unsupported %d bits per word", i, p[i].BitsPerWord)
		}
	}
	c.port.mu.Lock()
	defer c.port.mu.Unlock()
	for i := range p {
		// The last packet always releases chip select.
		keep := p[i].KeepCS && i != len(p)-1
		if err := c.tx(p[i].W, p[i].R, keep); err != nil {
			return err
		}
	}
	return nil
}

// Transfer exchanges a single word. It implements TinyGo's drivers.SPI.
func (c *Conn) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := c.Tx([]byte{b}, r[:])
	return r[0], err
}

func (c *Conn) tx(w, r []byte, keep bool) (err error) {
	if c.port.conn != c {
		return errors.New("bitbang: connection closed")
	}
	bus := c.port.bus
	half := bus.Duplex() == conn.Half
	if !half && len(w) != 0 && len(r) != 0 && len(w) != len(r) {
		return ErrLength
	}
	if c.useCS && !c.selected {
		if err := c.port.cs.SetLow(); err != nil {
			return fmt.Errorf("bitbang: asserting CS: %w", err)
		}
		c.selected = true
	}
	defer func() {
		if c.selected && (!keep || err != nil) {
			c.selected = false
			err = multierr.Append(err, c.port.cs.SetHigh())
		}
	}()
	switch {
	case half:
		if len(w) != 0 {
			if err := bus.Write(w); err != nil {
				return err
			}
		}
		if len(r) != 0 {
			if err := bus.Read(r); err != nil {
				return err
			}
		}
	case len(r) == 0:
		if err := bus.Write(w); err != nil {
			return err
		}
	case len(w) == 0:
		if err := bus.Read(r); err != nil {
			return err
		}
	default:
		if err := bus.Transfer(r, w); err != nil {
			return err
		}
	}
	return bus.Flush()
}

var _ spi.PortCloser = &Port{}
var _ spi.Conn = &Conn{}
var _ drivers.SPI = &Conn{}
