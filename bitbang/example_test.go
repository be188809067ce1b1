// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/softspi/bitbang"
)

func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	sck := gpioreg.ByName("GPIO11")
	mosi := gpioreg.ByName("GPIO10")
	miso := gpioreg.ByName("GPIO9")
	if sck == nil || mosi == nil || miso == nil {
		log.Fatal("failed to find the pins")
	}
	bus, err := bitbang.NewFullDuplex(bitbang.Out(sck), bitbang.Out(mosi), bitbang.In(miso, gpio.PullUp), nil)
	if err != nil {
		log.Fatal(err)
	}
	// Read the JEDEC ID of a SPI flash.
	buf := []byte{0x9F, 0, 0, 0}
	if err := bus.TransferInPlace(buf); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("manufacturer %#02x device %#02x%02x\n", buf[1], buf[2], buf[3])
}

func ExampleNewPort() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	sck := gpioreg.ByName("GPIO11")
	sda := gpioreg.ByName("GPIO10")
	cs := gpioreg.ByName("GPIO8")
	if sck == nil || sda == nil || cs == nil {
		log.Fatal("failed to find the pins")
	}
	bus, err := bitbang.NewHalfDuplex(bitbang.Out(sck), bitbang.InOut(sda, gpio.PullUp), &bitbang.Opts{Strict: true})
	if err != nil {
		log.Fatal(err)
	}
	p, err := bitbang.NewPort(bus, bitbang.Out(cs))
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()
	c, err := p.Connect(physic.MegaHertz, spi.Mode3|spi.HalfDuplex, 8)
	if err != nil {
		log.Fatal(err)
	}
	// Write a register address then read its value back.
	r := make([]byte, 1)
	if err := c.Tx([]byte{0x80 | 0x0F}, r); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("WHO_AM_I: %#02x\n", r[0])
}
