// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbang emulates an SPI bus by toggling general purpose pins.
//
// Two topologies are supported and picked by the caller according to the
// wiring:
//
//   - FullDuplex drives SCK and MOSI and samples MISO. Words are read and
//     written at the same time on separate wires.
//   - HalfDuplex drives SCK and shares a single, externally pulled up SDA
//     line for both directions. It can only read or write at disjoint times.
//
// Both implement Bus. The clock idles high and every bit is framed by one
// low then high pulse; data is driven before the falling edge and sampled
// right after the rising edge, which is SPI mode 3. Words are always
// transferred most significant bit first.
//
// There is no clock rate configuration: a bit takes as long as the
// underlying pin operations take.
//
// Port wraps a Bus into a periph.io spi.PortCloser so existing device
// drivers can use it in place of a hardware SPI port.
//
// # Pin faults
//
// By default, errors returned by individual pin operations are discarded
// and every operation reports success, so a misbehaving pin silently
// produces garbage. Opts.Strict changes that: the bit loop still runs to
// completion but the first fault is returned as a *PinFault.
package bitbang
