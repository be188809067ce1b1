// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softspi is a container for a bit banged SPI bus and its tooling.
//
// See bitbang for the bus itself, trace, termwave and waveplot to inspect
// what went over the wire, and shiftreg for a device driver using it.
package softspi
