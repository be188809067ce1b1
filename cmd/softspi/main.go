// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// softspi talks to a SPI device over bit banged GPIO pins.
//
// Examples:
//
//	softspi --sck GPIO11 --mosi GPIO10 --miso GPIO9 transfer 9f000000
//	softspi --sck GPIO11 --sda GPIO10 --cs GPIO8 --trace write 8f && softspi ... read 1
//	softspi --sck GPIO17 --mosi GPIO27 --miso GPIO23 --cs GPIO22 shiftreg 0x81
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"

	"github.com/GermanBionicSystems/softspi/shiftreg"
)

const (
	flagSCK    = "sck"
	flagMOSI   = "mosi"
	flagMISO   = "miso"
	flagSDA    = "sda"
	flagCS     = "cs"
	flagStrict = "strict"
	flagDebug  = "debug"
	flagTrace  = "trace"
	flagPNG    = "png"
	flagChips  = "chips"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "softspi: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger *zap.SugaredLogger

	return &cli.App{
		Name:  "softspi",
		Usage: "talk to a SPI device over bit banged GPIO pins",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagSCK, Usage: "clock pin", Required: true},
			&cli.StringFlag{Name: flagMOSI, Usage: "data out pin (full duplex)"},
			&cli.StringFlag{Name: flagMISO, Usage: "data in pin (full duplex)"},
			&cli.StringFlag{Name: flagSDA, Usage: "shared data pin, pulled up (half duplex)"},
			&cli.StringFlag{Name: flagCS, Usage: "active low chip select pin"},
			&cli.BoolFlag{Name: flagStrict, Usage: "report pin faults and unsupported operations"},
			&cli.BoolFlag{Name: flagTrace, Usage: "print the waveform of the transaction"},
			&cli.StringFlag{Name: flagPNG, Usage: "write the waveform to `FILE`"},
			&cli.BoolFlag{Name: flagDebug, Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool(flagDebug) {
				logger = zap.NewNop().Sugar()
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l.Sugar()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "write",
				Usage:     "write hex encoded words",
				ArgsUsage: "HEX...",
				Action: func(c *cli.Context) error {
					return run(c, logger, func(s *session) error {
						w, err := parseHex(c.Args().Slice())
						if err != nil {
							return err
						}
						sc, err := s.connect()
						if err != nil {
							return err
						}
						logger.Debugw("write", "words", len(w))
						return sc.Tx(w, nil)
					})
				},
			},
			{
				Name:      "read",
				Usage:     "read N words",
				ArgsUsage: "N",
				Action: func(c *cli.Context) error {
					return run(c, logger, func(s *session) error {
						n, err := strconv.Atoi(c.Args().First())
						if err != nil || n < 0 {
							return errors.Errorf("invalid word count %q", c.Args().First())
						}
						sc, err := s.connect()
						if err != nil {
							return err
						}
						r := make([]byte, n)
						logger.Debugw("read", "words", n)
						if err := sc.Tx(nil, r); err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, hex.EncodeToString(r))
						return nil
					})
				},
			},
			{
				Name:      "transfer",
				Usage:     "write hex encoded words and print the words read meanwhile",
				ArgsUsage: "HEX...",
				Action: func(c *cli.Context) error {
					return run(c, logger, func(s *session) error {
						w, err := parseHex(c.Args().Slice())
						if err != nil {
							return err
						}
						if s.bus.Duplex() == conn.Half {
							return errors.New("transfer needs a full duplex bus; use write then read")
						}
						sc, err := s.connect()
						if err != nil {
							return err
						}
						r := make([]byte, len(w))
						logger.Debugw("transfer", "words", len(w))
						if err := sc.Tx(w, r); err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, hex.EncodeToString(r))
						return nil
					})
				},
			},
			{
				Name:      "shiftreg",
				Usage:     "set the outputs of a chain of 74HC595",
				ArgsUsage: "VALUE",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagChips, Value: 1, Usage: "number of chained registers"},
				},
				Action: func(c *cli.Context) error {
					return run(c, logger, func(s *session) error {
						v, err := strconv.ParseUint(c.Args().First(), 0, 64)
						if err != nil {
							return errors.Wrap(err, "invalid value")
						}
						sc, err := s.connect()
						if err != nil {
							return err
						}
						dev, err := shiftreg.New(sc, c.Int(flagChips))
						if err != nil {
							return err
						}
						logger.Debugw("shiftreg", "device", dev, "value", v)
						return dev.Out(v, ^uint64(0))
					})
				},
			},
		},
	}
}

// parseHex decodes arguments such as "0xa5", "a5b6" or "a5 b6".
func parseHex(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(strings.TrimPrefix(strings.ToLower(a), "0x"))
	}
	b, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex words")
	}
	return b, nil
}
