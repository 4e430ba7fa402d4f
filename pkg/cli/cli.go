// OS3000 Reader
// Copyright (c) 2026 The OS3000 Reader Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of OS3000 Reader.
//
// OS3000 Reader is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// OS3000 Reader is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with OS3000 Reader.  If not, see <http://www.gnu.org/licenses/>.

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/os3000-reader/os3000-reader/pkg/config"
	"github.com/os3000-reader/os3000-reader/pkg/device"
	"github.com/os3000-reader/os3000-reader/pkg/helpers"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
	"github.com/rs/zerolog/log"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitNotReady = 3
	ExitUsage    = 255
)

// ErrUsage is returned when no serial port was given on the command line
// or in the config file.
var ErrUsage = errors.New("no serial port given")

// Args are the positional arguments: a port path and an optional baud rate.
type Args struct {
	Port     string
	BaudRate int
}

// ParseArgs reads the positional arguments. A baud rate that does not
// parse as a positive integer silently becomes 9600. A zero BaudRate in the
// result means none was given.
func ParseArgs(args []string) Args {
	var a Args
	if len(args) > 0 {
		a.Port = args[0]
	}
	if len(args) > 1 {
		rate, err := strconv.Atoi(args[1])
		if err != nil || rate <= 0 {
			log.Debug().Str("value", args[1]).Msg("invalid baud rate, using default")
			rate = transport.DefaultBaudRate
		}
		a.BaudRate = rate
	}
	return a
}

type Flags struct {
	set       *flag.FlagSet
	Config    *string
	Output    *string
	Backend   *string
	Count     *int
	PollLimit *int
	Debug     *bool
	List      *bool
	Version   *bool
	Args      Args
}

// SetupFlags defines the reader flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{
		set: fs,
		Config: fs.String(
			"config",
			"",
			"path to config file (default: $"+config.CfgEnv+" or the user config dir)",
		),
		Output: fs.String(
			"output",
			"",
			"plot file to write, format from extension (default from config)",
		),
		Backend: fs.String(
			"backend",
			"",
			"serial backend: serial or termios (default from config)",
		),
		Count: fs.Int(
			"count",
			-1,
			"number of acquisition cycles, 0 runs until stopped (default from config)",
		),
		PollLimit: fs.Int(
			"poll-limit",
			-1,
			"max 100ms availability polls per request, 0 is unlimited (default from config)",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
		List: fs.Bool(
			"list",
			false,
			"list serial ports and exit",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
	}
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: %s [flags] <port> [baud]\n", config.AppName)
		fs.PrintDefaults()
	}
	return f
}

// Parse parses flags and positional arguments.
func (f *Flags) Parse(args []string) error {
	if err := f.set.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	f.Args = ParseArgs(f.set.Args())
	return nil
}

func (f *Flags) isPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Apply overrides config values with anything given on the command line
// and checks a port is known.
func (f *Flags) Apply(cfg *config.Instance) error {
	if f.Args.Port != "" {
		cfg.SetSerialPort(f.Args.Port)
	}
	if f.Args.BaudRate > 0 {
		cfg.SetBaudRate(f.Args.BaudRate)
	}
	if f.isPassed("output") && *f.Output != "" {
		cfg.SetRenderOutput(*f.Output)
	}
	if f.isPassed("backend") {
		if err := cfg.SetSerialBackend(*f.Backend); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
	}
	if f.isPassed("count") && *f.Count >= 0 {
		cfg.SetMaxFrames(*f.Count)
	}
	if f.isPassed("poll-limit") && *f.PollLimit >= 0 {
		cfg.SetPollLimit(*f.PollLimit)
	}
	if *f.Debug {
		cfg.SetDebugLogging(true)
		helpers.SetDebug(true)
	}

	if cfg.SerialPort() == "" {
		return ErrUsage
	}
	return nil
}

// Paths locates the config file and log directory.
type Paths struct {
	Config string
	LogDir string
}

// DefaultPaths returns the standard locations. An empty cfgFlag leaves the
// config path to $OS3000_CFG or the user config dir.
func DefaultPaths(cfgFlag string) Paths {
	return Paths{
		Config: cfgFlag,
		LogDir: helpers.LogDir(config.AppName, config.LogsDir),
	}
}

// Setup initializes logging and loads the user config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(paths Paths, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.InitLogging(paths.LogDir, config.LogFile, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	var (
		cfg *config.Instance
		err error
	)
	if paths.Config != "" {
		cfg, err = config.NewConfigAt(paths.Config, defaults)
	} else {
		cfg, err = config.NewConfig(helpers.ConfigDir(config.AppName), defaults)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebug(cfg.DebugLogging())
	log.Info().Str("version", config.AppVersion).Str("config", cfg.Path()).Msg("starting")
	return cfg, nil
}

// ListPorts prints every serial port list returns, one per line.
func ListPorts(w io.Writer, list func() ([]transport.PortInfo, error)) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(w, "No serial ports found.")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Fprintln(w, p.String())
	}
	return nil
}

// PrintVersion writes the version line.
func PrintVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s v%s\n", config.AppName, config.AppVersion)
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	var (
		connErr  *device.ConnectError
		notReady *device.NotReadyError
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, ErrUsage), errors.As(err, &connErr):
		return ExitUsage
	case errors.As(err, &notReady):
		return ExitNotReady
	default:
		return ExitFatal
	}
}
