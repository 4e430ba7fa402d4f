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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/os3000-reader/os3000-reader/pkg/cli"
	"github.com/os3000-reader/os3000-reader/pkg/config"
	"github.com/os3000-reader/os3000-reader/pkg/helpers"
	"github.com/os3000-reader/os3000-reader/pkg/render"
	"github.com/os3000-reader/os3000-reader/pkg/service"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	err := run(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(cli.ExitCode(err))
}

func run(args []string) (returnErr error) {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	flags := cli.SetupFlags(fs)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *flags.Version {
		cli.PrintVersion(os.Stdout)
		return nil
	}
	if *flags.List {
		return cli.ListPorts(os.Stdout, transport.ListPorts)
	}

	cfg, err := cli.Setup(
		cli.DefaultPaths(*flags.Config),
		config.BaseDefaults,
		[]io.Writer{helpers.ConsoleWriter(os.Stderr)},
	)
	if err != nil {
		return err //nolint:wrapcheck // already describes the failed step
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := flags.Apply(cfg); err != nil {
		fs.Usage()
		return err //nolint:wrapcheck // usage errors map to an exit code
	}

	renderer, err := render.NewSVG(afero.NewOsFs(), cfg.RenderOptions())
	if err != nil {
		return fmt.Errorf("error creating renderer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = service.Run(ctx, cfg, transport.Open, renderer, clockwork.NewRealClock())
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("interrupted, shutting down")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("reader stopped")
		return err //nolint:wrapcheck // exit code depends on the error type
	}
	log.Info().Str("plot", renderer.Path()).Msg("done")
	return nil
}
