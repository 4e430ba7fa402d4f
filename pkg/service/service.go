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

// Package service wires a device session, the acquisition loop and a
// status reporter into one run of the reader.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/os3000-reader/os3000-reader/pkg/acquisition"
	"github.com/os3000-reader/os3000-reader/pkg/config"
	"github.com/os3000-reader/os3000-reader/pkg/device"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// StatusInterval is how often acquisition counters are logged.
const StatusInterval = 30 * time.Second

// Run opens the instrument, performs the handshake and, if the device is
// ready, acquires waveforms until ctx is cancelled, the configured frame
// count is reached or a fatal error occurs.
//
// A device that answers the handshake with anything but ready is never
// polled: Run returns a *device.NotReadyError. Open failures are returned
// as *device.ConnectError.
func Run(
	ctx context.Context,
	cfg *config.Instance,
	factory transport.Factory,
	renderer acquisition.Renderer,
	clock clockwork.Clock,
) (returnErr error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	session, err := device.Connect(
		cfg.TransportParams(),
		factory,
		clock,
		device.WithPollLimit(cfg.PollLimit()),
	)
	if err != nil {
		return err //nolint:wrapcheck // ConnectError carries the port path
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing device session")
			if returnErr == nil {
				returnErr = closeErr
			}
		}
	}()

	res, err := session.Handshake(ctx)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	if err := res.Err(); err != nil {
		log.Error().
			Str("reply", res.Reply.String()).
			Hex("raw", res.Raw).
			Msg("device did not report ready, not polling")
		return err //nolint:wrapcheck // NotReadyError is matched by callers
	}

	loop := acquisition.NewLoop(session, renderer, acquisition.Options{
		Clock:         clock,
		Request:       cfg.Request(),
		MaxIterations: cfg.MaxFrames(),
	})

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return loop.Run(gctx)
	})
	g.Go(func() error {
		reportStatus(gctx, clock, loop, session, done)
		return nil
	})

	err = g.Wait()
	stats := loop.Stats()
	log.Info().
		Int("iterations", stats.Iterations).
		Int("frames", stats.Frames).
		Int("retries", stats.Retries).
		Msg("acquisition stopped")

	return err //nolint:wrapcheck // loop errors are already wrapped
}

func reportStatus(
	ctx context.Context,
	clock clockwork.Clock,
	loop *acquisition.Loop,
	session *device.Session,
	done <-chan struct{},
) {
	ticker := clock.NewTicker(StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			stats := loop.Stats()
			ev := log.Info().
				Str("state", session.State().String()).
				Int("frames", stats.Frames).
				Int("retries", stats.Retries)
			if !stats.LastFrame.IsZero() {
				ev = ev.Dur("since_last_frame", clock.Since(stats.LastFrame))
			}
			ev.Msg("acquisition status")
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
