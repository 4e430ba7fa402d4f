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

// Package acquisition drives a device session on a fixed cadence and hands
// every decoded frame to a renderer.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/os3000-reader/os3000-reader/pkg/device"
	"github.com/os3000-reader/os3000-reader/pkg/helpers"
	"github.com/os3000-reader/os3000-reader/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the pause before every waveform request.
const DefaultInterval = 500 * time.Millisecond

// FrameSource is the part of a device session the loop drives.
type FrameSource interface {
	RequestFrame(ctx context.Context, req device.Request) (device.Frame, error)
	ClearInput() error
}

// Renderer consumes decoded frames.
type Renderer interface {
	Render(ctx context.Context, frame device.Frame) error
}

// Options configures a Loop. The zero value requests the default waveform
// every 500ms forever using the real clock.
type Options struct {
	Clock    clockwork.Clock
	Logger   *zerolog.Logger
	Request  device.Request
	Interval time.Duration
	// MaxIterations stops the loop after this many request cycles. Zero
	// runs until the context is cancelled or a fatal error occurs.
	MaxIterations int
}

// Stats counts loop activity.
type Stats struct {
	LastFrame  time.Time
	Iterations int
	Frames     int
	Retries    int
}

// Loop is the acquisition state machine: wait, request, deliver or retry.
type Loop struct {
	src      FrameSource
	renderer Renderer
	clock    clockwork.Clock
	logger   zerolog.Logger
	stats    Stats
	opts     Options
	mu       syncutil.Mutex // protects stats
}

// NewLoop creates a Loop reading from src and delivering to r.
//
//nolint:gocritic // options struct copied for immutability
func NewLoop(src FrameSource, r Renderer, opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Request == (device.Request{}) {
		opts.Request = device.DefaultRequest()
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Loop{
		src:      src,
		renderer: r,
		clock:    opts.Clock,
		logger:   logger,
		opts:     opts,
	}
}

// Stats returns a snapshot of the loop counters. Safe for concurrent use.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) record(fn func(*Stats)) {
	l.mu.Lock()
	fn(&l.stats)
	l.mu.Unlock()
}

// Run executes acquisition cycles until MaxIterations is reached (returns
// nil), ctx is cancelled (returns ctx.Err()) or a fatal error occurs.
// Recoverable frame errors are logged and retried on the next cycle.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Str("request", l.opts.Request.String()).
		Dur("interval", l.opts.Interval).
		Int("max_iterations", l.opts.MaxIterations).
		Msg("starting acquisition")

	for i := 0; l.opts.MaxIterations == 0 || i < l.opts.MaxIterations; i++ {
		if err := helpers.SleepContext(ctx, l.clock, l.opts.Interval); err != nil {
			return err //nolint:wrapcheck // context errors are returned as-is
		}

		if err := l.cycle(ctx); err != nil {
			return err
		}
	}

	stats := l.Stats()
	l.logger.Info().
		Int("frames", stats.Frames).
		Int("retries", stats.Retries).
		Msg("acquisition finished")
	return nil
}

func (l *Loop) cycle(ctx context.Context) error {
	l.record(func(s *Stats) { s.Iterations++ })

	frame, err := l.src.RequestFrame(ctx, l.opts.Request)
	switch {
	case err == nil:
	case device.IsRecoverable(err):
		l.logRetry(err)
		l.record(func(s *Stats) { s.Retries++ })
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err //nolint:wrapcheck // context errors are returned as-is
	default:
		return fmt.Errorf("failed to acquire waveform: %w", err)
	}

	if err := l.renderer.Render(ctx, frame); err != nil {
		return fmt.Errorf("failed to render waveform: %w", err)
	}
	if err := l.src.ClearInput(); err != nil {
		return fmt.Errorf("failed to clear input after frame: %w", err)
	}

	now := l.clock.Now()
	l.record(func(s *Stats) {
		s.Frames++
		s.LastFrame = now
	})
	l.logger.Info().Int("samples", len(frame.Samples())).Msg("waveform received")
	return nil
}

func (l *Loop) logRetry(err error) {
	ev := l.logger.Warn().Err(err)
	var fe *device.FrameError
	if errors.As(err, &fe) {
		ev = ev.Int("available", fe.Available).
			Int("received", fe.Received).
			Str("header", fe.HeaderText())
	}
	ev.Msg("no waveform this cycle, retrying")
}
