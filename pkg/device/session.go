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

package device

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/os3000-reader/os3000-reader/pkg/helpers"
	"github.com/os3000-reader/os3000-reader/pkg/helpers/syncutil"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateReady
	StateAcquiring
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateAcquiring:
		return "acquiring"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session owns the open port to one instrument. It is not safe for
// concurrent use except for State and ID.
type Session struct {
	port      transport.Port
	clock     clockwork.Clock
	logger    zerolog.Logger
	id        string
	params    transport.Params
	pollLimit int
	state     State
	mu        syncutil.RWMutex // protects state
}

// Option configures a Session.
type Option func(*Session)

// WithPollLimit bounds how many times RequestFrame checks the input queue
// before giving up on a frame. Zero, the default, polls until the frame
// arrives or the context is cancelled.
func WithPollLimit(n int) Option {
	return func(s *Session) {
		s.pollLimit = n
	}
}

// Connect opens the port described by params and raises DTR and RTS. The
// returned session is ready for Handshake. A nil clock means the real one.
func Connect(
	params transport.Params,
	factory transport.Factory,
	clock clockwork.Clock,
	opts ...Option,
) (*Session, error) {
	if factory == nil {
		factory = transport.Open
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{
		id:     uuid.NewString(),
		params: params,
		clock:  clock,
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().Str("session", s.id).Str("port", params.Path).Logger()

	s.logger.Debug().
		Int("baud", params.BaudRate).
		Str("backend", params.Backend).
		Msg("opening serial port")

	port, err := factory(params)
	if err != nil {
		s.setState(StateFailed)
		return nil, &ConnectError{Path: params.Path, Err: err}
	}

	if err := port.SetDTR(true); err != nil {
		s.closeAfterError(port)
		return nil, &ConnectError{Path: params.Path, Err: err}
	}
	if err := port.SetRTS(true); err != nil {
		s.closeAfterError(port)
		return nil, &ConnectError{Path: params.Path, Err: err}
	}

	s.port = port
	s.setState(StateHandshaking)
	s.logger.Info().Msg("opened serial port")
	return s, nil
}

func (s *Session) closeAfterError(port transport.Port) {
	s.setState(StateFailed)
	if err := port.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close serial port")
	}
}

// ID returns the random identifier attached to this session's log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.logger.Trace().Stringer("from", prev).Stringer("to", state).Msg("session state")
	}
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	return err
}

// Handshake sends the S1 probe and classifies the status reply. An error is
// only returned for I/O failures, which leave the session Failed; a busy or
// unrecognized reply is reported in the result and also fails the session.
func (s *Session) Handshake(ctx context.Context) (HandshakeResult, error) {
	if s.State() != StateHandshaking {
		return HandshakeResult{}, fmt.Errorf("handshake in state %s: %w", s.State(), ErrSessionNotReady)
	}
	if err := ctx.Err(); err != nil {
		return HandshakeResult{}, err //nolint:wrapcheck // context errors are returned as-is
	}

	if _, err := s.port.Write(ProbeCommand); err != nil {
		return HandshakeResult{}, s.fail(fmt.Errorf("failed to write handshake probe: %w", err))
	}
	if err := s.port.Drain(); err != nil {
		return HandshakeResult{}, s.fail(fmt.Errorf("failed to flush handshake probe: %w", err))
	}

	buf := make([]byte, maxReplyBytes)
	n, err := s.port.Read(buf)
	if err != nil {
		return HandshakeResult{}, s.fail(fmt.Errorf("failed to read handshake reply: %w", err))
	}
	if n == 0 {
		return HandshakeResult{}, s.fail(fmt.Errorf("failed to read handshake reply: %w", transport.ErrTimeout))
	}

	result := HandshakeResult{
		Raw:   buf[:n],
		Reply: ClassifyReply(buf[0]),
	}
	s.logger.Info().Hex("reply", result.Raw).Stringer("status", result.Reply).Msg("handshake reply")

	if result.Reply == ReplyReady {
		s.setState(StateReady)
	} else {
		s.setState(StateFailed)
	}
	return result, nil
}

// RequestFrame sends req and waits for the full response. The input queue
// is polled every PollInterval until a whole frame is buffered, so the
// blocking read that follows never races the port read timeout. The input
// buffer is cleared after the frame is consumed, whether or not the read
// succeeded.
//
// Errors are *FrameError (see Recoverable) or the context error. A
// non-recoverable error leaves the session Failed.
func (s *Session) RequestFrame(ctx context.Context, req Request) (Frame, error) {
	if s.State() != StateReady {
		return Frame{}, fmt.Errorf("request in state %s: %w", s.State(), ErrSessionNotReady)
	}
	if err := req.Validate(); err != nil {
		return Frame{}, err
	}
	s.setState(StateAcquiring)

	if err := s.dropStaleInput(); err != nil {
		return Frame{}, s.fail(err)
	}

	cmd := req.Bytes()
	s.logger.Debug().Hex("command", cmd).Str("request", req.String()).Msg("requesting waveform")
	if _, err := s.port.Write(cmd); err != nil {
		return Frame{}, s.fail(&FrameError{Op: "write", Err: err})
	}
	if err := s.port.Drain(); err != nil {
		return Frame{}, s.fail(&FrameError{Op: "write", Err: err})
	}

	if err := s.awaitFrame(ctx); err != nil {
		if IsRecoverable(err) {
			s.flushAfterFailure()
			s.setState(StateReady)
			return Frame{}, err
		}
		return Frame{}, s.fail(err)
	}

	var frame Frame
	n, err := s.port.ReadVectored(frame.Header[:], frame.Payload[:])
	if err == nil && n != FrameSize {
		err = fmt.Errorf("%w: read %d of %d bytes", ErrShortFrame, n, FrameSize)
	}
	if err != nil {
		fe := &FrameError{
			Op:        "read",
			Received:  n,
			Header:    cloneHeader(frame.Header[:], n),
			Available: s.availableForDiagnostics(),
			Err:       err,
		}
		if !fe.Recoverable() {
			return Frame{}, s.fail(fe)
		}
		s.flushAfterFailure()
		s.setState(StateReady)
		return Frame{}, fe
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		return Frame{}, s.fail(&FrameError{Op: "flush", Received: n, Err: err})
	}

	s.logger.Debug().
		Int("bytes", n).
		Str("header", frame.HeaderText()).
		Msg("waveform received")
	s.setState(StateReady)
	return frame, nil
}

// awaitFrame polls the input queue until a whole frame is buffered.
func (s *Session) awaitFrame(ctx context.Context) error {
	for polls := 0; ; polls++ {
		avail, err := s.port.BytesAvailable()
		if err != nil {
			return &FrameError{Op: "poll", Err: err}
		}
		if avail >= FrameSize {
			if avail > FrameSize {
				s.logger.Warn().Int("available", avail).Msg("more bytes queued than one frame")
			}
			return nil
		}
		if s.pollLimit > 0 && polls+1 >= s.pollLimit {
			return &FrameError{Op: "poll", Available: avail, Err: ErrPollExhausted}
		}
		if err := helpers.SleepContext(ctx, s.clock, PollInterval); err != nil {
			return err //nolint:wrapcheck // context errors are returned as-is
		}
	}
}

// dropStaleInput clears anything left in the input queue so it cannot be
// mistaken for the start of the next frame.
func (s *Session) dropStaleInput() error {
	avail, err := s.port.BytesAvailable()
	if err != nil {
		return &FrameError{Op: "poll", Err: err}
	}
	if avail == 0 {
		return nil
	}
	s.logger.Warn().Int("available", avail).Msg("discarding stale input before request")
	if err := s.port.ResetInputBuffer(); err != nil {
		return &FrameError{Op: "flush", Available: avail, Err: err}
	}
	return nil
}

func (s *Session) availableForDiagnostics() int {
	avail, err := s.port.BytesAvailable()
	if err != nil {
		s.logger.Debug().Err(err).Msg("failed to query input queue for diagnostics")
		return -1
	}
	return avail
}

func (s *Session) flushAfterFailure() {
	if err := s.port.ResetInputBuffer(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear input buffer")
	}
}

// ClearInput discards everything received but not yet read.
func (s *Session) ClearInput() error {
	if s.port == nil {
		return ErrSessionNotReady
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to clear input buffer: %w", err)
	}
	return nil
}

// Close releases the port. The session cannot be used afterwards.
func (s *Session) Close() error {
	if s.port == nil {
		return nil
	}
	s.setState(StateDisconnected)
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	s.logger.Info().Msg("closed serial port")
	return nil
}
