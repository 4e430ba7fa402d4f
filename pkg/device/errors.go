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
	"errors"
	"fmt"

	"github.com/os3000-reader/os3000-reader/pkg/transport"
)

var (
	// ErrSessionNotReady is returned when an operation is attempted in a
	// state that does not allow it.
	ErrSessionNotReady = errors.New("session not ready")
	// ErrShortFrame means the read completed without filling both header
	// and payload.
	ErrShortFrame = errors.New("short frame")
	// ErrPollExhausted means the frame never fully arrived within the
	// configured number of polls.
	ErrPollExhausted = errors.New("frame did not arrive within poll limit")
)

// ConnectError is returned when the transport cannot be opened.
type ConnectError struct {
	Err  error
	Path string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to open port %s: %v", e.Path, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// NotReadyError is returned when the handshake completed but the device did
// not report ready.
type NotReadyError struct {
	Raw   []byte
	Reply Reply
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("device not ready: %s reply % X", e.Reply, e.Raw)
}

// FrameError describes a failed waveform request. Available and Header
// carry diagnostics captured at the time of failure.
type FrameError struct {
	Err       error
	Op        string
	Header    []byte
	Available int
	Received  int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s failed after %d bytes: %v", e.Op, e.Received, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// HeaderText renders the partially received header for diagnostics.
func (e *FrameError) HeaderText() string {
	return lossyLower(e.Header)
}

// Recoverable reports whether the acquisition can simply be retried on the
// next cycle: a read timeout, a short frame or an exhausted poll.
func (e *FrameError) Recoverable() bool {
	return errors.Is(e.Err, transport.ErrTimeout) ||
		errors.Is(e.Err, ErrShortFrame) ||
		errors.Is(e.Err, ErrPollExhausted)
}

// IsRecoverable reports whether err is a recoverable *FrameError.
func IsRecoverable(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Recoverable()
}
