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

//go:build linux

package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/pkg/term"
	"github.com/rs/zerolog/log"
)

// termiosPort drives the tty through termios directly. Unlike the serial
// backend it honours XON/XOFF and reads the driver input queue (TIOCINQ) for
// BytesAvailable, but it leaves the stop bit setting to the driver.
type termiosPort struct {
	tty *term.Term
}

// OpenTermios opens params.Path in raw mode using github.com/pkg/term.
func OpenTermios(params Params) (Port, error) {
	if params.DataBits != 0 && params.DataBits != 8 {
		return nil, fmt.Errorf("termios backend only supports 8 data bits, got %d", params.DataBits)
	}
	if params.Parity != NoParity {
		return nil, errors.New("termios backend only supports no parity")
	}
	if params.StopBits == 2 {
		log.Debug().Msg("termios backend leaves stop bits to the driver")
	}

	flow := term.NONE
	switch params.FlowControl {
	case SoftwareFlowControl:
		flow = term.XONXOFF
	case HardwareFlowControl:
		flow = term.HARDWARE
	case NoFlowControl:
	}

	timeout := params.ReadTimeout
	if timeout <= 0 {
		timeout = ReadTimeout
	}

	tty, err := term.Open(
		params.Path,
		term.Speed(params.BaudRate),
		term.RawMode,
		term.FlowControl(flow),
		term.ReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open tty: %w", err)
	}

	return &termiosPort{tty: tty}, nil
}

func (p *termiosPort) Write(b []byte) (int, error) {
	n, err := p.tty.Write(b)
	if err != nil {
		return n, fmt.Errorf("tty write: %w", err)
	}
	return n, nil
}

// Drain is a no-op: pkg/term writes straight to the line discipline and
// does not expose tcdrain.
func (*termiosPort) Drain() error {
	return nil
}

func (p *termiosPort) readTimed(b []byte) (int, error) {
	n, err := p.tty.Read(b)
	switch {
	case n == 0 && (err == nil || errors.Is(err, io.EOF)):
		// VTIME expired
		return 0, ErrTimeout
	case err != nil && !errors.Is(err, io.EOF):
		return n, fmt.Errorf("tty read: %w", err)
	default:
		return n, nil
	}
}

func (p *termiosPort) Read(b []byte) (int, error) {
	return p.readTimed(b)
}

func (p *termiosPort) ReadVectored(bufs ...[]byte) (int, error) {
	return readVectored(p.readTimed, bufs)
}

func (p *termiosPort) BytesAvailable() (int, error) {
	n, err := p.tty.Available()
	if err != nil {
		return 0, fmt.Errorf("failed to query tty input queue: %w", err)
	}
	return n, nil
}

func (p *termiosPort) SetDTR(dtr bool) error {
	if err := p.tty.SetDTR(dtr); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	return nil
}

func (p *termiosPort) SetRTS(rts bool) error {
	if err := p.tty.SetRTS(rts); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	return nil
}

func (p *termiosPort) ResetInputBuffer() error {
	if err := p.tty.Flush(); err != nil {
		return fmt.Errorf("failed to flush tty: %w", err)
	}
	return nil
}

func (p *termiosPort) Close() error {
	if err := p.tty.Close(); err != nil {
		return fmt.Errorf("failed to close tty: %w", err)
	}
	return nil
}
