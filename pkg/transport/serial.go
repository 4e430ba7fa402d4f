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

package transport

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const pumpChunk = 512

// rawSerial is the subset of serial.Port used by serialPort.
type rawSerial interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Drain() error
	ResetInputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// serialPort adapts go.bug.st/serial to Port. The library has no way to ask
// the driver how many bytes are queued, so BytesAvailable drains whatever
// has arrived into pending with non-blocking reads and reports its length.
type serialPort struct {
	port    rawSerial
	pending []byte
	scratch []byte
	timeout time.Duration
}

func serialMode(params Params) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: params.BaudRate,
		DataBits: params.DataBits,
	}

	switch params.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits: %d", params.StopBits)
	}

	switch params.Parity {
	case NoParity:
		mode.Parity = serial.NoParity
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity: %d", params.Parity)
	}

	return mode, nil
}

// OpenSerial opens params.Path with go.bug.st/serial.
func OpenSerial(params Params) (Port, error) {
	mode, err := serialMode(params)
	if err != nil {
		return nil, err
	}

	if params.FlowControl != NoFlowControl {
		log.Debug().Msg("serial backend cannot configure flow control, use the termios backend for XON/XOFF")
	}

	port, err := serial.Open(params.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	p, err := newSerialPort(port, params.ReadTimeout)
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close serial port")
		}
		return nil, err
	}
	return p, nil
}

func newSerialPort(port rawSerial, timeout time.Duration) (*serialPort, error) {
	if timeout <= 0 {
		timeout = ReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}
	return &serialPort{
		port:    port,
		timeout: timeout,
		scratch: make([]byte, pumpChunk),
	}, nil
}

func (p *serialPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, fmt.Errorf("serial write: %w", err)
	}
	return n, nil
}

func (p *serialPort) Drain() error {
	if err := p.port.Drain(); err != nil {
		return fmt.Errorf("serial drain: %w", err)
	}
	return nil
}

// readTimed serves pending bytes first, then falls through to the port
// using the configured read timeout.
func (p *serialPort) readTimed(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	n, err := p.port.Read(b)
	if err != nil {
		return n, fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return n, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	return p.readTimed(b)
}

func (p *serialPort) ReadVectored(bufs ...[]byte) (int, error) {
	return readVectored(p.readTimed, bufs)
}

func (p *serialPort) BytesAvailable() (int, error) {
	if err := p.port.SetReadTimeout(0); err != nil {
		return 0, fmt.Errorf("failed to set non-blocking read: %w", err)
	}
	defer func() {
		if err := p.port.SetReadTimeout(p.timeout); err != nil {
			log.Warn().Err(err).Msg("failed to restore serial read timeout")
		}
	}()

	for {
		n, err := p.port.Read(p.scratch)
		if n > 0 {
			p.pending = append(p.pending, p.scratch[:n]...)
		}
		if err != nil {
			return len(p.pending), fmt.Errorf("serial read: %w", err)
		}
		if n < len(p.scratch) {
			return len(p.pending), nil
		}
	}
}

func (p *serialPort) SetDTR(dtr bool) error {
	if err := p.port.SetDTR(dtr); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	return nil
}

func (p *serialPort) SetRTS(rts bool) error {
	if err := p.port.SetRTS(rts); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	return nil
}

func (p *serialPort) ResetInputBuffer() error {
	p.pending = nil
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	return nil
}

func (p *serialPort) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
