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

// Package transport provides the serial link used to talk to the instrument.
// The device session only depends on the Port capability set so the real
// backends can be swapped for an in-memory instrument in tests.
package transport

import (
	"errors"
	"fmt"
	"time"
)

const (
	BackendSerial  = "serial"
	BackendTermios = "termios"

	DefaultBaudRate = 9600
	// ReadTimeout is the fixed per-read timeout of the instrument link.
	ReadTimeout = 900 * time.Millisecond
)

// ErrTimeout is returned when a read expired before the requested bytes
// arrived. Any bytes read before expiry are still reported in n.
var ErrTimeout = errors.New("serial read timed out")

// ErrBackendUnsupported is returned when a backend is not available on the
// current platform.
var ErrBackendUnsupported = errors.New("serial backend not supported on this platform")

type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

type FlowControl int

const (
	NoFlowControl FlowControl = iota
	SoftwareFlowControl
	HardwareFlowControl
)

// Params describes how to open the serial link.
type Params struct {
	Path        string
	Backend     string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
	ReadTimeout time.Duration
}

// InstrumentParams returns the fixed framing the instrument expects:
// 8 data bits, 2 stop bits, no parity, XON/XOFF and a 900ms read timeout.
func InstrumentParams(path string, baudRate int) Params {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return Params{
		Path:        path,
		Backend:     BackendSerial,
		BaudRate:    baudRate,
		DataBits:    8,
		StopBits:    2,
		Parity:      NoParity,
		FlowControl: SoftwareFlowControl,
		ReadTimeout: ReadTimeout,
	}
}

// Port is the capability set the device session consumes.
type Port interface {
	Write(p []byte) (n int, err error)
	// Drain blocks until all written bytes have been transmitted.
	Drain() error
	Read(p []byte) (n int, err error)
	// ReadVectored fills bufs in order with a single logical read. It returns
	// the total number of bytes copied and ErrTimeout if the link went quiet
	// before every buffer was filled.
	ReadVectored(bufs ...[]byte) (n int, err error)
	// BytesAvailable reports how many received bytes can be read without
	// blocking.
	BytesAvailable() (int, error)
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	// ResetInputBuffer discards everything received but not yet read.
	ResetInputBuffer() error
	Close() error
}

// Factory opens a Port. It exists so sessions can be tested with a mock.
type Factory func(params Params) (Port, error)

// Open is the default Factory; it dispatches on params.Backend.
func Open(params Params) (Port, error) {
	switch params.Backend {
	case "", BackendSerial:
		return OpenSerial(params)
	case BackendTermios:
		return OpenTermios(params)
	default:
		return nil, fmt.Errorf("unknown serial backend: %s", params.Backend)
	}
}

// readVectored spreads consecutive read calls across bufs until they are
// full. read must return (0, nil) or (0, ErrTimeout) when the link timed out.
func readVectored(read func(p []byte) (int, error), bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		filled := 0
		for filled < len(buf) {
			n, err := read(buf[filled:])
			filled += n
			total += n
			if err != nil {
				return total, err
			}
			if n == 0 {
				return total, ErrTimeout
			}
		}
	}
	return total, nil
}
