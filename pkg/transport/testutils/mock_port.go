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

// Package testutils provides an in-memory instrument speaking the
// handshake and waveform protocol, for tests of the device session and
// everything above it.
package testutils

import (
	"bytes"
	"errors"

	"github.com/os3000-reader/os3000-reader/pkg/helpers/syncutil"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
)

// MockPort is a scripted instrument. Writing the handshake probe queues
// HandshakeReply; writing a waveform request queues the next entry of
// Frames (or nothing once Frames is exhausted).
type MockPort struct {
	WriteError  error
	DrainError  error
	ResetError  error
	CloseError  error
	AvailableFn func(call int, queued int) (int, error)
	// ReadErrors are returned, in order, by ReadVectored before any data is
	// copied. A nil entry means read normally.
	ReadErrors     []error
	HandshakeReply []byte
	Frames         [][]byte
	// AvailableAtRequest records the queued byte count at the moment each
	// waveform request was written.
	AvailableAtRequest []int
	Writes             [][]byte
	inbound            []byte
	AvailableCalls     int
	Resets             int
	Drains             int
	DTR                bool
	RTS                bool
	Closed             bool
	mu                 syncutil.Mutex
}

// NewMockPort creates an instrument that acknowledges the handshake.
func NewMockPort() *MockPort {
	return &MockPort{HandshakeReply: []byte{0x41}}
}

// Factory returns a transport.Factory that always hands out m.
func (m *MockPort) Factory() transport.Factory {
	return func(_ transport.Params) (transport.Port, error) {
		return m, nil
	}
}

// FailingFactory returns a transport.Factory that cannot open the port.
func FailingFactory(err error) transport.Factory {
	return func(_ transport.Params) (transport.Port, error) {
		return nil, err
	}
}

// Inject appends raw bytes to the receive queue, as if the instrument sent
// them unprompted.
func (m *MockPort) Inject(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, b...)
}

// Queued returns the number of bytes waiting in the receive queue.
func (m *MockPort) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inbound)
}

// Requests returns the waveform request commands written so far.
func (m *MockPort) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []string
	for _, w := range m.Writes {
		if len(w) > 0 && w[0] == 'R' {
			reqs = append(reqs, string(w))
		}
	}
	return reqs
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}

	m.Writes = append(m.Writes, bytes.Clone(p))

	switch {
	case bytes.Equal(p, []byte("S1\r")):
		m.inbound = append(m.inbound, m.HandshakeReply...)
	case len(p) > 0 && p[0] == 'R':
		m.AvailableAtRequest = append(m.AvailableAtRequest, len(m.inbound))
		if len(m.Frames) > 0 {
			m.inbound = append(m.inbound, m.Frames[0]...)
			m.Frames = m.Frames[1:]
		}
	}

	return len(p), nil
}

func (m *MockPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Drains++
	return m.DrainError
}

func (m *MockPort) read(p []byte) int {
	n := copy(p, m.inbound)
	m.inbound = m.inbound[n:]
	return n
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if len(m.inbound) == 0 {
		return 0, transport.ErrTimeout
	}
	return m.read(p), nil
}

func (m *MockPort) ReadVectored(bufs ...[]byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if len(m.ReadErrors) > 0 {
		err := m.ReadErrors[0]
		m.ReadErrors = m.ReadErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	total := 0
	for _, buf := range bufs {
		n := m.read(buf)
		total += n
		if n < len(buf) {
			return total, transport.ErrTimeout
		}
	}
	return total, nil
}

func (m *MockPort) BytesAvailable() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AvailableCalls++
	if m.AvailableFn != nil {
		return m.AvailableFn(m.AvailableCalls, len(m.inbound))
	}
	return len(m.inbound), nil
}

func (m *MockPort) SetDTR(dtr bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DTR = dtr
	return nil
}

func (m *MockPort) SetRTS(rts bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RTS = rts
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets++
	if m.ResetError != nil {
		return m.ResetError
	}
	m.inbound = nil
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

// IsClosed returns true if the port has been closed.
func (m *MockPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// Frame builds a well formed response: a 15 byte header followed by
// payload. The header carries the given tag left-padded with spaces.
func Frame(tag string, payload []byte) []byte {
	header := bytes.Repeat([]byte{' '}, 15)
	copy(header[15-min(len(tag), 15):], tag)
	return append(header, payload...)
}

// Ramp returns n samples counting up from 0 and wrapping at 256.
func Ramp(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
