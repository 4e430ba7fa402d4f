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

// Frame is one decoded response to a waveform request. Header and Payload
// are separate fixed size arrays so neither can run into the other.
type Frame struct {
	Header  [HeaderSize]byte
	Payload [PayloadSize]byte
}

// Samples returns the payload as a slice; index is time, value amplitude.
func (f *Frame) Samples() []byte {
	return f.Payload[:]
}

// HeaderText renders the header for diagnostics.
func (f *Frame) HeaderText() string {
	return lossyLower(f.Header[:])
}

// DecodeFrame splits a raw response into header and payload. It fails
// unless raw is exactly FrameSize bytes.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if len(raw) != FrameSize {
		return f, &FrameError{
			Op:       "decode",
			Received: len(raw),
			Header:   cloneHeader(raw, len(raw)),
			Err:      ErrShortFrame,
		}
	}
	copy(f.Header[:], raw[:HeaderSize])
	copy(f.Payload[:], raw[HeaderSize:])
	return f, nil
}

func cloneHeader(b []byte, n int) []byte {
	n = min(n, HeaderSize, len(b))
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out
}
