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

// Package device implements the instrument session: the S1 handshake, the
// waveform request command and polling for and decoding the binary frame
// that answers it.
package device

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// CR terminates every command.
	CR byte = 0x0D

	// HeaderSize is the opaque metadata block that precedes the samples.
	HeaderSize = 15
	// PayloadSize is the number of 8 bit samples in a frame.
	PayloadSize = 1000
	// FrameSize is the full response to a waveform request.
	FrameSize = HeaderSize + PayloadSize

	// PollInterval is how long to wait between checks of the input queue
	// while a frame is arriving.
	PollInterval = 100 * time.Millisecond

	replyReadyByte = 0x41 // 'A'
	replyBusyByte  = 0x61 // 'a'

	// the instrument answers the probe with one status byte, sometimes two
	maxReplyBytes = 2
)

// ProbeCommand is the handshake probe, "S1\r".
var ProbeCommand = []byte{'S', '1', CR}

// Reply classifies the handshake status byte.
type Reply int

const (
	ReplyUnrecognized Reply = iota
	ReplyReady
	ReplyBusy
)

func (r Reply) String() string {
	switch r {
	case ReplyReady:
		return "ready"
	case ReplyBusy:
		return "busy"
	case ReplyUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("Reply(%d)", int(r))
	}
}

// ClassifyReply maps a status byte to a Reply. Only 0x41 means ready.
func ClassifyReply(b byte) Reply {
	switch b {
	case replyReadyByte:
		return ReplyReady
	case replyBusyByte:
		return ReplyBusy
	default:
		return ReplyUnrecognized
	}
}

// HandshakeResult is the outcome of a handshake that completed its I/O.
type HandshakeResult struct {
	Raw   []byte
	Reply Reply
}

// Err returns nil when the device is ready, otherwise a *NotReadyError.
func (h HandshakeResult) Err() error {
	if h.Reply == ReplyReady {
		return nil
	}
	return &NotReadyError{Reply: h.Reply, Raw: h.Raw}
}

// Request describes a waveform request, sent as
// R<channel>(<offset>,<length>,<mode>)\r with offset and length zero padded
// to four digits.
type Request struct {
	Channel string
	Mode    string
	Offset  int
	Length  int
}

// DefaultRequest reads the full 1000 samples of channel 1 in binary mode.
func DefaultRequest() Request {
	return Request{
		Channel: "1",
		Offset:  0,
		Length:  PayloadSize,
		Mode:    "B",
	}
}

var errInvalidRequest = errors.New("invalid waveform request")

// Validate checks the request can be encoded and matches the fixed frame
// geometry.
func (r Request) Validate() error {
	switch {
	case r.Channel == "" || strings.ContainsAny(r.Channel, "(),\r"):
		return fmt.Errorf("%w: bad channel %q", errInvalidRequest, r.Channel)
	case r.Offset < 0 || r.Offset > 9999:
		return fmt.Errorf("%w: offset %d out of range", errInvalidRequest, r.Offset)
	case r.Length != PayloadSize:
		return fmt.Errorf("%w: length must be %d, got %d", errInvalidRequest, PayloadSize, r.Length)
	case len(r.Mode) != 1 || strings.ContainsAny(r.Mode, "(),\r"):
		return fmt.Errorf("%w: bad mode %q", errInvalidRequest, r.Mode)
	}
	return nil
}

// Bytes encodes the request command including the trailing CR.
func (r Request) Bytes() []byte {
	return fmt.Appendf(nil, "R%s(%04d,%04d,%s)\r", r.Channel, r.Offset, r.Length, r.Mode)
}

func (r Request) String() string {
	return strings.TrimSuffix(string(r.Bytes()), "\r")
}

// lossyLower renders device bytes for log lines: invalid UTF-8 becomes
// U+FFFD and letters are lowercased.
func lossyLower(b []byte) string {
	if utf8.Valid(b) {
		return strings.ToLower(string(b))
	}
	return strings.ToLower(strings.ToValidUTF8(string(b), "�"))
}
