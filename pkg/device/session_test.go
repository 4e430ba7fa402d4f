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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/os3000-reader/os3000-reader/pkg/transport"
	"github.com/os3000-reader/os3000-reader/pkg/transport/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() transport.Params {
	return transport.InstrumentParams("/dev/ttyTEST0", 9600)
}

func readySession(t *testing.T, port *testutils.MockPort, fc clockwork.Clock, opts ...Option) *Session {
	t.Helper()

	s, err := Connect(testParams(), port.Factory(), fc, opts...)
	require.NoError(t, err)

	res, err := s.Handshake(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReplyReady, res.Reply)
	require.Equal(t, StateReady, s.State())
	return s
}

func TestConnect_RaisesControlLines(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
	require.NoError(t, err)

	assert.True(t, port.DTR)
	assert.True(t, port.RTS)
	assert.Empty(t, port.Writes, "no traffic before handshake")
	assert.Equal(t, StateHandshaking, s.State())
	assert.NotEmpty(t, s.ID())
}

func TestConnect_OpenFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file or directory")
	s, err := Connect(testParams(), testutils.FailingFactory(cause), nil)

	assert.Nil(t, s)
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "/dev/ttyTEST0", ce.Path)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to open port /dev/ttyTEST0")
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reply     []byte
		wantReply Reply
		wantState State
	}{
		{name: "ready", reply: []byte{0x41}, wantReply: ReplyReady, wantState: StateReady},
		{name: "ready with trailing byte", reply: []byte{0x41, 0x0D}, wantReply: ReplyReady, wantState: StateReady},
		{name: "busy", reply: []byte{0x61}, wantReply: ReplyBusy, wantState: StateFailed},
		{name: "unrecognized", reply: []byte{0x3F}, wantReply: ReplyUnrecognized, wantState: StateFailed},
		{name: "trailing ack does not count", reply: []byte{0x00, 0x41}, wantReply: ReplyUnrecognized, wantState: StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			port := testutils.NewMockPort()
			port.HandshakeReply = tt.reply

			s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
			require.NoError(t, err)

			res, err := s.Handshake(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantReply, res.Reply)
			assert.Equal(t, tt.reply, res.Raw)
			assert.Equal(t, tt.wantState, s.State())

			require.Len(t, port.Writes, 1)
			assert.Equal(t, "S1\r", string(port.Writes[0]))
			assert.Equal(t, 1, port.Drains)
		})
	}
}

func TestHandshake_NoReplyIsIOError(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.HandshakeReply = nil

	s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
	require.NoError(t, err)

	_, err = s.Handshake(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, StateFailed, s.State())
}

func TestHandshake_WriteError(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.WriteError = errors.New("write: broken pipe")

	s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
	require.NoError(t, err)

	_, err = s.Handshake(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, StateFailed, s.State())
}

func TestRequestFrame_BeforeHandshake(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
	require.NoError(t, err)

	_, err = s.RequestFrame(context.Background(), DefaultRequest())
	require.ErrorIs(t, err, ErrSessionNotReady)
	assert.Empty(t, port.Requests())
}

func TestRequestFrame_AfterBusyHandshake(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.HandshakeReply = []byte{0x61}
	s, err := Connect(testParams(), port.Factory(), clockwork.NewFakeClock())
	require.NoError(t, err)
	_, err = s.Handshake(context.Background())
	require.NoError(t, err)

	_, err = s.RequestFrame(context.Background(), DefaultRequest())
	require.ErrorIs(t, err, ErrSessionNotReady)
	assert.Empty(t, port.Requests())
}

func TestRequestFrame_Success(t *testing.T) {
	t.Parallel()

	payload := testutils.Ramp(PayloadSize)
	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("OS3000 CH1", payload)}

	s := readySession(t, port, clockwork.NewFakeClock())
	frame, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"R1(0000,1000,B)\r"}, port.Requests())
	assert.Equal(t, "     OS3000 CH1", string(frame.Header[:]))
	assert.Equal(t, payload, frame.Samples())
	assert.Zero(t, port.Queued(), "input cleared after the frame")
	assert.Equal(t, StateReady, s.State())
}

func TestRequestFrame_InvalidRequest(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	s := readySession(t, port, clockwork.NewFakeClock())

	req := DefaultRequest()
	req.Length = 2000
	_, err := s.RequestFrame(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, port.Requests())
	assert.Equal(t, StateReady, s.State())
}

func TestRequestFrame_PollsUntilFrameArrives(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("", testutils.Ramp(PayloadSize))}
	fc := clockwork.NewFakeClock()
	s := readySession(t, port, fc)

	// call 1 is the stale input check, then five checks with the frame
	// still arriving
	port.AvailableFn = func(call, queued int) (int, error) {
		if call == 1 {
			return queued, nil
		}
		if step := call - 2; step < 5 {
			return step * 203, nil
		}
		return queued, nil
	}

	start := fc.Now()
	stop := testutils.StartClock(fc, 1, PollInterval)
	frame, err := s.RequestFrame(context.Background(), DefaultRequest())
	stop()

	require.NoError(t, err)
	assert.Len(t, frame.Samples(), PayloadSize)
	assert.Equal(t, 7, port.AvailableCalls, "stale check plus six queue checks")
	assert.Equal(t, 5*PollInterval, fc.Since(start), "slept once between each check")
}

func TestRequestFrame_NoResidualBetweenRequests(t *testing.T) {
	t.Parallel()

	first := testutils.Frame("F1", bytes.Repeat([]byte{0x10}, PayloadSize))
	second := testutils.Frame("F2", bytes.Repeat([]byte{0x20}, PayloadSize))
	port := testutils.NewMockPort()
	port.Frames = [][]byte{first, second}

	s := readySession(t, port, clockwork.NewFakeClock())

	f1, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.NoError(t, err)
	f2, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0}, port.AvailableAtRequest)
	assert.Equal(t, first[HeaderSize:], f1.Samples())
	assert.Equal(t, second[HeaderSize:], f2.Samples())
	assert.Equal(t, []string{"R1(0000,1000,B)\r", "R1(0000,1000,B)\r"}, port.Requests())
}

func TestRequestFrame_DiscardsStaleInput(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("", testutils.Ramp(PayloadSize))}
	s := readySession(t, port, clockwork.NewFakeClock())

	port.Inject([]byte("leftover from a previous frame"))
	resetsBefore := port.Resets

	frame, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []int{0}, port.AvailableAtRequest)
	assert.Equal(t, testutils.Ramp(PayloadSize), frame.Samples())
	assert.Equal(t, resetsBefore+2, port.Resets, "stale discard plus post frame flush")
}

func TestRequestFrame_TimeoutAfterPollIsRecoverable(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("", testutils.Ramp(PayloadSize))}
	port.ReadErrors = []error{transport.ErrTimeout}
	s := readySession(t, port, clockwork.NewFakeClock())

	_, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.ErrorIs(t, err, transport.ErrTimeout)
	assert.True(t, IsRecoverable(err))

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "read", fe.Op)
	assert.Equal(t, FrameSize, fe.Available, "diagnostic captured before the flush")
	assert.Zero(t, port.Queued(), "input cleared after the timeout")
	assert.Equal(t, StateReady, s.State())
}

func TestRequestFrame_PartialFrameTimeout(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("PARTIAL", testutils.Ramp(500))}
	s := readySession(t, port, clockwork.NewFakeClock())
	// the driver claims a full frame but only 515 bytes ever arrive
	port.AvailableFn = func(call, queued int) (int, error) {
		if call == 1 {
			return queued, nil
		}
		return FrameSize, nil
	}

	_, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.ErrorIs(t, err, transport.ErrTimeout)

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, HeaderSize+500, fe.Received)
	assert.Equal(t, "        partial", fe.HeaderText())
	assert.True(t, fe.Recoverable())
	assert.Equal(t, StateReady, s.State())
}

func TestRequestFrame_ReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Frames = [][]byte{testutils.Frame("", testutils.Ramp(PayloadSize))}
	port.ReadErrors = []error{errors.New("input/output error")}
	s := readySession(t, port, clockwork.NewFakeClock())

	_, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, StateFailed, s.State())
}

func TestRequestFrame_WriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	s := readySession(t, port, clockwork.NewFakeClock())
	port.WriteError = errors.New("write: device disconnected")

	_, err := s.RequestFrame(context.Background(), DefaultRequest())
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "write", fe.Op)
	assert.Equal(t, StateFailed, s.State())
}

func TestRequestFrame_PollLimit(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	fc := clockwork.NewFakeClock()
	s := readySession(t, port, fc, WithPollLimit(3))

	start := fc.Now()
	stop := testutils.StartClock(fc, 1, PollInterval)
	_, err := s.RequestFrame(context.Background(), DefaultRequest())
	stop()

	require.ErrorIs(t, err, ErrPollExhausted)
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, 2*PollInterval, fc.Since(start))
	assert.Equal(t, StateReady, s.State())
}

func TestRequestFrame_CancelWhilePolling(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	fc := clockwork.NewFakeClock()
	s := readySession(t, port, fc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = fc.BlockUntilContext(context.Background(), 1)
		cancel()
	}()

	_, err := s.RequestFrame(ctx, DefaultRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRecoverable(err))
}

func TestClose(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	s := readySession(t, port, clockwork.NewFakeClock())

	require.NoError(t, s.Close())
	assert.True(t, port.IsClosed())
	assert.Equal(t, StateDisconnected, s.State())
	require.NoError(t, s.Close(), "second close is a no-op")
	require.ErrorIs(t, s.ClearInput(), ErrSessionNotReady)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "acquiring", StateAcquiring.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "busy", ReplyBusy.String())
	assert.Equal(t, 100*time.Millisecond, PollInterval)
}
