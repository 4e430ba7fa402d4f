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

package mocks

import (
	"context"
	"fmt"

	"github.com/os3000-reader/os3000-reader/pkg/device"
	"github.com/stretchr/testify/mock"
)

// MockRenderer is a mock implementation of acquisition.Renderer using testify/mock
type MockRenderer struct {
	mock.Mock
}

// Render records the frame handed over by the acquisition loop
func (m *MockRenderer) Render(ctx context.Context, frame device.Frame) error {
	args := m.Called(ctx, frame)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// MockFrameSource is a mock implementation of acquisition.FrameSource using testify/mock
type MockFrameSource struct {
	mock.Mock
}

// RequestFrame returns the scripted frame or error
func (m *MockFrameSource) RequestFrame(ctx context.Context, req device.Request) (device.Frame, error) {
	args := m.Called(ctx, req)
	frame, _ := args.Get(0).(device.Frame)
	// errors are returned unwrapped so callers can classify them
	return frame, args.Error(1) //nolint:wrapcheck // mock passthrough
}

// ClearInput discards the scripted input queue
func (m *MockFrameSource) ClearInput() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}
