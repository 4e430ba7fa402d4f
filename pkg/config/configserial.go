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

package config

import (
	"fmt"

	"github.com/os3000-reader/os3000-reader/pkg/transport"
)

const (
	DefaultBaudRate = transport.DefaultBaudRate
	BackendSerial   = transport.BackendSerial
	BackendTermios  = transport.BackendTermios
)

type Serial struct {
	Port     string `toml:"port,omitempty"`
	Backend  string `toml:"backend" validate:"omitempty,oneof=serial termios"`
	BaudRate int    `toml:"baud_rate" validate:"gte=0"`
}

func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

// BaudRate returns the configured baud rate, falling back to 9600 when it
// is unset.
func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Serial.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return c.vals.Serial.BaudRate
}

func (c *Instance) SetBaudRate(rate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.BaudRate = rate
}

func (c *Instance) SerialBackend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Serial.Backend == "" {
		return BackendSerial
	}
	return c.vals.Serial.Backend
}

// SetSerialBackend selects the serial backend by name.
func (c *Instance) SetSerialBackend(name string) error {
	switch name {
	case BackendSerial, BackendTermios:
	default:
		return fmt.Errorf("unknown serial backend: %s", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Backend = name
	return nil
}

// TransportParams returns the link parameters for the configured port.
func (c *Instance) TransportParams() transport.Params {
	params := transport.InstrumentParams(c.SerialPort(), c.BaudRate())
	params.Backend = c.SerialBackend()
	return params
}
