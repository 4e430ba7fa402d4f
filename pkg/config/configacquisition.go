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

import "github.com/os3000-reader/os3000-reader/pkg/device"

type Acquisition struct {
	Channel   string `toml:"channel" validate:"required,len=1,alphanum"`
	Mode      string `toml:"mode" validate:"required,len=1,alpha"`
	Offset    int    `toml:"offset" validate:"gte=0,lte=9999"`
	MaxFrames int    `toml:"max_frames" validate:"gte=0"`
	PollLimit int    `toml:"poll_limit" validate:"gte=0"`
}

// Request builds the waveform request sent every cycle.
func (c *Instance) Request() device.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req := device.DefaultRequest()
	req.Channel = c.vals.Acquisition.Channel
	req.Mode = c.vals.Acquisition.Mode
	req.Offset = c.vals.Acquisition.Offset
	return req
}

// MaxFrames is the number of acquisition cycles to run. Zero means run
// until stopped.
func (c *Instance) MaxFrames() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Acquisition.MaxFrames
}

func (c *Instance) SetMaxFrames(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Acquisition.MaxFrames = n
}

// PollLimit caps the number of 100ms availability polls per request. Zero
// polls until the frame arrives or the context ends.
func (c *Instance) PollLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Acquisition.PollLimit
}

func (c *Instance) SetPollLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Acquisition.PollLimit = n
}
