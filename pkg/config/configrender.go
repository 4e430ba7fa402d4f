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

import "github.com/os3000-reader/os3000-reader/pkg/render"

type Render struct {
	Output string `toml:"output" validate:"required"`
	Title  string `toml:"title"`
	Width  int    `toml:"width" validate:"gte=100,lte=20000"`
	Height int    `toml:"height" validate:"gte=100,lte=20000"`
}

// RenderOptions returns the plot settings.
func (c *Instance) RenderOptions() render.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return render.Options{
		Path:   c.vals.Render.Output,
		Title:  c.vals.Render.Title,
		Width:  c.vals.Render.Width,
		Height: c.vals.Render.Height,
	}
}

func (c *Instance) SetRenderOutput(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Render.Output = path
}
