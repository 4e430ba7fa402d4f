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

package helpers

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewReadOnlyFS wraps an empty in-memory filesystem so every write fails
func NewReadOnlyFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()),
	}
}

// WriteFile creates path and its parent directories with data
func (h *FSHelper) WriteFile(path string, data []byte) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists
func (h *FSHelper) FileExists(path string) bool {
	exists, err := afero.Exists(h.Fs, path)
	return err == nil && exists
}

// ReadFile returns the contents of path
func (h *FSHelper) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// IsSVG reports whether path holds an SVG document
func (h *FSHelper) IsSVG(path string) bool {
	data, err := h.ReadFile(path)
	return err == nil && bytes.Contains(data, []byte("<svg"))
}

// IsPNG reports whether path starts with the PNG signature
func (h *FSHelper) IsPNG(path string) bool {
	data, err := h.ReadFile(path)
	return err == nil && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
}

// TempFiles lists leftover *.tmp files directly inside dir
func (h *FSHelper) TempFiles(dir string) []string {
	matches, err := afero.Glob(h.Fs, filepath.Join(dir, "*.tmp"))
	if err != nil {
		return nil
	}
	return matches
}
