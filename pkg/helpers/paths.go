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
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// UserDir is the portable install directory name looked up next to the
// binary.
const UserDir = "user"

var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}

	return filepath.Dir(exe)
}

// HasUserDir checks if a "user" directory exists next to the binary and
// returns its absolute path. When present it replaces the XDG directories
// for a portable install. The result is cached after the first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exeDir := ExeDir()
		if exeDir == "" {
			return
		}
		userDir := filepath.Join(exeDir, UserDir)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}
		userDirCache = userDir
		userDirCacheExists = true
	})

	return userDirCache, userDirCacheExists
}

// ConfigDir is where the config file lives for app.
func ConfigDir(app string) string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return filepath.Join(xdg.ConfigHome, app)
}

// LogDir is where rotated log files are written for app.
func LogDir(app, logsDir string) string {
	if v, ok := HasUserDir(); ok {
		return filepath.Join(v, logsDir)
	}
	return filepath.Join(xdg.DataHome, app, logsDir)
}
