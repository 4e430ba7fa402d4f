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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := filepath.Join(root, "logs", "nested")
	b := filepath.Join(root, "config")
	require.NoError(t, os.MkdirAll(b, 0o750))

	require.NoError(t, EnsureDirectories(a, b))

	for _, dir := range []string{a, b} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		if runtime.GOOS != "windows" {
			assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
		}
	}
}

func TestEnsureDirectories_FileInTheWay(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := EnsureDirectories(filepath.Join(blocker, "logs"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}

//nolint:paralleltest // replaces the global logger
func TestInitLogging_WritesFileAndExtraWriters(t *testing.T) {
	saved := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(saved) })

	dir := filepath.Join(t.TempDir(), "logs")
	var extra bytes.Buffer

	require.NoError(t, InitLogging(dir, "reader.log", []io.Writer{&extra}))
	SetDebug(false)

	log.Info().Str("port", "/dev/ttyUSB0").Msg("hello from test")
	log.Debug().Msg("should be filtered")

	assert.Contains(t, extra.String(), "hello from test")
	assert.NotContains(t, extra.String(), "should be filtered")

	data, err := os.ReadFile(filepath.Join(dir, "reader.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"port":"/dev/ttyUSB0"`)

	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestConsoleWriter_NoColorWhenNotTerminal(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "console")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	w, ok := ConsoleWriter(f).(zerolog.ConsoleWriter)
	require.True(t, ok)
	assert.True(t, w.NoColor)
}

func TestConfigAndLogDirs(t *testing.T) {
	t.Parallel()

	if _, ok := HasUserDir(); ok {
		t.Skip("portable user dir present next to test binary")
	}

	cfgDir := ConfigDir("os3000-reader")
	assert.True(t, strings.HasPrefix(cfgDir, xdg.ConfigHome))
	assert.Equal(t, "os3000-reader", filepath.Base(cfgDir))

	logDir := LogDir("os3000-reader", "logs")
	assert.Equal(t, filepath.Join(xdg.DataHome, "os3000-reader", "logs"), logDir)
}
