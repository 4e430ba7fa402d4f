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

package render

import (
	"context"
	"testing"

	"github.com/os3000-reader/os3000-reader/pkg/device"
	testhelpers "github.com/os3000-reader/os3000-reader/pkg/testing/helpers"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func rampFrame() device.Frame {
	var f device.Frame
	copy(f.Header[:], "       waveform")
	for i := range f.Payload {
		f.Payload[i] = byte(i % 256)
	}
	return f
}

func TestNewSVG_Defaults(t *testing.T) {
	t.Parallel()

	r, err := NewSVG(afero.NewMemMapFs(), Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultPath, r.Path())
	assert.Equal(t, DefaultTitle, r.opts.Title)
	assert.Equal(t, DefaultWidth, r.opts.Width)
	assert.Equal(t, DefaultHeight, r.opts.Height)
	assert.Equal(t, "svg", r.format)
}

func TestNewSVG_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		format  string
		wantErr bool
	}{
		{name: "svg", path: "out/plot.svg", format: "svg"},
		{name: "upper case png", path: "plot.PNG", format: "png"},
		{name: "no extension", path: "plot", format: "svg"},
		{name: "unknown", path: "plot.bmp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewSVG(afero.NewMemMapFs(), Options{Path: tt.path})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported plot format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, r.format)
		})
	}
}

func TestPoints_IndexAndValue(t *testing.T) {
	t.Parallel()

	f := rampFrame()
	pts := Points(&f)

	require.Len(t, pts, device.PayloadSize)
	assert.InDelta(t, 0.0, pts[0].X, 0)
	assert.InDelta(t, 999.0, pts[999].X, 0)
	assert.InDelta(t, 255.0, pts[255].Y, 0)
	assert.InDelta(t, 0.0, pts[256].Y, 0)
}

func TestPoints_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), device.PayloadSize, device.PayloadSize).Draw(t, "payload")
		var f device.Frame
		copy(f.Payload[:], payload)

		pts := Points(&f)
		if len(pts) != device.PayloadSize {
			t.Fatalf("got %d points", len(pts))
		}
		for i, pt := range pts {
			if pt.X != float64(i) || pt.Y != float64(payload[i]) {
				t.Fatalf("point %d = (%v, %v), want (%d, %d)", i, pt.X, pt.Y, i, payload[i])
			}
		}
	})
}

func TestRender_WritesSVG(t *testing.T) {
	t.Parallel()

	fsh := testhelpers.NewMemoryFS()
	r, err := NewSVG(fsh.Fs, Options{Path: "plots/plot.svg", Width: 400, Height: 300})
	require.NoError(t, err)

	require.NoError(t, r.Render(context.Background(), rampFrame()))

	assert.True(t, fsh.IsSVG("plots/plot.svg"))
	data, err := fsh.ReadFile("plots/plot.svg")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Plot1")
	assert.Empty(t, fsh.TempFiles("plots"), "temporary file should be renamed away")
}

func TestRender_OverwritesPreviousPlot(t *testing.T) {
	t.Parallel()

	fsh := testhelpers.NewMemoryFS()
	require.NoError(t, fsh.WriteFile("plot.svg", []byte("stale")))

	r, err := NewSVG(fsh.Fs, Options{Width: 200, Height: 200, Title: "Scope"})
	require.NoError(t, err)
	require.NoError(t, r.Render(context.Background(), rampFrame()))

	first, err := fsh.ReadFile("plot.svg")
	require.NoError(t, err)
	assert.NotContains(t, string(first), "stale")
	assert.Contains(t, string(first), "Scope")

	var flat device.Frame
	require.NoError(t, r.Render(context.Background(), flat))
	second, err := fsh.ReadFile("plot.svg")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRender_PNG(t *testing.T) {
	t.Parallel()

	fsh := testhelpers.NewMemoryFS()
	r, err := NewSVG(fsh.Fs, Options{Path: "plot.png", Width: 200, Height: 200})
	require.NoError(t, err)
	require.NoError(t, r.Render(context.Background(), rampFrame()))

	assert.True(t, fsh.IsPNG("plot.png"))
}

func TestRender_CancelledContext(t *testing.T) {
	t.Parallel()

	fsh := testhelpers.NewMemoryFS()
	r, err := NewSVG(fsh.Fs, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, r.Render(ctx, rampFrame()), context.Canceled)
	assert.False(t, fsh.FileExists(DefaultPath))
}

func TestRender_ReadOnlyFs(t *testing.T) {
	t.Parallel()

	r, err := NewSVG(testhelpers.NewReadOnlyFS().Fs, Options{Width: 100, Height: 100})
	require.NoError(t, err)

	err = r.Render(context.Background(), rampFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create plot file")
}

func TestEvenTicks(t *testing.T) {
	t.Parallel()

	got := evenTicks{n: 6}.Ticks(0, 1000)
	require.Len(t, got, 6)
	assert.Equal(t, "0", got[0].Label)
	assert.Equal(t, "200", got[1].Label)
	assert.Equal(t, "1000", got[5].Label)

	single := evenTicks{n: 8}.Ticks(5, 5)
	require.Len(t, single, 1)
	assert.Equal(t, "5", single[0].Label)
}
