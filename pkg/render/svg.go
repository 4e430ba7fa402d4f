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

// Package render turns decoded waveform frames into plot images.
package render

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/os3000-reader/os3000-reader/pkg/device"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultPath   = "plot.svg"
	DefaultTitle  = "Plot1"
	DefaultWidth  = 4000
	DefaultHeight = 4000

	// Midline is the mid-scale sample value drawn as a reference line.
	Midline = 127
	maxY    = 255
	ticks   = 8
)

var (
	gridBold   = color.Gray{Y: 0x80}
	gridLight  = color.Gray{Y: 0x3a}
	midlineCol = color.Gray{Y: 0x9e}
	waveCol    = color.RGBA{G: 0xff, A: 0xff}
	textCol    = color.White
)

var formats = map[string]bool{
	"svg": true, "png": true, "pdf": true, "eps": true,
	"jpg": true, "jpeg": true, "tif": true, "tiff": true,
}

// Options configures the plot written for every frame.
type Options struct {
	Path   string
	Title  string
	Width  int
	Height int
}

// SVG renders frames to a single image file that is replaced on every frame.
// Despite the name it writes any format gonum/plot supports, picked from the
// file extension.
type SVG struct {
	fs     afero.Fs
	opts   Options
	format string
}

// NewSVG creates a renderer writing through fs. Zero option fields take the
// defaults.
func NewSVG(fs afero.Fs, opts Options) (*SVG, error) {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(opts.Path), "."))
	if format == "" {
		format = "svg"
	}
	if !formats[format] {
		return nil, fmt.Errorf("unsupported plot format: %s", format)
	}

	return &SVG{fs: fs, opts: opts, format: format}, nil
}

// Path returns the file the renderer writes.
func (r *SVG) Path() string {
	return r.opts.Path
}

// Points converts a frame payload into plot coordinates: x is the sample
// index and y its value.
func Points(frame *device.Frame) plotter.XYs {
	samples := frame.Samples()
	pts := make(plotter.XYs, len(samples))
	for i, v := range samples {
		pts[i].X = float64(i)
		pts[i].Y = float64(v)
	}
	return pts
}

// Render draws frame and atomically replaces the output file.
//
//nolint:gocritic // frames are passed by value across the acquisition API
func (r *SVG) Render(ctx context.Context, frame device.Frame) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors are returned as-is
	}

	p, err := r.build(&frame)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(vg.Length(r.opts.Width), vg.Length(r.opts.Height), r.format)
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}

	if dir := filepath.Dir(r.opts.Path); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}

	tmp := r.opts.Path + ".tmp"
	f, err := r.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		_ = f.Close()
		r.removeTemp(tmp)
		return fmt.Errorf("failed to write plot: %w", err)
	}
	if err := f.Close(); err != nil {
		r.removeTemp(tmp)
		return fmt.Errorf("failed to close plot file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.opts.Path); err != nil {
		r.removeTemp(tmp)
		return fmt.Errorf("failed to replace plot file: %w", err)
	}

	log.Debug().Str("path", r.opts.Path).Msg("plot written")
	return nil
}

func (r *SVG) removeTemp(path string) {
	if err := r.fs.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove temporary plot file")
	}
}

func (r *SVG) build(frame *device.Frame) (*plot.Plot, error) {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.Text = r.opts.Title
	p.Title.TextStyle.Color = textCol
	p.Title.TextStyle.Font.Size = vg.Points(30)

	p.X.Min, p.X.Max = 0, device.PayloadSize
	p.Y.Min, p.Y.Max = 0, maxY
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.LineStyle.Color = textCol
		ax.Label.TextStyle.Color = textCol
		ax.Tick.LineStyle.Color = textCol
		ax.Tick.Label.Color = textCol
		ax.Tick.Marker = evenTicks{n: ticks}
	}

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridBold
	grid.Horizontal.Color = gridLight
	p.Add(grid)

	mid, err := plotter.NewLine(plotter.XYs{{X: 0, Y: Midline}, {X: device.PayloadSize, Y: Midline}})
	if err != nil {
		return nil, fmt.Errorf("failed to build midline: %w", err)
	}
	mid.Color = midlineCol
	mid.Width = vg.Points(3)

	wave, err := plotter.NewLine(Points(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to build waveform line: %w", err)
	}
	wave.Color = waveCol
	wave.Width = vg.Points(5)

	p.Add(mid, wave)
	return p, nil
}

// evenTicks places n labelled ticks evenly across the axis range.
type evenTicks struct {
	n int
}

func (t evenTicks) Ticks(lo, hi float64) []plot.Tick {
	if t.n < 2 || hi <= lo {
		return []plot.Tick{{Value: lo, Label: strconv.FormatFloat(lo, 'f', -1, 64)}}
	}
	out := make([]plot.Tick, 0, t.n)
	step := (hi - lo) / float64(t.n-1)
	for i := range t.n {
		v := lo + step*float64(i)
		out = append(out, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', 0, 64)})
	}
	return out
}
