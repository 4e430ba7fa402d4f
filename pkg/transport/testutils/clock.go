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

package testutils

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DriveClock advances fc by step every time it has the given number of
// waiters, until ctx is done. Run it in a goroutine next to code that sleeps
// on fc. Long lived tickers count as waiters.
func DriveClock(ctx context.Context, fc *clockwork.FakeClock, waiters int, step time.Duration) {
	for {
		if err := fc.BlockUntilContext(ctx, waiters); err != nil {
			return
		}
		fc.Advance(step)
	}
}

// StartClock starts DriveClock in the background and returns a func that
// stops it and waits for it to exit.
func StartClock(fc *clockwork.FakeClock, waiters int, step time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		DriveClock(ctx, fc, waiters, step)
	}()
	return func() {
		cancel()
		<-done
	}
}
