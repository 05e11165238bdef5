// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

// FPSWindow is the frame-rate sampling window.
const FPSWindow = time.Second

// fpsSampler counts renders over a fixed window. The window starts at the
// first observed event.
type fpsSampler struct {
	frames int
	start  time.Time
}

// observe records an event at now. When the window has elapsed it closes it
// first and returns the count and true; a render is then counted in the new
// window.
func (s *fpsSampler) observe(now time.Time, render bool) (int, bool) {
	var (
		fps    int
		closed bool
	)
	switch {
	case s.start.IsZero():
		s.start = now
	case now.Sub(s.start) >= FPSWindow:
		fps, closed = s.frames, true
		s.frames = 0
		s.start = now
	}
	if render {
		s.frames++
	}
	return fps, closed
}
