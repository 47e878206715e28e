package main

import "gioui.org/app"

// screen is the part of the detector screen that follows window visibility.
type screen interface {
	Resume()
	Pause()
}

// visibility keeps a screen's subscription in step with the window. Frames
// count as visible unless the last configuration minimized the window, as
// invalidations still produce frames there.
type visibility struct {
	screen    screen
	minimized bool
}

func (v *visibility) Configured(mode app.WindowMode) {
	v.minimized = mode == app.Minimized
	if v.minimized {
		v.screen.Pause()
	}
}

func (v *visibility) Framed() {
	if !v.minimized {
		v.screen.Resume()
	}
}

func (v *visibility) Destroyed() {
	v.screen.Pause()
}
