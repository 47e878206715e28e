package main

import (
	"testing"

	"gioui.org/app"
	"github.com/stretchr/testify/assert"
)

type recordingScreen struct {
	calls []string
}

func (r *recordingScreen) Resume() { r.calls = append(r.calls, "resume") }
func (r *recordingScreen) Pause()  { r.calls = append(r.calls, "pause") }

func TestVisibility(t *testing.T) {
	s := &recordingScreen{}
	v := &visibility{screen: s}

	v.Framed()
	v.Configured(app.Windowed)
	v.Framed()
	assert.Equal(t, []string{"resume", "resume"}, s.calls)

	// Frames produced while minimized must not subscribe again.
	s.calls = nil
	v.Configured(app.Minimized)
	v.Framed()
	v.Framed()
	assert.Equal(t, []string{"pause"}, s.calls)

	s.calls = nil
	v.Configured(app.Maximized)
	v.Framed()
	v.Destroyed()
	assert.Equal(t, []string{"resume", "pause"}, s.calls)
}
