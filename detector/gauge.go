package detector

import (
	"sync"

	"golang.org/x/exp/constraints"
)

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// Gauge is a bounded progress value. Progress is always kept within [0, Max],
// so values outside the range are pinned to the nearest bound. It may be read
// by the renderer while the controller updates it.
type Gauge struct {
	lock     sync.RWMutex
	max      int
	progress int
}

var _ Indicator = (*Gauge)(nil)

// SetMax changes the upper bound. Negative bounds are treated as zero and the
// current progress is pinned into the new range.
func (g *Gauge) SetMax(n int) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.max = max(n, 0)
	g.progress = clamp(g.progress, 0, g.max)
}

func (g *Gauge) SetProgress(n int) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.progress = clamp(n, 0, g.max)
}

func (g *Gauge) Max() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.max
}

func (g *Gauge) Progress() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.progress
}

// Fraction returns progress relative to the bound, in [0, 1].
func (g *Gauge) Fraction() float32 {
	g.lock.RLock()
	defer g.lock.RUnlock()
	if g.max == 0 {
		return 0
	}
	return clamp(float32(g.progress)/float32(g.max), 0, 1)
}
