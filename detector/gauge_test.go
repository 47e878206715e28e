package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGauge(t *testing.T) {
	var g Gauge
	g.SetProgress(10)
	assert.Equal(t, 0, g.Progress(), "no room without a bound")
	assert.Zero(t, g.Fraction())

	g.SetMax(200)
	g.SetProgress(50)
	assert.Equal(t, 50, g.Progress())
	assert.InDelta(t, 0.25, g.Fraction(), 1e-6)

	g.SetProgress(-5)
	assert.Equal(t, 0, g.Progress())
	g.SetProgress(500)
	assert.Equal(t, 200, g.Progress())
	assert.InDelta(t, 1, g.Fraction(), 1e-6)

	g.SetMax(100)
	assert.Equal(t, 100, g.Progress(), "shrinking the bound pins progress")

	g.SetMax(-1)
	assert.Equal(t, 0, g.Max())
	assert.Equal(t, 0, g.Progress())
}
