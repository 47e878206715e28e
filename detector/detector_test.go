package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~whereswaldon/metal-detector/intent"
	"git.sr.ht/~whereswaldon/metal-detector/sensors"
)

type fakeSensor struct {
	name     string
	kind     sensors.Type
	maxRange float64
}

func (f *fakeSensor) Name() string                  { return f.name }
func (f *fakeSensor) Type() sensors.Type            { return f.kind }
func (f *fakeSensor) Unit() sensors.Unit            { return sensors.MicroTesla }
func (f *fakeSensor) MaxRange() float64             { return f.maxRange }
func (f *fakeSensor) Read() (sensors.Vector, error) { return sensors.Vector{}, sensors.ErrNoData }

type registration struct {
	listener sensors.Listener
	sensor   sensors.Sensor
	rate     sensors.Rate
}

// fakeService records subscription calls and lets tests check that at most
// one subscription is held at a time.
type fakeService struct {
	list       []sensors.Sensor
	active     []registration
	registered int
	reject     bool
}

func (f *fakeService) ListSensors(t sensors.Type) []sensors.Sensor {
	out := []sensors.Sensor{}
	for _, s := range f.list {
		if t == sensors.TypeAll || s.Type() == t {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeService) RegisterListener(l sensors.Listener, s sensors.Sensor, rate sensors.Rate) bool {
	if f.reject {
		return false
	}
	f.registered++
	f.active = append(f.active, registration{listener: l, sensor: s, rate: rate})
	return true
}

func (f *fakeService) UnregisterListener(l sensors.Listener) {
	kept := f.active[:0]
	for _, r := range f.active {
		if r.listener != l {
			kept = append(kept, r)
		}
	}
	f.active = kept
}

type startedForResult struct {
	intent      intent.Intent
	requestCode int
	receiver    intent.Receiver
}

type fakeStarter struct {
	started   []intent.Intent
	forResult []startedForResult
	err       error
}

func (f *fakeStarter) StartActivity(i intent.Intent) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, i)
	return nil
}

func (f *fakeStarter) StartActivityForResult(i intent.Intent, requestCode int, r intent.Receiver) error {
	if f.err != nil {
		return f.err
	}
	f.forResult = append(f.forResult, startedForResult{intent: i, requestCode: requestCode, receiver: r})
	return nil
}

func newTestController(t *testing.T, list ...sensors.Sensor) (*Controller, *fakeService, *fakeStarter, *Gauge) {
	t.Helper()
	service := &fakeService{list: list}
	starter := &fakeStarter{}
	gauge := &Gauge{}
	return New(service, starter, gauge), service, starter, gauge
}

func TestCreateSelectsFirstMagnetometer(t *testing.T) {
	other := &fakeSensor{name: "accel", kind: sensors.Type(99), maxRange: 10}
	first := &fakeSensor{name: "magn0", kind: sensors.TypeMagneticField, maxRange: 2000}
	second := &fakeSensor{name: "magn1", kind: sensors.TypeMagneticField, maxRange: 4900}
	c, _, _, gauge := newTestController(t, other, first, second)

	require.NoError(t, c.Create())
	assert.Same(t, first, c.Sensor())
	assert.Equal(t, 2000, gauge.Max())
	assert.Equal(t, 0, gauge.Progress())
}

func TestCreateWithoutMagnetometer(t *testing.T) {
	c, service, _, _ := newTestController(t, &fakeSensor{name: "accel", kind: sensors.Type(99)})

	assert.ErrorIs(t, c.Create(), ErrNoMagneticFieldSensor)
	c.Resume()
	assert.False(t, c.Visible())
	assert.Zero(t, service.registered)
}

func TestSubscribedOnlyWhileVisible(t *testing.T) {
	magn := &fakeSensor{name: "magn0", kind: sensors.TypeMagneticField, maxRange: 2000}
	c, service, _, _ := newTestController(t, magn)
	require.NoError(t, c.Create())
	assert.Empty(t, service.active)

	c.Resume()
	require.Len(t, service.active, 1)
	assert.Equal(t, registration{listener: c, sensor: magn, rate: sensors.RateNormal}, service.active[0])

	// Repeated visibility notifications keep a single subscription.
	c.Resume()
	assert.Len(t, service.active, 1)
	assert.Equal(t, 1, service.registered)

	c.Pause()
	assert.Empty(t, service.active)
	assert.False(t, c.Visible())

	c.Pause()
	assert.Empty(t, service.active)

	c.Resume()
	assert.Len(t, service.active, 1)
	assert.True(t, c.Visible())
}

func TestResumeRejected(t *testing.T) {
	magn := &fakeSensor{name: "magn0", kind: sensors.TypeMagneticField, maxRange: 2000}
	c, service, _, _ := newTestController(t, magn)
	require.NoError(t, c.Create())
	service.reject = true

	c.Resume()
	assert.False(t, c.Visible())
}

func TestSensorChanged(t *testing.T) {
	magn := &fakeSensor{name: "magn0", kind: sensors.TypeMagneticField, maxRange: 100}
	for _, tc := range []struct {
		name     string
		values   sensors.Vector
		expected int
	}{
		{name: "pythagorean", values: sensors.Vector{X: 3, Y: 4}, expected: 5},
		{name: "zero", values: sensors.Vector{}, expected: 0},
		{name: "truncated", values: sensors.Vector{X: 1, Y: 1, Z: 1}, expected: 1},
		{name: "negative axes", values: sensors.Vector{X: -30, Y: -40}, expected: 50},
		{name: "above range", values: sensors.Vector{X: 300}, expected: 100},
		{name: "beyond int range", values: sensors.Vector{X: 1e19}, expected: 100},
		{name: "infinite", values: sensors.Vector{X: math.Inf(1)}, expected: 100},
		{name: "negative infinite axis", values: sensors.Vector{Y: math.Inf(-1)}, expected: 100},
		{name: "not a number", values: sensors.Vector{Z: math.NaN()}, expected: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _, _, gauge := newTestController(t, magn)
			require.NoError(t, c.Create())
			c.Resume()
			c.OnSensorChanged(sensors.Event{Sensor: magn, Values: tc.values})
			assert.Equal(t, tc.expected, gauge.Progress())
		})
	}
}

func TestOtherSensorsIgnored(t *testing.T) {
	magn := &fakeSensor{name: "magn0", kind: sensors.TypeMagneticField, maxRange: 100}
	other := &fakeSensor{name: "magn1", kind: sensors.TypeMagneticField, maxRange: 100}
	c, _, _, gauge := newTestController(t, magn, other)
	require.NoError(t, c.Create())
	c.Resume()

	c.OnSensorChanged(sensors.Event{Sensor: magn, Values: sensors.Vector{X: 3, Y: 4}})
	c.OnSensorChanged(sensors.Event{Sensor: other, Values: sensors.Vector{X: 60, Y: 80}})
	assert.Equal(t, 5, gauge.Progress())

	c.OnAccuracyChanged(magn, sensors.AccuracyUnreliable)
	assert.Equal(t, 5, gauge.Progress())
}

func TestMenu(t *testing.T) {
	c, _, starter, _ := newTestController(t)
	menu := c.Menu()
	require.Len(t, menu, 1)
	assert.Equal(t, MenuItem{Label: "Log", ShowAs: ShowIfRoom}, menu[0])

	assert.False(t, c.OnMenuItemClick(menu[0]))
	require.Len(t, starter.forResult, 1)
	req := starter.forResult[0]
	assert.Equal(t, intent.ActionScan, req.intent.Action)
	assert.Equal(t, intent.ScanModeQRCode, req.intent.StringExtra(intent.ExtraScanMode))
	assert.Equal(t, 0, req.requestCode)
	assert.Equal(t, c, req.receiver)

	assert.False(t, c.OnMenuItemClick(MenuItem{Label: "Settings"}))
	assert.Len(t, starter.forResult, 1)
}

func TestMenuScanFailure(t *testing.T) {
	c, _, starter, _ := newTestController(t)
	starter.err = errors.New("no scanner installed")
	assert.False(t, c.OnMenuItemClick(c.Menu()[0]))
	assert.Error(t, c.ScanQRCode())
}

func scanResult(text string) intent.Intent {
	var data intent.Intent
	data.PutExtra(intent.ExtraScanResult, text)
	return data
}

func TestActivityResult(t *testing.T) {
	for _, tc := range []struct {
		name        string
		requestCode int
		resultCode  intent.ResultCode
		logged      bool
	}{
		{name: "ok", requestCode: ScanRequestCode, resultCode: intent.ResultOK, logged: true},
		{name: "canceled", requestCode: ScanRequestCode, resultCode: intent.ResultCanceled},
		{name: "user result", requestCode: ScanRequestCode, resultCode: intent.ResultFirstUser},
		{name: "other request", requestCode: 5, resultCode: intent.ResultOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _, starter, _ := newTestController(t)
			c.OnActivityResult(tc.requestCode, tc.resultCode, scanResult("ABC123"))
			if !tc.logged {
				assert.Empty(t, starter.started)
				return
			}
			require.Len(t, starter.started, 1)
			entry := starter.started[0]
			assert.Equal(t, "ch.appquest.intent.LOG", entry.Action)
			assert.Equal(t, map[string]string{
				"ch.appquest.taskname":   "Metall Detektor",
				"ch.appquest.logmessage": "ABC123",
			}, entry.Extras)
		})
	}
}

func TestActivityResultLogFailure(t *testing.T) {
	c, _, starter, _ := newTestController(t)
	starter.err = errors.New("no logbook installed")
	c.OnActivityResult(ScanRequestCode, intent.ResultOK, scanResult("ABC123"))
	assert.Empty(t, starter.started)
}
