// Package detector turns a magnetometer into a metal detector: it shows the
// strength of the magnetic field on a bounded indicator while the screen is
// visible, and can log a scanned QR code through an external logbook.
package detector

import (
	"errors"
	"fmt"
	"log"
	"math"

	"git.sr.ht/~whereswaldon/metal-detector/intent"
	"git.sr.ht/~whereswaldon/metal-detector/sensors"
)

const (
	// TaskName identifies this application in logbook entries.
	TaskName = "Metall Detektor"
	// ScanRequestCode correlates scan requests with their results.
	ScanRequestCode = 0
	// LogLabel is the label of the menu item that starts a scan.
	LogLabel = "Log"
)

var ErrNoMagneticFieldSensor = errors.New("no sensor of type magnetic field found")

// SensorService discovers sensors and manages event subscriptions.
type SensorService interface {
	ListSensors(t sensors.Type) []sensors.Sensor
	RegisterListener(l sensors.Listener, s sensors.Sensor, rate sensors.Rate) bool
	UnregisterListener(l sensors.Listener)
}

// ActivityStarter hands intents to other programs.
type ActivityStarter interface {
	StartActivity(i intent.Intent) error
	StartActivityForResult(i intent.Intent, requestCode int, r intent.Receiver) error
}

// Indicator displays a bounded integer value.
type Indicator interface {
	SetMax(n int)
	SetProgress(n int)
}

// ShowAs controls where a menu item is placed.
type ShowAs uint8

const (
	ShowNever ShowAs = iota
	ShowIfRoom
	ShowAlways
)

type MenuItem struct {
	Label  string
	ShowAs ShowAs
}

// Controller drives the detector screen. Its methods must all be called from
// the same goroutine; sensor events and activity results are expected to be
// delivered on that goroutine as well.
type Controller struct {
	service   SensorService
	starter   ActivityStarter
	indicator Indicator

	sensor  sensors.Sensor
	visible bool
}

var (
	_ sensors.Listener = (*Controller)(nil)
	_ intent.Receiver  = (*Controller)(nil)
)

func New(service SensorService, starter ActivityStarter, indicator Indicator) *Controller {
	return &Controller{
		service:   service,
		starter:   starter,
		indicator: indicator,
	}
}

// Create selects the first magnetic field sensor and sizes the indicator to
// its range. Without such a sensor the screen cannot work at all, and the
// returned error should be treated as fatal.
func (c *Controller) Create() error {
	found := c.service.ListSensors(sensors.TypeMagneticField)
	if len(found) == 0 {
		return ErrNoMagneticFieldSensor
	}
	c.sensor = found[0]
	c.indicator.SetMax(progress(c.sensor.MaxRange()))
	return nil
}

// Sensor returns the sensor chosen by Create, if any.
func (c *Controller) Sensor() sensors.Sensor {
	return c.sensor
}

// Visible reports whether the screen is currently shown.
func (c *Controller) Visible() bool {
	return c.visible
}

// Resume is called when the screen becomes visible.
func (c *Controller) Resume() {
	if c.visible || c.sensor == nil {
		return
	}
	if !c.service.RegisterListener(c, c.sensor, sensors.RateNormal) {
		log.Printf("failed subscribing to %s", c.sensor.Name())
		return
	}
	c.visible = true
}

// Pause is called when the screen is hidden. It always releases the sensor.
func (c *Controller) Pause() {
	c.service.UnregisterListener(c)
	c.visible = false
}

func (c *Controller) OnSensorChanged(ev sensors.Event) {
	if ev.Sensor != c.sensor {
		return
	}
	c.indicator.SetProgress(progress(sensors.Magnitude(ev.Values)))
}

// progress truncates a magnitude to an indicator value. Magnitudes too large
// for an int saturate instead of overflowing, and NaN counts as no field.
func progress(magnitude float64) int {
	if math.IsNaN(magnitude) || magnitude <= 0 {
		return 0
	}
	return int(min(magnitude, math.MaxInt32))
}

// OnAccuracyChanged is ignored; the indicator does not need precise readings.
func (c *Controller) OnAccuracyChanged(sensors.Sensor, sensors.Accuracy) {}

// Menu returns the screen's menu items.
func (c *Controller) Menu() []MenuItem {
	return []MenuItem{{Label: LogLabel, ShowAs: ShowIfRoom}}
}

// OnMenuItemClick handles a menu selection. It never consumes the click.
func (c *Controller) OnMenuItemClick(item MenuItem) bool {
	if item.Label == LogLabel {
		if err := c.ScanQRCode(); err != nil {
			log.Printf("failed starting QR scan: %v", err)
		}
	}
	return false
}

// ScanQRCode asks the external scanner for a QR code. The result arrives
// later through OnActivityResult.
func (c *Controller) ScanQRCode() error {
	req := intent.New(intent.ActionScan)
	req.PutExtra(intent.ExtraScanMode, intent.ScanModeQRCode)
	return c.starter.StartActivityForResult(req, ScanRequestCode, c)
}

func (c *Controller) OnActivityResult(requestCode int, resultCode intent.ResultCode, data intent.Intent) {
	if requestCode != ScanRequestCode || resultCode != intent.ResultOK {
		return
	}
	if err := c.log(data.StringExtra(intent.ExtraScanResult)); err != nil {
		log.Printf("failed logging QR code: %v", err)
	}
}

func (c *Controller) log(qrCode string) error {
	entry := intent.New(intent.ActionLog)
	entry.PutExtra(intent.ExtraTaskName, TaskName)
	entry.PutExtra(intent.ExtraLogMessage, qrCode)
	if err := c.starter.StartActivity(entry); err != nil {
		return fmt.Errorf("failed opening logbook: %w", err)
	}
	return nil
}
