package sensors

import (
	"errors"
	"math"
	"time"
)

type Unit uint8

func (u Unit) String() string {
	switch u {
	case MicroTesla:
		return "µT"
	case Gauss:
		return "G"
	default:
		return "?"
	}
}

const (
	MicroTesla Unit = iota
	Gauss
	Unknown
)

const (
	// GaussToMicroTesla is the conversion factor from Gauss (the unit used by the
	// Linux IIO subsystem for magnetometers) to microtesla.
	GaussToMicroTesla = 100.0
)

// Type identifies the kind of quantity a sensor measures.
type Type uint8

const (
	TypeAll Type = iota
	TypeMagneticField
)

func (t Type) String() string {
	switch t {
	case TypeAll:
		return "all"
	case TypeMagneticField:
		return "magnetic field"
	default:
		return "unknown"
	}
}

// Accuracy is the confidence a sensor reports in its readings.
type Accuracy int8

const (
	AccuracyNoContact Accuracy = iota - 1
	AccuracyUnreliable
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

// Rate is a requested delivery rate for sensor events.
type Rate uint8

const (
	RateFastest Rate = iota
	RateGame
	RateUI
	RateNormal
)

// Interval returns the polling period for the rate. RateFastest is clamped to
// a millisecond so polling never spins.
func (r Rate) Interval() time.Duration {
	switch r {
	case RateFastest:
		return time.Millisecond
	case RateGame:
		return 20 * time.Millisecond
	case RateUI:
		return 66667 * time.Microsecond
	default:
		return 200 * time.Millisecond
	}
}

// ErrNoData is returned by Read when a sensor has not produced a value yet.
var ErrNoData = errors.New("no sensor data available")

// Vector is one three-axis reading.
type Vector struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v Vector) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

type Sensor interface {
	Name() string
	Type() Type
	Unit() Unit
	// MaxRange is the largest magnitude on any axis the sensor can report, in Unit.
	MaxRange() float64
	Read() (Vector, error)
}

// AccuracyReporter is implemented by sensors that know how trustworthy their
// current readings are.
type AccuracyReporter interface {
	Accuracy() Accuracy
}

// Event is a single reading delivered to a Listener.
type Event struct {
	Sensor    Sensor
	Values    Vector
	Accuracy  Accuracy
	Timestamp time.Time
}

// Listener receives sensor events. Implementations must be comparable, as they
// are used to identify subscriptions.
type Listener interface {
	OnSensorChanged(ev Event)
	OnAccuracyChanged(s Sensor, accuracy Accuracy)
}
