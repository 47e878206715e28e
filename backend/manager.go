package backend

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"git.sr.ht/~whereswaldon/metal-detector/sensors"
)

// Manager is the sensor service. It polls subscribed sensors on background
// goroutines and delivers their events to listeners through a Poster, so
// listeners are only ever invoked on the window goroutine.
type Manager struct {
	appCtx  context.Context
	poster  Poster
	lock    sync.Mutex
	sensors []sensors.Sensor
	subs    map[sensors.Listener][]*subscription
}

type subscription struct {
	sensor sensors.Sensor
	rate   sensors.Rate
	cancel context.CancelFunc
	active atomic.Bool
}

func NewManager(appCtx context.Context, poster Poster, list ...sensors.Sensor) *Manager {
	return &Manager{
		appCtx:  appCtx,
		poster:  poster,
		sensors: list,
		subs:    make(map[sensors.Listener][]*subscription),
	}
}

// ListSensors returns the known sensors of type t, in discovery order.
// sensors.TypeAll returns every sensor.
func (m *Manager) ListSensors(t sensors.Type) []sensors.Sensor {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := []sensors.Sensor{}
	for _, s := range m.sensors {
		if t == sensors.TypeAll || s.Type() == t {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) known(s sensors.Sensor) bool {
	for _, candidate := range m.sensors {
		if candidate == s {
			return true
		}
	}
	return false
}

// RegisterListener starts delivering events from s to l at the given rate.
// It returns false if s is not managed by this service. Registering the same
// pair twice keeps the existing subscription.
func (m *Manager) RegisterListener(l sensors.Listener, s sensors.Sensor, rate sensors.Rate) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if s == nil || !m.known(s) {
		return false
	}
	for _, sub := range m.subs[l] {
		if sub.sensor == s {
			return true
		}
	}
	ctx, cancel := context.WithCancel(m.appCtx)
	sub := &subscription{
		sensor: s,
		rate:   rate,
		cancel: cancel,
	}
	sub.active.Store(true)
	m.subs[l] = append(m.subs[l], sub)
	go m.poll(ctx, l, sub)
	return true
}

// UnregisterListener stops every subscription held by l. Events that were
// already queued for l are discarded.
func (m *Manager) UnregisterListener(l sensors.Listener) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, sub := range m.subs[l] {
		sub.active.Store(false)
		sub.cancel()
	}
	delete(m.subs, l)
}

// Subscribed reports whether l currently holds any subscription.
func (m *Manager) Subscribed(l sensors.Listener) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.subs[l]) > 0
}

func (m *Manager) poll(ctx context.Context, l sensors.Listener, sub *subscription) {
	ticker := time.NewTicker(sub.rate.Interval())
	defer ticker.Stop()
	reporter, hasAccuracy := sub.sensor.(sensors.AccuracyReporter)
	lastAccuracy := sensors.AccuracyHigh
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			v, err := sub.sensor.Read()
			if err != nil {
				if !errors.Is(err, sensors.ErrNoData) {
					log.Printf("failed reading %s: %v", sub.sensor.Name(), err)
				}
				continue
			}
			accuracy := sensors.AccuracyHigh
			if hasAccuracy {
				accuracy = reporter.Accuracy()
			}
			changed := accuracy != lastAccuracy
			lastAccuracy = accuracy
			ev := sensors.Event{
				Sensor:    sub.sensor,
				Values:    v,
				Accuracy:  accuracy,
				Timestamp: t,
			}
			m.poster.Post(func() {
				if !sub.active.Load() {
					return
				}
				if changed {
					l.OnAccuracyChanged(ev.Sensor, ev.Accuracy)
				}
				l.OnSensorChanged(ev)
			})
		}
	}
}
