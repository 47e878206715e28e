// Package trace provides a magnetometer that replays readings from a CSV trace,
// such as the one written by metal-detector-sensors.
//
// A trace starts with a heading line and then holds one reading per line:
//
//	timestamp (ns), x (µT), y (µT), z (µT)
//	1700000000000000000, 12.5, -3.0, 40.25
//
// Columns after z are ignored.
package trace

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.sr.ht/~whereswaldon/metal-detector/sensors"
)

// Stdin is the path that selects standard input as the trace source.
const Stdin = "-"

// Heading is the first line of every trace.
var Heading = []string{"timestamp (ns)", "x (µT)", "y (µT)", "z (µT)"}

type Sample struct {
	Timestamp time.Time
	Values    sensors.Vector
}

// Sensor is a magnetometer whose readings come from a trace.
type Sensor struct {
	name     string
	maxRange float64

	lock   sync.RWMutex
	latest Sample
	have   bool
	err    error
	done   chan struct{}
}

var _ sensors.Sensor = (*Sensor)(nil)

func (s *Sensor) Name() string {
	return s.name
}

func (s *Sensor) Type() sensors.Type {
	return sensors.TypeMagneticField
}

func (s *Sensor) Unit() sensors.Unit {
	return sensors.MicroTesla
}

func (s *Sensor) MaxRange() float64 {
	return s.maxRange
}

// Read returns the most recent reading in the trace.
func (s *Sensor) Read() (sensors.Vector, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if !s.have {
		return sensors.Vector{}, sensors.ErrNoData
	}
	return s.latest.Values, nil
}

// Latest returns the most recent sample and whether there is one.
func (s *Sensor) Latest() (Sample, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.latest, s.have
}

// Done is closed once the trace has been consumed completely or failed.
func (s *Sensor) Done() <-chan struct{} {
	return s.done
}

// Err reports why reading the trace stopped, if it stopped abnormally.
func (s *Sensor) Err() error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.err
}

func (s *Sensor) store(sample Sample) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.latest = sample
	s.have = true
}

func (s *Sensor) finish(err error) {
	s.lock.Lock()
	s.err = err
	s.lock.Unlock()
	close(s.done)
}

// Open starts reading the trace at path. Regular files are followed as they
// grow until ctx is cancelled. Stdin selects standard input, which is read
// until it ends.
func Open(ctx context.Context, path string, maxRange float64) (*Sensor, error) {
	if path == Stdin {
		return FromReader(ctx, "stdin trace", os.Stdin, maxRange), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed opening trace %q: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed creating file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		f.Close()
		watcher.Close()
		return nil, fmt.Errorf("failed watching trace %q: %w", path, err)
	}
	s := newSensor(path, maxRange)
	go func() {
		defer f.Close()
		defer watcher.Close()
		s.finish(s.consume(ctx, f, watcher))
	}()
	return s, nil
}

// FromReader reads a trace from r until it is exhausted or ctx is cancelled.
func FromReader(ctx context.Context, name string, r io.Reader, maxRange float64) *Sensor {
	s := newSensor(name, maxRange)
	go func() {
		s.finish(s.consume(ctx, r, nil))
	}()
	return s
}

func newSensor(name string, maxRange float64) *Sensor {
	return &Sensor{
		name:     name,
		maxRange: maxRange,
		done:     make(chan struct{}),
	}
}

var ErrBadHeading = errors.New("trace does not start with a reading heading")

func (s *Sensor) consume(ctx context.Context, r io.Reader, watcher *fsnotify.Watcher) error {
	csvReader := csv.NewReader(newLineReader(r))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	headings, err := readRecord(ctx, csvReader, watcher)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed reading trace heading: %w", err)
	}
	if len(headings) < len(Heading) || !strings.HasPrefix(headings[0], "timestamp") {
		return fmt.Errorf("%w: %q", ErrBadHeading, headings)
	}
	for ctx.Err() == nil {
		rec, err := readRecord(ctx, csvReader, watcher)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("could not read trace data: %w", err)
		}
		sample, err := ParseRecord(rec)
		if err != nil {
			log.Printf("skipping trace record %q: %v", rec, err)
			continue
		}
		s.store(sample)
	}
	return nil
}

// readRecord returns the next record. Without a watcher io.EOF is final; with
// one, reading resumes after the file is written to.
func readRecord(ctx context.Context, r *csv.Reader, watcher *fsnotify.Watcher) ([]string, error) {
	for {
		rec, err := r.Read()
		if err == nil || !errors.Is(err, io.EOF) || watcher == nil {
			return rec, err
		}
		if err := waitForWrite(ctx, watcher); err != nil {
			return nil, err
		}
	}
}

func waitForWrite(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return io.EOF
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return io.EOF
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("failed watching trace: %w", err)
		}
	}
}

// ParseRecord converts one trace line into a sample.
func ParseRecord(rec []string) (Sample, error) {
	if len(rec) < len(Heading) {
		return Sample{}, fmt.Errorf("expected at least %d fields, got %d", len(Heading), len(rec))
	}
	ns, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("failed parsing timestamp: %w", err)
	}
	var axes [3]float64
	for i := range axes {
		axes[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("failed parsing %s: %w", Heading[i+1], err)
		}
	}
	return Sample{
		Timestamp: time.Unix(0, ns),
		Values:    sensors.Vector{X: axes[0], Y: axes[1], Z: axes[2]},
	}, nil
}

// FormatRecord renders a sample as a trace line.
func FormatRecord(sample Sample) []string {
	return []string{
		strconv.FormatInt(sample.Timestamp.UnixNano(), 10),
		strconv.FormatFloat(sample.Values.X, 'f', -1, 64),
		strconv.FormatFloat(sample.Values.Y, 'f', -1, 64),
		strconv.FormatFloat(sample.Values.Z, 'f', -1, 64),
	}
}
