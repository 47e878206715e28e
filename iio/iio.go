// Package iio discovers magnetometers exposed by the Linux Industrial I/O
// subsystem through sysfs.
package iio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~whereswaldon/metal-detector/sensors"
)

// DefaultRoot is where the kernel lists IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

var axes = [3]string{"x", "y", "z"}

type Magnetometer struct {
	dir      string
	name     string
	files    [3]*os.File
	scale    [3]float64
	offset   [3]float64
	maxRange float64
}

var _ sensors.Sensor = (*Magnetometer)(nil)

func (m *Magnetometer) Name() string {
	return m.name
}

func (m *Magnetometer) Type() sensors.Type {
	return sensors.TypeMagneticField
}

func (m *Magnetometer) Unit() sensors.Unit {
	return sensors.MicroTesla
}

func (m *Magnetometer) MaxRange() float64 {
	return m.maxRange
}

// Dir returns the sysfs directory backing the device.
func (m *Magnetometer) Dir() string {
	return m.dir
}

func (m *Magnetometer) Read() (sensors.Vector, error) {
	var values [3]float64
	for i, f := range m.files {
		raw, err := readInt(f)
		if err != nil {
			return sensors.Vector{}, fmt.Errorf("failed reading %s axis of %s: %w", axes[i], m.name, err)
		}
		values[i] = (float64(raw) + m.offset[i]) * m.scale[i] * sensors.GaussToMicroTesla
	}
	return sensors.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

// Close releases the open attribute files.
func (m *Magnetometer) Close() error {
	var err error
	for _, f := range m.files {
		if f != nil {
			err = errors.Join(err, f.Close())
		}
	}
	return err
}

func readInt(f *os.File) (int64, error) {
	var buf [64]byte
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := f.Read(buf[:])
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(buf[:n])), 10, 64)
}

// Find returns every magnetometer below root. Devices whose attributes cannot
// be read are skipped. defaultMaxRange (in µT) is used when the device does not
// describe its sample format.
func Find(root string, defaultMaxRange float64) ([]*Magnetometer, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed listing IIO devices: %w", err)
	}
	out := []*Magnetometer{}
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "in_magn_x_raw")); err != nil {
			continue
		}
		m, err := open(dir, defaultMaxRange)
		if err != nil {
			log.Printf("skipping IIO device %q: %v", dir, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func open(dir string, defaultMaxRange float64) (*Magnetometer, error) {
	m := &Magnetometer{
		dir:      dir,
		name:     filepath.Base(dir),
		maxRange: defaultMaxRange,
	}
	if name, err := os.ReadFile(filepath.Join(dir, "name")); err == nil {
		if trimmed := strings.TrimSpace(string(name)); trimmed != "" {
			m.name = trimmed
		}
	}
	for i, axis := range axes {
		path := filepath.Join(dir, "in_magn_"+axis+"_raw")
		if !readable(path) {
			m.Close()
			return nil, fmt.Errorf("attribute %q is not readable", path)
		}
		f, err := os.Open(path)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed opening %q: %w", path, err)
		}
		m.files[i] = f

		scale, err := axisAttribute(dir, axis, "scale", 1)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.scale[i] = scale
		offset, err := axisAttribute(dir, axis, "offset", 0)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.offset[i] = offset
	}
	typ, err := os.ReadFile(filepath.Join(dir, "scan_elements", "in_magn_x_type"))
	if err == nil {
		format, err := ParseFormat(strings.TrimSpace(string(typ)))
		if err != nil {
			log.Printf("ignoring sample format of %q: %v", dir, err)
		} else {
			m.maxRange = format.MaxRaw() * m.scale[0] * sensors.GaussToMicroTesla
		}
	}
	return m, nil
}

// axisAttribute reads in_magn_<axis>_<attr>, falling back to the shared
// in_magn_<attr> and finally to fallback.
func axisAttribute(dir, axis, attr string, fallback float64) (float64, error) {
	for _, name := range []string{"in_magn_" + axis + "_" + attr, "in_magn_" + attr} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			return 0, fmt.Errorf("failed parsing %s of %q (%s): %w", name, dir, string(data), err)
		}
		return v, nil
	}
	return fallback, nil
}

// Format describes how a channel's samples are stored, as found in
// scan_elements/*_type (for example "le:s16/16>>0").
type Format struct {
	BigEndian   bool
	Signed      bool
	RealBits    int
	StorageBits int
	Shift       int
}

// MaxRaw returns the largest absolute raw value the format can hold.
func (f Format) MaxRaw() float64 {
	bits := f.RealBits
	if f.Signed {
		bits--
	}
	return float64(uint64(1) << bits)
}

var ErrBadFormat = errors.New("malformed IIO sample format")

func ParseFormat(s string) (Format, error) {
	var f Format
	endian, rest, ok := strings.Cut(s, ":")
	if !ok || len(rest) < 2 {
		return f, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	switch endian {
	case "be":
		f.BigEndian = true
	case "le":
	default:
		return f, fmt.Errorf("%w: unknown endianness in %q", ErrBadFormat, s)
	}
	switch rest[0] {
	case 's', 'S':
		f.Signed = true
	case 'u', 'U':
	default:
		return f, fmt.Errorf("%w: unknown signedness in %q", ErrBadFormat, s)
	}
	rest = rest[1:]
	bits, rest, ok := strings.Cut(rest, "/")
	if !ok {
		return f, fmt.Errorf("%w: missing storage bits in %q", ErrBadFormat, s)
	}
	storage, shift, hasShift := strings.Cut(rest, ">>")
	// Repeated channels carry an "X<count>" suffix on the storage bits.
	storage, _, _ = strings.Cut(storage, "X")
	var err error
	if f.RealBits, err = strconv.Atoi(bits); err != nil || f.RealBits <= 0 || f.RealBits > 64 {
		return f, fmt.Errorf("%w: bad bit count in %q", ErrBadFormat, s)
	}
	if f.StorageBits, err = strconv.Atoi(storage); err != nil || f.StorageBits < f.RealBits {
		return f, fmt.Errorf("%w: bad storage bits in %q", ErrBadFormat, s)
	}
	if hasShift {
		if f.Shift, err = strconv.Atoi(shift); err != nil {
			return f, fmt.Errorf("%w: bad shift in %q", ErrBadFormat, s)
		}
	}
	return f, nil
}
