// Package config resolves the application's settings. Every setting has a
// command line flag whose default comes from an environment variable, which in
// turn may be provided by a .env file in the working directory.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"git.sr.ht/~whereswaldon/metal-detector/iio"
)

// Source selects where magnetometers are discovered.
type Source string

const (
	// SourceAuto uses IIO devices and, if a trace path is set, a trace.
	SourceAuto  Source = "auto"
	SourceIIO   Source = "iio"
	SourceTrace Source = "trace"
)

func (s *Source) String() string {
	return string(*s)
}

func (s *Source) Set(v string) error {
	switch Source(v) {
	case SourceAuto, SourceIIO, SourceTrace:
		*s = Source(v)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrBadSource, v)
}

const (
	EnvSource   = "METAL_DETECTOR_SOURCE"
	EnvSysfs    = "METAL_DETECTOR_SYSFS"
	EnvTrace    = "METAL_DETECTOR_TRACE"
	EnvMaxRange = "METAL_DETECTOR_MAX_RANGE"
	EnvRoutes   = "METAL_DETECTOR_ROUTES"
)

// DefaultMaxRange is used for sensors that do not report their range, in µT.
const DefaultMaxRange = 2000

var (
	ErrBadSource   = errors.New("unknown sensor source")
	ErrNoTracePath = errors.New("trace source selected without a trace path")
)

type Config struct {
	Source          Source
	SysfsRoot       string
	TracePath       string
	DefaultMaxRange float64
	// RoutesPath names a YAML route table. Empty selects the built-in routes.
	RoutesPath string
}

// LoadDotEnv adds the variables of the .env files at paths (".env" when none
// are given) to the environment. Variables that are already set win. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println("No .env file found, using environment variables")
			return nil
		}
		return fmt.Errorf("failed loading .env: %w", err)
	}
	return nil
}

// Load parses args (without the program name). Flags override environment
// variables, which override built-in defaults.
func Load(name string, args []string, output io.Writer) (Config, error) {
	cfg := Config{
		Source:          SourceAuto,
		SysfsRoot:       getEnv(EnvSysfs, iio.DefaultRoot),
		TracePath:       getEnv(EnvTrace, ""),
		DefaultMaxRange: DefaultMaxRange,
		RoutesPath:      getEnv(EnvRoutes, ""),
	}
	if v := getEnv(EnvSource, ""); v != "" {
		if err := cfg.Source.Set(v); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvSource, err)
		}
	}
	if v := getEnv(EnvMaxRange, ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvMaxRange, err)
		}
		cfg.DefaultMaxRange = f
	}

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Var(&cfg.Source, "source", "Where to find magnetometers: auto, iio or trace")
	flags.StringVar(&cfg.SysfsRoot, "sysfs", cfg.SysfsRoot, "Directory holding IIO devices")
	flags.StringVar(&cfg.TracePath, "trace", cfg.TracePath, "CSV trace to read readings from (- for stdin)")
	flags.Float64Var(&cfg.DefaultMaxRange, "max-range", cfg.DefaultMaxRange, "Range in µT of sensors that do not report one")
	flags.StringVar(&cfg.RoutesPath, "routes", cfg.RoutesPath, "YAML file mapping intent actions to programs")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Source == SourceTrace && cfg.TracePath == "" {
		return Config{}, ErrNoTracePath
	}
	if cfg.DefaultMaxRange < 0 {
		return Config{}, fmt.Errorf("invalid max range %v", cfg.DefaultMaxRange)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
