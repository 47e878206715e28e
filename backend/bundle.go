package backend

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gioui.org/app"
	"git.sr.ht/~gioverse/skel/stream"

	"git.sr.ht/~whereswaldon/metal-detector/config"
	"git.sr.ht/~whereswaldon/metal-detector/iio"
	"git.sr.ht/~whereswaldon/metal-detector/intent"
	"git.sr.ht/~whereswaldon/metal-detector/sensors"
	"git.sr.ht/~whereswaldon/metal-detector/trace"
)

type WindowState struct {
	Bundle
	Controller *stream.Controller
}

func NewWindowState(ctx context.Context, bundle Bundle, win *app.Window) WindowState {
	return WindowState{
		Bundle:     bundle,
		Controller: stream.NewController(ctx, win.Invalidate),
	}
}

// Bundle holds the non-UI services of a window.
type Bundle struct {
	Looper   *Looper
	Sensors  *Manager
	Launcher *intent.Launcher

	closers []func() error
}

// NewBundle discovers sensors according to cfg and prepares the intent
// launcher. wake is invoked whenever work is posted for the window goroutine.
// Finding no sensors is not an error here; the screen decides whether it can
// run without them.
func NewBundle(ctx context.Context, cfg config.Config, wake func()) (Bundle, error) {
	b := Bundle{Looper: NewLooper(wake)}
	found, err := b.discover(ctx, cfg)
	if err != nil {
		b.Close()
		return Bundle{}, err
	}
	for _, s := range found {
		log.Printf("found %s sensor %q (range %.1f %s)", s.Type(), s.Name(), s.MaxRange(), s.Unit())
	}
	b.Sensors = NewManager(ctx, b.Looper, found...)

	routes := intent.DefaultRoutes()
	if cfg.RoutesPath != "" {
		routes, err = intent.LoadRoutes(cfg.RoutesPath)
		if err != nil {
			b.Close()
			return Bundle{}, err
		}
	}
	b.Launcher, err = intent.NewLauncher(ctx, b.Looper, routes)
	if err != nil {
		b.Close()
		return Bundle{}, fmt.Errorf("failed preparing intent routes: %w", err)
	}
	return b, nil
}

func (b *Bundle) discover(ctx context.Context, cfg config.Config) ([]sensors.Sensor, error) {
	var found []sensors.Sensor
	if cfg.Source == config.SourceAuto || cfg.Source == config.SourceIIO {
		magnetometers, err := iio.Find(cfg.SysfsRoot, cfg.DefaultMaxRange)
		if err != nil {
			if cfg.Source == config.SourceIIO {
				return nil, err
			}
			log.Printf("failed loading IIO sensors: %v", err)
		}
		for _, m := range magnetometers {
			found = append(found, m)
			b.closers = append(b.closers, m.Close)
		}
	}
	if cfg.TracePath != "" && (cfg.Source == config.SourceAuto || cfg.Source == config.SourceTrace) {
		s, err := trace.Open(ctx, cfg.TracePath, cfg.DefaultMaxRange)
		if err != nil {
			return nil, err
		}
		found = append(found, s)
	}
	return found, nil
}

// Close releases the sensors' device files.
func (b Bundle) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
