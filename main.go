package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"sync/atomic"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"

	"git.sr.ht/~whereswaldon/metal-detector/backend"
	"git.sr.ht/~whereswaldon/metal-detector/config"
	"git.sr.ht/~whereswaldon/metal-detector/detector"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sensors are resolved before the window exists so that a missing
	// magnetometer never shows an unusable screen.
	var window atomic.Pointer[app.Window]
	bundle, err := backend.NewBundle(ctx, cfg, func() {
		if w := window.Load(); w != nil {
			w.Invalidate()
		}
	})
	if err != nil {
		log.Fatalf("failed loading sensors: %v", err)
	}
	gauge := &detector.Gauge{}
	screen := detector.New(bundle.Sensors, bundle.Launcher, gauge)
	if err := screen.Create(); err != nil {
		log.Fatalf("metal detector unavailable: %v", err)
	}

	w := app.NewWindow(app.Title(detector.TaskName), app.Size(unit.Dp(360), unit.Dp(480)))
	window.Store(w)
	ws := backend.NewWindowState(ctx, bundle, w)
	go func() {
		err := loop(w, NewUI(ws, screen, gauge))
		cancel()
		bundle.Launcher.Wait()
		if err := bundle.Close(); err != nil {
			log.Printf("failed closing sensors: %v", err)
		}
		if err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

// loop runs the window's event loop. The screen counts as visible while the
// window produces frames, and as hidden once it is minimized or destroyed.
func loop(w *app.Window, ui *UI) error {
	var ops op.Ops
	vis := &visibility{screen: ui.screen}
	for {
		switch ev := w.NextEvent().(type) {
		case app.DestroyEvent:
			vis.Destroyed()
			return ev.Err
		case app.ConfigEvent:
			vis.Configured(ev.Config.Mode)
		case app.FrameEvent:
			vis.Framed()
			ui.ws.Looper.Drain()
			gtx := app.NewContext(&ops, ev)
			ui.Layout(gtx)
			ev.Frame(gtx.Ops)
		}
	}
}
