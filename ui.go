package main

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/component"
	"git.sr.ht/~gioverse/skel/stream"
	"golang.org/x/exp/shiny/materialdesign/icons"

	"git.sr.ht/~whereswaldon/metal-detector/backend"
	"git.sr.ht/~whereswaldon/metal-detector/detector"
	"git.sr.ht/~whereswaldon/metal-detector/intent"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

var logIcon = func() *widget.Icon {
	icon, _ := widget.NewIcon(icons.ContentCreate)
	return icon
}()

// menuAction is a menu item rendered as an action bar button.
type menuAction struct {
	item detector.MenuItem
	btn  widget.Clickable
}

// UI is responsible for holding the state of and drawing the detector screen.
type UI struct {
	ws     backend.WindowState
	screen *detector.Controller
	gauge  *detector.Gauge

	th           *material.Theme
	actions      []*menuAction
	statusStream *stream.Stream[intent.Status]
	status       intent.Status
}

func NewUI(ws backend.WindowState, screen *detector.Controller, gauge *detector.Gauge) *UI {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()), text.NoSystemFonts())
	ui := &UI{
		ws:           ws,
		screen:       screen,
		gauge:        gauge,
		th:           th,
		statusStream: stream.New(ws.Controller, ws.Launcher.Status),
	}
	for _, item := range screen.Menu() {
		if item.ShowAs == detector.ShowNever {
			continue
		}
		ui.actions = append(ui.actions, &menuAction{item: item})
	}
	return ui
}

// Update processes input and stream values for this frame.
func (ui *UI) Update(gtx C) {
	ui.statusStream.ReadInto(gtx, &ui.status, intent.Status{})
	for _, a := range ui.actions {
		if a.btn.Clicked(gtx) {
			ui.screen.OnMenuItemClick(a.item)
		}
	}
}

func (ui *UI) layoutActionBar(gtx C) D {
	return layout.Background{}.Layout(gtx,
		func(gtx C) D {
			return component.Rect{Color: ui.th.ContrastBg, Size: gtx.Constraints.Min}.Layout(gtx)
		},
		func(gtx C) D {
			children := []layout.FlexChild{
				layout.Flexed(1, func(gtx C) D {
					title := material.H6(ui.th, detector.TaskName)
					title.Color = ui.th.ContrastFg
					return layout.UniformInset(12).Layout(gtx, title.Layout)
				}),
			}
			// Items that only want room are hidden on very narrow windows.
			roomy := gtx.Constraints.Max.X >= gtx.Dp(unit.Dp(240))
			for _, a := range ui.actions {
				if a.item.ShowAs == detector.ShowIfRoom && !roomy {
					continue
				}
				a := a
				children = append(children, layout.Rigid(func(gtx C) D {
					btn := material.IconButton(ui.th, &a.btn, logIcon, a.item.Label)
					btn.Background = ui.th.ContrastBg
					btn.Color = ui.th.ContrastFg
					return btn.Layout(gtx)
				}))
			}
			return layout.Flex{Alignment: layout.Middle}.Layout(gtx, children...)
		},
	)
}

func (ui *UI) statusText() string {
	switch {
	case ui.status.Pending > 0:
		return "Waiting for the QR code scanner..."
	case ui.status.Action != "":
		return fmt.Sprintf("Last started %s", ui.status.Action)
	default:
		return ""
	}
}

func (ui *UI) layoutGauge(gtx C) D {
	sensor := ui.screen.Sensor()
	return layout.UniformInset(16).Layout(gtx, func(gtx C) D {
		return layout.Flex{
			Axis:    layout.Vertical,
			Spacing: layout.SpaceEnd,
		}.Layout(gtx,
			layout.Rigid(material.Body2(ui.th, sensor.Name()).Layout),
			layout.Rigid(layout.Spacer{Height: 8}.Layout),
			layout.Rigid(func(gtx C) D {
				return material.ProgressBar(ui.th, ui.gauge.Fraction()).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: 8}.Layout),
			layout.Rigid(func(gtx C) D {
				readout := fmt.Sprintf("%d / %d %s", ui.gauge.Progress(), ui.gauge.Max(), sensor.Unit())
				l := material.H4(ui.th, readout)
				l.Alignment = text.Middle
				return l.Layout(gtx)
			}),
			layout.Rigid(func(gtx C) D {
				if ui.screen.Visible() {
					return D{}
				}
				l := material.Body2(ui.th, "Not receiving readings.")
				l.Color = color.NRGBA{R: 150, A: 255}
				return l.Layout(gtx)
			}),
		)
	})
}

// Layout the UI into the provided context.
func (ui *UI) Layout(gtx C) D {
	ui.Update(gtx)
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(ui.layoutActionBar),
		layout.Flexed(1, ui.layoutGauge),
		layout.Rigid(func(gtx C) D {
			status := ui.statusText()
			if status == "" {
				return D{}
			}
			gtx.Constraints.Min = image.Point{}
			return layout.UniformInset(8).Layout(gtx, material.Caption(ui.th, status).Layout)
		}),
	)
}
