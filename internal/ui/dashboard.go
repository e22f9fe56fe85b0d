package ui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/i474232898/ambient-display/internal/display"
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorAqua
	uiTextColor   = tcell.ColorWhite
	uiMutedColor  = tcell.ColorSilver
)

// TelemetryPane names one telemetry reading and the title shown above it.
type TelemetryPane struct {
	Name  string
	Title string
}

// Dashboard is the terminal render surface. Publish is safe for concurrent use
// and never blocks on drawing; updates are applied on the next frame.
type Dashboard struct {
	app    *tview.Application
	frames *frameScheduler

	views map[display.Field]*tview.TextView
	// single-line fields are truncated to the pane width
	singleLine map[display.Field]bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewDashboard builds the layout: weather across the top, the news ticker in
// the middle, telemetry below it and the status line and clock at the bottom.
func NewDashboard(telemetry []TelemetryPane) *Dashboard {
	app := tview.NewApplication()
	d := &Dashboard{
		app:        app,
		views:      make(map[display.Field]*tview.TextView),
		singleLine: make(map[display.Field]bool),
		ready:      make(chan struct{}),
	}
	d.frames = newFrameScheduler(app, 20, 200*time.Millisecond)

	weatherRow := tview.NewFlex().
		AddItem(d.boxed(display.FieldWeatherTemp, "Now"), 0, 1, false).
		AddItem(d.boxed(display.FieldWeatherFeelsLike, "Feels like"), 0, 1, false).
		AddItem(d.boxed(display.FieldWeatherDescription, "Sky"), 0, 2, false).
		AddItem(d.boxed(display.FieldWeatherHiLo, "Hi/Lo"), 0, 1, false).
		AddItem(d.boxed(display.FieldWeatherSun, "Sunrise/Sunset"), 0, 1, false).
		AddItem(d.boxed(display.FieldWeatherPrecip, "Rain 1h"), 0, 1, false)

	headline := d.view(display.FieldNewsHeadline, false)
	headline.SetWrap(true).SetWordWrap(true).SetTextAlign(tview.AlignCenter)
	headline.SetBorder(true).SetBorderColor(uiBorderColor)
	headline.SetTitle(" News ").SetTitleColor(uiTitleColor).SetTitleAlign(tview.AlignLeft)

	meta := d.view(display.FieldNewsMeta, true)
	meta.SetTextAlign(tview.AlignCenter).SetTextColor(uiMutedColor)

	telemetryRow := tview.NewFlex()
	for _, pane := range telemetry {
		title := pane.Title
		if title == "" {
			title = pane.Name
		}
		telemetryRow.AddItem(d.boxed(display.TelemetryField(pane.Name), title), 0, 1, false)
	}

	status := d.view(display.FieldStatus, true)
	status.SetTextColor(uiMutedColor)
	clock := d.view(display.FieldClock, true)
	clock.SetTextAlign(tview.AlignRight)

	footer := tview.NewFlex().
		AddItem(status, 0, 3, false).
		AddItem(clock, 10, 0, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(weatherRow, 3, 0, false).
		AddItem(headline, 0, 1, false).
		AddItem(meta, 1, 0, false)
	if len(telemetry) > 0 {
		root.AddItem(telemetryRow, 3, 0, false)
	}
	root.AddItem(footer, 1, 0, false)

	app.SetRoot(root, true)
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		d.readyOnce.Do(func() { close(d.ready) })
		return false
	})
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Rune() == 'q' || event.Rune() == 'Q' {
			app.Stop()
			return nil
		}
		return event
	})
	return d
}

func (d *Dashboard) view(field display.Field, singleLine bool) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(!singleLine)
	tv.SetTextColor(uiTextColor)
	d.views[field] = tv
	d.singleLine[field] = singleLine
	return tv
}

func (d *Dashboard) boxed(field display.Field, title string) *tview.TextView {
	tv := d.view(field, true)
	tv.SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetBorderColor(uiBorderColor)
	tv.SetTitle(" " + title + " ").SetTitleColor(uiTitleColor).SetTitleAlign(tview.AlignLeft)
	return tv
}

// Publish queues text for field. Unknown fields are ignored.
func (d *Dashboard) Publish(field display.Field, text string) {
	tv, ok := d.views[field]
	if !ok {
		return
	}
	single := d.singleLine[field]
	d.frames.Schedule(string(field), func() {
		if single {
			text = fitWidth(tv, text)
		}
		tv.SetText(tview.Escape(text))
	})
}

// fitWidth truncates a single-line value to the pane's inner width.
func fitWidth(tv *tview.TextView, text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	_, _, width, _ := tv.GetInnerRect()
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

// Run draws until ctx is cancelled or the operator quits (q, Esc or Ctrl-C).
func (d *Dashboard) Run(ctx context.Context) error {
	d.frames.Start()
	defer d.frames.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			d.app.Stop()
		case <-stop:
		}
	}()

	return d.app.Run()
}

// WaitReady blocks until the first frame has been drawn.
func (d *Dashboard) WaitReady() {
	<-d.ready
}
