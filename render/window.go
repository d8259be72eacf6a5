package render

import (
	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/pipeline"
)

// Window is a pipeline Sink showing the Dashboard in a desktop window and
// feeding key presses back to it
type Window struct {
	dash   *Dashboard
	window *gocv.Window
	// delay in milliseconds passed to WaitKey
	delay int
}

// NewWindow opens a named window for the dashboard
func NewWindow(title string, dash *Dashboard) *Window {
	return &Window{
		dash:   dash,
		window: gocv.NewWindow(title),
		delay:  1,
	}
}

// Render composes and shows the dashboard, returning pipeline.ErrStop when
// the quit key is pressed or the window has been closed
func (w *Window) Render(res pipeline.FrameResult) error {

	canvas := w.dash.Compose(res)
	w.window.IMShow(canvas)

	key := w.window.WaitKey(w.delay)

	if w.dash.HandleKey(key) == ActionQuit {
		return pipeline.ErrStop
	}

	if !w.window.IsOpen() {
		return pipeline.ErrStop
	}

	return nil
}

// Close destroys the window
func (w *Window) Close() error {
	return w.window.Close()
}
