package render

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/pipeline"
	"github.com/roadsight/signtrack/roi"
	"github.com/roadsight/signtrack/tracker"
)

const (
	// DashboardWidth and DashboardHeight are the canvas dimensions
	DashboardWidth  = 1280
	DashboardHeight = 720
)

// panel rectangles of the dashboard layout
var (
	cameraRect  = image.Rect(20, 20, 420, 320)
	classRect   = image.Rect(450, 20, 800, 420)
	resultRect  = image.Rect(450, 440, 800, 690)
	statsRect   = image.Rect(820, 20, 1060, 170)
	classLineH  = 25
	resultLineH = 35
)

// Action is the outcome of a key press on the dashboard
type Action int

const (
	// ActionNone means the key is not bound
	ActionNone Action = iota
	// ActionNavigate moved the class selection cursor
	ActionNavigate
	// ActionToggle toggled the selected class
	ActionToggle
	// ActionQuit requests the frame loop to stop
	ActionQuit
	// ActionSettings opened, closed or changed the settings overlay
	ActionSettings
)

// DashboardOptions are the parameters used to construct a Dashboard
type DashboardOptions struct {
	// Live holds the class filter the dashboard toggles, required
	Live *config.Live
	// Classes are the names listed in the class panel, defaults to the
	// target classes of Live
	Classes []string
	// Region is drawn on the camera panel when set
	Region *roi.Region
	// Trail keeps the movement history of signs, optional
	Trail *tracker.Trail
	// Budget is the per frame processing time above which the stats are
	// shown in the warning color
	Budget time.Duration
	// Models switches the detector from the settings overlay, optional
	Models ModelSwitcher
	// OnSettingsClose receives the detection settings when the settings
	// overlay is closed, optional
	OnSettingsClose func(config.Detection)
}

// Dashboard composes the camera view, class filter, sign results and
// processing statistics onto a single canvas
type Dashboard struct {
	live     *config.Live
	classes  []string
	selected int
	region   *roi.Region
	trail    *tracker.Trail
	budget   time.Duration
	settings settingsMenu
	text     *TextRenderer
	resizer  *Resizer
	canvas   gocv.Mat
	camera   gocv.Mat
}

// NewDashboard returns a new Dashboard
func NewDashboard(opts DashboardOptions) (*Dashboard, error) {

	text, err := NewTextRenderer(24)

	if err != nil {
		return nil, err
	}

	classes := opts.Classes

	if len(classes) == 0 {
		classes = opts.Live.Detection().TargetClasses
	}

	classes = append([]string(nil), classes...)

	return &Dashboard{
		live:    opts.Live,
		classes: classes,
		region:  opts.Region,
		trail:   opts.Trail,
		budget:  opts.Budget,
		settings: settingsMenu{
			live:    opts.Live,
			models:  opts.Models,
			classes: classes,
			onClose: opts.OnSettingsClose,
		},
		text:   text,
		canvas: gocv.NewMatWithSize(DashboardHeight, DashboardWidth, gocv.MatTypeCV8UC3),
		camera: gocv.NewMat(),
	}, nil
}

// Close frees the canvas memory
func (d *Dashboard) Close() error {

	if d.resizer != nil {
		d.resizer.Close()
	}

	d.camera.Close()

	return d.canvas.Close()
}

// Selected returns the class name under the selection cursor
func (d *Dashboard) Selected() string {

	if len(d.classes) == 0 {
		return ""
	}

	return d.classes[d.selected]
}

// HandleKey applies a key code as returned by gocv WaitKey
func (d *Dashboard) HandleKey(key int) Action {

	switch key {
	case 'q', 'Q', 27:
		return ActionQuit

	case 'm', 'M':
		d.settings.toggle()
		return ActionSettings
	}

	// the settings overlay takes the navigation keys while shown
	if d.settings.visible {
		return d.handleSettingsKey(key)
	}

	if len(d.classes) == 0 {
		return ActionNone
	}

	switch key {
	case 'w', 'W', 82, 65362:
		d.selected = (d.selected - 1 + len(d.classes)) % len(d.classes)
		return ActionNavigate

	case 's', 'S', 84, 65364:
		d.selected = (d.selected + 1) % len(d.classes)
		return ActionNavigate

	case ' ', 13, 10:
		d.live.ToggleClass(d.classes[d.selected])
		return ActionToggle
	}

	return ActionNone
}

func (d *Dashboard) handleSettingsKey(key int) Action {

	switch key {
	case 'w', 'W', 82, 65362:
		d.settings.navigate(-1)

	case 's', 'S', 84, 65364:
		d.settings.navigate(1)

	case 'a', 'A', 81, 65361:
		d.settings.change(-1)

	case 'd', 'D', 83, 65363:
		d.settings.change(1)

	default:
		return ActionNone
	}

	return ActionSettings
}

// Compose draws the dashboard for the frame result and returns the canvas.
// The returned Mat is owned by the Dashboard and overwritten by the next
// call.
func (d *Dashboard) Compose(res pipeline.FrameResult) gocv.Mat {

	if d.trail != nil {
		d.trail.Update(res.Active)
	}

	d.canvas.SetTo(gocv.NewScalar(float64(Background.B), float64(Background.G),
		float64(Background.R), 0))

	d.drawCamera(res)
	d.drawClasses()
	d.drawResults(res.Results, res.Progress)
	d.drawStats(res)

	Ink{Scale: 0.45, Color: Inactive}.Draw(&d.canvas,
		"W/S: Navigate  SPACE: Toggle class  M: Settings  Q: Quit", 20, DashboardHeight-40)

	d.settings.draw(&d.canvas)

	return d.canvas
}

func (d *Dashboard) drawCamera(res pipeline.FrameResult) {

	gocv.Rectangle(&d.canvas, cameraRect.Inset(-2), Accent, 2)
	Ink{Scale: 0.5, Color: Text}.Draw(&d.canvas, "CAMERA", cameraRect.Min.X, cameraRect.Max.Y+20)

	if res.Image.Empty() {
		return
	}

	cols, rows := res.Image.Cols(), res.Image.Rows()

	// frame size only changes when the source is switched
	if d.resizer == nil || !d.resizer.Matches(cols, rows) {
		if d.resizer != nil {
			d.resizer.Close()
		}
		d.resizer = NewResizer(cols, rows, cameraRect.Dx(), cameraRect.Dy())
	}

	d.resizer.LetterBoxResize(res.Image, &d.camera, Black)

	if d.region != nil {
		var poly []image.Point

		for _, p := range d.region.Polygon() {
			q := d.resizer.Point(p)
			poly = append(poly, image.Pt(q.X, q.Y))
		}

		pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
		gocv.Polylines(&d.camera, pv, true, Yellow, 1)
		pv.Close()
	}

	DetectionBoxes(&d.camera, res.Detections, d.resizer.Box, Ink{Scale: 0.4, Color: Black}, 2)
	Trail(&d.camera, res.Active, d.trail, d.resizer.Point, DefaultTrailStyle())

	region := d.canvas.Region(cameraRect)
	d.camera.CopyTo(&region)
	region.Close()
}

func (d *Dashboard) drawClasses() {

	x, y := classRect.Min.X, classRect.Min.Y

	gocv.Rectangle(&d.canvas, classRect, Panel, -1)
	gocv.Rectangle(&d.canvas, classRect, Accent, 1)
	Ink{Scale: 0.6, Color: Accent}.Draw(&d.canvas, "DETECT CLASSES", x+10, y+25)
	Ink{Scale: 0.35, Color: Inactive}.Draw(&d.canvas, "(Filter which classes to show)", x+10, y+45)

	// scroll so the selected class is always visible
	visible := (classRect.Dy() - 90) / classLineH
	first := 0

	if d.selected >= visible {
		first = d.selected - visible + 1
	}

	for i := first; i < len(d.classes) && i < first+visible; i++ {
		name := d.classes[i]
		ty := y + 70 + (i-first)*classLineH

		active := d.live.ClassActive(name)
		selected := i == d.selected

		if selected {
			gocv.Rectangle(&d.canvas, image.Rect(x+5, ty-15, classRect.Max.X-5, ty+8), Selected, -1)
		}

		indicator := "[ ]"
		clr := Inactive

		if active {
			indicator = "[X]"
			clr = Active
		}

		prefix := "  "

		if selected {
			prefix = "> "
		}

		Ink{Scale: 0.45, Color: clr}.Draw(&d.canvas, prefix+indicator+" "+name, x+10, ty)
	}
}

func (d *Dashboard) drawResults(results, progress []string) {

	x, y := resultRect.Min.X, resultRect.Min.Y

	gocv.Rectangle(&d.canvas, resultRect, Panel, -1)
	gocv.Rectangle(&d.canvas, resultRect, Accent, 1)
	Ink{Scale: 0.5, Color: Accent}.Draw(&d.canvas, "CLASSIFICATION RESULTS", x+10, y+25)

	// keep the most recent results that fit, leaving room for voting lines
	room := (resultRect.Dy() - 60) / resultLineH

	if len(progress) > 0 {
		room -= 2
	}

	if room < 1 {
		room = 1
	}

	if len(results) > room {
		results = results[len(results)-room:]
	}

	ty := y + 55

	for _, res := range results {
		// fall back to the Hershey font if TrueType rendering fails
		if err := d.text.Draw(&d.canvas, res, x+20, ty, Active); err != nil {
			Ink{Scale: 0.8, Color: Active}.Draw(&d.canvas, res, x+20, ty)
		}
		ty += resultLineH
	}

	if len(progress) == 0 {
		return
	}

	Ink{Scale: 0.5, Color: Text}.Draw(&d.canvas, "Voting:", x+20, ty)
	ty += 25

	for _, prog := range progress {
		if ty > resultRect.Max.Y-10 {
			break
		}
		Ink{Scale: 0.45, Color: Inactive}.Draw(&d.canvas, "  "+prog, x+20, ty)
		ty += 20
	}
}

func (d *Dashboard) drawStats(res pipeline.FrameResult) {

	x, y := statsRect.Min.X, statsRect.Min.Y

	gocv.Rectangle(&d.canvas, statsRect, Panel, -1)
	gocv.Rectangle(&d.canvas, statsRect, Accent, 1)
	Ink{Scale: 0.5, Color: Accent}.Draw(&d.canvas, "STATS", x+10, y+25)

	timeClr := Text

	if d.budget > 0 && res.Elapsed > d.budget {
		timeClr = Warning
	}

	Ink{Scale: 0.45, Color: timeClr}.Draw(&d.canvas, fmt.Sprintf("Time: %.0fms", ms(res.Elapsed)), x+10, y+50)
	Ink{Scale: 0.45, Color: Text}.Draw(&d.canvas, fmt.Sprintf("Detections: %d", len(res.Detections)), x+10, y+75)
	Ink{Scale: 0.45, Color: Text}.Draw(&d.canvas, fmt.Sprintf("Avg: %.1fms  P95: %.1fms",
		ms(res.Stats.Average), ms(res.Stats.P95)), x+10, y+100)
	Ink{Scale: 0.45, Color: Text}.Draw(&d.canvas, fmt.Sprintf("Frame: %d  Signs: %d",
		res.Index, len(res.Active)), x+10, y+125)
}
