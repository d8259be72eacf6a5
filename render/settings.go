package render

import (
	"fmt"
	"image"
	"math"
	"slices"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/config"
)

// ModelSwitcher changes the detector model while the pipeline is running
type ModelSwitcher interface {
	// Models lists the selectable detector model names
	Models() []string
	// Switch loads the named model and hands it to the pipeline
	Switch(name string) error
}

type settingsItem int

const (
	settingModel settingsItem = iota
	settingFPS
	settingConf
	settingTarget
	settingCount
)

var settingNames = [settingCount]string{"Model", "FPS", "Conf", "Target"}

// fpsSteps are the processing rates the FPS setting cycles through
var fpsSteps = []int{3, 5, 10, 15, 30}

const (
	confStep = 0.1
	confMin  = 0.1
	confMax  = 0.9
)

// settingsOrigin is the top left corner of the settings overlay
var settingsOrigin = image.Pt(20, 60)

const (
	settingsWidth = 300
	settingsRowH  = 35
)

// settingsMenu is the overlay for changing the model, processing rate,
// confidence threshold and target class while the pipeline runs
type settingsMenu struct {
	live     *config.Live
	models   ModelSwitcher
	classes  []string
	onClose  func(config.Detection)
	visible  bool
	selected settingsItem
	// err is the last failed change, shown until the next change
	err string
}

// toggle shows or hides the menu, closing it hands the settings to onClose
func (m *settingsMenu) toggle() {

	m.visible = !m.visible

	if !m.visible && m.onClose != nil {
		m.onClose(m.live.Detection())
	}
}

func (m *settingsMenu) navigate(dir int) {
	m.selected = settingsItem(wrapIndex(int(m.selected)+dir, int(settingCount)))
}

// change steps the selected setting by dir, which is -1 or 1
func (m *settingsMenu) change(dir int) {

	m.err = ""

	var err error

	switch m.selected {
	case settingModel:
		err = m.stepModel(dir)
	case settingFPS:
		err = m.stepFPS(dir)
	case settingConf:
		err = m.stepConf(dir)
	case settingTarget:
		m.stepTarget(dir)
	}

	if err != nil {
		m.err = err.Error()
	}
}

func (m *settingsMenu) stepModel(dir int) error {

	if m.models == nil {
		return nil
	}

	names := m.models.Models()

	if len(names) == 0 {
		return nil
	}

	det := m.live.Detection()

	idx := slices.Index(names, det.ModelName)
	if idx < 0 {
		idx = 0
	}

	next := names[wrapIndex(idx+dir, len(names))]

	if next == det.ModelName {
		return nil
	}

	if err := m.models.Switch(next); err != nil {
		return err
	}

	det.ModelName = next

	return m.live.Update(det)
}

func (m *settingsMenu) stepFPS(dir int) error {

	det := m.live.Detection()

	idx := slices.Index(fpsSteps, det.FramesPerSecond)
	if idx < 0 {
		idx = 1
	}

	det.FramesPerSecond = fpsSteps[wrapIndex(idx+dir, len(fpsSteps))]

	return m.live.Update(det)
}

func (m *settingsMenu) stepConf(dir int) error {

	det := m.live.Detection()

	conf := math.Round((det.ConfThreshold+float64(dir)*confStep)*10) / 10
	det.ConfThreshold = math.Max(confMin, math.Min(confMax, conf))

	return m.live.Update(det)
}

// stepTarget cycles a single target class through the class list, with
// "All" (an empty target list) before the first class
func (m *settingsMenu) stepTarget(dir int) {

	if len(m.classes) == 0 {
		return
	}

	// position 0 is All, class i is at position i+1
	pos := 0

	if targets := m.live.Detection().TargetClasses; len(targets) > 0 {
		pos = slices.Index(m.classes, targets[0]) + 1
	}

	pos = wrapIndex(pos+dir, len(m.classes)+1)

	if pos == 0 {
		m.live.SetTargetClasses(nil)
		return
	}

	m.live.SetTargetClasses([]string{m.classes[pos-1]})
}

// value returns the display text of a setting
func (m *settingsMenu) value(item settingsItem, det config.Detection) string {

	switch item {
	case settingModel:
		return det.ModelName
	case settingFPS:
		return fmt.Sprintf("%d", det.FramesPerSecond)
	case settingConf:
		return fmt.Sprintf("%.1f", det.ConfThreshold)
	case settingTarget:
		if len(det.TargetClasses) == 0 {
			return "All"
		}
		return det.TargetClasses[0]
	}

	return ""
}

// draw renders the menu over a darkened region of img
func (m *settingsMenu) draw(img *gocv.Mat) {

	if !m.visible {
		return
	}

	rows := int(settingCount)
	if m.err != "" {
		rows++
	}

	rect := image.Rect(settingsOrigin.X, settingsOrigin.Y,
		settingsOrigin.X+settingsWidth, settingsOrigin.Y+30+rows*settingsRowH+25)
	rect = rect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if rect.Empty() {
		return
	}

	region := img.Region(rect)
	shade := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0),
		rect.Dy(), rect.Dx(), img.Type())
	gocv.AddWeighted(shade, 0.85, region, 0.15, 0, &region)
	shade.Close()
	region.Close()

	x, y := rect.Min.X+10, rect.Min.Y+25

	Ink{Scale: 0.55, Color: White}.Draw(img, "SETTINGS (M to close)", x, y)

	det := m.live.Detection()

	for i := settingsItem(0); i < settingCount; i++ {
		y += settingsRowH

		ink := Ink{Scale: 0.5, Color: Text}
		prefix := "  "

		if i == m.selected {
			ink.Color = Yellow
			prefix = "> "
		}

		ink.Draw(img, fmt.Sprintf("%s%s: %s", prefix, settingNames[i], m.value(i, det)), x, y)
	}

	if m.err != "" {
		y += settingsRowH
		Ink{Scale: 0.4, Color: Warning}.Draw(img, m.err, x, y)
	}

	Ink{Scale: 0.4, Color: Inactive}.Draw(img, "W/S: Select  A/D: Change", x, rect.Max.Y-10)
}

// wrapIndex returns i modulo n in the range [0, n)
func wrapIndex(i, n int) int {
	return ((i % n) + n) % n
}
