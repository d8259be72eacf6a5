package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/timeutil"
)

// fakeDetector returns the same detections for every frame
type fakeDetector struct {
	dets  []signtrack.Detection
	calls int
	conf  float32
	size  int
}

func (d *fakeDetector) Detect(img gocv.Mat, conf float32, size int) []signtrack.Detection {
	d.calls++
	d.conf = conf
	d.size = size
	out := make([]signtrack.Detection, len(d.dets))
	copy(out, d.dets)
	return out
}

type classification struct {
	label string
	conf  float32
}

// scriptedClassifier returns its script in order, repeating the last entry
type scriptedClassifier struct {
	script []classification
	loaded bool
	calls  int
	boxes  []signtrack.Box
}

func (c *scriptedClassifier) Loaded() bool {
	return c.loaded
}

func (c *scriptedClassifier) ClassifyCrop(img gocv.Mat, box signtrack.Box) (string, float32) {
	c.boxes = append(c.boxes, box)
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	return c.script[i].label, c.script[i].conf
}

type staticSettings struct {
	det config.Detection
}

func (s *staticSettings) Detection() config.Detection {
	return s.det
}

// rightHalf only contains points with x >= 320
type rightHalf struct{}

func (rightHalf) Contains(pt signtrack.Point) bool {
	return pt.X >= 320
}

func newFrame(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return img
}

func settings(classes ...string) *staticSettings {
	det := config.Default().Detection
	det.TargetClasses = classes
	return &staticSettings{det: det}
}

func detection(label string, x1, y1, x2, y2 int, conf float32) signtrack.Detection {
	return signtrack.Detection{Box: signtrack.NewBox(x1, y1, x2, y2), Label: label, Confidence: conf}
}

// votes returns the labels voted on the only active sign
func votes(t *testing.T, coord *Coordinator) []string {
	t.Helper()
	active := coord.Registry().Active()
	require.Len(t, active, 1)
	sign, ok := coord.Registry().Get(active[0].ID)
	require.True(t, ok)
	return sign.Votes()
}

func newTestCoordinator(det Detector, cls Classifier, set SettingsProvider) (*Coordinator, *timeutil.MockClock) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	return NewCoordinator(Options{
		Detector:   det,
		Classifier: cls,
		Settings:   set,
		Clock:      clk,
	}), clk
}

func TestProcessFrameInstantClassificationFinalizes(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 10, 10, 50, 50, 0.8)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{
		{"P.127-50", 0.95},
		{"", 0},
	}}

	coord, clk := newTestCoordinator(det, cls, settings("P.127"))

	dets, _ := coord.ProcessFrame(frame)
	require.Len(t, dets, 1)
	assert.Equal(t, "P.127-50", dets[0].Label, "detection relabeled by classifier")
	assert.InDelta(t, 0.95, dets[0].Confidence, 1e-6)
	assert.Equal(t, []string{"P.127-50"}, coord.Registry().Results(), "finalized after the first frame")

	for i := 0; i < 4; i++ {
		clk.Advance(200 * time.Millisecond)
		dets, _ = coord.ProcessFrame(frame)
		require.Len(t, dets, 1)
		assert.Equal(t, "P.127", dets[0].Label, "declined classification keeps the detector label")
	}

	assert.Equal(t, 1, coord.Registry().Len())
	assert.Equal(t, []string{"P.127-50"}, coord.Registry().Results())
	assert.Empty(t, coord.Registry().ProgressList())
	assert.Equal(t, 5, cls.calls)

	assert.Equal(t, []string{"P.127-50"}, votes(t, coord), "declined classifications cast no vote")
}

func TestProcessFrameAcceptedClassificationNeedsVotes(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 100, 100, 140, 140, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{{"P.127-30", 0.6}}}

	coord, _ := newTestCoordinator(det, cls, settings("P.127"))

	for i := 0; i < 4; i++ {
		coord.ProcessFrame(frame)
	}

	assert.Empty(t, coord.Registry().Results())
	assert.Equal(t, []string{"4/5"}, coord.Registry().ProgressList())

	coord.ProcessFrame(frame)
	assert.Equal(t, []string{"P.127-30"}, coord.Registry().Results())
}

func TestProcessFrameLowConfidenceClassificationCastsNoVote(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 100, 100, 140, 140, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{{"P.127-30", 0.3}}}

	coord, _ := newTestCoordinator(det, cls, settings("P.127"))

	dets, _ := coord.ProcessFrame(frame)
	require.Len(t, dets, 1)
	assert.Equal(t, "P.127", dets[0].Label)
	assert.InDelta(t, 0.7, dets[0].Confidence, 1e-6)
	assert.Equal(t, 0, coord.Registry().Len())
}

func TestProcessFrameWithoutClassifierVotesDetectorLabel(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 100, 100, 140, 140, 0.7)}}

	for name, cls := range map[string]Classifier{
		"nil":      nil,
		"unloaded": &scriptedClassifier{script: []classification{{"P.127-50", 0.99}}},
	} {
		t.Run(name, func(t *testing.T) {
			coord, _ := newTestCoordinator(det, cls, settings())

			coord.ProcessFrame(frame)

			require.Equal(t, 1, coord.Registry().Len())
			assert.Equal(t, []string{"P.127"}, votes(t, coord))
		})
	}
}

func TestProcessFrameNonTriggerClassSkipsClassifier(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("W.201", 100, 100, 140, 140, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{{"P.127-50", 0.99}}}

	coord, _ := newTestCoordinator(det, cls, settings())

	coord.ProcessFrame(frame)

	assert.Equal(t, 0, cls.calls)
	assert.Equal(t, []string{"1/5"}, coord.Registry().ProgressList())
}

func TestProcessFrameEmptyCropVotesDetectorLabel(t *testing.T) {
	frame := newFrame(t)

	// box lies entirely right of the 640 pixel wide frame
	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 700, 10, 760, 50, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{{"P.127-50", 0.99}}}

	coord, _ := newTestCoordinator(det, cls, settings())

	coord.ProcessFrame(frame)

	assert.Equal(t, 0, cls.calls, "classifier not called for an empty crop")
	require.Equal(t, 1, coord.Registry().Len())
	assert.Equal(t, []string{"P.127"}, votes(t, coord))
}

func TestProcessFrameCropIsClampedToFrame(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", -10, 450, 40, 500, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{{"P.127-50", 0.99}}}

	coord, _ := newTestCoordinator(det, cls, settings())

	coord.ProcessFrame(frame)

	require.Len(t, cls.boxes, 1)
	assert.Equal(t, signtrack.NewBox(0, 450, 40, 480), cls.boxes[0])
}

func TestProcessFrameFiltersClasses(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{
		detection("P.127", 100, 100, 140, 140, 0.7),
		detection("W.201", 400, 100, 440, 140, 0.7),
		detection("P.102", 100, 400, 140, 440, 0.7),
	}}

	tests := []struct {
		name    string
		target  []string
		exclude []string
		want    []string
	}{
		{"allow list", []string{"P.127"}, nil, []string{"P.127"}},
		{"empty list passes all", nil, nil, []string{"P.127", "W.201", "P.102"}},
		{"exclude", nil, []string{"W.201"}, []string{"P.127", "P.102"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := settings(tc.target...)
			set.det.ExcludeClasses = tc.exclude

			coord, _ := newTestCoordinator(det, nil, set)
			dets, _ := coord.ProcessFrame(frame)

			var labels []string
			for _, d := range dets {
				labels = append(labels, d.Label)
			}

			assert.Equal(t, tc.want, labels)
			assert.Equal(t, len(tc.want), coord.Registry().Len())
		})
	}
}

func TestProcessFrameRegionGate(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{
		detection("P.127", 100, 100, 140, 140, 0.7),
		detection("P.127", 400, 100, 440, 140, 0.7),
	}}

	clk := timeutil.NewMockClock(time.Unix(0, 0))
	coord := NewCoordinator(Options{
		Detector: det,
		Settings: settings(),
		Region:   rightHalf{},
		Clock:    clk,
	})

	dets, _ := coord.ProcessFrame(frame)

	require.Len(t, dets, 1)
	assert.Equal(t, 400, dets[0].Box.X1)
}

func TestProcessFrameRereadsSettings(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("W.201", 100, 100, 140, 140, 0.7)}}
	set := settings("P.127")

	coord, _ := newTestCoordinator(det, nil, set)

	dets, _ := coord.ProcessFrame(frame)
	assert.Empty(t, dets)
	assert.InDelta(t, 0.5, det.conf, 1e-6)
	assert.Equal(t, 320, det.size)

	set.det.TargetClasses = []string{"W.201"}
	set.det.ConfThreshold = 0.25

	dets, _ = coord.ProcessFrame(frame)
	assert.Len(t, dets, 1)
	assert.InDelta(t, 0.25, det.conf, 1e-6)
}

func TestProcessFrameCleansUpStaleTrackers(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("W.201", 100, 100, 140, 140, 0.7)}}
	coord, clk := newTestCoordinator(det, nil, settings())

	coord.ProcessFrame(frame)
	require.Equal(t, 1, coord.Registry().Len())

	// sign leaves the view
	det.dets = nil
	clk.Advance(2100 * time.Millisecond)
	coord.ProcessFrame(frame)

	assert.Equal(t, 0, coord.Registry().Len())
}

func TestProcessFrameRecordsElapsed(t *testing.T) {
	frame := newFrame(t)

	coord, _ := newTestCoordinator(&fakeDetector{}, nil, settings())

	_, elapsed := coord.ProcessFrame(frame)
	assert.Equal(t, time.Duration(0), elapsed, "mock clock does not advance during processing")
	assert.Equal(t, 1, coord.Stats().Frames)

	coord.Reset()
	assert.Equal(t, 0, coord.Stats().Frames)
}

func TestNewCoordinatorKeepsClassifyThresholds(t *testing.T) {
	frame := newFrame(t)

	det := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 100, 100, 140, 140, 0.7)}}
	cls := &scriptedClassifier{loaded: true, script: []classification{
		{"P.127-50", 0.5},
		{"P.127-50", 0.95},
	}}

	coord := NewCoordinator(Options{
		Detector:   det,
		Classifier: cls,
		Settings:   settings("P.127"),
		Classify:   config.Classifier{MinAccept: 0.6, Instant: 0.99},
	})

	assert.Equal(t, config.Default().Classifier.TriggerClass, coord.classify.TriggerClass)

	coord.ProcessFrame(frame)
	assert.Equal(t, 0, coord.Registry().Len(), "0.5 is below the configured min accept")

	coord.ProcessFrame(frame)
	assert.Empty(t, coord.Registry().Results(), "0.95 is below the configured instant threshold")
	assert.Equal(t, []string{"1/5"}, coord.Registry().ProgressList())
}

func TestNewCoordinatorDefaultsZeroThresholds(t *testing.T) {
	coord := NewCoordinator(Options{
		Detector: &fakeDetector{},
		Settings: settings(),
		Classify: config.Classifier{TriggerClass: "W.201"},
	})

	defaults := config.Default().Classifier
	assert.Equal(t, "W.201", coord.classify.TriggerClass)
	assert.Equal(t, defaults.MinAccept, coord.classify.MinAccept)
	assert.Equal(t, defaults.Instant, coord.classify.Instant)
}

func TestSetDetectorAppliesToNextFrame(t *testing.T) {
	frame := newFrame(t)

	first := &fakeDetector{dets: []signtrack.Detection{detection("P.127", 100, 100, 140, 140, 0.7)}}
	second := &fakeDetector{dets: []signtrack.Detection{detection("W.201", 300, 100, 340, 140, 0.7)}}

	coord, _ := newTestCoordinator(first, nil, settings())

	coord.ProcessFrame(frame)
	coord.SetDetector(second)

	dets, _ := coord.ProcessFrame(frame)
	require.Len(t, dets, 1)
	assert.Equal(t, "W.201", dets[0].Label)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}
