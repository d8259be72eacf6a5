package pipeline

import (
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/logging"
	"github.com/roadsight/signtrack/timeutil"
	"github.com/roadsight/signtrack/tracker"
)

// Options are the collaborators and parameters used to construct a
// Coordinator
type Options struct {
	// Detector is required
	Detector Detector
	// Classifier is optional, without one every detection votes its
	// detector label
	Classifier Classifier
	// Settings supplies the detection settings each frame, required
	Settings SettingsProvider
	// Classify holds the trigger class and acceptance thresholds of the sub
	// classifier.  An empty TriggerClass takes the default, and the
	// thresholds take the defaults only when both are zero.
	Classify config.Classifier
	// Registry receives the votes, a default Registry is created when nil
	Registry *tracker.Registry
	// Region optionally limits detections to an area of the frame
	Region Region
	// TelemetryWindow is the number of recent frame durations kept
	TelemetryWindow int
	Clock           timeutil.Clock
	Logger          *slog.Logger
}

// Coordinator processes admitted frames through detection, filtering, sub
// classification and voting.  It is driven from a single goroutine.
type Coordinator struct {
	detector   Detector
	classifier Classifier
	settings   SettingsProvider
	classify   config.Classifier
	registry   *tracker.Registry
	region     Region
	telemetry  *Telemetry
	clock      timeutil.Clock
	log        *slog.Logger
}

// NewCoordinator returns a new Coordinator
func NewCoordinator(opts Options) *Coordinator {

	clock := timeutil.Or(opts.Clock)

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	classify := opts.Classify
	defaults := config.Default().Classifier

	if classify.TriggerClass == "" {
		classify.TriggerClass = defaults.TriggerClass
	}

	if classify.MinAccept == 0 && classify.Instant == 0 {
		classify.MinAccept = defaults.MinAccept
		classify.Instant = defaults.Instant
	}

	registry := opts.Registry
	if registry == nil {
		registry = tracker.NewRegistry(tracker.Options{
			Clock:  clock,
			Logger: logger,
		})
	}

	return &Coordinator{
		detector:   opts.Detector,
		classifier: opts.Classifier,
		settings:   opts.Settings,
		classify:   classify,
		registry:   registry,
		region:     opts.Region,
		telemetry:  NewTelemetry(opts.TelemetryWindow),
		clock:      clock,
		log:        logger.With("component", "pipeline"),
	}
}

// SetDetector replaces the detector used for the following frames.  It must
// be called from the goroutine driving the Coordinator.
func (c *Coordinator) SetDetector(det Detector) {
	c.detector = det
}

// ProcessFrame runs one frame through the pipeline and returns the kept
// detections, relabeled where the sub classifier accepted them, and the time
// taken
func (c *Coordinator) ProcessFrame(frame gocv.Mat) ([]signtrack.Detection, time.Duration) {

	start := c.clock.Now()

	// settings are re-read every frame so dashboard changes apply at once
	settings := c.settings.Detection()

	dets := c.detector.Detect(frame, float32(settings.ConfThreshold), settings.InputSize)

	// restrict to the active classes and region of interest
	dets = filterDetections(dets, settings, c.region)

	classifierReady := c.classifier != nil && c.classifier.Loaded()

	for i := range dets {
		det := &dets[i]

		if !classifierReady || det.Label != c.classify.TriggerClass {
			c.registry.AddVote(det.Box, det.Label, false)
			continue
		}

		crop := det.Box.Clamp(frame.Cols(), frame.Rows())

		if crop.Empty() {
			// nothing to classify, fall back to the detector label
			c.registry.AddVote(det.Box, det.Label, false)
			continue
		}

		label, conf := c.classifier.ClassifyCrop(frame, crop)

		if label == "" || float64(conf) <= c.classify.MinAccept {
			c.log.Debug("classification declined", "box", det.Box.String(),
				"label", label, "confidence", conf)
			continue
		}

		det.Label = label
		det.Confidence = conf

		c.registry.AddVote(det.Box, label, float64(conf) > c.classify.Instant)
	}

	c.registry.Cleanup()

	elapsed := c.clock.Since(start)
	c.telemetry.Record(elapsed)

	return dets, elapsed
}

// Registry returns the tracker registry receiving the votes
func (c *Coordinator) Registry() *tracker.Registry {
	return c.registry
}

// Stats returns the processing time summary
func (c *Coordinator) Stats() Stats {
	return c.telemetry.Stats()
}

// Reset clears all trackers and telemetry, used when the source changes
func (c *Coordinator) Reset() {
	c.registry.Reset()
	c.telemetry.Reset()
}

// Result builds the FrameResult handed to sinks for a processed frame
func (c *Coordinator) Result(index int, frame gocv.Mat, dets []signtrack.Detection,
	elapsed time.Duration) FrameResult {

	return FrameResult{
		Index:      index,
		Image:      frame,
		Detections: dets,
		Elapsed:    elapsed,
		Results:    c.registry.Results(),
		Progress:   c.registry.ProgressList(),
		Active:     c.registry.Active(),
		Stats:      c.telemetry.Stats(),
	}
}
