// Package pipeline drives detection, sub classification and consensus voting
// for each admitted video frame.
package pipeline

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/tracker"
)

// ErrStop is returned by a Sink to end the frame loop, such as when the user
// presses q in the dashboard window
var ErrStop = errors.New("pipeline stopped")

// Detector runs object detection on a frame.  An implementation must not
// modify the image and reports failures by returning no detections.
type Detector interface {
	Detect(img gocv.Mat, confThreshold float32, inputSize int) []signtrack.Detection
}

// Classifier refines a detection by classifying the image region of its box
type Classifier interface {
	// Loaded returns true if a model is available for classification
	Loaded() bool
	// ClassifyCrop returns the label and confidence for the region of img
	// given by box, or an empty label when it declines to classify
	ClassifyCrop(img gocv.Mat, box signtrack.Box) (string, float32)
}

// SettingsProvider supplies the detection settings, read once per frame so
// runtime changes apply to the next frame processed
type SettingsProvider interface {
	Detection() config.Detection
}

// Region restricts detections to an area of the frame
type Region interface {
	Contains(pt signtrack.Point) bool
}

// Sink receives the result of every processed frame, eg: a display window
// or a network stream.  Returning ErrStop ends the frame loop.
type Sink interface {
	Render(res FrameResult) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(res FrameResult) error

// Render calls f(res)
func (f SinkFunc) Render(res FrameResult) error {
	return f(res)
}

// FrameResult is the outcome of processing a single frame.  The Image is
// only valid for the duration of the Render call, a Sink that keeps it must
// clone it.
type FrameResult struct {
	// Index is the position of the frame in the source, counting from 1
	Index int
	// Image is the frame as read from the source
	Image gocv.Mat
	// Detections are the filtered and possibly relabeled detections
	Detections []signtrack.Detection
	// Elapsed is the processing time of the frame
	Elapsed time.Duration
	// Results are the finalized labels of all trackers
	Results []string
	// Progress are the vote progress strings of unfinished trackers
	Progress []string
	// Active is a snapshot of every tracker
	Active []tracker.Snapshot
	// Stats summarizes processing times so far
	Stats Stats
}
