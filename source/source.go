// Package source opens the cameras, video files and network streams that
// frames are read from.
package source

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/scheduler"
)

// ErrOpen is returned when a source can not be opened
var ErrOpen = errors.New("unable to open source")

// Spec identifies a frame source.  Exactly one of Camera, Video or URL is
// used, in that order of precedence when Camera is not negative.
type Spec struct {
	// Camera is the device index, or -1 when unused
	Camera int
	// Video is the path of a recorded video file
	Video string
	// URL is a network stream such as rtsp:// or http://
	URL string
}

// NewSpec returns a Spec from command line values, defaulting to camera 0
// when nothing is given
func NewSpec(camera int, video, url string) (Spec, error) {

	video = strings.TrimSpace(video)
	url = strings.TrimSpace(url)

	given := 0

	if camera >= 0 {
		given++
	}
	if video != "" {
		given++
	}
	if url != "" {
		given++
	}

	if given > 1 {
		return Spec{}, errors.New("only one of camera, video or url may be given")
	}

	if given == 0 {
		camera = 0
	}

	return Spec{Camera: camera, Video: video, URL: url}, nil
}

// Kind returns how frames from the source must be scheduled.  Recorded
// video files are File sources, cameras and network streams are Live.
func (s Spec) Kind() scheduler.Kind {

	if s.Camera < 0 && s.Video != "" {
		return scheduler.File
	}

	return scheduler.Live
}

// String describes the source
func (s Spec) String() string {

	switch {
	case s.Camera >= 0:
		return fmt.Sprintf("camera %d", s.Camera)
	case s.Video != "":
		return "video " + s.Video
	default:
		return "stream " + s.URL
	}
}

// Capture is an open frame source
type Capture struct {
	spec   Spec
	cap    *gocv.VideoCapture
	fps    float64
	width  int
	height int
}

// Open opens the source described by spec
func Open(spec Spec) (*Capture, error) {

	var (
		vc  *gocv.VideoCapture
		err error
	)

	switch {
	case spec.Camera >= 0:
		vc, err = gocv.VideoCaptureDevice(spec.Camera)
	case spec.Video != "":
		vc, err = gocv.VideoCaptureFile(spec.Video)
	case spec.URL != "":
		vc, err = gocv.OpenVideoCapture(spec.URL)
	default:
		return nil, fmt.Errorf("%w: no source given", ErrOpen)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, spec, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpen, spec)
	}

	if spec.Kind() == scheduler.Live {
		// keep latency low by not queuing stale frames in the device
		vc.Set(gocv.VideoCaptureBufferSize, 1)
	}

	c := &Capture{
		spec:   spec,
		cap:    vc,
		fps:    sanitizeFPS(vc.Get(gocv.VideoCaptureFPS)),
		width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}

	return c, nil
}

// Read reads the next frame into img, returning false when the source is
// exhausted or has failed
func (c *Capture) Read(img *gocv.Mat) bool {
	return c.cap.Read(img)
}

// Kind returns the scheduling kind of the source
func (c *Capture) Kind() scheduler.Kind {
	return c.spec.Kind()
}

// FPS returns the frame rate reported by the source, zero when unknown
func (c *Capture) FPS() float64 {
	return c.fps
}

// Size returns the frame dimensions reported by the source
func (c *Capture) Size() image.Point {
	return image.Pt(c.width, c.height)
}

// Spec returns the description the source was opened with
func (c *Capture) Spec() Spec {
	return c.spec
}

// Close releases the source
func (c *Capture) Close() error {
	return c.cap.Close()
}

// sanitizeFPS returns zero for frame rates a source reports when it does
// not know its rate
func sanitizeFPS(fps float64) float64 {

	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 || fps > 1000 {
		return 0
	}

	return fps
}
