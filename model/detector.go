package model

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/logging"
)

// NMSThreshold is the IoU above which overlapping boxes are suppressed
const NMSThreshold = 0.5

// ONNXDetector runs a YOLOv8 ONNX object detection model with the OpenCV
// DNN module
type ONNXDetector struct {
	net    gocv.Net
	path   string
	labels []string
	log    *slog.Logger
}

// NewONNXDetector loads the ONNX model file at path.  Labels are the class
// names in model output order.
func NewONNXDetector(path string, labels []string, logger *slog.Logger) (*ONNXDetector, error) {

	if logger == nil {
		logger = logging.Discard()
	}

	net := gocv.ReadNetFromONNX(path)

	if net.Empty() {
		return nil, fmt.Errorf("error loading ONNX model %s", path)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	logger.Info("detector model loaded", "path", path, "labels", len(labels))

	return &ONNXDetector{
		net:    net,
		path:   path,
		labels: labels,
		log:    logger.With("component", "detector"),
	}, nil
}

// Detect runs the model on img resized to inputSize x inputSize and returns
// the detections with a score of at least confThreshold, after non maximum
// suppression, in frame pixel coordinates
func (d *ONNXDetector) Detect(img gocv.Mat, confThreshold float32, inputSize int) []signtrack.Detection {

	if d == nil || img.Empty() || inputSize <= 0 {
		return nil
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(inputSize, inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()

	if err != nil {
		d.log.Warn("reading detector output failed", "error", err)
		return nil
	}

	scaleX := float32(img.Cols()) / float32(inputSize)
	scaleY := float32(img.Rows()) / float32(inputSize)

	cands := decodeYOLOv8(data, output.Size(), confThreshold, scaleX, scaleY)

	if len(cands) == 0 {
		return nil
	}

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))

	for i, c := range cands {
		rects[i] = c.rect
		scores[i] = c.score
	}

	keep := gocv.NMSBoxes(rects, scores, 0, NMSThreshold)

	return d.detections(cands, keep, img.Cols(), img.Rows())
}

// detections converts the candidates kept by NMS to Detections with boxes
// clamped to the frame.  Boxes left empty by clamping are dropped.
func (d *ONNXDetector) detections(cands []candidate, keep []int, width, height int) []signtrack.Detection {

	dets := make([]signtrack.Detection, 0, len(keep))

	for _, idx := range keep {
		c := cands[idx]

		box := signtrack.NewBox(c.rect.Min.X, c.rect.Min.Y,
			c.rect.Max.X, c.rect.Max.Y).Clamp(width, height)

		if box.Empty() {
			continue
		}

		dets = append(dets, signtrack.Detection{
			Box:        box,
			Confidence: c.score,
			Label:      labelFor(d.labels, c.classID),
			ClassID:    c.classID,
		})
	}

	return dets
}

// Labels returns the class names of the model
func (d *ONNXDetector) Labels() []string {
	return d.labels
}

// Path returns the model file the detector was loaded from
func (d *ONNXDetector) Path() string {
	return d.path
}

// Close frees the model
func (d *ONNXDetector) Close() error {

	if d == nil {
		return nil
	}

	return d.net.Close()
}
