package model

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/logging"
)

// DefaultClassifierInputSize is the square input dimension of the speed
// limit classifier
const DefaultClassifierInputSize = 64

// ONNXClassifier classifies image crops of a detected sign into one of a
// fixed set of classes using an ONNX model
type ONNXClassifier struct {
	net     gocv.Net
	path    string
	classes []string
	size    int
	log     *slog.Logger
}

// NewONNXClassifier loads the classifier model at path.  Classes are the
// labels in model output order.
func NewONNXClassifier(path string, classes []string, inputSize int,
	logger *slog.Logger) (*ONNXClassifier, error) {

	if logger == nil {
		logger = logging.Discard()
	}

	if inputSize <= 0 {
		inputSize = DefaultClassifierInputSize
	}

	if len(classes) == 0 {
		return nil, fmt.Errorf("classifier %s has no classes", path)
	}

	net := gocv.ReadNetFromONNX(path)

	if net.Empty() {
		return nil, fmt.Errorf("error loading ONNX classifier %s", path)
	}

	logger.Info("classifier loaded", "path", path, "classes", len(classes))

	return &ONNXClassifier{
		net:     net,
		path:    path,
		classes: classes,
		size:    inputSize,
		log:     logger.With("component", "classifier"),
	}, nil
}

// Loaded returns true if the classifier has a model.  It is safe to call on
// a nil ONNXClassifier.
func (c *ONNXClassifier) Loaded() bool {
	return c != nil && !c.net.Empty()
}

// ClassifyCrop classifies the region of img given by box.  The box is
// clamped to the image and an empty region returns an empty label.
func (c *ONNXClassifier) ClassifyCrop(img gocv.Mat, box signtrack.Box) (string, float32) {

	if !c.Loaded() || img.Empty() {
		return "", 0
	}

	box = box.Clamp(img.Cols(), img.Rows())

	if box.Empty() {
		return "", 0
	}

	crop := img.Region(box.Rect())
	defer crop.Close()

	return c.Classify(crop)
}

// Classify returns the most likely class of img and its probability
func (c *ONNXClassifier) Classify(img gocv.Mat) (string, float32) {

	if !c.Loaded() || img.Empty() {
		return "", 0
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(c.size, c.size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	logits, err := output.DataPtrFloat32()

	if err != nil {
		c.log.Warn("reading classifier output failed", "error", err)
		return "", 0
	}

	if len(logits) != len(c.classes) {
		c.log.Warn("classifier output size mismatch", "outputs", len(logits),
			"classes", len(c.classes))
		return "", 0
	}

	idx, prob := topClass(logits)

	return c.classes[idx], prob
}

// Classes returns the class labels
func (c *ONNXClassifier) Classes() []string {
	return c.classes
}

// Close frees the model
func (c *ONNXClassifier) Close() error {

	if c == nil {
		return nil
	}

	return c.net.Close()
}
