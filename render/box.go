package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
)

// boxLabel holds a precalculated label so all labels can be drawn after the
// boxes and sit on the top most layer
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding boxes and labels of the detections.
// Boxes are mapped through xform before drawing, pass nil to draw them in
// image coordinates.
func DetectionBoxes(img *gocv.Mat, dets []signtrack.Detection, xform func(signtrack.Box) signtrack.Box,
	ink Ink, lineThickness int) {

	// labels are drawn after every box so none is covered by a later box
	labels := make([]boxLabel, 0, len(dets))

	for _, det := range dets {

		box := det.Box

		if xform != nil {
			box = xform(box)
		}

		clr := ClassColor(det.ClassID)
		gocv.Rectangle(img, box.Rect(), clr, lineThickness)

		text := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)
		labels = append(labels, placeLabel(box, text, clr, ink, lineThickness))
	}

	for _, label := range labels {
		gocv.Rectangle(img, label.rect, label.clr, -1)
		ink.Draw(img, label.text, label.textPos.X, label.textPos.Y)
	}
}

// placeLabel anchors a label to the top left corner of its box, flush with
// the outer edge of the box outline
func placeLabel(box signtrack.Box, text string, clr color.RGBA, ink Ink,
	lineThickness int) boxLabel {

	size := ink.size(text)
	left := box.X1 - lineThickness/2

	return boxLabel{
		rect: image.Rect(left, box.Y1-size.Y-labelPadTop-labelPadBottom,
			left+size.X+2*labelPadX, box.Y1),
		clr:     clr,
		text:    text,
		textPos: image.Pt(left+labelPadX, box.Y1-labelPadBottom),
	}
}
