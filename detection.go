package signtrack

import (
	"fmt"
	"image"
)

// Point represents the x,y pixel coordinates of the center of a bounding box
type Point struct {
	X, Y int
}

// Box are the pixel dimensions of the bounding box of a detected object in
// x1,y1 (top left) and x2,y2 (bottom right) format
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// NewBox is a constructor function for the Box struct
func NewBox(x1, y1, x2, y2 int) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the width of the box
func (b Box) Width() int {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b Box) Height() int {
	return b.Y2 - b.Y1
}

// Empty returns true if the box has no area
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Center returns the center point of the box using integer division
func (b Box) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Clamp restricts the box to lie within an image of the given width and
// height.  The result may be empty when the box lies outside of the image.
func (b Box) Clamp(width, height int) Box {

	clamped := Box{
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
		X2: clampInt(b.X2, 0, width),
		Y2: clampInt(b.Y2, 0, height),
	}

	return clamped
}

// Scale multiplies each coordinate of the box by the given x and y factors
func (b Box) Scale(sx, sy float32) Box {
	return Box{
		X1: int(float32(b.X1) * sx),
		Y1: int(float32(b.Y1) * sy),
		X2: int(float32(b.X2) * sx),
		Y2: int(float32(b.Y2) * sy),
	}
}

// Rect returns the box as an image.Rectangle for use with gocv drawing and
// region functions
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// String returns the box in (x1,y1,x2,y2) format
func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection defines the attributes of a single object detected in a frame
type Detection struct {
	// Box are the bounding box dimensions of the object location
	Box Box
	// Confidence is the probability score of the object detected, or of the
	// sub classification once the detection has been relabeled
	Confidence float32
	// Label is the class name of the object.  The pipeline may replace it
	// with the speed classifier result
	Label string
	// ClassID is the line number in the labels file the detector Model was
	// trained on
	ClassID int
}

// String returns a readable description of the detection
func (d Detection) String() string {
	return fmt.Sprintf("%s %.2f %s", d.Label, d.Confidence, d.Box)
}

// clampInt restricts val to be within the range min and max
func clampInt(val, min, max int) int {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
