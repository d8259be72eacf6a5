package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
)

// Resizer scales a source image into a fixed size destination whilst
// keeping the aspect ratio, padding the remainder
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a Resizer scaling images of the source size into the
// destination size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	if r.srcWidth <= 0 || r.srcHeight <= 0 {
		r.scale = 1
		return
	}

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2 // padding height / 2
	r.xPad = (r.destWidth - r.resizeW) / 2  // padding width / 2
}

// LetterBoxResize resizes src into dest, filling the padding with color
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// Matches returns true if the Resizer was created for the given source size
func (r *Resizer) Matches(srcWidth, srcHeight int) bool {
	return r.srcWidth == srcWidth && r.srcHeight == srcHeight
}

// Point maps a source image point into destination coordinates
func (r *Resizer) Point(p signtrack.Point) signtrack.Point {
	return signtrack.Point{
		X: int(float32(p.X)*r.scale) + r.xPad,
		Y: int(float32(p.Y)*r.scale) + r.yPad,
	}
}

// Box maps a source image box into destination coordinates
func (r *Resizer) Box(b signtrack.Box) signtrack.Box {
	tl := r.Point(signtrack.Point{X: b.X1, Y: b.Y1})
	br := r.Point(signtrack.Point{X: b.X2, Y: b.Y2})
	return signtrack.NewBox(tl.X, tl.Y, br.X, br.Y)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}
