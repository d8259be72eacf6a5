package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextRenderer draws anti-aliased TrueType text onto Mats, used where the
// Hershey fonts built into OpenCV are too coarse such as the results panel
type TextRenderer struct {
	face   font.Face
	ascent int
	height int
}

// NewTextRenderer returns a TextRenderer using the Go Bold font at the given
// point size
func NewTextRenderer(size float64) (*TextRenderer, error) {

	// parse the font
	f, err := opentype.Parse(gobold.TTF)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	// create a type face
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create type face: %w", err)
	}

	metrics := face.Metrics()

	return &TextRenderer{
		face:   face,
		ascent: metrics.Ascent.Ceil(),
		height: metrics.Height.Ceil(),
	}, nil
}

// LineHeight returns the pixel height of a line of text
func (t *TextRenderer) LineHeight() int {
	return t.height
}

// Measure returns the pixel width of text
func (t *TextRenderer) Measure(text string) int {
	return font.MeasureString(t.face, text).Ceil()
}

// Draw writes text onto img with its baseline starting at x,y.  Text falling
// outside of the image is clipped.
func (t *TextRenderer) Draw(img *gocv.Mat, text string, x, y int, clr color.RGBA) error {

	// area of the image the text covers
	area := image.Rect(x, y-t.ascent, x+t.Measure(text), y-t.ascent+t.height).
		Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if area.Empty() {
		return nil
	}

	// create image with text writing, offset so the clipped area is at 0,0
	rgba := image.NewRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 0}), image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(clr),
		Face: t.face,
		Dot: fixed.Point26_6{
			X: fixed.I(x - area.Min.X),
			Y: fixed.I(y - area.Min.Y),
		},
	}
	dr.DrawString(text)

	// Convert image.RGBA to gocv.Mat
	textMat, err := gocv.NewMatFromBytes(area.Dy(), area.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)

	if err != nil || textMat.Empty() {
		return fmt.Errorf("error creating Mat from RGBA: %v", err)
	}

	defer textMat.Close()

	gocv.CvtColor(textMat, &textMat, gocv.ColorRGBAToBGR)

	// blend the text onto the covered area of the image in place
	region := img.Region(area)
	defer region.Close()

	gocv.AddWeighted(region, 1.0, textMat, 1.0, 0, &region)

	return nil
}
