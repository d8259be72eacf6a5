package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/tracker"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	LineColor     color.RGBA
	LineThickness int
	// CircleFinal is the color of the current position marker of a sign
	// that has a result, CircleVoting is used while it is still voting
	CircleFinal  color.RGBA
	CircleVoting color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineColor:     Yellow,
		LineThickness: 1,
		CircleFinal:   Active,
		CircleVoting:  Pink,
		CircleRadius:  3,
	}
}

// Trail draws the movement history of each sign on the image.  Points are
// mapped through xform before drawing, pass nil to draw them in image
// coordinates.
func Trail(img *gocv.Mat, signs []tracker.Snapshot, trail *tracker.Trail,
	xform func(signtrack.Point) signtrack.Point, style TrailStyle) {

	if trail == nil {
		return
	}

	for _, sign := range signs {

		points := trail.GetPoints(sign.ID)

		if len(points) < 2 {
			continue
		}

		if xform != nil {
			for i := range points {
				points[i] = xform(points[i])
			}
		}

		// draw trail
		for i := 1; i < len(points); i++ {
			gocv.Line(img, image.Pt(points[i-1].X, points[i-1].Y), image.Pt(points[i].X, points[i].Y),
				style.LineColor, style.LineThickness)
		}

		// draw center point circle on current position
		circleClr := style.CircleVoting

		if sign.Complete {
			circleClr = style.CircleFinal
		}

		last := points[len(points)-1]
		gocv.Circle(img, image.Pt(last.X, last.Y), style.CircleRadius, circleClr, -1)
	}
}
