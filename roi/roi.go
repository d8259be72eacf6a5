// Package roi restricts detections to a polygonal region of interest in the
// frame, such as the road ahead of a dashboard camera.
package roi

import (
	"errors"
	"fmt"
	"image"

	clipper "github.com/ctessum/go.clipper"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/config"
)

// Region is a closed polygon in frame pixel coordinates
type Region struct {
	polygon []signtrack.Point
	bounds  image.Rectangle
}

// New returns a Region for the polygon given by points, grown outwards by
// margin pixels when margin is positive
func New(points []signtrack.Point, margin int) (*Region, error) {

	if len(points) < 3 {
		return nil, errors.New("region of interest needs at least 3 points")
	}

	polygon := points

	if margin > 0 {
		polygon = expand(points, margin)

		if len(polygon) < 3 {
			return nil, fmt.Errorf("region of interest offset by %d produced no polygon", margin)
		}
	}

	r := &Region{
		polygon: append([]signtrack.Point(nil), polygon...),
	}

	r.bounds = boundsOf(r.polygon)

	return r, nil
}

// FromConfig returns the Region configured in cfg, or nil when no region is
// configured
func FromConfig(cfg config.ROI) (*Region, error) {

	if len(cfg.Points) == 0 {
		return nil, nil
	}

	points := make([]signtrack.Point, 0, len(cfg.Points))

	for i, pt := range cfg.Points {
		if len(pt) != 2 {
			return nil, fmt.Errorf("roi point %d must be an [x, y] pair", i)
		}
		points = append(points, signtrack.Point{X: pt[0], Y: pt[1]})
	}

	return New(points, cfg.Margin)
}

// Contains returns true if pt lies inside the region.  A nil Region
// contains every point.
func (r *Region) Contains(pt signtrack.Point) bool {

	if r == nil {
		return true
	}

	if !pt2img(pt).In(r.bounds) {
		return false
	}

	return pointInPolygon(pt, r.polygon)
}

// Polygon returns the vertices of the region, including any margin
func (r *Region) Polygon() []signtrack.Point {

	if r == nil {
		return nil
	}

	return append([]signtrack.Point(nil), r.polygon...)
}

// ImagePoints returns the vertices as image points for drawing
func (r *Region) ImagePoints() []image.Point {

	if r == nil {
		return nil
	}

	pts := make([]image.Point, len(r.polygon))

	for i, p := range r.polygon {
		pts[i] = pt2img(p)
	}

	return pts
}

// Bounds returns the bounding rectangle of the region
func (r *Region) Bounds() image.Rectangle {

	if r == nil {
		return image.Rectangle{}
	}

	return r.bounds
}

// expand offsets the polygon outwards by distance pixels using round joins
func expand(points []signtrack.Point, distance int) []signtrack.Point {

	// convert the points to Clipper Path
	var path clipper.Path

	for _, pt := range points {
		path = append(path, &clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)})
	}

	// create a ClipperOffset object and add the path
	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	// execute the offset operation
	solution := co.Execute(float64(distance))

	// use the path with the most vertices, a convex input gives exactly one
	var best clipper.Path

	for _, sol := range solution {
		if len(sol) > len(best) {
			best = sol
		}
	}

	out := make([]signtrack.Point, 0, len(best))

	for _, pt := range best {
		out = append(out, signtrack.Point{X: int(pt.X), Y: int(pt.Y)})
	}

	return out
}

// pointInPolygon uses the even-odd ray casting rule
func pointInPolygon(pt signtrack.Point, polygon []signtrack.Point) bool {

	inside := false
	px, py := float64(pt.X), float64(pt.Y)

	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi, yi := float64(polygon[i].X), float64(polygon[i].Y)
		xj, yj := float64(polygon[j].X), float64(polygon[j].Y)

		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}

	return inside
}

// boundsOf returns the smallest rectangle containing every point, with the
// max edge made inclusive
func boundsOf(points []signtrack.Point) image.Rectangle {

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY

	for _, p := range points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func pt2img(p signtrack.Point) image.Point {
	return image.Pt(p.X, p.Y)
}
