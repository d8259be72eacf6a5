package render

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/pipeline"
	"github.com/roadsight/signtrack/tracker"
)

// Annotate draws the detections, sign trails, processing status and sign
// results directly onto img, which should be a copy of the frame.  The
// status text turns to the warning color when processing exceeds budget.
func Annotate(img *gocv.Mat, res pipeline.FrameResult, trail *tracker.Trail,
	budget time.Duration) {

	DetectionBoxes(img, res.Detections, nil, LabelInk, 2)
	Trail(img, res.Active, trail, nil, DefaultTrailStyle())

	// blank out a strip at the top of the frame for the status line
	gocv.Rectangle(img, image.Rect(0, 0, img.Cols(), 36), Black, -1)

	statusClr := Active

	if budget > 0 && res.Elapsed > budget {
		statusClr = Warning
	}

	Ink{Scale: 0.5, Color: statusClr}.Draw(img, fmt.Sprintf("Frame: %d, Time: %.0fms, Avg: %.1fms, Detections: %d",
		res.Index, ms(res.Elapsed), ms(res.Stats.Average), len(res.Detections)), 4, 14)

	// newest results first, remaining progress after
	status := "Results: -"

	if len(res.Results) > 0 {
		status = "Results: " + joinRecent(res.Results, 5)
	}

	if len(res.Progress) > 0 {
		status += "  Voting: " + joinRecent(res.Progress, 3)
	}

	Ink{Scale: 0.5, Color: Result}.Draw(img, status, 4, 30)
}

// joinRecent joins the last n values, newest first
func joinRecent(values []string, n int) string {

	out := ""

	for i := len(values) - 1; i >= 0 && len(values)-i <= n; i-- {
		if out != "" {
			out += ", "
		}
		out += values[i]
	}

	return out
}

// ms converts a duration to fractional milliseconds
func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
