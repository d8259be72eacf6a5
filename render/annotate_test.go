package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/pipeline"
)

func TestJoinRecent(t *testing.T) {
	values := []string{"P.127-30", "P.127-50", "P.127-70"}

	assert.Equal(t, "", joinRecent(nil, 3))
	assert.Equal(t, "P.127-70, P.127-50", joinRecent(values, 2))
	assert.Equal(t, "P.127-70, P.127-50, P.127-30", joinRecent(values, 5))
}

func TestAnnotateKeepsFrameSize(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	Annotate(&img, pipeline.FrameResult{
		Index:      1,
		Detections: []signtrack.Detection{{Box: signtrack.NewBox(600, 400, 700, 500), Label: "P.127"}},
		Elapsed:    20 * time.Millisecond,
		Results:    []string{"P.127-50"},
	}, nil, 0)

	assert.Equal(t, 640, img.Cols())
	assert.Equal(t, 480, img.Rows())
}
