package model

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/signtrack"
)

// yoloTensor builds a [1, 4+C, N] output tensor from per box rows of
// cx,cy,w,h followed by the class scores
func yoloTensor(rows [][]float32) ([]float32, []int) {

	attrs := len(rows[0])
	n := len(rows)
	data := make([]float32, attrs*n)

	for i, row := range rows {
		for a, v := range row {
			data[a*n+i] = v
		}
	}

	return data, []int{1, attrs, n}
}

func TestDecodeYOLOv8(t *testing.T) {

	data, dims := yoloTensor([][]float32{
		// box centered at 160,160 in a 320 input, class 1 best
		{160, 160, 40, 20, 0.1, 0.9, 0.2},
		// below threshold
		{50, 50, 10, 10, 0.3, 0.2, 0.1},
		// class 2 best
		{100, 200, 20, 20, 0.1, 0.2, 0.6},
	})

	// frame is 640x480 with a 320 input
	cands := decodeYOLOv8(data, dims, 0.5, 2, 1.5)

	require.Len(t, cands, 2)

	assert.Equal(t, 1, cands[0].classID)
	assert.InDelta(t, 0.9, cands[0].score, 1e-6)
	assert.Equal(t, image.Rect(280, 225, 360, 255), cands[0].rect)

	assert.Equal(t, 2, cands[1].classID)
	assert.Equal(t, image.Rect(180, 285, 220, 315), cands[1].rect)
}

func TestDecodeYOLOv8DropsZeroSizeBoxes(t *testing.T) {

	data, dims := yoloTensor([][]float32{
		{160, 160, 0, 20, 0.9},
		{160, 160, 20, -4, 0.9},
		{160, 160, 20, 20, 0.9},
	})

	cands := decodeYOLOv8(data, dims, 0.5, 1, 1)

	require.Len(t, cands, 1)
	assert.Equal(t, image.Rect(150, 150, 170, 170), cands[0].rect)
}

func TestDetectionsClampToFrame(t *testing.T) {

	d := &ONNXDetector{labels: []string{"P.127", "W.201"}}

	cands := []candidate{
		{rect: image.Rect(-10, -5, 30, 40), score: 0.9, classID: 0},
		{rect: image.Rect(620, 460, 700, 520), score: 0.8, classID: 1},
		{rect: image.Rect(650, 10, 700, 40), score: 0.7, classID: 1},
	}

	dets := d.detections(cands, []int{0, 1, 2}, 640, 480)

	require.Len(t, dets, 2, "box outside the frame is dropped")

	assert.Equal(t, signtrack.NewBox(0, 0, 30, 40), dets[0].Box)
	assert.Equal(t, "P.127", dets[0].Label)

	assert.Equal(t, signtrack.NewBox(620, 460, 640, 480), dets[1].Box)
	assert.Equal(t, "W.201", dets[1].Label)
	assert.InDelta(t, 0.8, dets[1].Confidence, 1e-6)
}

func TestDecodeYOLOv8BadShape(t *testing.T) {
	assert.Nil(t, decodeYOLOv8(nil, []int{1, 84}, 0.5, 1, 1))
	assert.Nil(t, decodeYOLOv8([]float32{1, 2, 3}, []int{1, 4, 1}, 0.5, 1, 1))
	assert.Nil(t, decodeYOLOv8([]float32{1, 2, 3}, []int{1, 5, 2}, 0.5, 1, 1))
}

func TestTopClass(t *testing.T) {

	idx, prob := topClass([]float32{1, 3, 2})
	assert.Equal(t, 1, idx)
	// e^3 / (e^1 + e^2 + e^3)
	assert.InDelta(t, 0.6652, prob, 1e-4)

	idx, prob = topClass([]float32{1000, 1000})
	assert.Equal(t, 0, idx, "large logits stay finite")
	assert.InDelta(t, 0.5, prob, 1e-6)

	idx, _ = topClass(nil)
	assert.Equal(t, -1, idx)
}

func TestLabelFor(t *testing.T) {
	labels := []string{"P.127", "W.201"}
	assert.Equal(t, "W.201", labelFor(labels, 1))
	assert.Equal(t, "7", labelFor(labels, 7))
	assert.Equal(t, "0", labelFor(nil, 0))
}
