package model

import (
	"image"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// candidate is a single decoded detector output row before non maximum
// suppression
type candidate struct {
	rect    image.Rectangle
	score   float32
	classID int
}

// decodeYOLOv8 decodes a YOLOv8 output tensor of shape [1, 4+C, N], where
// each of the N columns holds cx,cy,w,h followed by C class scores.  Boxes
// are given in input tensor pixels and rescaled by scaleX and scaleY to the
// source frame.  Columns whose best class score is below confThreshold, or
// whose width or height is not positive, are dropped.
func decodeYOLOv8(data []float32, dims []int, confThreshold float32,
	scaleX, scaleY float32) []candidate {

	if len(dims) != 3 || dims[1] <= 4 || dims[2] <= 0 {
		return nil
	}

	attrs := dims[1]
	numBoxes := dims[2]

	if len(data) < attrs*numBoxes {
		return nil
	}

	// value at attribute a of box i, reading the tensor transposed
	at := func(a, i int) float32 {
		return data[a*numBoxes+i]
	}

	var cands []candidate

	for i := 0; i < numBoxes; i++ {

		// find class with highest score
		classID := 0
		best := at(4, i)

		for c := 1; c < attrs-4; c++ {
			if s := at(4+c, i); s > best {
				best = s
				classID = c
			}
		}

		if best < confThreshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)

		if w <= 0 || h <= 0 {
			continue
		}

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		cands = append(cands, candidate{
			rect:    image.Rect(x1, y1, x2, y2),
			score:   best,
			classID: classID,
		})
	}

	return cands
}

// softmax converts logits to probabilities in place
func softmax(logits []float64) {

	if len(logits) == 0 {
		return
	}

	// subtract the max for numerical stability
	floats.AddConst(-floats.Max(logits), logits)

	for i, v := range logits {
		logits[i] = math.Exp(v)
	}

	floats.Scale(1/floats.Sum(logits), logits)
}

// topClass returns the index and probability of the most likely class from
// raw classifier logits
func topClass(logits []float32) (int, float32) {

	if len(logits) == 0 {
		return -1, 0
	}

	probs := make([]float64, len(logits))

	for i, v := range logits {
		probs[i] = float64(v)
	}

	softmax(probs)
	idx := floats.MaxIdx(probs)

	return idx, float32(probs[idx])
}

// labelFor returns the class name for id, falling back to the numeric ID
// when the labels do not cover it
func labelFor(labels []string, id int) string {

	if id >= 0 && id < len(labels) {
		return labels[id]
	}

	return strconv.Itoa(id)
}
