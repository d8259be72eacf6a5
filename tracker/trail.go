package tracker

import (
	"sync"

	"github.com/roadsight/signtrack"
)

// Trail keeps a history of the center points of each Sign used for drawing
// the path a sign has moved across the frame
type Trail struct {
	// size is the maximum number of most recent points to keep per sign
	size int
	// history of center points keyed by sign ID
	history map[int][]signtrack.Point
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the maximum length
// of the trail to maintain for each sign.
func NewTrail(size int) *Trail {

	if size < 1 {
		size = 1
	}

	return &Trail{
		size:    size,
		history: make(map[int][]signtrack.Point),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int][]signtrack.Point)
}

// Add a center point to the history of the given sign
func (t *Trail) Add(id int, pt signtrack.Point) {
	t.Lock()
	defer t.Unlock()

	t.add(id, pt)
}

func (t *Trail) add(id int, pt signtrack.Point) {

	points := t.history[id]

	// skip duplicate points when a sign has not moved or was not voted on
	// this frame
	if n := len(points); n > 0 && points[n-1] == pt {
		return
	}

	points = append(points, pt)

	// check if history is exceeded and drop oldest point
	if len(points) > t.size {
		points = points[1:]
	}

	t.history[id] = points
}

// Update records the current center of every snapshot and forgets the
// history of signs that no longer exist in the registry
func (t *Trail) Update(snaps []Snapshot) {
	t.Lock()
	defer t.Unlock()

	live := make(map[int]struct{}, len(snaps))

	for _, snap := range snaps {
		live[snap.ID] = struct{}{}
		t.add(snap.ID, snap.Center)
	}

	for id := range t.history {
		if _, ok := live[id]; !ok {
			delete(t.history, id)
		}
	}
}

// GetPoints gets a copy of the point history for a specific sign id
func (t *Trail) GetPoints(id int) []signtrack.Point {
	t.Lock()
	defer t.Unlock()

	points, exists := t.history[id]

	if !exists {
		// no history yet
		return nil
	}

	cp := make([]signtrack.Point, len(points))
	copy(cp, points)

	return cp
}
