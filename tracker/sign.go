package tracker

import (
	"fmt"
	"time"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/timeutil"
)

// Sign is the persistent identity of one physical road sign.  It collects a
// bounded history of per frame label votes and commits to a final result
// once consensus has been reached.
type Sign struct {
	// id is the unique tracker identity assigned by the Registry
	id int
	// target is the number of votes needed before the result is finalized
	target int
	// votes is the ordered history of labels received
	votes []string
	// result is the finalized label, only valid when complete is true
	result   string
	complete bool
	// lastSeen is the time the last vote was received
	lastSeen time.Time
	// center is the last known center of the signs bounding box, used
	// for association only
	center signtrack.Point
	clock  timeutil.Clock
}

// Snapshot is a read only copy of a Sign's state passed to rendering and
// output collaborators
type Snapshot struct {
	ID       int             `json:"id"`
	Center   signtrack.Point `json:"center"`
	Votes    int             `json:"votes"`
	Target   int             `json:"target"`
	Result   string          `json:"result,omitempty"`
	Complete bool            `json:"complete"`
	LastSeen time.Time       `json:"last_seen"`
}

// Progress returns the snapshot's vote progress in "votes/target" format
func (s Snapshot) Progress() string {
	return fmt.Sprintf("%d/%d", s.Votes, s.Target)
}

// NewSign returns a new Sign tracker.  A target below one is raised to one.
func NewSign(id, target int, center signtrack.Point, clock timeutil.Clock) *Sign {

	if target < 1 {
		target = 1
	}

	clock = timeutil.Or(clock)

	return &Sign{
		id:       id,
		target:   target,
		votes:    make([]string, 0, target),
		center:   center,
		lastSeen: clock.Now(),
		clock:    clock,
	}
}

// AddVote records a label vote for the sign.  Once the number of votes
// reaches the target, or instant is set, the sign is finalized with the most
// frequent label.  Votes received after finalization are ignored.
func (s *Sign) AddVote(label string, instant bool) {

	if s.complete {
		return
	}

	s.votes = append(s.votes, label)
	s.lastSeen = s.clock.Now()

	if instant || len(s.votes) >= s.target {
		s.result = majority(s.votes)
		s.complete = true
	}
}

// ID returns the tracker identity
func (s *Sign) ID() int {
	return s.id
}

// Complete returns true once a final result has been committed
func (s *Sign) Complete() bool {
	return s.complete
}

// Result returns the finalized label, or an empty string if the sign is
// still collecting votes
func (s *Sign) Result() string {
	return s.result
}

// Progress returns the vote progress in "votes/target" format
func (s *Sign) Progress() string {
	return fmt.Sprintf("%d/%d", len(s.votes), s.target)
}

// Votes returns a copy of the vote history
func (s *Sign) Votes() []string {
	cp := make([]string, len(s.votes))
	copy(cp, s.votes)
	return cp
}

// Center returns the last known center point of the sign
func (s *Sign) Center() signtrack.Point {
	return s.center
}

// LastSeen returns the time the last vote was received
func (s *Sign) LastSeen() time.Time {
	return s.lastSeen
}

// Snapshot returns a copy of the sign's current state
func (s *Sign) Snapshot() Snapshot {
	return Snapshot{
		ID:       s.id,
		Center:   s.center,
		Votes:    len(s.votes),
		Target:   s.target,
		Result:   s.result,
		Complete: s.complete,
		LastSeen: s.lastSeen,
	}
}

// majority returns the most frequent label in votes.  When several labels
// share the highest count the one that first appeared earliest wins.
func majority(votes []string) string {

	counts := make(map[string]int, len(votes))
	order := make([]string, 0, len(votes))

	for _, v := range votes {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	best := ""
	bestCnt := 0

	for _, label := range order {
		if counts[label] > bestCnt {
			best = label
			bestCnt = counts[label]
		}
	}

	return best
}
