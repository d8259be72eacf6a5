// Package scheduler decides which frames read from a source are processed so
// detection runs at a target rate independent of the source frame rate.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/roadsight/signtrack/timeutil"
)

// Kind is the type of frame source being scheduled
type Kind int

const (
	// Live sources such as cameras and network streams deliver frames in
	// real time and must be drained even when frames are not processed
	Live Kind = iota
	// File sources are recorded videos read as fast as they are processed
	File
)

// String returns the name of the source kind
func (k Kind) String() string {
	switch k {
	case Live:
		return "live"
	case File:
		return "file"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Policy decides for each frame read whether it should be processed
type Policy interface {
	// Admit is called once for every frame read from the source and returns
	// true if the frame should be processed
	Admit() bool
	// Reset restarts the policy state, used when the source is reopened
	Reset()
	// Name describes the policy for logging
	Name() string
}

// TargetFunc returns the current target processing rate in frames per
// second.  It is called on every frame so rate changes apply immediately.
type TargetFunc func() int

// ForSource returns the scheduling policy for the given kind of source
func ForSource(kind Kind, sourceFPS float64, target TargetFunc, clock timeutil.Clock) Policy {

	if kind == File {
		return NewFilePolicy(sourceFPS, target())
	}

	return NewLivePolicy(target, clock)
}

// LivePolicy admits a frame only when at least 1/target seconds of wall
// clock time have passed since the last admitted frame
type LivePolicy struct {
	target TargetFunc
	clock  timeutil.Clock
	last   time.Time
}

// NewLivePolicy returns a LivePolicy.  The interval is measured from the
// time the policy is created, so the first frame is admitted once a full
// interval has passed.
func NewLivePolicy(target TargetFunc, clock timeutil.Clock) *LivePolicy {

	clock = timeutil.Or(clock)

	return &LivePolicy{
		target: target,
		clock:  clock,
		last:   clock.Now(),
	}
}

// Admit returns true if the frame interval has elapsed
func (p *LivePolicy) Admit() bool {

	interval := Interval(p.target())
	now := p.clock.Now()

	if now.Sub(p.last) < interval {
		return false
	}

	p.last = now

	return true
}

// Reset restarts the interval from the current time
func (p *LivePolicy) Reset() {
	p.last = p.clock.Now()
}

// Name describes the policy
func (p *LivePolicy) Name() string {
	return fmt.Sprintf("live interval=%s", Interval(p.target()))
}

// FilePolicy admits every skip-th frame by counting, giving reproducible
// sampling of a recorded video
type FilePolicy struct {
	skip  int
	count int
}

// NewFilePolicy returns a FilePolicy sampling a source of sourceFPS down to
// targetFPS
func NewFilePolicy(sourceFPS float64, targetFPS int) *FilePolicy {
	return &FilePolicy{
		skip: SkipFrames(sourceFPS, targetFPS),
	}
}

// Admit returns true for every skip-th frame
func (p *FilePolicy) Admit() bool {
	p.count++
	return p.count%p.skip == 0
}

// Reset restarts frame counting
func (p *FilePolicy) Reset() {
	p.count = 0
}

// Skip returns the sampling interval in frames
func (p *FilePolicy) Skip() int {
	return p.skip
}

// Name describes the policy
func (p *FilePolicy) Name() string {
	return fmt.Sprintf("file skip=%d", p.skip)
}

// Interval returns the minimum duration between processed frames for the
// given target rate.  A target of zero or less gives no interval.
func Interval(targetFPS int) time.Duration {

	if targetFPS <= 0 {
		return 0
	}

	return time.Duration(float64(time.Second) / float64(targetFPS))
}

// SkipFrames returns max(1, round(sourceFPS/targetFPS)).  An unknown source
// rate or invalid target processes every frame.
func SkipFrames(sourceFPS float64, targetFPS int) int {

	if targetFPS <= 0 || sourceFPS <= 0 || math.IsNaN(sourceFPS) || math.IsInf(sourceFPS, 0) {
		return 1
	}

	skip := int(math.Round(sourceFPS / float64(targetFPS)))

	if skip < 1 {
		return 1
	}

	return skip
}
