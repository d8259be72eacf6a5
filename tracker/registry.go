package tracker

import (
	"io"
	"log/slog"
	"time"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/timeutil"
)

const (
	// DefaultVotesNeeded is the number of votes a Sign collects before
	// committing to a result
	DefaultVotesNeeded = 5
	// DefaultTimeout is how long an unfinished Sign may go without a vote
	// before cleanup removes it
	DefaultTimeout = 2 * time.Second
	// DefaultWindow is the per axis pixel distance within which a detection
	// center is associated with an existing Sign
	DefaultWindow = 100
)

// Options are the parameters used to construct a Registry
type Options struct {
	// VotesNeeded is the target vote count given to each new Sign
	VotesNeeded int
	// Timeout is the staleness after which unfinished Signs are removed
	Timeout time.Duration
	// Window is the association distance in pixels, applied independently
	// on the x and y axis
	Window int
	// Clock is the time source, defaults to the wall clock
	Clock timeutil.Clock
	// Logger receives tracker lifecycle events at debug level
	Logger *slog.Logger
	// OnFinalize is called once for each Sign when it commits to a result
	OnFinalize func(Snapshot)
	// OnExpire is called for each unfinished Sign removed by Cleanup
	OnExpire func(Snapshot)
}

// Registry owns the set of live Signs.  It associates incoming detections
// to existing Signs by spatial proximity, creates Signs for unmatched
// detections and expires stale unfinished Signs.
//
// A Registry is not safe for concurrent use, all calls must be made from the
// goroutine driving the frame loop.
type Registry struct {
	opts  Options
	log   *slog.Logger
	clock timeutil.Clock
	ids   idGenerator
	// signs are kept in creation order so results are reported in the order
	// the signs were first seen
	signs []*Sign
}

// NewRegistry returns a new Registry.  Zero valued options are replaced with
// their defaults.
func NewRegistry(opts Options) *Registry {

	if opts.VotesNeeded < 1 {
		opts.VotesNeeded = DefaultVotesNeeded
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	logger := opts.Logger

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Registry{
		opts:  opts,
		log:   logger.With("component", "tracker"),
		clock: timeutil.Or(opts.Clock),
	}
}

// AddVote associates the detection box with a Sign and records the label
// vote on it.  The first Sign whose last center lies within the association
// window on both axis is used, otherwise a new Sign is created.  The ID of
// the Sign voted on is returned.
func (r *Registry) AddVote(box signtrack.Box, label string, instant bool) int {

	center := box.Center()
	sign := r.find(center)

	if sign == nil {
		sign = NewSign(r.ids.Next(), r.opts.VotesNeeded, center, r.clock)
		r.signs = append(r.signs, sign)

		r.log.Debug("tracker created", "id", sign.ID(), "x", center.X, "y", center.Y)
	} else {
		sign.center = center
	}

	wasComplete := sign.Complete()
	sign.AddVote(label, instant)

	if !wasComplete && sign.Complete() {
		snap := sign.Snapshot()

		r.log.Debug("tracker finalized", "id", snap.ID, "result", snap.Result,
			"votes", snap.Progress(), "instant", instant)

		if r.opts.OnFinalize != nil {
			r.opts.OnFinalize(snap)
		}
	}

	return sign.ID()
}

// find returns the first Sign in creation order whose last center is within
// the association window of the given center
func (r *Registry) find(center signtrack.Point) *Sign {

	for _, sign := range r.signs {
		dx := absInt(center.X - sign.center.X)
		dy := absInt(center.Y - sign.center.Y)

		if dx < r.opts.Window && dy < r.opts.Window {
			return sign
		}
	}

	return nil
}

// Cleanup removes every unfinished Sign that has not received a vote within
// the timeout.  Finalized Signs are kept until Reset is called.
func (r *Registry) Cleanup() {

	now := r.clock.Now()
	kept := r.signs[:0]

	var expired []Snapshot

	for _, sign := range r.signs {

		if !sign.Complete() && now.Sub(sign.LastSeen()) > r.opts.Timeout {
			expired = append(expired, sign.Snapshot())
			continue
		}

		kept = append(kept, sign)
	}

	// release references held in the tail of the backing array
	for i := len(kept); i < len(r.signs); i++ {
		r.signs[i] = nil
	}

	r.signs = kept

	// hooks run once the registry is consistent so they may query it
	for _, snap := range expired {
		r.log.Debug("tracker expired", "id", snap.ID, "votes", snap.Progress())

		if r.opts.OnExpire != nil {
			r.opts.OnExpire(snap)
		}
	}
}

// Results returns the finalized labels of all current Signs
func (r *Registry) Results() []string {

	results := make([]string, 0, len(r.signs))

	for _, sign := range r.signs {
		if sign.Complete() {
			results = append(results, sign.Result())
		}
	}

	return results
}

// ProgressList returns the vote progress of all unfinished Signs
func (r *Registry) ProgressList() []string {

	progress := make([]string, 0, len(r.signs))

	for _, sign := range r.signs {
		if !sign.Complete() {
			progress = append(progress, sign.Progress())
		}
	}

	return progress
}

// Active returns a snapshot of every current Sign
func (r *Registry) Active() []Snapshot {

	snaps := make([]Snapshot, 0, len(r.signs))

	for _, sign := range r.signs {
		snaps = append(snaps, sign.Snapshot())
	}

	return snaps
}

// Get returns the Sign with the given ID
func (r *Registry) Get(id int) (*Sign, bool) {

	for _, sign := range r.signs {
		if sign.ID() == id {
			return sign, true
		}
	}

	return nil, false
}

// Len returns the number of current Signs
func (r *Registry) Len() int {
	return len(r.signs)
}

// Reset clears all Signs, used when switching streams or cameras.  IDs
// handed out before the reset are not reused.
func (r *Registry) Reset() {

	r.log.Debug("tracker registry reset", "cleared", len(r.signs), "next_id", r.ids.Peek())

	r.signs = nil
}

// absInt returns the absolute value of x
func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
