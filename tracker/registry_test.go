package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/timeutil"
)

// boxAt returns a 40x40 box centered on the given point
func boxAt(x, y int) signtrack.Box {
	return signtrack.NewBox(x-20, y-20, x+20, y+20)
}

func newTestRegistry(opts Options) (*Registry, *timeutil.MockClock) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	opts.Clock = clk
	return NewRegistry(opts), clk
}

func TestRegistryAssociatesWithinWindow(t *testing.T) {
	reg, _ := newTestRegistry(Options{})

	first := reg.AddVote(boxAt(100, 100), "P.127", false)
	second := reg.AddVote(boxAt(150, 120), "P.127", false)
	far := reg.AddVote(boxAt(500, 500), "P.127", false)

	assert.Equal(t, first, second, "jittered detection should map to the same tracker")
	assert.NotEqual(t, first, far, "distant detection should create a new tracker")
	assert.Equal(t, 2, reg.Len())

	sign, ok := reg.Get(first)
	require.True(t, ok)
	assert.Equal(t, signtrack.Point{X: 150, Y: 120}, sign.Center(), "center follows last detection")
	assert.Equal(t, "2/5", sign.Progress())
}

func TestRegistryWindowIsPerAxisAndExclusive(t *testing.T) {
	reg, _ := newTestRegistry(Options{Window: 100})

	id := reg.AddVote(boxAt(200, 200), "A", false)

	// 99px on both axis is still inside the window
	assert.Equal(t, id, reg.AddVote(boxAt(299, 299), "A", false))

	// exactly 100px on one axis is outside
	assert.NotEqual(t, id, reg.AddVote(boxAt(399, 299), "A", false))

	// window is not a radius, a large diagonal within both bounds matches
	reg2, _ := newTestRegistry(Options{Window: 100})
	id2 := reg2.AddVote(boxAt(200, 200), "A", false)
	assert.Equal(t, id2, reg2.AddVote(boxAt(290, 290), "A", false))
}

func TestRegistryFirstMatchWins(t *testing.T) {
	reg, _ := newTestRegistry(Options{})

	a := reg.AddVote(boxAt(100, 100), "A", false)
	b := reg.AddVote(boxAt(250, 100), "B", false)
	require.NotEqual(t, a, b)

	// within the window of both trackers, but nearer to b; the first created
	// tracker in scan order is chosen
	got := reg.AddVote(boxAt(199, 100), "B", false)
	assert.Equal(t, a, got)
}

func TestRegistryVotesOnFinalizedTrackerAreAbsorbed(t *testing.T) {
	reg, _ := newTestRegistry(Options{VotesNeeded: 2})

	id := reg.AddVote(boxAt(100, 100), "A", true)
	again := reg.AddVote(boxAt(110, 100), "B", false)

	assert.Equal(t, id, again, "finalized trackers still take part in association")
	assert.Equal(t, []string{"A"}, reg.Results())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryCleanupTimeout(t *testing.T) {
	reg, clk := newTestRegistry(Options{VotesNeeded: 5, Timeout: 2 * time.Second})

	stale := reg.AddVote(boxAt(100, 100), "A", false)
	done := reg.AddVote(boxAt(500, 500), "B", true)

	clk.Advance(2 * time.Second)
	reg.Cleanup()
	assert.Equal(t, 2, reg.Len(), "exactly the timeout is not yet stale")

	clk.Advance(time.Millisecond)
	reg.Cleanup()

	_, ok := reg.Get(stale)
	assert.False(t, ok, "unfinished stale tracker should be removed")

	_, ok = reg.Get(done)
	assert.True(t, ok, "finalized tracker should survive cleanup")
	assert.Equal(t, []string{"B"}, reg.Results())
	assert.Empty(t, reg.ProgressList())
}

func TestRegistryCleanupKeepsRecentlyVoted(t *testing.T) {
	reg, clk := newTestRegistry(Options{Timeout: time.Second})

	id := reg.AddVote(boxAt(100, 100), "A", false)

	clk.Advance(900 * time.Millisecond)
	reg.AddVote(boxAt(105, 100), "A", false)

	clk.Advance(900 * time.Millisecond)
	reg.Cleanup()

	_, ok := reg.Get(id)
	assert.True(t, ok)
}

func TestRegistryCleanupIdempotent(t *testing.T) {
	reg, clk := newTestRegistry(Options{Timeout: time.Second})

	reg.AddVote(boxAt(100, 100), "A", false)
	reg.AddVote(boxAt(400, 100), "B", true)
	reg.AddVote(boxAt(700, 100), "C", false)

	clk.Advance(2 * time.Second)
	reg.AddVote(boxAt(700, 110), "C", false)

	reg.Cleanup()
	once := reg.Active()

	reg.Cleanup()
	twice := reg.Active()

	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
}

func TestRegistryIDsNeverReused(t *testing.T) {
	reg, clk := newTestRegistry(Options{Timeout: time.Second})

	first := reg.AddVote(boxAt(100, 100), "A", false)
	clk.Advance(2 * time.Second)
	reg.Cleanup()
	require.Equal(t, 0, reg.Len())

	second := reg.AddVote(boxAt(100, 100), "A", false)
	assert.Greater(t, second, first)

	reg.Reset()
	third := reg.AddVote(boxAt(100, 100), "A", false)
	assert.Greater(t, third, second)
}

func TestRegistryResultsAndProgressOrder(t *testing.T) {
	reg, _ := newTestRegistry(Options{VotesNeeded: 3})

	reg.AddVote(boxAt(100, 100), "A", false)
	reg.AddVote(boxAt(400, 100), "B", true)
	reg.AddVote(boxAt(700, 100), "C", false)
	reg.AddVote(boxAt(700, 100), "C", false)
	reg.AddVote(boxAt(1000, 100), "D", true)

	assert.Equal(t, []string{"B", "D"}, reg.Results())
	assert.Equal(t, []string{"1/3", "2/3"}, reg.ProgressList())
}

func TestRegistryEmpty(t *testing.T) {
	reg, _ := newTestRegistry(Options{})

	reg.Cleanup()
	assert.Empty(t, reg.Results())
	assert.Empty(t, reg.ProgressList())
	assert.Empty(t, reg.Active())

	reg.Reset()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryHooks(t *testing.T) {
	var finalized, expired []Snapshot

	reg, clk := newTestRegistry(Options{
		VotesNeeded: 2,
		Timeout:     time.Second,
		OnFinalize:  func(s Snapshot) { finalized = append(finalized, s) },
		OnExpire:    func(s Snapshot) { expired = append(expired, s) },
	})

	reg.AddVote(boxAt(100, 100), "A", false)
	reg.AddVote(boxAt(100, 100), "A", false)
	reg.AddVote(boxAt(100, 100), "A", false)
	reg.AddVote(boxAt(600, 100), "B", false)

	clk.Advance(2 * time.Second)
	reg.Cleanup()

	require.Len(t, finalized, 1, "finalize hook fires once per tracker")
	assert.Equal(t, "A", finalized[0].Result)
	assert.Equal(t, "2/2", finalized[0].Progress())

	require.Len(t, expired, 1)
	assert.Equal(t, "1/2", expired[0].Progress())
	assert.False(t, expired[0].Complete)
}

func TestRegistryExpireHookSeesCompactedState(t *testing.T) {
	var (
		reg      *Registry
		lens     []int
		activeID [][]int
	)

	reg, clk := newTestRegistry(Options{
		VotesNeeded: 5,
		Timeout:     time.Second,
		OnExpire: func(s Snapshot) {
			lens = append(lens, reg.Len())
			var ids []int
			for _, a := range reg.Active() {
				ids = append(ids, a.ID)
			}
			activeID = append(activeID, ids)
		},
	})

	first := reg.AddVote(boxAt(100, 100), "A", false)
	second := reg.AddVote(boxAt(400, 100), "B", false)

	clk.Advance(800 * time.Millisecond)
	kept := reg.AddVote(boxAt(700, 100), "C", false)

	clk.Advance(400 * time.Millisecond)
	reg.Cleanup()

	require.Len(t, lens, 2, "one call per expired tracker")
	assert.Equal(t, []int{1, 1}, lens)
	assert.Equal(t, [][]int{{kept}, {kept}}, activeID)

	_, ok := reg.Get(first)
	assert.False(t, ok)
	_, ok = reg.Get(second)
	assert.False(t, ok)
}
