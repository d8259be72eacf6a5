package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/timeutil"
)

func newTestSign(target int) (*Sign, *timeutil.MockClock) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	return NewSign(0, target, signtrack.Point{X: 30, Y: 30}, clk), clk
}

func TestSignFinalizesOnTargetVote(t *testing.T) {
	sign, _ := newTestSign(3)

	sign.AddVote("P.127-50", false)
	sign.AddVote("P.127-50", false)
	assert.False(t, sign.Complete())
	assert.Equal(t, "2/3", sign.Progress())
	assert.Empty(t, sign.Result())

	sign.AddVote("P.127-60", false)
	require.True(t, sign.Complete())
	assert.Equal(t, "P.127-50", sign.Result())
}

func TestSignInstantCompleteShortCircuits(t *testing.T) {
	sign, _ := newTestSign(5)

	sign.AddVote("P.127-40", false)
	sign.AddVote("P.127-50", true)

	require.True(t, sign.Complete())
	// majority over the votes accumulated so far, tie goes to first seen
	assert.Equal(t, "P.127-40", sign.Result())
	assert.Len(t, sign.Votes(), 2)
}

func TestSignIgnoresVotesAfterFinalize(t *testing.T) {
	sign, clk := newTestSign(2)

	sign.AddVote("A", false)
	sign.AddVote("A", false)
	require.True(t, sign.Complete())
	seen := sign.LastSeen()

	clk.Advance(time.Second)
	sign.AddVote("B", true)
	sign.AddVote("B", false)
	sign.AddVote("B", false)

	assert.Equal(t, "A", sign.Result())
	assert.Equal(t, []string{"A", "A"}, sign.Votes())
	assert.Equal(t, seen, sign.LastSeen(), "finalized sign must not refresh last seen")
}

func TestSignFinalizesExactlyOnce(t *testing.T) {
	tests := []struct {
		name      string
		target    int
		votes     []string
		instantAt int
		doneAfter int
		want      string
	}{
		{"target reached", 4, []string{"A", "B", "B", "A", "B", "B"}, -1, 4, "A"},
		{"instant first", 4, []string{"C", "A", "A"}, 0, 1, "C"},
		{"instant before target", 5, []string{"A", "B", "B", "A", "A"}, 2, 3, "B"},
		{"target of one", 1, []string{"X", "Y"}, -1, 1, "X"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sign, _ := newTestSign(tc.target)
			transitions := 0

			for i, v := range tc.votes {
				before := sign.Complete()
				sign.AddVote(v, i == tc.instantAt)

				if !before && sign.Complete() {
					transitions++
					assert.Equal(t, tc.doneAfter, i+1, "finalized on wrong vote")
				}
			}

			assert.Equal(t, 1, transitions)
			assert.Equal(t, tc.want, sign.Result())
		})
	}
}

func TestMajority(t *testing.T) {
	tests := []struct {
		votes []string
		want  string
	}{
		{[]string{"A", "A", "B", "A", "B"}, "A"},
		{[]string{"A", "B"}, "A"},
		{[]string{"B", "A"}, "B"},
		{[]string{"B", "A", "A", "B", "C"}, "B"},
		{[]string{"C", "B", "B"}, "B"},
		{[]string{"Z"}, "Z"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, majority(tc.votes), "votes %v", tc.votes)
	}
}

func TestMajorityScenarioFromFiveVotes(t *testing.T) {
	sign, _ := newTestSign(5)

	for _, v := range []string{"A", "A", "B", "A", "B"} {
		sign.AddVote(v, false)
	}

	require.True(t, sign.Complete())
	assert.Equal(t, "A", sign.Result())
}

func TestNewSignRaisesTarget(t *testing.T) {
	sign, _ := newTestSign(0)
	sign.AddVote("A", false)
	assert.True(t, sign.Complete())
}
