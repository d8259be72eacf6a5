package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsight/signtrack/timeutil"
)

func fixed(fps int) TargetFunc {
	return func() int { return fps }
}

func TestSkipFrames(t *testing.T) {
	tests := []struct {
		source float64
		target int
		want   int
	}{
		{30, 5, 6},
		{29.97, 5, 6},
		{25, 5, 5},
		{24, 5, 5},
		{60, 8, 8},
		{27, 6, 5},
		{4, 5, 1},
		{0, 5, 1},
		{-1, 5, 1},
		{math.NaN(), 5, 1},
		{math.Inf(1), 5, 1},
		{30, 0, 1},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, SkipFrames(tc.source, tc.target), "source=%v target=%d", tc.source, tc.target)
	}
}

func TestFilePolicyAdmitsEverySixthFrame(t *testing.T) {
	p := NewFilePolicy(30, 5)
	require.Equal(t, 6, p.Skip())

	var admitted []int

	for frame := 1; frame <= 20; frame++ {
		if p.Admit() {
			admitted = append(admitted, frame)
		}
	}

	assert.Equal(t, []int{6, 12, 18}, admitted)
}

func TestFilePolicyProcessesFloorNOverSkip(t *testing.T) {
	for _, n := range []int{0, 5, 6, 7, 59, 60, 61, 1000} {
		p := NewFilePolicy(30, 5)
		count := 0

		for i := 0; i < n; i++ {
			if p.Admit() {
				count++
			}
		}

		assert.Equal(t, n/6, count, "n=%d", n)
	}
}

func TestFilePolicyReset(t *testing.T) {
	p := NewFilePolicy(30, 10)

	p.Admit()
	p.Admit()
	p.Reset()

	assert.False(t, p.Admit())
	assert.False(t, p.Admit())
	assert.True(t, p.Admit())
}

func TestFilePolicyUnknownFPSProcessesAll(t *testing.T) {
	p := NewFilePolicy(0, 5)

	for i := 0; i < 10; i++ {
		assert.True(t, p.Admit())
	}
}

func TestLivePolicyThrottlesToInterval(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	p := NewLivePolicy(fixed(5), clk)

	// camera delivering 25fps, processing targeted at 5fps
	var admitted []int

	for frame := 1; frame <= 60; frame++ {
		clk.Advance(40 * time.Millisecond)
		if p.Admit() {
			admitted = append(admitted, frame)
		}
	}

	// 2.4 seconds of frames at a 200ms interval
	require.Len(t, admitted, 12)
	assert.Equal(t, []int{5, 10, 15}, admitted[:3])
}

func TestLivePolicyIntervalBoundary(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	p := NewLivePolicy(fixed(5), clk)

	clk.Advance(199 * time.Millisecond)
	assert.False(t, p.Admit(), "interval not yet elapsed since start")

	clk.Advance(time.Millisecond)
	assert.True(t, p.Admit(), "exactly one interval is admitted")

	assert.False(t, p.Admit(), "same instant is not admitted twice")
}

func TestLivePolicyRereadsTarget(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	fps := 1
	p := NewLivePolicy(func() int { return fps }, clk)

	clk.Advance(500 * time.Millisecond)
	assert.False(t, p.Admit())

	fps = 2
	assert.True(t, p.Admit(), "new 500ms interval applies on the next frame")
}

func TestLivePolicyZeroTargetAdmitsAll(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC))
	p := NewLivePolicy(fixed(0), clk)

	assert.True(t, p.Admit())
	assert.True(t, p.Admit())
}

func TestForSource(t *testing.T) {
	clk := timeutil.NewMockClock(time.Unix(0, 0))

	file := ForSource(File, 30, fixed(5), clk)
	require.IsType(t, &FilePolicy{}, file)
	assert.Equal(t, "file skip=6", file.Name())

	live := ForSource(Live, 30, fixed(5), clk)
	require.IsType(t, &LivePolicy{}, live)
	assert.Equal(t, "live interval=200ms", live.Name())
}
