package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveToggleClass(t *testing.T) {
	live := NewLive(Default().Detection)

	assert.True(t, live.ClassActive("P.127"))

	assert.False(t, live.ToggleClass("P.127"))
	assert.False(t, live.ClassActive("P.127"))
	assert.Empty(t, live.Detection().TargetClasses)

	assert.True(t, live.ToggleClass("W.201"))
	assert.Equal(t, []string{"W.201"}, live.Detection().TargetClasses)
}

func TestLiveDetectionIsACopy(t *testing.T) {
	live := NewLive(Default().Detection)

	det := live.Detection()
	det.TargetClasses[0] = "changed"

	assert.Equal(t, []string{"P.127"}, live.Detection().TargetClasses)
}

func TestLiveUpdateValidates(t *testing.T) {
	live := NewLive(Default().Detection)

	det := live.Detection()
	det.FramesPerSecond = 0
	require.ErrorIs(t, live.Update(det), ErrInvalid)
	assert.Equal(t, 5, live.FramesPerSecond())

	det.FramesPerSecond = 10
	require.NoError(t, live.Update(det))
	assert.Equal(t, 10, live.FramesPerSecond())
}

func TestLiveConcurrentAccess(t *testing.T) {
	live := NewLive(Default().Detection)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				live.ToggleClass("P.102")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = live.Detection()
			}
		}()
	}

	wg.Wait()

	// an even number of toggles leaves the class inactive
	assert.False(t, live.ClassActive("P.102"))
}
