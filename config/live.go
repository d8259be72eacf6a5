package config

import (
	"slices"
	"sync"
)

// Live holds the settings that may change while the pipeline is running.
// The dashboard mutates it from key presses and the pipeline re-reads it on
// every frame, so all access is guarded.
type Live struct {
	mu  sync.RWMutex
	det Detection
}

// NewLive returns a Live seeded with the detection settings of cfg.
func NewLive(det Detection) *Live {
	return &Live{det: cloneDetection(det)}
}

// Detection returns a copy of the current detection settings.
func (l *Live) Detection() Detection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneDetection(l.det)
}

// FramesPerSecond returns the current target processing rate.
func (l *Live) FramesPerSecond() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.det.FramesPerSecond
}

// ClassActive reports whether name is in the target class list.
func (l *Live) ClassActive(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.det.TargetClasses, name)
}

// ToggleClass adds name to the target class list or removes it when already
// present, returning whether the class is now active.
func (l *Live) ToggleClass(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := slices.Index(l.det.TargetClasses, name); i >= 0 {
		l.det.TargetClasses = slices.Delete(l.det.TargetClasses, i, i+1)
		return false
	}
	l.det.TargetClasses = append(l.det.TargetClasses, name)
	return true
}

// SetTargetClasses replaces the target class list.
func (l *Live) SetTargetClasses(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.det.TargetClasses = slices.Clone(names)
}

// Update replaces all detection settings after validating them.
func (l *Live) Update(det Detection) error {
	if err := det.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.det = cloneDetection(det)
	return nil
}

func cloneDetection(d Detection) Detection {
	d.TargetClasses = slices.Clone(d.TargetClasses)
	d.ExcludeClasses = slices.Clone(d.ExcludeClasses)
	return d
}
