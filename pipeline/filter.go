package pipeline

import (
	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/config"
)

// filterDetections keeps the detections whose label is in the target class
// list and not excluded, and whose center lies in the region when one is
// given.  An empty target list allows every label.
func filterDetections(dets []signtrack.Detection, settings config.Detection,
	region Region) []signtrack.Detection {

	kept := dets[:0:0]

	for _, det := range dets {

		if len(settings.TargetClasses) > 0 && !signtrack.ContainsLabel(settings.TargetClasses, det.Label) {
			continue
		}

		if signtrack.ContainsLabel(settings.ExcludeClasses, det.Label) {
			continue
		}

		if region != nil && !region.Contains(det.Box.Center()) {
			continue
		}

		kept = append(kept, det)
	}

	return kept
}
