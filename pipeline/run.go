package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/roadsight/signtrack/scheduler"
)

// Source supplies frames to the loop.  Read returns false once the source
// is exhausted or has failed.
type Source interface {
	Read(img *gocv.Mat) bool
}

// Summary describes a completed run of the frame loop
type Summary struct {
	// FramesRead is the number of frames read from the source
	FramesRead int
	// FramesProcessed is the number of frames admitted by the policy
	FramesProcessed int
	// Stopped is true when a sink ended the loop
	Stopped bool
	Stats   Stats
	Results []string
}

// Run reads frames from src until it is exhausted, ctx is cancelled or a sink
// returns ErrStop.  Every frame is read so live sources are drained, but only
// frames admitted by policy are processed and handed to the sinks.
// Cancellation is checked between frames, a frame being processed is always
// completed.
func (c *Coordinator) Run(ctx context.Context, src Source, policy scheduler.Policy,
	sinks ...Sink) (sum Summary, err error) {

	img := gocv.NewMat()
	defer img.Close()

	c.log.Info("frame loop started", "policy", policy.Name())

	defer func() {
		sum.Stats = c.Stats()
		sum.Results = c.registry.Results()

		c.log.Info("frame loop finished", "read", sum.FramesRead,
			"processed", sum.FramesProcessed, "stats", sum.Stats.String())
	}()

	for {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		if ok := src.Read(&img); !ok {
			// source exhausted
			return sum, nil
		}

		sum.FramesRead++

		if img.Empty() {
			continue
		}

		if !policy.Admit() {
			continue
		}

		sum.FramesProcessed++

		dets, elapsed := c.ProcessFrame(img)
		res := c.Result(sum.FramesRead, img, dets, elapsed)

		for _, sink := range sinks {
			if err = sink.Render(res); err != nil {
				if errors.Is(err, ErrStop) {
					sum.Stopped = true
					return sum, nil
				}

				return sum, fmt.Errorf("render frame %d: %w", sum.FramesRead, err)
			}
		}
	}
}
