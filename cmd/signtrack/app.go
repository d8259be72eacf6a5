package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/model"
	"github.com/roadsight/signtrack/pipeline"
	"github.com/roadsight/signtrack/roi"
	"github.com/roadsight/signtrack/scheduler"
	"github.com/roadsight/signtrack/source"
	"github.com/roadsight/signtrack/store"
	"github.com/roadsight/signtrack/tracker"
)

// sourceFlags are the flags selecting the frame source
type sourceFlags struct {
	camera int
	video  string
	url    string
	model  string
}

// app holds the assembled pipeline for a single session
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	session string

	live       *config.Live
	models     *model.Service
	detector   *model.ONNXDetector
	classifier *model.ONNXClassifier
	journal    *store.Journal
	region     *roi.Region
	trail      *tracker.Trail
	coord      *pipeline.Coordinator
	capture    *source.Capture
	policy     scheduler.Policy
}

// newApp loads the models, opens the journal and source and wires them into
// a Coordinator
func newApp(cfg *config.Config, logger *slog.Logger, flags sourceFlags) (a *app, err error) {
	spec, err := source.NewSpec(flags.camera, flags.video, flags.url)
	if err != nil {
		return nil, err
	}

	a = &app{
		cfg:     cfg,
		session: uuid.NewString(),
		live:    config.NewLive(cfg.Detection),
		models:  model.NewService(cfg.Paths.ModelsDir, logger),
		trail:   tracker.NewTrail(cfg.Tracking.TrailLength),
	}
	a.log = logger.With("session", a.session)

	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	modelName := cfg.Detection.ModelName
	if flags.model != "" {
		modelName = flags.model
	}

	if a.detector, err = a.models.LoadDetector(modelName, cfg.Detection.LabelsFile); err != nil {
		return a, fmt.Errorf("load detector: %w", err)
	}

	a.classifier, err = a.models.LoadClassifier(cfg.Classifier.ModelName,
		cfg.Classifier.Classes, cfg.Classifier.InputSize)
	if err != nil {
		return a, fmt.Errorf("load classifier: %w", err)
	}

	if a.region, err = roi.FromConfig(cfg.ROI); err != nil {
		return a, fmt.Errorf("region of interest: %w", err)
	}

	if cfg.Paths.JournalPath != "" {
		if a.journal, err = store.Open(cfg.Paths.JournalPath, a.session, a.log); err != nil {
			return a, fmt.Errorf("open journal: %w", err)
		}
	}

	registry := tracker.NewRegistry(tracker.Options{
		VotesNeeded: cfg.Tracking.VotesNeeded,
		Timeout:     cfg.Tracking.Timeout(),
		Window:      cfg.Tracking.AssociationWindow,
		Logger:      a.log,
		OnFinalize:  a.onFinalize,
		OnExpire:    a.onExpire,
	})

	opts := pipeline.Options{
		Detector: a.detector,
		Settings: a.live,
		Classify: cfg.Classifier,
		Registry: registry,
		Logger:   a.log,
	}

	// typed nils must not reach the interfaces
	if a.classifier != nil {
		opts.Classifier = a.classifier
	}
	if a.region != nil {
		opts.Region = a.region
	}

	a.coord = pipeline.NewCoordinator(opts)

	if a.capture, err = source.Open(spec); err != nil {
		return a, err
	}

	a.policy = scheduler.ForSource(a.capture.Kind(), a.capture.FPS(), a.live.FramesPerSecond, nil)

	a.log.Info("pipeline ready",
		"source", spec.String(),
		"kind", a.capture.Kind().String(),
		"source_fps", a.capture.FPS(),
		"policy", a.policy.Name(),
		"detector", modelName,
		"classifier", a.classifier != nil,
		"roi", a.region != nil,
		"journal", cfg.Paths.JournalPath,
	)

	return a, nil
}

func (a *app) onFinalize(snap tracker.Snapshot) {
	a.log.Info("sign finalized", "id", snap.ID, "result", snap.Result, "votes", snap.Progress())
	if a.journal != nil {
		a.journal.Hook()(snap)
	}
}

func (a *app) onExpire(snap tracker.Snapshot) {
	a.log.Info("sign expired", "id", snap.ID, "votes", snap.Progress(),
		"last_seen", snap.LastSeen.Format(time.TimeOnly))
}

// Models lists the detector models, leaving out the classifier model
func (a *app) Models() []string {
	infos, err := a.models.List()
	if err != nil {
		a.log.Warn("listing models failed", "error", err)
		return nil
	}

	classifier, _ := a.models.Path(a.cfg.Classifier.ModelName)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Path != classifier {
			names = append(names, info.Name)
		}
	}
	return names
}

// Switch loads the named detector and hands it to the Coordinator.  It is
// called from the frame loop goroutine by the dashboard.
func (a *app) Switch(name string) error {
	det, err := a.models.Switch(name, a.cfg.Detection.LabelsFile)
	if err != nil {
		a.log.Warn("switching detector failed", "model", name, "error", err)
		return err
	}

	a.detector = det
	a.coord.SetDetector(det)

	a.log.Info("detector switched", "model", name, "labels", len(det.Labels()))
	return nil
}

// budget is the processing time available per frame at the target rate
func (a *app) budget() time.Duration {
	return scheduler.Interval(a.live.FramesPerSecond())
}

// headlessSink logs results as they change instead of drawing them
func (a *app) headlessSink() pipeline.Sink {
	seen := 0
	return pipeline.SinkFunc(func(res pipeline.FrameResult) error {
		a.log.Debug("frame processed", "frame", res.Index, "detections", len(res.Detections),
			"elapsed_ms", res.Elapsed.Milliseconds(), "voting", res.Progress)
		if a.log.Enabled(context.Background(), slog.LevelDebug) {
			a.logVotes(res.Active)
		}
		if len(res.Results) > seen {
			a.log.Info("results", "frame", res.Index, "results", res.Results[seen:],
				"total", len(res.Results))
			seen = len(res.Results)
		}
		return nil
	})
}

// logVotes writes the labels voted so far on each unfinished sign
func (a *app) logVotes(active []tracker.Snapshot) {
	for _, snap := range active {
		if snap.Complete {
			continue
		}
		if sign, ok := a.coord.Registry().Get(snap.ID); ok {
			a.log.Debug("sign voting", "id", snap.ID, "votes", sign.Votes())
		}
	}
}

// Close releases the source, models and journal
func (a *app) Close() error {
	var errs []error
	if a.capture != nil {
		errs = append(errs, a.capture.Close())
	}
	if a.classifier != nil {
		errs = append(errs, a.classifier.Close())
	}
	if a.models != nil {
		a.models.Unload()
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}

func addSourceFlags(flags *sourceFlags, fs interface {
	IntVar(p *int, name string, value int, usage string)
	StringVar(p *string, name string, value string, usage string)
}) {
	fs.IntVar(&flags.camera, "camera", -1, "Camera device index (default 0 when no source is given)")
	fs.StringVar(&flags.video, "video", "", "Video file to process")
	fs.StringVar(&flags.url, "url", "", "Network stream URL (rtsp://, http://)")
	fs.StringVar(&flags.model, "model", "", "Detector model name in the models directory")
}
