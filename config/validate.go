package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateROI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// Validate checks the detection settings on their own, used when settings
// are changed at runtime.
func (d Detection) Validate() error {
	if d.FramesPerSecond < 1 {
		return fmt.Errorf("%w: detection.frames_per_second must be at least 1", ErrInvalid)
	}
	if d.InputSize < 32 || d.InputSize%32 != 0 {
		return fmt.Errorf("%w: detection.input_size must be a positive multiple of 32", ErrInvalid)
	}
	if d.ConfThreshold < 0 || d.ConfThreshold > 1 {
		return fmt.Errorf("%w: detection.conf_threshold must be between 0 and 1", ErrInvalid)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	cls := c.Classifier
	if strings.TrimSpace(cls.TriggerClass) == "" {
		return fmt.Errorf("%w: classifier.trigger_class must not be empty", ErrInvalid)
	}
	if cls.MinAccept < 0 || cls.MinAccept > 1 {
		return fmt.Errorf("%w: classifier.min_accept must be between 0 and 1", ErrInvalid)
	}
	if cls.Instant < 0 || cls.Instant > 1 {
		return fmt.Errorf("%w: classifier.instant must be between 0 and 1", ErrInvalid)
	}
	if cls.Instant < cls.MinAccept {
		return fmt.Errorf("%w: classifier.instant must not be below classifier.min_accept", ErrInvalid)
	}
	if cls.InputSize < 1 {
		return fmt.Errorf("%w: classifier.input_size must be positive", ErrInvalid)
	}
	if len(cls.Classes) == 0 {
		return fmt.Errorf("%w: classifier.classes must not be empty", ErrInvalid)
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.VotesNeeded < 1 {
		return fmt.Errorf("%w: tracking.votes_needed must be at least 1", ErrInvalid)
	}
	if c.Tracking.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: tracking.timeout_seconds must be positive", ErrInvalid)
	}
	if c.Tracking.AssociationWindow < 1 {
		return fmt.Errorf("%w: tracking.association_window must be at least 1", ErrInvalid)
	}
	if c.Tracking.TrailLength < 0 {
		return fmt.Errorf("%w: tracking.trail_length must not be negative", ErrInvalid)
	}
	return nil
}

func (c *Config) validateROI() error {
	if len(c.ROI.Points) == 0 {
		return nil
	}
	if len(c.ROI.Points) < 3 {
		return fmt.Errorf("%w: roi.points needs at least 3 vertices", ErrInvalid)
	}
	for i, pt := range c.ROI.Points {
		if len(pt) != 2 {
			return fmt.Errorf("%w: roi.points[%d] must be an [x, y] pair", ErrInvalid, i)
		}
	}
	if c.ROI.Margin < 0 {
		return fmt.Errorf("%w: roi.margin must not be negative", ErrInvalid)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format must be auto, console or json", ErrInvalid)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn or error", ErrInvalid)
	}
	return nil
}
