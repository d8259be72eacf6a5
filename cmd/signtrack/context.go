package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/logging"
)

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			cfg.Logging.Level = strings.ToLower(v)
		}
		if v := strings.TrimSpace(c.flags.logFormat); v != "" {
			cfg.Logging.Format = strings.ToLower(v)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// logger builds the logger for a command from the loaded configuration.
// The returned function closes the log file.
func (c *commandContext) logger() (*slog.Logger, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	return logging.NewFromConfig(cfg)
}

// saveDetection writes the dashboard adjustable detection settings back to
// the config file the session was started with.  Other values keep their file
// contents so environment and flag overrides are not persisted.  Nothing is
// written when the session runs on defaults.
func (c *commandContext) saveDetection(det config.Detection) (bool, error) {
	if !c.configSeen {
		return false, nil
	}

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return false, fmt.Errorf("read config: %w", err)
	}

	cfg := config.Default()
	if err := config.Parse(data, &cfg); err != nil {
		return false, err
	}

	cfg.Detection.ModelName = det.ModelName
	cfg.Detection.FramesPerSecond = det.FramesPerSecond
	cfg.Detection.ConfThreshold = det.ConfThreshold
	cfg.Detection.TargetClasses = det.TargetClasses

	if err := cfg.Save(c.configPath); err != nil {
		return false, err
	}
	return true, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
