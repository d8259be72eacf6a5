package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Detection contains the object detector settings.  These are re-read by
// the pipeline on every frame so changes made at runtime apply immediately.
type Detection struct {
	ModelName       string   `toml:"model_name"`
	LabelsFile      string   `toml:"labels_file"`
	FramesPerSecond int      `toml:"frames_per_second"`
	InputSize       int      `toml:"input_size"`
	ConfThreshold   float64  `toml:"conf_threshold"`
	TargetClasses   []string `toml:"target_classes"`
	ExcludeClasses  []string `toml:"exclude_classes"`
}

// Classifier contains the speed limit sub classifier settings.
type Classifier struct {
	ModelName string `toml:"model_name"`
	// TriggerClass is the detector label whose crops are sent to the
	// classifier
	TriggerClass string `toml:"trigger_class"`
	// MinAccept is the confidence a classification must exceed to relabel
	// the detection and cast a vote
	MinAccept float64 `toml:"min_accept"`
	// Instant is the confidence above which a single classification
	// finalizes the tracker without waiting for more votes
	Instant   float64  `toml:"instant"`
	InputSize int      `toml:"input_size"`
	Classes   []string `toml:"classes"`
}

// Tracking contains the consensus voting settings.
type Tracking struct {
	VotesNeeded       int     `toml:"votes_needed"`
	TimeoutSeconds    float64 `toml:"timeout_seconds"`
	AssociationWindow int     `toml:"association_window"`
	TrailLength       int     `toml:"trail_length"`
}

// Timeout returns the tracker expiry timeout as a duration.
func (t Tracking) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds * float64(time.Second))
}

// ROI contains the optional region of interest polygon in frame pixels.
type ROI struct {
	Points [][]int `toml:"points"`
	Margin int     `toml:"margin"`
}

// Paths contains file and directory locations.
type Paths struct {
	ModelsDir   string `toml:"models_dir"`
	LogDir      string `toml:"log_dir"`
	JournalPath string `toml:"journal_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Server contains the HTTP streaming server settings.
type Server struct {
	HTTPAddr string `toml:"http_addr"`
}

// Config encapsulates all configuration values for signtrack.
//
// Configuration sections by subsystem:
//   - Detection: detector model, processing rate and active class list
//   - Classifier: speed sign sub classifier and its thresholds
//   - Tracking: vote count, tracker timeout and association window
//   - ROI: region of interest gating detections
//   - Paths: models, logs and result journal locations
//   - Logging: log format and level
//   - Server: HTTP stream bind address
type Config struct {
	Detection  Detection  `toml:"detection"`
	Classifier Classifier `toml:"classifier"`
	Tracking   Tracking   `toml:"tracking"`
	ROI        ROI        `toml:"roi"`
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Server     Server     `toml:"server"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/signtrack/config.toml")
}

// Load locates, parses, and validates a configuration file.  A .env file in
// the working directory is loaded first so its variables can override file
// values.  The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {

	// missing .env is not an error, variables may come from the environment
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Parse decodes TOML data on top of the values already in cfg.
func Parse(data []byte, cfg *Config) error {
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Save writes the configuration to path as TOML, creating the parent
// directory when needed.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal encodes the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// EnsureDirectories creates the directories signtrack writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ModelsDir, c.Paths.LogDir}
	if c.Paths.JournalPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.JournalPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("signtrack.toml")
	if err != nil {
		return "", false, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnv overrides selected values from SIGNTRACK_* environment variables.
func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("SIGNTRACK_MODELS_DIR"); ok {
		c.Paths.ModelsDir = v
	}
	if v, ok := lookupEnv("SIGNTRACK_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv("SIGNTRACK_HTTP_ADDR"); ok {
		c.Server.HTTPAddr = v
	}
	if v, ok := lookupEnv("SIGNTRACK_FPS"); ok {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SIGNTRACK_FPS=%q is not an integer", ErrInvalid, v)
		}
		c.Detection.FramesPerSecond = fps
	}
	if v, ok := lookupEnv("SIGNTRACK_CONF_THRESHOLD"); ok {
		conf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SIGNTRACK_CONF_THRESHOLD=%q is not a number", ErrInvalid, v)
		}
		c.Detection.ConfThreshold = conf
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return err
	}

	c.Detection.TargetClasses = trimList(c.Detection.TargetClasses)
	c.Detection.ExcludeClasses = trimList(c.Detection.ExcludeClasses)
	c.Classifier.TriggerClass = strings.TrimSpace(c.Classifier.TriggerClass)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Detection.LabelsFile != "" && !filepath.IsAbs(c.Detection.LabelsFile) {
		c.Detection.LabelsFile = filepath.Join(c.Paths.ModelsDir, c.Detection.LabelsFile)
	}
	return nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
