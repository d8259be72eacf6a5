// Package model loads the ONNX detector and speed limit classifier and
// manages the model files kept in the models directory.
package model

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roadsight/signtrack"
	"github.com/roadsight/signtrack/logging"
)

// Extension is the file extension of model files
const Extension = ".onnx"

var (
	// ErrNotFound is returned when a model file does not exist
	ErrNotFound = errors.New("model not found")
	// ErrInUse is returned when deleting the currently loaded model
	ErrInUse = errors.New("model is loaded")
)

// Info describes a model file in the models directory
type Info struct {
	Name    string
	Path    string
	Size    int64
	MD5     string
	ModTime time.Time
}

// Service manages the model files in a directory and the detector loaded
// from one of them
type Service struct {
	mu       sync.Mutex
	dir      string
	log      *slog.Logger
	current  *Info
	detector *ONNXDetector
}

// NewService returns a Service for the models in dir
func NewService(dir string, logger *slog.Logger) *Service {

	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		dir: dir,
		log: logger.With("component", "models"),
	}
}

// Dir returns the models directory
func (s *Service) Dir() string {
	return s.dir
}

// List returns every model file in the models directory sorted by name.  A
// missing directory has no models.
func (s *Service) List() ([]Info, error) {

	entries, err := os.ReadDir(s.dir)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read models directory: %w", err)
	}

	var models []Info

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}

		info, err := s.Stat(entry.Name())
		if err != nil {
			return nil, err
		}

		models = append(models, info)
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return models, nil
}

// Stat returns the details of the named model, the extension may be omitted
func (s *Service) Stat(name string) (Info, error) {

	path, err := s.Path(name)
	if err != nil {
		return Info{}, err
	}

	fi, err := os.Stat(path)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Info{}, fmt.Errorf("stat model: %w", err)
	}

	sum, err := fileMD5(path)
	if err != nil {
		return Info{}, err
	}

	return Info{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    fi.Size(),
		MD5:     sum,
		ModTime: fi.ModTime(),
	}, nil
}

// Path returns the file path of the named model, appending the extension
// when missing.  Names must not contain directories.
func (s *Service) Path(name string) (string, error) {

	name = strings.TrimSpace(name)

	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid model name %q", ErrNotFound, name)
	}

	if !strings.EqualFold(filepath.Ext(name), Extension) {
		name += Extension
	}

	return filepath.Join(s.dir, name), nil
}

// LoadDetector loads the named detector model, replacing any detector
// previously loaded by the Service.  Labels are read from labelsFile when
// it exists.
func (s *Service) LoadDetector(name, labelsFile string) (*ONNXDetector, error) {

	info, err := s.Stat(name)
	if err != nil {
		return nil, err
	}

	var labels []string

	if labelsFile != "" {
		labels, err = signtrack.LoadLabels(labelsFile)

		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			s.log.Warn("labels file not found, using class ids", "path", labelsFile)
		}
	}

	det, err := NewONNXDetector(info.Path, labels, s.log)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detector != nil {
		s.detector.Close()
	}

	s.detector = det
	s.current = &info

	return det, nil
}

// Switch replaces the loaded detector with the named one.  The current
// detector stays loaded when the named model fails to load, and is returned
// as is when it already is the named model.
func (s *Service) Switch(name, labelsFile string) (*ONNXDetector, error) {

	path, err := s.Path(name)
	if err != nil {
		return nil, fmt.Errorf("switch detector to %s: %w", name, err)
	}

	s.mu.Lock()
	if s.detector != nil && s.current != nil && s.current.Path == path {
		det := s.detector
		s.mu.Unlock()
		return det, nil
	}
	s.mu.Unlock()

	det, err := s.LoadDetector(name, labelsFile)
	if err != nil {
		return nil, fmt.Errorf("switch detector to %s: %w", name, err)
	}

	return det, nil
}

// Unload closes the current detector
func (s *Service) Unload() {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detector != nil {
		s.detector.Close()
	}

	s.detector = nil
	s.current = nil
}

// Current returns the details of the loaded detector model
func (s *Service) Current() (Info, bool) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Info{}, false
	}

	return *s.current, true
}

// LoadClassifier loads the named classifier model.  A missing model file is
// not an error, the pipeline runs without sub classification and nil is
// returned.
func (s *Service) LoadClassifier(name string, classes []string, inputSize int) (*ONNXClassifier, error) {

	info, err := s.Stat(name)

	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("classifier model not found, speed classification disabled", "name", name)
			return nil, nil
		}
		return nil, err
	}

	return NewONNXClassifier(info.Path, classes, inputSize, s.log)
}

// Delete removes the named model file.  The loaded detector model can not
// be deleted.
func (s *Service) Delete(name string) error {

	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Path == path {
		return fmt.Errorf("%w: %s", ErrInUse, filepath.Base(path))
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("delete model: %w", err)
	}

	s.log.Info("model deleted", "path", path)

	return nil
}

// fileMD5 returns the hex encoded MD5 checksum of the file at path
func fileMD5(path string) (string, error) {

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	h := md5.New()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum model: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
