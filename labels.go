package signtrack

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the class names used to train a Model from the given text
// file.  It should contain one label per line, blank lines are skipped.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file: %w", err)
	}

	return labels, nil
}

// ContainsLabel checks if a given label exists in the slice
func ContainsLabel(labels []string, label string) bool {

	for _, l := range labels {
		if l == label {
			return true
		}
	}

	return false
}
