package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ScenarioNotFoundError is returned when a path holds no scenario files.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files found at %s (want *.yaml or *.yml)", e.Path)
}

// Discover returns the scenario files at path: the file itself, or every
// *.yaml and *.yml file directly inside a directory, sorted by name.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("discover scenarios: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	slices.Sort(files)
	return files, nil
}
