package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Descriptor identifies a single worker configuration file.
type Descriptor struct {
	// ID is the file name of the configuration, e.g. `a.yaml`
	ID string

	// Path is the full path of the configuration file
	Path string
}

// Discover lists the worker configurations in dir. Only regular files
// ending in suffix are returned, in directory order. Everything else
// is skipped and logged at debug level.
func Discover(dir, suffix string, log *zap.Logger) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigDirectory, err)
	}

	descriptors := make([]Descriptor, 0, len(entries))

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if !strings.HasSuffix(entry.Name(), suffix) {
			log.Debug("skipping entry",
				zap.String("path", path),
				zap.String("reason", "suffix mismatch"),
			)
			continue
		}

		// follow symlinks, e.g. configmap mounts
		info, err := os.Stat(path)
		if err != nil {
			log.Debug("skipping entry",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		if !info.Mode().IsRegular() {
			log.Debug("skipping entry",
				zap.String("path", path),
				zap.String("reason", "not a regular file"),
			)
			continue
		}

		descriptors = append(descriptors, Descriptor{
			ID:   entry.Name(),
			Path: path,
		})
	}

	return descriptors, nil
}
