// Package validation checks the local files a command line run reads and writes.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

// PathValidator validates input and output paths before a job is submitted
type PathValidator struct {
	logger *slog.Logger
}

// NewPathValidator creates a new path validator
func NewPathValidator(logger *slog.Logger) *PathValidator {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &PathValidator{
		logger: logger.With(slog.String("component", "path_validator")),
	}
}

// ValidateInputFile checks that path is a readable regular file no larger
// than maxBytes. maxBytes <= 0 disables the size check.
func (v *PathValidator) ValidateInputFile(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		v.logger.Warn("input_file_too_large",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("max_bytes", maxBytes))
		return fmt.Errorf("file %s is %d bytes, limit is %d", path, info.Size(), maxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("input_file_validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputFile checks that path ends in ext and that its directory
// exists or can be created and is writable
func (v *PathValidator) ValidateOutputFile(path, ext string) error {
	if ext != "" && !strings.EqualFold(filepath.Ext(path), ext) {
		return fmt.Errorf("output %s must have extension %s", path, ext)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	v.logger.Debug("output_path_validated", slog.String("file", path))
	return nil
}
