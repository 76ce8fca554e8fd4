package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Writer saves experiment records as pretty-printed JSON, one file per
// experiment, named <name>-<id>.json under the configured directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		dir = "results"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Write persists one experiment and returns the file path.
func (w *Writer) Write(rec *ExperimentRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal experiment: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.json", rec.Name, rec.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write experiment file: %w", err)
	}

	w.logger.Info("Experiment results written",
		zap.String("experiment_id", rec.ID),
		zap.String("path", path),
	)
	return path, nil
}

// Load reads a previously written experiment file.
func Load(path string) (*ExperimentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}
	var rec ExperimentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse experiment file: %w", err)
	}
	return &rec, nil
}
