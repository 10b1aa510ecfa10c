package actionjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"guardpost/internal/logger"
	"guardpost/pkg/models"
)

// Writer outputs action requests to a JSON lines file. Useful for dry runs
// and replay tests where no executor is attached.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for action requests.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	logger.Infof("Action JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// WriteAction writes one action request.
func (w *Writer) WriteAction(action *models.ModerationActionRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(action); err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
