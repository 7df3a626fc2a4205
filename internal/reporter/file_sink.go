package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"honeypot/internal/models"
)

// separator follows every record in the sink file.
var separator = strings.Repeat("=", 80)

// FileSink appends reports to a local file. It is the durable fallback
// when the callback cannot be reached.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Path() string {
	return f.path
}

// Send appends p as indented JSON followed by a separator line.
func (f *FileSink) Send(_ context.Context, p Payload) (*Result, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	buf.WriteString(separator + "\n")

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create report dir: %v", models.ErrPersistence, err)
		}
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open report file: %v", models.ErrPersistence, err)
	}
	defer file.Close()

	if _, err := file.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: write report file: %v", models.ErrPersistence, err)
	}

	return &Result{
		Success:    true,
		StatusCode: 200,
		Response:   "Logged to " + f.path,
		Timestamp:  time.Now(),
	}, nil
}
