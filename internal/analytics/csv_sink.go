// Package analytics records one structured event per processed turn.
package analytics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"honeypot/internal/models"
)

// Header is the column layout of the events file.
var Header = []string{
	"timestamp", "session_id", "sender_text", "agent_reply", "scam_detected",
	"confidence", "message_count", "callback_sent", "intelligence_json", "metadata_json",
}

// Event describes one completed turn.
type Event struct {
	Timestamp    time.Time
	SessionID    string
	SenderText   string
	AgentReply   string
	ScamDetected bool
	Confidence   float64
	MessageCount int
	CallbackSent bool
	Intelligence models.IntelligenceRecord
	Metadata     models.Metadata
}

// CSVSink appends events to a CSV file, writing the header when it
// creates the file.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Record(e Event) error {
	intel, err := json.Marshal(e.Intelligence)
	if err != nil {
		return fmt.Errorf("failed to marshal intelligence: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	row := []string{
		e.Timestamp.Format(time.RFC3339Nano),
		e.SessionID,
		e.SenderText,
		e.AgentReply,
		boolFlag(e.ScamDetected),
		strconv.FormatFloat(e.Confidence, 'f', -1, 64),
		strconv.Itoa(e.MessageCount),
		boolFlag(e.CallbackSent),
		string(intel),
		string(meta),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create log dir: %v", models.ErrPersistence, err)
		}
	}

	_, statErr := os.Stat(s.path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open events log: %v", models.ErrPersistence, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("%w: write header: %v", models.ErrPersistence, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("%w: write event: %v", models.ErrPersistence, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush events log: %v", models.ErrPersistence, err)
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
