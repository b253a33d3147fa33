// Package audit persists one record per analysis request as canonicalized
// JSONL. Records are redacted and truncated before they touch disk so the
// trail never stores credentials or unbounded payloads.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/promptops/insightgate/internal/redact"
)

// Truncation bounds applied before a record is written.
const (
	MaxPromptChars   = 1000
	MaxResponseChars = 5000
)

// Outcome is the terminal state of a request.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeErrored   Outcome = "errored"
)

// Record is one audit trail entry. Exactly one record exists per request,
// regardless of outcome.
type Record struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Actor     string  `json:"actor"`
	Mode      string  `json:"mode"`
	Outcome   Outcome `json:"outcome"`

	TemplateID     string `json:"template_id,omitempty"`
	Prompt         string `json:"prompt"`
	RenderedPrompt string `json:"rendered_prompt,omitempty"`
	Response       string `json:"response,omitempty"`

	Filtered     bool   `json:"filtered"`
	FilterReason string `json:"filter_reason,omitempty"`
	Severity     string `json:"severity,omitempty"`
	MatchedText  string `json:"matched_text,omitempty"`

	InputTokens  int   `json:"input_tokens,omitempty"`
	OutputTokens int   `json:"output_tokens,omitempty"`
	ElapsedMS    int64 `json:"elapsed_ms,omitempty"`

	Bypass   bool   `json:"bypass,omitempty"`
	DemoMode bool   `json:"demo_mode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewRecord creates a record with a fresh id and timestamp.
func NewRecord(actor, mode string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Mode:      mode,
	}
}

// Logger appends records to a JSONL file. Safe for concurrent use.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// NewLogger opens (or creates) the audit file for appending.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file}, nil
}

// Write redacts, truncates, canonicalizes and appends one record.
func (l *Logger) Write(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Prompt = truncate(redact.Text(rec.Prompt), MaxPromptChars)
	rec.RenderedPrompt = truncate(redact.Text(rec.RenderedPrompt), MaxPromptChars)
	rec.Response = truncate(redact.Text(rec.Response), MaxResponseChars)
	if rec.Error != "" {
		rec.Error = redact.Text(rec.Error)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// Canonical member ordering keeps the trail diff-stable and makes
	// records comparable byte for byte.
	canonical, err := jcs.Transform(data)
	if err != nil {
		return fmt.Errorf("canonicalize audit record: %w", err)
	}

	canonical = append(canonical, '\n')
	_, err = l.file.Write(canonical)
	return err
}

// Close releases the underlying file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence,
// backing up to the nearest rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
