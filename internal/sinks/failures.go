package sinks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FailureEntry is one line of the failure log.
type FailureEntry struct {
	Collection string         `json:"collection"`
	Partition  int            `json:"partition"`
	ID         string         `json:"id"`
	Error      string         `json:"error"`
	Record     map[string]any `json:"record,omitempty"`

	// RecordText holds the record when it cannot be encoded as JSON.
	RecordText string `json:"record_text,omitempty"`
}

// logMu serialises appends from partitions running in this process.
var logMu sync.Mutex

// appendFailures appends one JSON line per failure to path.
func appendFailures(path, collection string, partition int, failures []failure) error {
	var buf bytes.Buffer
	for _, f := range failures {
		entry := FailureEntry{
			Collection: collection,
			Partition:  partition,
			ID:         f.action.ID,
			Error:      f.err.Error(),
			Record:     f.action.Payload,
		}
		line, err := json.Marshal(entry)
		if err != nil {
			entry.Record = nil
			entry.RecordText = fmt.Sprint(f.action.Payload)
			if line, err = json.Marshal(entry); err != nil {
				return fmt.Errorf("encoding failure entry: %w", err)
			}
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating failure log directory: %w", err)
		}
	}

	logMu.Lock()
	defer logMu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening failure log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("appending failure log: %w", err)
	}
	return f.Close()
}

// ReadFailureLog parses a failure log.
func ReadFailureLog(path string) ([]FailureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	var entries []FailureEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e FailureEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse failure log line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
