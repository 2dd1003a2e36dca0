// Package eventlog implements the durable append-only journal of triage
// decisions as newline-delimited JSON.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/models"
)

const (
	maxEntries    = 10_000
	maxEntryAge   = 30 * 24 * time.Hour
	maxLineLength = 1024 * 1024
)

var nowFn = time.Now

// Log is a single-file JSONL journal. Appends are serialized internally;
// the pipeline is the only writer in practice.
type Log struct {
	mu   sync.Mutex
	path string
}

// New creates a journal at path. The file is created lazily on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the journal file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one entry as a single JSON line. An entry without an ID is
// assigned a ULID so individual records stay addressable.
func (l *Log) Append(entry models.EventLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create event log directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open event log %s: %w", l.path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to event log %s: %w", l.path, err)
	}
	return nil
}

// ReadSince returns entries with timestamp >= sinceEpoch, oldest first.
// Blank and malformed lines are skipped; a missing file yields no entries.
func (l *Log) ReadSince(sinceEpoch float64) ([]models.EventLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readSinceLocked(sinceEpoch)
}

func (l *Log) readSinceLocked(sinceEpoch float64) ([]models.EventLogEntry, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log %s: %w", l.path, err)
	}
	defer file.Close()

	var entries []models.EventLogEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry models.EventLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed event log line")
			continue
		}
		if entry.Timestamp >= sinceEpoch {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan event log %s: %w", l.path, err)
	}
	return entries, nil
}

// Rotate trims the journal once it exceeds the entry cap: entries older
// than 30 days go first, then the file is truncated to the newest entries.
// Returns the number of entries dropped. The rewrite goes through a temp
// file and rename so a crash mid-rotation cannot corrupt the journal.
func (l *Log) Rotate() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readSinceLocked(0)
	if err != nil {
		return 0, err
	}
	if len(entries) <= maxEntries {
		return 0, nil
	}

	cutoff := float64(nowFn().Add(-maxEntryAge).Unix())
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Timestamp >= cutoff {
			kept = append(kept, entry)
		}
	}
	if len(kept) > maxEntries {
		kept = kept[len(kept)-maxEntries:]
	}
	dropped := len(entries) - len(kept)

	var buf strings.Builder
	for _, entry := range kept {
		data, err := json.Marshal(entry)
		if err != nil {
			return 0, fmt.Errorf("marshal rotated entry: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o600); err != nil {
		return 0, fmt.Errorf("write rotated event log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("replace event log %s: %w", l.path, err)
	}

	return dropped, nil
}
