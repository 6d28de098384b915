// Package ledger persists the set of already-processed message
// identifiers as an append-only text file, one identifier per line.
// The ledger is the only durable state the bridge owns: an identifier
// is recorded only after its message was fully turned into a
// destination task, so a crash mid-processing leaves the identifier
// absent and the message is reprocessed on the next run (at-least-once
// delivery; duplicate tasks after a crash are an accepted limitation).
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ledger is an in-memory set of processed identifiers backed by an
// append-only log file. It is not safe for concurrent use; the
// pipeline is strictly single-threaded.
type Ledger struct {
	path string
	file *os.File
	seen map[string]struct{}
}

// Open loads the ledger at path into memory, creating the file (and
// its parent directory) if it does not exist. Blank lines are ignored.
func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}

	return &Ledger{path: path, file: file, seen: seen}, nil
}

// Contains reports whether id has already been processed.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Record appends id to the durable log and syncs it to disk before
// adding it to the in-memory set. Callers invoke Record only after the
// message was fully processed, never before.
func (l *Ledger) Record(id string) error {
	if _, ok := l.seen[id]; ok {
		return nil
	}

	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("appending to ledger %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing ledger %s: %w", l.path, err)
	}

	l.seen[id] = struct{}{}
	return nil
}

// Len returns the number of recorded identifiers.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Close releases the underlying file handle.
func (l *Ledger) Close() error {
	return l.file.Close()
}
