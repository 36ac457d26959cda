// File: pkg/safety/audit.go
// Description: Durable JSONL audit trail plus the bounded in-memory mirror.
// Recording is side-effect-only; persistence failures are logged and
// swallowed because audit failure must never block execution.

package safety

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditLog appends entries to a durable sink, one JSON record per line, and
// mirrors them into a size-bounded in-process list for the current session.
// Appends are safe for concurrent writers.
type AuditLog struct {
	logger *zap.Logger

	mu          sync.Mutex
	sink        io.Writer
	mirror      []schemas.AuditEntry
	mirrorLimit int
}

// NewAuditLog wraps an already-open sink. A nil sink is tolerated: entries
// then exist only in the mirror.
func NewAuditLog(sink io.Writer, mirrorLimit int, logger *zap.Logger) *AuditLog {
	return &AuditLog{
		logger:      logger.Named("audit"),
		sink:        sink,
		mirrorLimit: mirrorLimit,
	}
}

// OpenSessionLog creates the per-session audit file under dir. One file per
// session; the file is append-only.
func OpenSessionLog(dir, sessionID string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("session-%s.jsonl", sessionID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	return f, nil
}

// Append records one entry. It never returns an error: a failing sink is
// logged and the mirror still receives the entry.
func (a *AuditLog) Append(entry schemas.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sink != nil {
		line, err := json.Marshal(entry)
		if err != nil {
			a.logger.Error("Failed to encode audit entry", zap.Error(err))
		} else if _, err := a.sink.Write(append(line, '\n')); err != nil {
			a.logger.Error("Failed to persist audit entry", zap.Error(err))
		}
	}

	a.mirror = append(a.mirror, entry)
	if len(a.mirror) > a.mirrorLimit {
		// Drop the oldest overflow in one cut to keep appends O(1) amortized.
		a.mirror = a.mirror[len(a.mirror)-a.mirrorLimit:]
	}
}

// Recent returns a copy of the in-memory mirror, oldest first.
func (a *AuditLog) Recent() []schemas.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]schemas.AuditEntry, len(a.mirror))
	copy(out, a.mirror)
	return out
}

// UndoQueue is a fixed-capacity FIFO of action snapshots. Oldest entries are
// evicted on overflow; writers never block on capacity. The queue is
// introspection only, nothing replays it.
type UndoQueue struct {
	mu       sync.Mutex
	entries  []schemas.UndoEntry
	capacity int
}

// NewUndoQueue creates a queue holding at most capacity entries.
func NewUndoQueue(capacity int) *UndoQueue {
	return &UndoQueue{capacity: capacity}
}

// Push appends an entry, evicting the oldest when full.
func (q *UndoQueue) Push(entry schemas.UndoEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	if len(q.entries) > q.capacity {
		q.entries = q.entries[len(q.entries)-q.capacity:]
	}
}

// Entries returns a copy of the queue, oldest first.
func (q *UndoQueue) Entries() []schemas.UndoEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]schemas.UndoEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the current queue depth.
func (q *UndoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
