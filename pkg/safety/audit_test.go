// File: pkg/safety/audit_test.go
package safety

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
)

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func auditEntry(action string) schemas.AuditEntry {
	return schemas.AuditEntry{
		Timestamp:  time.Now().UTC(),
		ActionType: action,
		Status:     "success",
	}
}

func TestAppendWritesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewAuditLog(&buf, 10, zap.NewNop())

	log.Append(auditEntry("click"))
	log.Append(auditEntry("type"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"action_type":"click"`)
	assert.Contains(t, lines[1], `"action_type":"type"`)
}

func TestAppendNeverRaisesOnSinkFailure(t *testing.T) {
	log := NewAuditLog(failingSink{}, 10, zap.NewNop())

	assert.NotPanics(t, func() {
		log.Append(auditEntry("click"))
	})
	// The mirror still received the entry.
	require.Len(t, log.Recent(), 1)
	assert.Equal(t, "click", log.Recent()[0].ActionType)
}

func TestAppendWithNilSinkMirrorsOnly(t *testing.T) {
	log := NewAuditLog(nil, 10, zap.NewNop())
	log.Append(auditEntry("scroll"))
	assert.Len(t, log.Recent(), 1)
}

func TestMirrorIsBounded(t *testing.T) {
	log := NewAuditLog(nil, 3, zap.NewNop())
	for i := 0; i < 10; i++ {
		log.Append(auditEntry(fmt.Sprintf("action_%d", i)))
	}

	recent := log.Recent()
	require.Len(t, recent, 3)
	// Oldest dropped first.
	assert.Equal(t, "action_7", recent[0].ActionType)
	assert.Equal(t, "action_9", recent[2].ActionType)
}

func TestUndoQueueFIFOEviction(t *testing.T) {
	q := NewUndoQueue(3)
	for i := 0; i < 7; i++ {
		q.Push(schemas.UndoEntry{
			Timestamp:      time.Now().UTC(),
			ActionSnapshot: schemas.Directive{Type: schemas.DirectiveClick, ElementID: i},
		})
	}

	assert.Equal(t, 3, q.Len())
	entries := q.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 4, entries[0].ActionSnapshot.ElementID)
	assert.Equal(t, 6, entries[2].ActionSnapshot.ElementID)
}

func TestUndoQueueNeverExceedsCapacity(t *testing.T) {
	q := NewUndoQueue(5)
	for i := 0; i < 100; i++ {
		q.Push(schemas.UndoEntry{ActionSnapshot: schemas.Directive{ElementID: i}})
		assert.LessOrEqual(t, q.Len(), 5)
	}
}

func TestOpenSessionLogCreatesPerSessionFile(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenSessionLog(dir, "abc123")
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.Write([]byte("{}\n"))
	assert.NoError(t, err)
}
