// File: pkg/loop/state.go
// Description: Per-run loop state: the snapshot ring buffer used by stuck
// detection, the bounded action history, and state-label classification.
// One loopState belongs to exactly one in-flight goal and is discarded at
// loop exit; it is never persisted or shared.

package loop

import (
	"strings"

	"github.com/mirelock/uipilot/api/schemas"
)

// State labels the classifier can derive locally, without asking the model.
const (
	labelHomeScreen = "home_screen"
	labelAppDrawer  = "app_drawer"
	labelUnknown    = "unknown"
	labelInAppPfx   = "in_app:"
)

// Stuck-detection window constants. The window sizes are part of the loop
// contract, not tuning knobs.
const (
	stuckSnapshotWindow = 4
	stuckElementCeiling = 3
	stuckCounterLimit   = 3
	stuckActionRun      = 3
)

// labeledSnapshot pairs a capture with the label it classified to, so the
// stuck check never re-derives labels from stale snapshots.
type labeledSnapshot struct {
	snapshot *schemas.SemanticScreenSnapshot
	label    string
}

// snapshotRing is a fixed-capacity ring buffer of recent snapshots.
type snapshotRing struct {
	buf   []labeledSnapshot
	next  int
	count int
}

func newSnapshotRing(capacity int) *snapshotRing {
	if capacity < 1 {
		capacity = 1
	}
	return &snapshotRing{buf: make([]labeledSnapshot, capacity)}
}

func (r *snapshotRing) push(s labeledSnapshot) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// lastN returns up to n most recent snapshots, oldest first.
func (r *snapshotRing) lastN(n int) []labeledSnapshot {
	if n > r.count {
		n = r.count
	}
	out := make([]labeledSnapshot, 0, n)
	for i := n; i > 0; i-- {
		idx := (r.next - i + len(r.buf)*2) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// loopState is the mutable working set of one Run invocation.
type loopState struct {
	current      *schemas.SemanticScreenSnapshot
	ring         *snapshotRing
	history      []schemas.ActionRecord
	historyLimit int
	reasoning    []string
	reasonLimit  int
	stateLabel   string
	stuckCounter int
}

func newLoopState(ringSize, historyLimit, reasoningWindow int) *loopState {
	return &loopState{
		ring:         newSnapshotRing(ringSize),
		historyLimit: historyLimit,
		reasonLimit:  reasoningWindow,
		stateLabel:   labelUnknown,
	}
}

// observe installs a fresh capture: classifies it, pushes it onto the ring,
// and maintains the stuck counter (reset on any state change, incremented
// when the label holds still).
func (s *loopState) observe(snap *schemas.SemanticScreenSnapshot) {
	label := classifyStateLabel(snap)
	if s.current != nil {
		if label == s.stateLabel {
			s.stuckCounter++
		} else {
			s.stuckCounter = 0
		}
	}
	s.current = snap
	s.stateLabel = label
	s.ring.push(labeledSnapshot{snapshot: snap, label: label})
}

// recordAction appends to the bounded history, evicting the oldest entry
// once the limit is reached.
func (s *loopState) recordAction(rec schemas.ActionRecord) {
	s.history = append(s.history, rec)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = s.history[1:]
	}
}

// pushReasoning keeps a short window of recent decision summaries for the
// next prompt.
func (s *loopState) pushReasoning(summary string) {
	if summary == "" {
		return
	}
	s.reasoning = append(s.reasoning, summary)
	if s.reasonLimit > 0 && len(s.reasoning) > s.reasonLimit {
		s.reasoning = s.reasoning[1:]
	}
}

// stuck reports whether any stuck-loop trigger fires. The snapshot-window
// trigger is order-independent: it only inspects the set of labels and
// element counts inside the window.
func (s *loopState) stuck() bool {
	if s.stuckCounter > stuckCounterLimit {
		return true
	}
	return s.frozenScreen() || s.navigationThrash()
}

// frozenScreen fires when the last 4 buffered snapshots share one label and
// all have the same element count of at most 3. A sparse, unchanging screen
// means actions are not landing.
func (s *loopState) frozenScreen() bool {
	window := s.ring.lastN(stuckSnapshotWindow)
	if len(window) < stuckSnapshotWindow {
		return false
	}
	label := window[0].label
	count := len(window[0].snapshot.Elements)
	if count > stuckElementCeiling {
		return false
	}
	for _, ls := range window[1:] {
		if ls.label != label || len(ls.snapshot.Elements) != count {
			return false
		}
	}
	return true
}

// navigationThrash fires when the last 3 recorded actions are the same
// system-navigation directive, i.e. the model is bouncing between screens.
func (s *loopState) navigationThrash() bool {
	if len(s.history) < stuckActionRun {
		return false
	}
	tail := s.history[len(s.history)-stuckActionRun:]
	first := tail[0].Directive
	if !first.IsSystemNavigation() {
		return false
	}
	for _, rec := range tail[1:] {
		if rec.Directive.Type != first.Type || rec.Directive.Global != first.Global {
			return false
		}
	}
	return true
}

// resetStuck clears the counter after a corrective recovery action.
func (s *loopState) resetStuck() {
	s.stuckCounter = 0
}

var (
	homeVocabulary   = []string{"launcher", "home screen", "homescreen", "springboard"}
	drawerVocabulary = []string{"app drawer", "all apps", "appdrawer"}
)

// classifyStateLabel derives the coarse state label from the snapshot's app
// and screen identifiers. Classification is local; the model is never asked
// to name the state.
func classifyStateLabel(snap *schemas.SemanticScreenSnapshot) string {
	if snap == nil {
		return labelUnknown
	}
	ident := strings.ToLower(strings.TrimSpace(snap.AppName + " " + snap.ScreenName))
	if ident == "" {
		return labelUnknown
	}
	for _, kw := range homeVocabulary {
		if strings.Contains(ident, kw) {
			return labelHomeScreen
		}
	}
	for _, kw := range drawerVocabulary {
		if strings.Contains(ident, kw) {
			return labelAppDrawer
		}
	}
	app := normalizeAppID(snap.AppName)
	if app == "" {
		app = normalizeAppID(snap.ScreenName)
	}
	if app == "" {
		return labelUnknown
	}
	return labelInAppPfx + app
}

// normalizeAppID lowercases and collapses separators so labels compare
// stably across captures.
func normalizeAppID(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '/'
	})
	return strings.Join(fields, "_")
}
