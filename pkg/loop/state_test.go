// File: pkg/loop/state_test.go
package loop

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelock/uipilot/api/schemas"
)

func snapWithElements(app, screen string, n int) *schemas.SemanticScreenSnapshot {
	elements := make([]schemas.SemanticUIElement, 0, n)
	for i := 1; i <= n; i++ {
		elements = append(elements, schemas.SemanticUIElement{
			ID:        i,
			Type:      "button",
			Text:      fmt.Sprintf("element %d", i),
			Clickable: true,
			Bounds:    schemas.Rect{X: 0, Y: i * 10, Width: 100, Height: 10},
		})
	}
	return &schemas.SemanticScreenSnapshot{
		AppName:    app,
		ScreenName: screen,
		Width:      1080,
		Height:     1920,
		Elements:   elements,
		Timestamp:  time.Now().UTC(),
	}
}

func TestClassifyStateLabel(t *testing.T) {
	cases := []struct {
		app, screen, want string
	}{
		{"Pixel Launcher", "", labelHomeScreen},
		{"", "Home Screen", labelHomeScreen},
		{"Launcher", "All Apps", labelHomeScreen}, // home vocabulary wins first
		{"System UI", "App Drawer", labelAppDrawer},
		{"Mail", "Inbox", "in_app:mail"},
		{"My Notes App", "", "in_app:my_notes_app"},
		{"", "Settings", "in_app:settings"},
		{"", "", labelUnknown},
	}
	for _, tc := range cases {
		got := classifyStateLabel(&schemas.SemanticScreenSnapshot{AppName: tc.app, ScreenName: tc.screen})
		assert.Equal(t, tc.want, got, "app=%q screen=%q", tc.app, tc.screen)
	}
	assert.Equal(t, labelUnknown, classifyStateLabel(nil))
}

func TestSnapshotRingEvictsOldest(t *testing.T) {
	ring := newSnapshotRing(3)
	for i := 1; i <= 5; i++ {
		ring.push(labeledSnapshot{label: fmt.Sprintf("s%d", i)})
	}
	window := ring.lastN(3)
	require.Len(t, window, 3)
	assert.Equal(t, "s3", window[0].label)
	assert.Equal(t, "s5", window[2].label)

	// Asking for more than is buffered returns only what exists.
	assert.Len(t, ring.lastN(10), 3)
}

func TestStuckFrozenScreen(t *testing.T) {
	state := newLoopState(5, 100, 5)
	for i := 0; i < stuckSnapshotWindow; i++ {
		state.observe(snapWithElements("Foo", "", 2))
	}
	// Counter sits at 3 after four identical observations; the snapshot
	// window is what fires, not the counter.
	assert.Equal(t, 3, state.stuckCounter)
	assert.True(t, state.stuck())
}

func TestStuckSuppressedByLabelChange(t *testing.T) {
	state := newLoopState(5, 100, 5)
	state.observe(snapWithElements("Foo", "", 2))
	state.observe(snapWithElements("Foo", "", 2))
	state.observe(snapWithElements("Bar", "", 2)) // one different label in the window
	state.observe(snapWithElements("Foo", "", 2))
	assert.False(t, state.stuck())
}

func TestStuckSuppressedByElementCount(t *testing.T) {
	// A rich screen (more than three elements) is never "frozen" even when
	// the label repeats.
	state := newLoopState(5, 100, 5)
	for i := 0; i < stuckSnapshotWindow; i++ {
		state.observe(snapWithElements("Foo", "", 8))
	}
	assert.False(t, state.frozenScreen())
}

func TestStuckCounterLimit(t *testing.T) {
	state := newLoopState(5, 100, 5)
	state.observe(snapWithElements("Foo", "", 8))
	for i := 0; i < stuckCounterLimit+1; i++ {
		state.observe(snapWithElements("Foo", "", 8))
	}
	assert.True(t, state.stuckCounter > stuckCounterLimit)
	assert.True(t, state.stuck())

	state.resetStuck()
	assert.Equal(t, 0, state.stuckCounter)
}

func TestStuckNavigationThrash(t *testing.T) {
	state := newLoopState(5, 100, 5)
	back := schemas.Directive{Type: schemas.DirectiveGlobal, Global: schemas.GlobalBack}
	for i := 1; i <= stuckActionRun; i++ {
		state.recordAction(schemas.ActionRecord{Step: i, Directive: back})
	}
	assert.True(t, state.navigationThrash())
	assert.True(t, state.stuck())
}

func TestNavigationThrashRequiresIdenticalActions(t *testing.T) {
	state := newLoopState(5, 100, 5)
	state.recordAction(schemas.ActionRecord{Directive: schemas.Directive{Type: schemas.DirectiveGlobal, Global: schemas.GlobalBack}})
	state.recordAction(schemas.ActionRecord{Directive: schemas.Directive{Type: schemas.DirectiveGlobal, Global: schemas.GlobalHome}})
	state.recordAction(schemas.ActionRecord{Directive: schemas.Directive{Type: schemas.DirectiveGlobal, Global: schemas.GlobalBack}})
	assert.False(t, state.navigationThrash())

	// Non-navigation runs never thrash, however repetitive.
	state = newLoopState(5, 100, 5)
	click := schemas.Directive{Type: schemas.DirectiveClick, ElementID: 1}
	for i := 0; i < stuckActionRun; i++ {
		state.recordAction(schemas.ActionRecord{Directive: click})
	}
	assert.False(t, state.navigationThrash())
}

func TestHistoryAndReasoningAreBounded(t *testing.T) {
	state := newLoopState(5, 3, 2)
	for i := 1; i <= 6; i++ {
		state.recordAction(schemas.ActionRecord{Step: i})
		state.pushReasoning(fmt.Sprintf("step %d", i))
	}
	require.Len(t, state.history, 3)
	assert.Equal(t, 4, state.history[0].Step)
	if diff := cmp.Diff([]string{"step 5", "step 6"}, state.reasoning); diff != "" {
		t.Errorf("reasoning window mismatch (-want +got):\n%s", diff)
	}
}
