// File: pkg/loop/directive_test.go
package loop

import (
	"errors"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelock/uipilot/api/schemas"
)

func TestParseDirectiveRawJSON(t *testing.T) {
	d, err := ParseDirective(`{"action_type": "click", "element_id": 7}`)
	require.NoError(t, err)
	assert.Equal(t, schemas.DirectiveClick, d.Type)
	assert.Equal(t, 7, d.ElementID)
}

func TestParseDirectiveMarkdownFence(t *testing.T) {
	response := "Here is my decision:\n```json\n{\"action_type\": \"type\", \"text\": \"hello\"}\n```\nDone."
	d, err := ParseDirective(response)
	require.NoError(t, err)
	assert.Equal(t, schemas.DirectiveTypeText, d.Type)
	assert.Equal(t, "hello", d.Text)
}

func TestParseDirectiveEmbeddedInProse(t *testing.T) {
	response := `I will scroll down. {"action_type": "scroll", "direction": "down", "duration": 300} That should reveal more items.`
	d, err := ParseDirective(response)
	require.NoError(t, err)
	assert.Equal(t, schemas.DirectiveScroll, d.Type)
	assert.Equal(t, schemas.ScrollDown, d.Direction)
	assert.Equal(t, 300, d.DurationMS)
}

func TestParseDirectiveComplete(t *testing.T) {
	d, err := ParseDirective(`{"action_type": "complete", "reason": "inbox is open"}`)
	require.NoError(t, err)
	assert.Equal(t, schemas.DirectiveComplete, d.Type)
	assert.Equal(t, "inbox is open", d.Reason)
}

func TestParseDirectiveGlobalAction(t *testing.T) {
	d, err := ParseDirective(`{"action_type": "global_action", "global": "home"}`)
	require.NoError(t, err)
	assert.Equal(t, schemas.DirectiveGlobal, d.Type)
	assert.Equal(t, schemas.GlobalHome, d.Global)
}

func TestParseDirectiveFailures(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"empty response", ""},
		{"plain prose", "I am not sure what to do next."},
		{"malformed json", `{"action_type": "click",`},
		{"missing action type", `{"element_id": 3}`},
		{"unknown action type", `{"action_type": "teleport"}`},
		{"click without element id", `{"action_type": "click"}`},
		{"type without text", `{"action_type": "type"}`},
		{"scroll with bad direction", `{"action_type": "scroll", "direction": "sideways"}`},
		{"global with bad action", `{"action_type": "global_action", "global": "reboot"}`},
		{"complete without reason", `{"action_type": "complete"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDirective(tc.response)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDirectiveParse), "expected ErrDirectiveParse, got %v", err)
		})
	}
}

// FuzzParseDirective verifies the parser never panics and that every
// accepted directive passes validation.
func FuzzParseDirective(f *testing.F) {
	f.Add(`{"action_type": "click", "element_id": 1}`)
	f.Add("```json\n{\"action_type\": \"complete\", \"reason\": \"done\"}\n```")
	f.Add("no json here")
	f.Fuzz(func(t *testing.T, response string) {
		d, err := ParseDirective(response)
		if err != nil {
			if !errors.Is(err, ErrDirectiveParse) {
				t.Fatalf("non-parse error from parser: %v", err)
			}
			return
		}
		if verr := validateDirective(d); verr != nil {
			t.Fatalf("parser accepted invalid directive %+v: %v", d, verr)
		}
	})
}

// FuzzParseDirectiveStructured round-trips generated directives through the
// serializer and parser.
func FuzzParseDirectiveStructured(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		var d schemas.Directive
		if err := fuzzConsumer.GenerateStruct(&d); err != nil {
			return
		}
		encoded, err := json.Marshal(d)
		if err != nil {
			return
		}
		parsed, err := ParseDirective(string(encoded))
		if err != nil {
			return // invalid generated directives are expected to be rejected
		}
		if parsed.Type != d.Type {
			t.Fatalf("round trip changed action type: %q -> %q", d.Type, parsed.Type)
		}
	})
}
