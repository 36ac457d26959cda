// File: pkg/loop/prompts.go
// Description: Prompt construction for the decide step. The system prompt
// pins the response contract; the user prompt carries the goal, the
// serialized snapshot, and a short window of prior reasoning.

package loop

import (
	"fmt"
	"strings"

	"github.com/mirelock/uipilot/api/schemas"
)

const decideSystemPrompt = `You are the decision engine of a GUI automation loop.
Each turn you receive the automation goal, a semantic snapshot of the current
screen (a JSON list of interactable elements with stable ids), and a short
window of your prior decisions.

Respond with EXACTLY ONE JSON object and nothing else. The object must have
an "action_type" field with one of these values:

- "click": tap one element. Requires "element_id" (an id from the snapshot).
- "type": enter text into the focused element. Requires "text".
- "scroll": scroll the screen. Requires "direction" (up/down/left/right),
  optional "duration" in milliseconds.
- "global_action": system navigation. Requires "global" (home/back/recent).
- "complete": the goal is achieved. Requires "reason" stating why.

Rules:
- Use only element ids present in the CURRENT snapshot; ids are renumbered
  on every capture.
- One action per response. Do not plan ahead in the output.
- If the same screen keeps reappearing, change strategy instead of repeating
  the same action.
- Declare "complete" as soon as the goal is visibly achieved.`

// buildDecidePrompt assembles the user prompt for one decide call.
func buildDecidePrompt(goal string, snap *schemas.SemanticScreenSnapshot, stateLabel string, reasoning []string) (string, error) {
	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)
	fmt.Fprintf(&b, "Current state label: %s\n\n", stateLabel)
	fmt.Fprintf(&b, "Current screen snapshot:\n%s\n", snapshotJSON)
	if len(reasoning) > 0 {
		b.WriteString("\nYour recent decisions, oldest first:\n")
		for _, r := range reasoning {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	b.WriteString("\nDecide the next action. Respond with a single JSON object.")
	return b.String(), nil
}

// summarizeDirective renders one decision into a line for the reasoning
// window of later prompts.
func summarizeDirective(step int, d schemas.Directive) string {
	switch d.Type {
	case schemas.DirectiveClick:
		return fmt.Sprintf("step %d: clicked element %d", step, d.ElementID)
	case schemas.DirectiveTypeText:
		return fmt.Sprintf("step %d: typed %q", step, d.Text)
	case schemas.DirectiveScroll:
		return fmt.Sprintf("step %d: scrolled %s", step, d.Direction)
	case schemas.DirectiveGlobal:
		return fmt.Sprintf("step %d: system navigation %s", step, d.Global)
	case schemas.DirectiveComplete:
		return fmt.Sprintf("step %d: declared complete: %s", step, d.Reason)
	default:
		return fmt.Sprintf("step %d: %s", step, d.Type)
	}
}
