// File: pkg/loop/directive.go
// Description: Parsing of the decision model's response into exactly one
// structured action directive. Any shape outside the closed directive set is
// a parse failure; the loop treats it as terminal and never retries here.

package loop

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mirelock/uipilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrDirectiveParse marks a model response that could not be turned into a
// valid directive. Terminal for the current run; retry is the dispatcher's
// responsibility.
var ErrDirectiveParse = fmt.Errorf("directive parse error")

// A regex to robustly extract a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseDirective extracts the JSON payload from a raw model response,
// tolerating markdown fences and surrounding prose, and validates it against
// the closed directive set.
func ParseDirective(response string) (schemas.Directive, error) {
	response = strings.TrimSpace(response)

	var payload string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		payload = strings.TrimSpace(matches[1])
	} else {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			payload = response[first : last+1]
		} else {
			payload = response
		}
	}
	if payload == "" {
		return schemas.Directive{}, fmt.Errorf("%w: no JSON found in response", ErrDirectiveParse)
	}

	var d schemas.Directive
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return schemas.Directive{}, fmt.Errorf("%w: %v", ErrDirectiveParse, err)
	}
	if err := validateDirective(d); err != nil {
		return schemas.Directive{}, fmt.Errorf("%w: %v", ErrDirectiveParse, err)
	}
	return d, nil
}

// validateDirective enforces per-type required fields so a malformed but
// syntactically valid object still fails at the boundary.
func validateDirective(d schemas.Directive) error {
	switch d.Type {
	case schemas.DirectiveClick:
		if d.ElementID <= 0 {
			return fmt.Errorf("click directive missing element_id")
		}
	case schemas.DirectiveTypeText:
		if d.Text == "" {
			return fmt.Errorf("type directive missing text")
		}
	case schemas.DirectiveScroll:
		switch d.Direction {
		case schemas.ScrollUp, schemas.ScrollDown, schemas.ScrollLeft, schemas.ScrollRight:
		default:
			return fmt.Errorf("scroll directive has invalid direction %q", d.Direction)
		}
	case schemas.DirectiveGlobal:
		switch d.Global {
		case schemas.GlobalHome, schemas.GlobalBack, schemas.GlobalRecent:
		default:
			return fmt.Errorf("global directive has invalid action %q", d.Global)
		}
	case schemas.DirectiveComplete:
		if d.Reason == "" {
			return fmt.Errorf("complete directive missing reason")
		}
	case "":
		return fmt.Errorf("response missing required action_type field")
	default:
		return fmt.Errorf("unknown action_type %q", d.Type)
	}
	return nil
}
