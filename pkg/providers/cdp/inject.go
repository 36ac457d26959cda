// File: pkg/providers/cdp/inject.go
package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mirelock/uipilot/api/schemas"
)

// Inject performs a raw input action addressed by coordinates or text,
// bypassing the semantic snapshot. This is the low-level escape hatch used
// by direct resolver flows.
func (b *Browser) Inject(ctx context.Context, actionType string, params map[string]any) (schemas.ExecutionResult, error) {
	start := time.Now()

	var err error
	switch actionType {
	case "click":
		x, okX := floatParam(params, "x")
		y, okY := floatParam(params, "y")
		if !okX || !okY {
			return schemas.ExecutionResult{Success: false, Error: "click requires x and y parameters"}, nil
		}
		opCtx, cancel := b.opContext()
		err = b.run(ctx, opCtx, chromedp.MouseClickXY(x, y))
		cancel()
	case "type":
		text, ok := params["text"].(string)
		if !ok || text == "" {
			return schemas.ExecutionResult{Success: false, Error: "type requires a text parameter"}, nil
		}
		opCtx, cancel := b.opContext()
		err = b.run(ctx, opCtx, chromedp.KeyEvent(text))
		cancel()
	case "scroll":
		direction, _ := params["direction"].(string)
		opCtx, cancel := b.opContext()
		err = b.run(ctx, opCtx, chromedp.Evaluate(scrollExpression(schemas.ScrollDirection(direction)), nil))
		cancel()
	default:
		return schemas.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("unsupported raw action type %q", actionType),
		}, nil
	}

	if err != nil {
		return schemas.ExecutionResult{Success: false, Error: err.Error(), LatencyMS: nowMillis(start)}, nil
	}
	return schemas.ExecutionResult{Success: true, LatencyMS: nowMillis(start)}, nil
}

// floatParam reads a numeric parameter that may arrive as int or float.
func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
