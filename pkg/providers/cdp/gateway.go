// File: pkg/providers/cdp/gateway.go
// Description: DeviceGateway implementation for the web backend. Snapshots
// come from DOM evaluation; directives translate into chromedp actions
// against the element bounds remembered from the latest snapshot.

package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
)

// FetchSnapshot evaluates the DOM into a semantic screen snapshot and
// remembers element bounds for subsequent Execute calls. The deviceID is
// ignored; one Browser is one device.
func (b *Browser) FetchSnapshot(ctx context.Context, _ string) (*schemas.SemanticScreenSnapshot, error) {
	opCtx, cancel := b.opContext()
	defer cancel()

	var dom domSnapshot
	if err := b.run(ctx, opCtx, chromedp.Evaluate(snapshotScript, &dom)); err != nil {
		return nil, fmt.Errorf("snapshot evaluation failed: %w", err)
	}
	snap := dom.toSemanticSnapshot()

	b.mu.Lock()
	b.elements = make(map[int]schemas.Rect, len(snap.Elements))
	for _, el := range snap.Elements {
		b.elements[el.ID] = el.Bounds
	}
	b.mu.Unlock()

	b.logger.Debug("Fetched snapshot",
		zap.String("app", snap.AppName),
		zap.String("screen", snap.ScreenName),
		zap.Int("elements", len(snap.Elements)),
	)
	return snap, nil
}

// Execute translates one directive into browser input. Failures that the
// page can recover from come back inside the result; transport failures are
// returned as errors.
func (b *Browser) Execute(ctx context.Context, _ string, directive schemas.Directive) (schemas.ExecutionResult, error) {
	start := time.Now()

	var err error
	switch directive.Type {
	case schemas.DirectiveClick:
		err = b.clickElement(ctx, directive.ElementID)
	case schemas.DirectiveTypeText:
		err = b.typeText(ctx, directive.Text)
	case schemas.DirectiveScroll:
		err = b.scroll(ctx, directive.Direction)
	case schemas.DirectiveGlobal:
		err = b.globalAction(ctx, directive.Global)
	default:
		return schemas.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("unsupported directive type %q", directive.Type),
		}, nil
	}

	if err != nil {
		return schemas.ExecutionResult{
			Success:   false,
			Error:     err.Error(),
			LatencyMS: nowMillis(start),
		}, nil
	}
	return schemas.ExecutionResult{Success: true, LatencyMS: nowMillis(start)}, nil
}

func (b *Browser) clickElement(ctx context.Context, id int) error {
	b.mu.Lock()
	bounds, ok := b.elements[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("element %d not present in the current snapshot", id)
	}
	center := bounds.Center()

	opCtx, cancel := b.opContext()
	defer cancel()
	return b.run(ctx, opCtx, chromedp.MouseClickXY(float64(center.X), float64(center.Y)))
}

func (b *Browser) typeText(ctx context.Context, text string) error {
	opCtx, cancel := b.opContext()
	defer cancel()
	// Types into whatever element currently holds focus.
	return b.run(ctx, opCtx, chromedp.KeyEvent(text))
}

func (b *Browser) scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	opCtx, cancel := b.opContext()
	defer cancel()
	return b.run(ctx, opCtx, chromedp.Evaluate(scrollExpression(direction), nil))
}

// scrollExpression maps a scroll direction onto a window.scrollBy call of
// roughly half a viewport.
func scrollExpression(direction schemas.ScrollDirection) string {
	switch direction {
	case schemas.ScrollUp:
		return "window.scrollBy(0, -window.innerHeight / 2)"
	case schemas.ScrollDown:
		return "window.scrollBy(0, window.innerHeight / 2)"
	case schemas.ScrollLeft:
		return "window.scrollBy(-window.innerWidth / 2, 0)"
	case schemas.ScrollRight:
		return "window.scrollBy(window.innerWidth / 2, 0)"
	default:
		return "void 0"
	}
}

func (b *Browser) globalAction(ctx context.Context, kind schemas.GlobalActionKind) error {
	opCtx, cancel := b.opContext()
	defer cancel()

	switch kind {
	case schemas.GlobalHome:
		b.mu.Lock()
		home := b.homeURL
		b.mu.Unlock()
		if home == "" {
			return fmt.Errorf("no home URL recorded for this session")
		}
		return b.run(ctx, opCtx,
			chromedp.Navigate(home),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	case schemas.GlobalBack:
		return b.run(ctx, opCtx, chromedp.NavigateBack())
	case schemas.GlobalRecent:
		return fmt.Errorf("recent-apps navigation has no web equivalent")
	default:
		return fmt.Errorf("unknown global action %q", kind)
	}
}
