// File: pkg/providers/cdp/accessibility.go
package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/mirelock/uipilot/api/schemas"
)

var _ schemas.AccessibilityTree = (*Browser)(nil)

// domHandle is the web rendition of an accessibility-tree node: a bounding
// box snapshotted at query time.
type domHandle struct {
	bounds schemas.Rect
}

func (h domHandle) Bounds() schemas.Rect { return h.bounds }

// QueryAccessibility answers structural selector queries against the live
// DOM. Control ids map to element ids, class names and roles to their CSS
// equivalents; window titles are matched against the document title.
func (b *Browser) QueryAccessibility(ctx context.Context, selectors schemas.ElementDescription) (schemas.ElementHandle, error) {
	if selectors.WindowTitle != "" {
		var title string
		opCtx, cancel := b.opContext()
		err := b.run(ctx, opCtx, chromedp.Title(&title))
		cancel()
		if err != nil {
			return nil, fmt.Errorf("title query failed: %w", err)
		}
		if !strings.Contains(strings.ToLower(title), strings.ToLower(selectors.WindowTitle)) {
			return nil, fmt.Errorf("document title %q does not match %q", title, selectors.WindowTitle)
		}
		// The title selector addresses the whole document surface.
		if selectors.ControlID == "" && selectors.ClassName == "" && selectors.Role == "" {
			return b.documentHandle(ctx)
		}
	}

	query := cssQuery(selectors)
	if query == "" {
		return nil, fmt.Errorf("no structural selector to query")
	}

	var rect []float64
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return [r.x, r.y, r.width, r.height];
	})()`, query)

	opCtx, cancel := b.opContext()
	defer cancel()
	if err := b.run(ctx, opCtx, chromedp.Evaluate(expr, &rect)); err != nil {
		return nil, fmt.Errorf("accessibility query %q failed: %w", query, err)
	}
	if len(rect) != 4 || (rect[2] == 0 && rect[3] == 0) {
		return nil, fmt.Errorf("no visible element matches %q", query)
	}
	return domHandle{bounds: schemas.Rect{
		X:      int(rect[0]),
		Y:      int(rect[1]),
		Width:  int(rect[2]),
		Height: int(rect[3]),
	}}, nil
}

func (b *Browser) documentHandle(ctx context.Context) (schemas.ElementHandle, error) {
	var size []float64
	opCtx, cancel := b.opContext()
	defer cancel()
	if err := b.run(ctx, opCtx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &size)); err != nil {
		return nil, fmt.Errorf("viewport query failed: %w", err)
	}
	if len(size) != 2 {
		return nil, fmt.Errorf("viewport query returned malformed result")
	}
	return domHandle{bounds: schemas.Rect{Width: int(size[0]), Height: int(size[1])}}, nil
}

// cssQuery translates structural selectors into a CSS query string.
func cssQuery(selectors schemas.ElementDescription) string {
	var sb strings.Builder
	if selectors.Role != "" {
		fmt.Fprintf(&sb, "[role=%q]", selectors.Role)
	}
	if selectors.ControlID != "" {
		fmt.Fprintf(&sb, "#%s", selectors.ControlID)
	}
	if selectors.ClassName != "" {
		fmt.Fprintf(&sb, ".%s", selectors.ClassName)
	}
	return sb.String()
}
