// File: pkg/providers/cdp/capture.go
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
)

// CaptureScreen takes a viewport screenshot and returns an opaque frame
// reference. Frames stay in memory until the browser closes; callers
// exchange the reference with Frame to read the bytes back.
func (b *Browser) CaptureScreen(ctx context.Context) (schemas.ImageRef, error) {
	opCtx, cancel := b.opContext()
	defer cancel()

	var buf []byte
	capture := chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(c)
		return err
	})
	if err := b.run(ctx, opCtx, capture); err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}

	ref := schemas.ImageRef(uuid.NewString())
	b.mu.Lock()
	b.frames[ref] = buf
	b.mu.Unlock()

	b.logger.Debug("Captured frame", zap.String("ref", string(ref)), zap.Int("bytes", len(buf)))
	return ref, nil
}

// Frame returns the raw PNG bytes behind a capture reference.
func (b *Browser) Frame(ref schemas.ImageRef) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.frames[ref]
	return buf, ok
}

// DropFrame releases a stored capture.
func (b *Browser) DropFrame(ref schemas.ImageRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frames, ref)
}
