// File: pkg/providers/cdp/browser.go
// Description: The chromedp-backed web capability provider. One Browser owns
// a Chrome target and implements the screen-capture, input-injection and
// device-gateway contracts against it. Desktop and mobile backends live
// outside this module; this is the one concrete provider shipped.

package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
)

// Browser wraps one Chrome target behind the provider interfaces.
type Browser struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	frames   map[schemas.ImageRef][]byte
	elements map[int]schemas.Rect
	homeURL  string
}

var _ schemas.ScreenCapturer = (*Browser)(nil)
var _ schemas.InputInjector = (*Browser)(nil)
var _ schemas.DeviceGateway = (*Browser)(nil)

// NewBrowser launches a Chrome instance and connects a fresh target.
func NewBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Ensure the target is created and CDP is connected.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to initialize browser target connection: %w", err)
	}

	return &Browser{
		logger:      logger.Named("cdp_provider"),
		cfg:         cfg,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		frames:      make(map[schemas.ImageRef][]byte),
		elements:    make(map[int]schemas.Rect),
	}, nil
}

// Navigate loads a URL and waits for the document to become ready. The first
// navigated URL doubles as the session's "home" for global navigation.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	if b.homeURL == "" {
		b.homeURL = url
	}
	b.mu.Unlock()

	navCtx, cancel := context.WithTimeout(b.ctx, b.cfg.NavigationTimeout)
	defer cancel()
	if err := b.run(ctx, navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	b.logger.Debug("Navigation complete", zap.String("url", url))
	return nil
}

// Close tears down the target and the Chrome process.
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// run executes chromedp actions on the browser target while honoring the
// caller's context.
func (b *Browser) run(callerCtx, targetCtx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(targetCtx, actions...)
	}()
	select {
	case <-callerCtx.Done():
		return callerCtx.Err()
	case err := <-done:
		return err
	}
}

// deadline-bounded target context for one operation.
func (b *Browser) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.cfg.NavigationTimeout)
}

func nowMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
