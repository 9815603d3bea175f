// Package collab ships the reference collaborator implementations for web
// targets: a chromedp-driven capturer and activator, and a DOM detector
// built on goquery. The engine only sees the interfaces, so other frontends
// (native toolkits, emulators) can be swapped in without touching it.
package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/internal/config"
)

// Browser owns one headless Chrome instance and the chromedp context chain
// every collaborator runs its actions against.
type Browser struct {
	ctx         context.Context
	ctxCancel   context.CancelFunc
	allocCancel context.CancelFunc
	cfg         config.BrowserConfig
	log         *zap.Logger
}

// NewBrowser launches Chrome and applies the configured viewport. The
// returned Browser must be Closed to reap the process.
func NewBrowser(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)

	b := &Browser{
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		allocCancel: allocCancel,
		cfg:         cfg,
		log:         logger.With(zap.String("component", "browser")),
	}

	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		if err := b.run(parent, emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1.0, false)); err != nil {
			b.Close()
			return nil, fmt.Errorf("applying viewport: %w", err)
		}
	}
	return b, nil
}

// Navigate loads the target and waits for the body to be ready.
func (b *Browser) Navigate(ctx context.Context, target string) error {
	b.log.Info("Navigating", zap.String("target", target))
	navCtx, cancel := context.WithTimeout(ctx, b.navTimeout())
	defer cancel()
	if err := b.run(navCtx, chromedp.Navigate(target), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}
	b.settle(ctx)
	return nil
}

// Close tears down the tab and the Chrome process.
func (b *Browser) Close() {
	b.ctxCancel()
	b.allocCancel()
}

// run executes chromedp actions on the browser's own context chain while
// honoring the caller's deadline and cancellation.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := b.ctx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(b.ctx, deadline)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

// settle gives the page its configured quiet period after an interaction.
func (b *Browser) settle(ctx context.Context) {
	delay := b.cfg.SettleDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (b *Browser) navTimeout() time.Duration {
	if d := b.cfg.NavTimeout; d > 0 {
		return d
	}
	return 45 * time.Second
}
