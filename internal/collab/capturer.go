package collab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// ScreenCapturer writes full-viewport screenshots under the session's data
// directory and hands back the file path as the opaque image handle. Keeping
// captures as plain files lets the pixel comparator read them back without
// a browser round trip.
type ScreenCapturer struct {
	browser *Browser
	dir     string
	log     *zap.Logger
}

var _ schemas.Capturer = (*ScreenCapturer)(nil)

// NewScreenCapturer creates the capture directory if needed.
func NewScreenCapturer(b *Browser, dataDir string, logger *zap.Logger) (*ScreenCapturer, error) {
	dir := filepath.Join(dataDir, "captures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	return &ScreenCapturer{
		browser: b,
		dir:     dir,
		log:     logger.With(zap.String("component", "capturer")),
	}, nil
}

func (c *ScreenCapturer) Capture(ctx context.Context) (schemas.ImageRef, error) {
	var buf []byte
	if err := c.browser.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}

	path := filepath.Join(c.dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	c.log.Debug("Captured screen", zap.String("path", path), zap.Int("bytes", len(buf)))
	return schemas.ImageRef(path), nil
}
