package collab

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// pageState is the activator's cheap change signature: the location plus a
// hash of the serialized DOM. Either one moving counts as a screen change.
type pageState struct {
	href    string
	domHash uint64
}

// ClickActivator moves the cursor along a humanized path, clicks the node's
// bounding-box center and decides from the page state whether a new screen
// appeared.
type ClickActivator struct {
	browser *Browser
	paths   *pathGenerator
	cursor  point
	log     *zap.Logger
}

var _ schemas.Activator = (*ClickActivator)(nil)

func NewClickActivator(b *Browser, logger *zap.Logger) *ClickActivator {
	return &ClickActivator{
		browser: b,
		paths:   newPathGenerator(time.Now().UnixNano()),
		log:     logger.With(zap.String("component", "activator")),
	}
}

func (a *ClickActivator) Activate(ctx context.Context, ref schemas.NodeRef, node *schemas.Node) (schemas.ActivationResult, error) {
	before, err := a.state(ctx)
	if err != nil {
		return schemas.ActivationResult{}, err
	}

	target := point{
		X: float64(node.BoundingBox.CenterX()),
		Y: float64(node.BoundingBox.CenterY()),
	}
	a.log.Debug("Clicking",
		zap.String("node", ref.String()),
		zap.Float64("x", target.X), zap.Float64("y", target.Y))

	actions := make([]chromedp.Action, 0, 50)
	for _, p := range a.paths.path(a.cursor, target) {
		actions = append(actions, input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y))
	}
	actions = append(actions, chromedp.MouseClickXY(target.X, target.Y))
	if err := a.browser.run(ctx, actions...); err != nil {
		return schemas.ActivationResult{}, fmt.Errorf("dispatching click: %w", err)
	}
	a.cursor = target
	a.browser.settle(ctx)

	after, err := a.state(ctx)
	if err != nil {
		return schemas.ActivationResult{}, err
	}

	if after == before {
		return schemas.ActivationResult{Changed: false}, nil
	}
	return schemas.ActivationResult{
		Changed:             true,
		DestinationScreenID: destinationID(before.href, after.href),
	}, nil
}

func (a *ClickActivator) state(ctx context.Context) (pageState, error) {
	var (
		href string
		html string
	)
	err := a.browser.run(ctx,
		chromedp.Location(&href),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return pageState{}, fmt.Errorf("reading page state: %w", err)
	}
	h := fnv.New64a()
	h.Write([]byte(html))
	return pageState{href: href, domHash: h.Sum64()}, nil
}

// destinationID derives a stable screen id from the new location's path when
// a path-level navigation happened. In-page changes, including fragment and
// query moves, return "" so the graph falls back to deriving the id from the
// activated node's name.
func destinationID(beforeHref, afterHref string) string {
	beforeURL, err := url.Parse(beforeHref)
	if err != nil {
		return ""
	}
	afterURL, err := url.Parse(afterHref)
	if err != nil {
		return ""
	}
	if afterURL.Path == beforeURL.Path {
		return ""
	}
	path := strings.Trim(afterURL.Path, "/")
	if path == "" {
		return ""
	}
	return graph.Slugify(path)
}
