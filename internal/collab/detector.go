package collab

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// interactiveSelector enumerates the element kinds the detector treats as
// candidate controls. It must stay in sync between the DOM walk and the
// geometry script: both iterate querySelectorAll document order.
const interactiveSelector = `a, button, input, select, textarea, [role="button"], [role="menuitem"], [role="tab"], [onclick]`

// rectScript returns one rect per selector match, in document order, so the
// i-th rect belongs to the i-th goquery match.
const rectScript = `Array.from(document.querySelectorAll('` + interactiveSelector + `')).map(el => {
	const r = el.getBoundingClientRect();
	return {l: Math.round(r.left), t: Math.round(r.top), r: Math.round(r.right), b: Math.round(r.bottom)};
})`

type elementRect struct {
	L int `json:"l"`
	T int `json:"t"`
	R int `json:"r"`
	B int `json:"b"`
}

// DOMDetector enumerates interactive elements from the live DOM rather than
// from the captured bitmap. The live page is always the screen that was just
// captured, so the geometry lines up with the image the graph stores.
type DOMDetector struct {
	browser *Browser
	log     *zap.Logger
}

var _ schemas.Detector = (*DOMDetector)(nil)

func NewDOMDetector(b *Browser, logger *zap.Logger) *DOMDetector {
	return &DOMDetector{browser: b, log: logger.With(zap.String("component", "detector"))}
}

func (d *DOMDetector) Detect(ctx context.Context, _ schemas.ImageRef) ([]schemas.RawElement, error) {
	var (
		html  string
		rects []elementRect
	)
	err := d.browser.run(ctx,
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(rectScript, &rects),
	)
	if err != nil {
		return nil, fmt.Errorf("reading page state: %w", err)
	}

	elems, err := elementsFromHTML(html, rects)
	if err != nil {
		return nil, err
	}
	d.log.Debug("Detected elements", zap.Int("count", len(elems)))
	return elems, nil
}

// elementsFromHTML pairs the parsed DOM with the geometry reported by the
// page. Zero-area elements are invisible and dropped.
func elementsFromHTML(html string, rects []elementRect) ([]schemas.RawElement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	var elems []schemas.RawElement
	doc.Find(interactiveSelector).Each(func(i int, sel *goquery.Selection) {
		if i >= len(rects) {
			return
		}
		r := rects[i]
		if r.R <= r.L || r.B <= r.T {
			return
		}
		_, disabled := sel.Attr("disabled")
		elems = append(elems, schemas.RawElement{
			BoundingBox:      schemas.BoundingBox{r.L, r.T, r.R, r.B},
			DisplayName:      displayName(sel),
			BriefDescription: briefDescription(sel),
			ElementType:      elementType(sel),
			Enabled:          !disabled,
			Interactive:      true,
			Group:            groupOf(sel),
		})
	})
	return elems, nil
}

// displayName prefers visible text, then the common accessibility and form
// attributes, then the tag name.
func displayName(sel *goquery.Selection) string {
	if text := strings.Join(strings.Fields(sel.Text()), " "); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "title", "value", "placeholder", "alt", "name"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return goquery.NodeName(sel)
}

func briefDescription(sel *goquery.Selection) string {
	if v, ok := sel.Attr("title"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// elementType maps the tag to the detector's coarse classification. An
// element with only image content and no text is an icon.
func elementType(sel *goquery.Selection) string {
	if strings.TrimSpace(sel.Text()) == "" && sel.Find("img, svg").Length() > 0 {
		return "icon"
	}
	switch goquery.NodeName(sel) {
	case "a":
		return "text"
	case "button":
		return "button"
	case "input", "select", "textarea":
		return "input"
	default:
		return "text"
	}
}

// groupOf records the nearest named landmark, when one exists.
func groupOf(sel *goquery.Selection) string {
	landmark := sel.Closest(`nav, header, footer, aside, [role="navigation"], [role="dialog"]`)
	if landmark.Length() == 0 {
		return ""
	}
	if id, ok := landmark.Attr("id"); ok && id != "" {
		return id
	}
	return goquery.NodeName(landmark)
}
