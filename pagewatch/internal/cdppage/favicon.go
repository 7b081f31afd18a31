// CLAUDE:SUMMARY sink.Applier that shows a tab's indicator as its favicon (data-URL link) and optional title prefix.
package cdppage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
	"github.com/hazyhaar/savedtabs/tabregistry/sink"
)

const faviconJS = `(href, label, title) => {
	let link = document.querySelector('link[data-savedtabs-indicator]');
	if (!link) {
		for (const old of document.querySelectorAll('link[rel~="icon"]')) old.remove();
		link = document.createElement('link');
		link.rel = 'icon';
		link.setAttribute('data-savedtabs-indicator', '');
		(document.head || document.documentElement).appendChild(link);
	}
	link.type = 'image/png';
	link.href = href;
	if (title) {
		const base = document.title.replace(/^\(\d+\+?\) /, '');
		document.title = label ? '(' + label + ') ' + base : base;
	}
}`

// Favicon applies indicators to tabs of the current browser as their
// favicon. The tab id is the CDP target id.
type Favicon struct {
	browser func() *rod.Browser
	size    int
	title   bool
}

var _ sink.Applier = (*Favicon)(nil)

// NewFavicon creates a favicon applier. browser returns the live browser
// (it changes across recycles). size picks the rendered image; when absent
// the largest rendered size is used. title also prefixes the document
// title with "(label) ", since small favicons carry no drawn badge.
func NewFavicon(browser func() *rod.Browser, size int, title bool) *Favicon {
	return &Favicon{browser: browser, size: size, title: title}
}

func (f *Favicon) Apply(ctx context.Context, tabID string, ind indicator.Indicator) error {
	b := f.browser()
	if b == nil {
		return errors.New("favicon: no browser")
	}
	size := f.size
	if _, ok := ind.Images[size]; !ok {
		sizes := ind.Sizes()
		if len(sizes) == 0 {
			return errors.New("favicon: indicator has no images")
		}
		size = sizes[len(sizes)-1]
	}
	data, err := ind.PNG(size)
	if err != nil {
		return fmt.Errorf("favicon: %w", err)
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(tabID))
	if err != nil {
		return fmt.Errorf("favicon: tab %s: %w", tabID, err)
	}
	href := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	if _, err := page.Context(ctx).Eval(faviconJS, href, ind.Label, f.title); err != nil {
		return fmt.Errorf("favicon: tab %s: %w", tabID, err)
	}
	return nil
}

func (f *Favicon) Close() error { return nil }
