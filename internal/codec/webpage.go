package codec

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// ChromeWebPageCodec renders a URL headlessly via chromedp and extracts its
// reader-view content via go-readability, grounded on the teacher's
// internal/web/web.go fetchHTML.
type ChromeWebPageCodec struct {
	// RenderTimeout bounds a single page load; zero uses a 30s default.
	RenderTimeout time.Duration
}

func (c ChromeWebPageCodec) Extract(ctx context.Context, address string) (WebPageExtract, error) {
	timeout := c.RenderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	renderCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var htmlContent string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(address),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return WebPageExtract{}, fmt.Errorf("codec: render %s: %w", address, err)
	}

	base, _ := url.Parse(address)
	article, err := readability.FromReader(strings.NewReader(htmlContent), base)
	if err != nil {
		return WebPageExtract{}, fmt.Errorf("codec: extract reader view for %s: %w", address, err)
	}

	return WebPageExtract{
		Title: strings.TrimSpace(article.Title),
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}

var _ WebPageCodec = ChromeWebPageCodec{}
