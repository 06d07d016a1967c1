package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type BrowserOptions struct {
	Headless   bool
	WindowSize string
	UserAgent  string
	// Settle is how long to wait after navigation so page scripts can fire
	// their own requests.
	Settle time.Duration
}

// Browser is one headless Chrome tab that records the network requests each
// navigation issues. It is not safe for concurrent use.
type Browser struct {
	ctx    context.Context
	cancel []context.CancelFunc
	settle time.Duration
	log    *zap.Logger

	mu       sync.Mutex
	requests []Request
}

// newBrowser is swapped in tests that must not start Chrome.
var newBrowser = NewBrowser

func NewBrowser(ctx context.Context, opts BrowserOptions, log *zap.Logger) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("window-size", opts.WindowSize),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		log.Debug("chromedp", zap.String("message", fmt.Sprintf(format, v...)))
	}))

	b := &Browser{
		ctx:    tabCtx,
		cancel: []context.CancelFunc{cancelTab, cancelAlloc},
		settle: opts.Settle,
		log:    log,
	}

	chromedp.ListenTarget(tabCtx, b.onEvent)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		b.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return b, nil
}

// WithBrowser runs fn with a fresh browser and closes it on every way out of
// fn, panics included.
func WithBrowser(ctx context.Context, opts BrowserOptions, log *zap.Logger, fn func(*Browser) error) error {
	b, err := newBrowser(ctx, opts, log)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(b)
}

func (b *Browser) onEvent(ev interface{}) {
	if e, ok := ev.(*network.EventRequestWillBeSent); ok && e.Request != nil {
		b.mu.Lock()
		b.requests = append(b.requests, Request{URL: e.Request.URL})
		b.mu.Unlock()
	}
}

func (b *Browser) Render(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.requests = nil
	b.mu.Unlock()

	var actions []chromedp.Action
	// A fragment-only change is a same-document navigation that never fires
	// a load event, so go through a blank page first.
	if strings.Contains(url, "#") {
		actions = append(actions, chromedp.Navigate("about:blank"))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(b.ctx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	b.mu.Lock()
	requests := make([]Request, len(b.requests))
	copy(requests, b.requests)
	b.mu.Unlock()

	b.log.Debug("rendered page", zap.String("url", url), zap.Int("requests", len(requests)))

	return &Page{HTML: html, Requests: requests}, nil
}

func (b *Browser) Close() {
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = nil
}
