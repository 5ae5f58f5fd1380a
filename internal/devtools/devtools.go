// Package devtools drives a browser's extensions page over the Chrome
// DevTools Protocol using chromedp. It implements reload.Browser.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/vibbit-dev/extreload/internal/reload"
)

// ExtensionsURL is the browser's extensions-management page.
const ExtensionsURL = "chrome://extensions/"

// Options configures a Browser.
type Options struct {
	// SettleDelay is waited after the page is ready so that the item list
	// has rendered.
	SettleDelay time.Duration

	Logger *slog.Logger
}

// Browser connects to a remote debugging endpoint. The URL may be an
// http(s) endpoint such as http://localhost:9222 or a browser websocket URL.
type Browser struct {
	url  string
	opts Options
}

// NewBrowser returns a Browser for the endpoint at url.
func NewBrowser(url string, opts Options) *Browser {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Browser{url: url, opts: opts}
}

// URL returns the configured endpoint.
func (b *Browser) URL() string { return b.url }

// Open connects to the browser, opens a new tab on the extensions page and
// waits for it to settle. Connection failures are reported as
// reload.ErrNoBrowserContext.
func (b *Browser) Open(ctx context.Context) (reload.Session, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, b.url)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      b.opts.Logger,
	}

	// The first Run connects and creates the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()

		return nil, fmt.Errorf("%w at %s: %v", reload.ErrNoBrowserContext, b.url, err)
	}

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(ExtensionsURL),
		chromedp.WaitReady("extensions-manager", chromedp.ByQuery),
		chromedp.Sleep(b.opts.SettleDelay),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("opening %s: %w", ExtensionsURL, err)
	}

	b.opts.Logger.Debug("extensions page ready", slog.String("endpoint", b.url))

	return s, nil
}

type session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *slog.Logger
	closed      bool
}

// item is the raw shape returned by listScript.
type item struct {
	Name             string `json:"name"`
	IDText           string `json:"idText"`
	HasReloadControl bool   `json:"hasReloadControl"`
}

func toExtensions(items []item) []reload.Extension {
	exts := make([]reload.Extension, 0, len(items))
	for _, it := range items {
		exts = append(exts, reload.Extension{
			Name:             it.Name,
			ID:               reload.ParseExtensionID(it.IDText),
			HasReloadControl: it.HasReloadControl,
		})
	}

	return exts
}

func (s *session) Extensions(ctx context.Context) ([]reload.Extension, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []item
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(listScript, &items)); err != nil {
		return nil, fmt.Errorf("evaluating extensions page: %w", err)
	}

	return toExtensions(items), nil
}

func (s *session) Reload(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	script, err := reloadScript(id)
	if err != nil {
		return err
	}

	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("evaluating reload: %w", err)
	}

	if !clicked {
		return fmt.Errorf("%w: %s", reload.ErrReloadControlUnavailable, id)
	}

	return nil
}

// Close closes the tab and drops the browser connection. The browser itself
// keeps running.
func (s *session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	// With a remote allocator, cancelling the tab context closes only this
	// tab. page.Close does the same while the connection is still up so
	// that a failure can be reported.
	err := chromedp.Run(s.ctx, page.Close())
	s.cancelTab()
	s.cancelAlloc()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Debug("closing extensions tab", slog.String("error", err.Error()))
		return fmt.Errorf("closing extensions tab: %w", err)
	}

	return nil
}
