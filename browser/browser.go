// Package browser runs the Chrome instance the pipeline drives over the
// DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ecociel/autopublish/automation"
	"github.com/ecociel/autopublish/collector"
	"github.com/ecociel/autopublish/domain"
)

type Config struct {
	Headless    bool
	UserDataDir string
	ExecPath    string
}

type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	selectors   Selectors
}

// Launch starts Chrome. The profile in UserDataDir must already be signed
// in to the web application.
func Launch(ctx context.Context, cfg Config, sel Selectors) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &Browser{ctx: browserCtx, cancel: cancel, cancelAlloc: cancelAlloc, selectors: sel}, nil
}

func (b *Browser) Close() {
	b.cancel()
	b.cancelAlloc()
}

// NewTab opens a blank tab.
func (b *Browser) NewTab() (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &Tab{ctx: tabCtx, cancel: cancel, selectors: b.selectors}, nil
}

// Open gives a publish session its own tab on url.
func (b *Browser) Open(ctx context.Context, url string) (automation.Surface, error) {
	tab, err := b.NewTab()
	if err != nil {
		return nil, err
	}
	if err := tab.Navigate(ctx, url); err != nil {
		_ = tab.Close()
		return nil, err
	}
	return tab, nil
}

// Tab is one browser tab. It is the surface of a publish session and the
// page the collector scans.
type Tab struct {
	ctx       context.Context
	cancel    context.CancelFunc
	selectors Selectors
	closeOnce sync.Once
}

// Context is bound to the tab, for listeners such as the capture tap.
func (t *Tab) Context() context.Context {
	return t.ctx
}

// run executes actions on the tab and gives up when either the tab or the
// caller's ctx ends.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (t *Tab) Locate(ctx context.Context, role automation.Role) (automation.Element, error) {
	script, err := t.selectors.locateScript(role)
	if err != nil {
		return nil, err
	}
	var found bool
	if err := t.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return nil, fmt.Errorf("locate %s: %w", role, err)
	}
	if !found {
		return nil, automation.ErrNotFound
	}
	return &element{tab: t, role: role}, nil
}

func (t *Tab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Close closes the tab. It is safe to call more than once.
func (t *Tab) Close() error {
	t.closeOnce.Do(t.cancel)
	return nil
}

// Snapshot reads what the collector needs from the current page.
func (t *Tab) Snapshot(ctx context.Context) (collector.Snapshot, error) {
	var snap collector.Snapshot
	if err := t.run(ctx, chromedp.Evaluate(scanJS, &snap)); err != nil {
		return collector.Snapshot{}, fmt.Errorf("scan page: %w", err)
	}
	return snap, nil
}

// FetchAccount asks the web application who is signed in.
func (t *Tab) FetchAccount(ctx context.Context) (domain.Account, error) {
	var account domain.Account
	err := t.run(ctx, chromedp.Evaluate(sessionJS, &account, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return domain.Account{}, fmt.Errorf("fetch session: %w", err)
	}
	return account, nil
}

type element struct {
	tab  *Tab
	role automation.Role
}

func (e *element) Click(ctx context.Context) error {
	return e.eval(ctx, clickJS, "click")
}

func (e *element) Clear(ctx context.Context) error {
	return e.eval(ctx, clearJS, "clear")
}

func (e *element) eval(ctx context.Context, script, action string) error {
	sel, err := json.Marshal(roleSelector(e.role))
	if err != nil {
		return err
	}
	var ok bool
	if err := e.tab.run(ctx, chromedp.Evaluate(fmt.Sprintf(script, sel), &ok)); err != nil {
		return fmt.Errorf("%s %s: %w", action, e.role, err)
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", action, e.role, automation.ErrNotFound)
	}
	return nil
}
