// Package capture taps the JSON traffic of a browser tab and optionally
// blocks media downloads.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
)

// Handler receives every captured response body.
type Handler func(c domain.Capture)

// TokenHandler receives the claims of a newly seen bearer token.
type TokenHandler func(tok domain.AuthToken)

type Tap struct {
	handler    Handler
	onToken    TokenHandler
	blockMedia bool
	now        func() time.Time

	mu        sync.Mutex
	pending   map[network.RequestID]string
	lastToken string
}

func NewTap(handler Handler, onToken TokenHandler, blockMedia bool) *Tap {
	return &Tap{
		handler:    handler,
		onToken:    onToken,
		blockMedia: blockMedia,
		now:        time.Now,
		pending:    make(map[network.RequestID]string),
	}
}

var mediaPatterns = []*fetch.RequestPattern{
	{URLPattern: "*", ResourceType: network.ResourceTypeMedia, RequestStage: fetch.RequestStageRequest},
	{URLPattern: "*.mp4*", RequestStage: fetch.RequestStageRequest},
	{URLPattern: "*.webm*", RequestStage: fetch.RequestStageRequest},
	{URLPattern: "*.m3u8*", RequestStage: fetch.RequestStageRequest},
	{URLPattern: "*.mov*", RequestStage: fetch.RequestStageRequest},
}

// Attach starts listening on the tab bound to ctx. Listening stops when the
// tab's context is cancelled.
func (t *Tap) Attach(ctx context.Context) error {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if Allowed(e.Request.URL) {
				t.observeToken(e.Request.Headers)
			}
		case *network.EventResponseReceived:
			if Allowed(e.Response.URL) && strings.Contains(e.Response.MimeType, "json") {
				t.mu.Lock()
				t.pending[e.RequestID] = e.Response.URL
				t.mu.Unlock()
			}
		case *network.EventLoadingFinished:
			t.mu.Lock()
			url, ok := t.pending[e.RequestID]
			delete(t.pending, e.RequestID)
			t.mu.Unlock()
			if ok {
				go t.readBody(ctx, e.RequestID, url)
			}
		case *network.EventLoadingFailed:
			t.mu.Lock()
			delete(t.pending, e.RequestID)
			t.mu.Unlock()
		case *fetch.EventRequestPaused:
			go t.resolvePaused(ctx, e)
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if t.blockMedia {
		actions = append(actions, fetch.Enable().WithPatterns(mediaPatterns))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("enable capture domains: %w", err)
	}
	return nil
}

func (t *Tap) readBody(ctx context.Context, id network.RequestID, url string) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil {
		log.Printf("read response body of %s: %v", url, err)
		return
	}
	t.handler(domain.Capture{URL: url, Payload: body, CapturedAt: t.now()})
}

func (t *Tap) resolvePaused(ctx context.Context, e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	exec := cdp.WithExecutor(ctx, c.Target)
	if e.ResourceType == network.ResourceTypeMedia || IsMediaResource(e.Request.URL) {
		err := fetch.FulfillRequest(e.RequestID, 200).
			WithBody(base64.StdEncoding.EncodeToString(nil)).
			Do(exec)
		if err != nil {
			log.Printf("block media %s: %v", e.Request.URL, err)
		}
		return
	}
	if err := fetch.ContinueRequest(e.RequestID).Do(exec); err != nil {
		log.Printf("continue request %s: %v", e.Request.URL, err)
	}
}

func (t *Tap) observeToken(headers network.Headers) {
	raw := BearerToken(headers)
	if raw == "" {
		return
	}
	t.mu.Lock()
	if raw == t.lastToken {
		t.mu.Unlock()
		return
	}
	t.lastToken = raw
	t.mu.Unlock()

	tok, err := ParseToken(raw)
	if err != nil {
		log.Printf("captured bearer token is not a jwt: %v", err)
		return
	}
	if Expired(tok, t.now()) {
		log.Printf("captured bearer token for %s expired at %s", tok.Subject, tok.ExpiresAt)
	}
	if t.onToken != nil {
		t.onToken(tok)
	}
}
