package browser

import (
	"context"
	"errors"
)

type navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Watcher cycles the watched tab through a fixed list of pages so the
// capture tap and the collector keep seeing fresh data.
type Watcher struct {
	tab    navigator
	urls   []string
	onLoad func(url string)
	next   int
}

func NewWatcher(tab navigator, urls []string, onLoad func(url string)) *Watcher {
	return &Watcher{tab: tab, urls: urls, onLoad: onLoad}
}

// Step loads the next page of the cycle.
func (w *Watcher) Step(ctx context.Context) error {
	if len(w.urls) == 0 {
		return errors.New("no pages to watch")
	}
	url := w.urls[w.next%len(w.urls)]
	w.next++
	if w.onLoad != nil {
		w.onLoad(url)
	}
	return w.tab.Navigate(ctx, url)
}
