// Package collector periodically scans the watched page for video links
// and in-flight generations.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
)

// Page reads the current DOM of the watched tab.
type Page interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

type sink interface {
	AcceptScan(ctx context.Context, c domain.VideoCollection)
}

type Collector struct {
	page Page
	sink sink
	now  func() time.Time

	mu      sync.Mutex
	pending map[string]domain.VideoRecord
}

func New(page Page, sink sink) *Collector {
	return &Collector{
		page:    page,
		sink:    sink,
		now:     time.Now,
		pending: make(map[string]domain.VideoRecord),
	}
}

// CollectOnce scans the page and forwards the collection, even when empty.
// It does nothing on pages that are not collectable.
func (c *Collector) CollectOnce(ctx context.Context) error {
	snap, err := c.page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot page: %w", err)
	}
	coll, ok := Scan(snap, c.now())
	if !ok {
		return nil
	}

	c.mu.Lock()
	coll = c.mergePending(coll)
	c.mu.Unlock()

	log.Printf("scanned %s: %d published, %d generating, %d unpublished",
		coll.Page, len(coll.Published), len(coll.Generating), len(coll.Unpublished))
	c.sink.AcceptScan(ctx, coll)
	return nil
}

// Merge remembers published videos learned from classified traffic. They
// are added to the next emitted collection unless the scan already saw them.
func (c *Collector) Merge(rec domain.ClassifiedRecord) {
	ts := rec.CapturedAt.UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch rec.Kind {
	case domain.KindPublishedList:
		for _, p := range rec.Published {
			if p.IsOwner {
				c.remember(p.PostID, p.Permalink, ts)
			}
		}
	case domain.KindVideoDetail:
		for _, v := range rec.Videos {
			c.remember(v.PostID, v.Permalink, ts)
		}
	}
}

func (c *Collector) remember(id, url string, ts int64) {
	if ExtractID("/p/"+id) != id {
		return
	}
	if url == "" {
		url = "https://sora.chatgpt.com/p/" + id
	}
	c.pending[id] = domain.VideoRecord{
		ID:        id,
		URL:       url,
		Status:    domain.VideoPublished,
		Source:    SourceAPI,
		Timestamp: ts,
	}
}

func (c *Collector) mergePending(coll domain.VideoCollection) domain.VideoCollection {
	if len(c.pending) == 0 {
		return coll
	}
	seen := make(map[string]struct{}, coll.Total())
	for _, list := range [][]domain.VideoRecord{coll.Published, coll.Generating, coll.Unpublished} {
		for _, v := range list {
			seen[v.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			coll.Published = append(coll.Published, c.pending[id])
		}
		delete(c.pending, id)
	}
	return coll
}
