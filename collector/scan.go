package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ecociel/autopublish/domain"
)

// Snapshot is what the watched page exposes to a scan. The browser fills
// it; Scan turns it into a VideoCollection.
type Snapshot struct {
	Path           string   `json:"path"`
	PublishedLinks []string `json:"publishedLinks"`
	DraftLinks     []string `json:"draftLinks"`
	TextNodes      []Node   `json:"textNodes"`
	Cards          []Node   `json:"cards"`
}

// Node is a DOM element that may describe an in-flight generation. Link is
// the href of the nearest video link, if any.
type Node struct {
	Text        string `json:"text"`
	Link        string `json:"link,omitempty"`
	ProgressBar bool   `json:"progressBar,omitempty"`
}

const (
	SourceProfile     = "profile"
	SourceDrafts      = "drafts"
	SourceProgressBar = "drafts_progressbar"
	SourceAPI         = "api"

	maxProgressText = 300
)

var (
	rePostID     = regexp.MustCompile(`/p/(s_[a-f0-9]+)`)
	reDraftID    = regexp.MustCompile(`/d/(gen_[a-z0-9]+)`)
	reProgress   = regexp.MustCompile(`(\d+)%`)
	reVideoPage  = regexp.MustCompile(`^/(p|d)/[a-z0-9_]+$`)
	progressHint = []string{"%", "生成", "Generating"}
)

// PageKindOf classifies a location path. Drafts must match exactly so a
// single draft page (/d/gen_...) is not mistaken for the drafts list.
func PageKindOf(path string) domain.PageKind {
	switch {
	case path == "/profile" || strings.HasPrefix(path, "/profile/"):
		return domain.PageProfile
	case path == "/drafts":
		return domain.PageDrafts
	case path == "/explore" || strings.HasPrefix(path, "/explore/"):
		return domain.PageExplore
	case reVideoPage.MatchString(path):
		return domain.PageVideo
	}
	return domain.PageUnknown
}

// Collectable reports whether scans run on the given page kind.
func Collectable(kind domain.PageKind) bool {
	return kind == domain.PageProfile || kind == domain.PageDrafts
}

// ExtractID returns the post id (s_...) or draft id (gen_...) of a link.
func ExtractID(href string) string {
	if m := rePostID.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := reDraftID.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

// ExtractProgress returns the first percentage in text.
func ExtractProgress(text string) (int, bool) {
	m := reProgress.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return p, true
}

// Scan derives the visible video set of one page. The second return value
// is false when the page kind is not collectable.
func Scan(s Snapshot, now time.Time) (domain.VideoCollection, bool) {
	kind := PageKindOf(s.Path)
	c := domain.VideoCollection{Page: kind, CollectedAt: now}
	if !Collectable(kind) {
		return c, false
	}

	ts := now.UnixMilli()
	links, status, source := s.PublishedLinks, domain.VideoPublished, SourceProfile
	if kind == domain.PageDrafts {
		links, status, source = s.DraftLinks, domain.VideoUnpublished, SourceDrafts
	}

	seen := make(map[string]struct{}, len(links))
	for _, href := range links {
		id := ExtractID(href)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec := domain.VideoRecord{ID: id, URL: href, Status: status, Source: source, Timestamp: ts}
		if status == domain.VideoPublished {
			c.Published = append(c.Published, rec)
		} else {
			c.Unpublished = append(c.Unpublished, rec)
		}
	}

	if kind == domain.PageDrafts {
		c.Generating = scanGenerating(s, ts)
	}
	return c, true
}

func scanGenerating(s Snapshot, ts int64) []domain.VideoRecord {
	var out []domain.VideoRecord
	keys := make(map[string]struct{})
	found := 0

	add := func(n Node, key, source string, progress int) {
		if _, dup := keys[key]; dup {
			return
		}
		keys[key] = struct{}{}
		found++
		id := ExtractID(n.Link)
		url := n.Link
		if id == "" {
			id = fmt.Sprintf("gen_%d_%d", ts, found)
			url = ""
		}
		out = append(out, domain.VideoRecord{
			ID:        id,
			URL:       url,
			Status:    domain.VideoGenerating,
			Progress:  progress,
			Source:    source,
			Timestamp: ts,
		})
	}

	for _, n := range s.TextNodes {
		if utf8.RuneCountInString(n.Text) >= maxProgressText || !hasProgressHint(n.Text) {
			continue
		}
		p, ok := inFlight(n.Text)
		if !ok {
			continue
		}
		key := ExtractID(n.Link)
		if key == "" {
			key = fmt.Sprintf("gen_%d_%s", p, prefix(n.Text, 20))
		}
		add(n, key, SourceDrafts, p)
	}

	for _, n := range s.Cards {
		if !n.ProgressBar {
			continue
		}
		p, ok := inFlight(n.Text)
		if !ok {
			continue
		}
		key := ExtractID(n.Link)
		if key == "" {
			key = fmt.Sprintf("gen_prog_%d", p)
		}
		add(n, key, SourceProgressBar, p)
	}
	return out
}

func inFlight(text string) (int, bool) {
	p, ok := ExtractProgress(text)
	return p, ok && p > 0 && p < 100
}

func hasProgressHint(text string) bool {
	for _, h := range progressHint {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
