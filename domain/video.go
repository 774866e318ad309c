package domain

import "time"

type PageKind string

const (
	PageProfile PageKind = "profile"
	PageDrafts  PageKind = "drafts"
	PageExplore PageKind = "explore"
	PageVideo   PageKind = "video"
	PageUnknown PageKind = "unknown"
)

type VideoStatus string

const (
	VideoPublished   VideoStatus = "published"
	VideoGenerating  VideoStatus = "generating"
	VideoUnpublished VideoStatus = "unpublished"
)

// VideoRecord is a video seen on a scanned page. Progress is only set for
// generating videos.
type VideoRecord struct {
	ID        string      `json:"id"`
	URL       string      `json:"url,omitempty"`
	Status    VideoStatus `json:"status"`
	Progress  int         `json:"progress,omitempty"`
	Source    string      `json:"source"`
	Timestamp int64       `json:"timestamp"`
}

type VideoCollection struct {
	Page        PageKind      `json:"page"`
	Published   []VideoRecord `json:"published"`
	Generating  []VideoRecord `json:"generating"`
	Unpublished []VideoRecord `json:"unpublished"`
	CollectedAt time.Time     `json:"collected_at"`
}

func (c VideoCollection) Total() int {
	return len(c.Published) + len(c.Generating) + len(c.Unpublished)
}

// Account is the signed-in user as reported by the session endpoint.
type Account struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
	Image string `json:"image,omitempty"`
}

// AuthToken holds the unverified claims of the captured bearer token.
type AuthToken struct {
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Stats is the body posted to the stats endpoint after every page scan.
type Stats struct {
	TotalVideos       int         `json:"totalVideos"`
	PublishedVideos   int         `json:"publishedVideos"`
	GeneratingVideos  int         `json:"generatingVideos"`
	UnpublishedVideos int         `json:"unpublishedVideos"`
	Videos            StatsVideos `json:"videos"`
	Account           *Account    `json:"account"`
	LastUpdate        time.Time   `json:"lastUpdate"`
}

type StatsVideos struct {
	Published   []VideoRecord `json:"published"`
	Generating  []VideoRecord `json:"generating"`
	Unpublished []VideoRecord `json:"unpublished"`
}

func NewStats(c VideoCollection, account *Account) Stats {
	v := StatsVideos{
		Published:   nonNil(c.Published),
		Generating:  nonNil(c.Generating),
		Unpublished: nonNil(c.Unpublished),
	}
	return Stats{
		TotalVideos:       c.Total(),
		PublishedVideos:   len(v.Published),
		GeneratingVideos:  len(v.Generating),
		UnpublishedVideos: len(v.Unpublished),
		Videos:            v,
		Account:           account,
		LastUpdate:        c.CollectedAt,
	}
}

func nonNil(v []VideoRecord) []VideoRecord {
	if v == nil {
		return []VideoRecord{}
	}
	return v
}

// Snapshot is the aggregated state of one page load of the watched tab.
type Snapshot struct {
	PageLoadID string           `json:"page_load_id"`
	URL        string           `json:"url"`
	StartedAt  time.Time        `json:"started_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Account    *Account         `json:"account,omitempty"`
	Token      *AuthToken       `json:"token,omitempty"`
	UserInfo   *UserInfo        `json:"user_info,omitempty"`
	Quota      *Quota           `json:"quota,omitempty"`
	Created    []CreateVideo    `json:"created,omitempty"`
	Progress   []ProgressItem   `json:"progress,omitempty"`
	Drafts     []Draft          `json:"drafts,omitempty"`
	Published  []PublishedPost  `json:"published,omitempty"`
	Videos     []VideoDetail    `json:"videos,omitempty"`
	Scan       *VideoCollection `json:"scan,omitempty"`
}
