package domain

import "time"

// Capture is one intercepted JSON response of the web application.
type Capture struct {
	URL        string
	Payload    []byte
	CapturedAt time.Time
}

type RecordKind string

const (
	KindUserInfo      RecordKind = "user_info"
	KindQuota         RecordKind = "quota"
	KindCreateVideo   RecordKind = "create_video"
	KindVideoProgress RecordKind = "video_progress"
	KindDraftsList    RecordKind = "drafts_list"
	KindPublishedList RecordKind = "published_list"
	KindVideoDetail   RecordKind = "video_detail"
	KindUnclassified  RecordKind = "unclassified"
)

// ClassifiedRecord is a tagged variant. Exactly the field matching Kind is
// set; an Unclassified record carries no payload.
type ClassifiedRecord struct {
	Kind       RecordKind      `json:"type"`
	URL        string          `json:"url"`
	CapturedAt time.Time       `json:"captured_at"`
	UserInfo   *UserInfo       `json:"user_info,omitempty"`
	Quota      *Quota          `json:"quota,omitempty"`
	Create     *CreateVideo    `json:"create_video,omitempty"`
	Progress   []ProgressItem  `json:"progress,omitempty"`
	Drafts     *DraftsList     `json:"drafts,omitempty"`
	Published  []PublishedPost `json:"published,omitempty"`
	Videos     []VideoDetail   `json:"videos,omitempty"`
}

type UserInfo struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email,omitempty"`
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	PlanType          string `json:"plan_type,omitempty"`
	Verified          bool   `json:"verified"`
	InviteCode        string `json:"invite_code,omitempty"`
	InvitesRemaining  *int   `json:"invites_remaining,omitempty"`
	FollowerCount     *int   `json:"follower_count,omitempty"`
	FollowingCount    *int   `json:"following_count,omitempty"`
	PostCount         *int   `json:"post_count,omitempty"`
}

type Quota struct {
	AccountEmail             string   `json:"account_email,omitempty"`
	UserID                   string   `json:"user_id,omitempty"`
	EstimatedVideosRemaining *int     `json:"estimated_num_videos_remaining,omitempty"`
	PurchasedVideosRemaining *int     `json:"estimated_num_purchased_videos_remaining,omitempty"`
	CreditRemaining          *float64 `json:"credit_remaining,omitempty"`
	RateLimitReached         bool     `json:"rate_limit_reached"`
	AccessResetsInSeconds    *int     `json:"access_resets_in_seconds,omitempty"`
	TypeStatus               string   `json:"type_status,omitempty"`
}

type CreateVideo struct {
	TaskID       string `json:"task_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Status       string `json:"status,omitempty"`
	TaskType     string `json:"task_type,omitempty"`
	Priority     *int   `json:"priority,omitempty"`
}

type ProgressItem struct {
	TaskID        string   `json:"task_id"`
	TaskType      string   `json:"task_type,omitempty"`
	Status        string   `json:"status,omitempty"`
	ProgressPct   *float64 `json:"progress_pct,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	Title         string   `json:"title,omitempty"`
	ThumbnailURL  string   `json:"thumbnail_url,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
	Generations   int      `json:"generations"`
}

const (
	DraftKindSora      = "sora_draft"
	DraftKindViolation = "sora_content_violation"
)

type DraftItem struct {
	ID              string `json:"id"`
	GenerationID    string `json:"generation_id,omitempty"`
	Kind            string `json:"kind"`
	TaskID          string `json:"task_id,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	Title           string `json:"title,omitempty"`
	Reviewed        *bool  `json:"draft_reviewed,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	URL             string `json:"url,omitempty"`
	DownloadableURL string `json:"downloadable_url,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	ReasonStr       string `json:"reason_str,omitempty"`
}

type DraftsList struct {
	Items      []DraftItem `json:"items"`
	Violations int         `json:"violations"`
	Others     int         `json:"others"`
}

// Unpublished returns the drafts that are eligible for publishing: regular
// drafts whose review flag is explicitly false.
func (l DraftsList) Unpublished() []Draft {
	var drafts []Draft
	for _, item := range l.Items {
		if item.Kind != DraftKindSora || item.Reviewed == nil || *item.Reviewed {
			continue
		}
		ref := item.GenerationID
		if ref == "" {
			ref = item.ID
		}
		drafts = append(drafts, Draft{
			DraftID:      item.ID,
			GenerationID: item.GenerationID,
			TaskID:       item.TaskID,
			Prompt:       item.Prompt,
			DraftURL:     DraftURLPrefix + ref,
			ThumbnailURL: item.ThumbnailURL,
		})
	}
	return drafts
}

type PublishedPost struct {
	PostID          string  `json:"post_id"`
	Permalink       string  `json:"permalink,omitempty"`
	Text            string  `json:"text,omitempty"`
	DiscoveryPhrase string  `json:"discovery_phrase,omitempty"`
	GenerationID    string  `json:"generation_id,omitempty"`
	TaskID          string  `json:"task_id,omitempty"`
	IsOwner         bool    `json:"is_owner"`
	LikeCount       int     `json:"like_count"`
	ViewCount       int     `json:"view_count"`
	RemixCount      int     `json:"remix_count"`
	PostedAt        float64 `json:"posted_at,omitempty"`
}

type VideoDetail struct {
	PostID       string `json:"post_id"`
	Text         string `json:"text,omitempty"`
	Permalink    string `json:"permalink,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	OwnerUserID  string `json:"owner_user_id,omitempty"`
}
