// Package classify turns intercepted responses of the web application into
// typed records.
package classify

import (
	"encoding/json"
	"net/url"
	"regexp"

	"github.com/ecociel/autopublish/domain"
)

type urlRule struct {
	kind  domain.RecordKind
	match func(path string) bool
	build builder
}

type shapeRule struct {
	kind  domain.RecordKind
	match func(v any) bool
	build builder
}

var (
	reMe          = regexp.MustCompile(`/backend/project_y/(v2/)?me$`)
	reCheck       = regexp.MustCompile(`/backend/(nf|project_y)/check`)
	reCreate      = regexp.MustCompile(`/backend/(nf|project_y)/create$`)
	rePending     = regexp.MustCompile(`/backend/nf/pending`)
	reV2          = regexp.MustCompile(`/backend/project_y/v2`)
	reV2Me        = regexp.MustCompile(`/v2/me$`)
	reDrafts      = regexp.MustCompile(`/backend/project_y/profile/drafts`)
	reProfileFeed = regexp.MustCompile(`/backend/project_y/profile_feed`)
	rePost        = regexp.MustCompile(`/backend/project_y/post/s_[a-f0-9]+`)
)

func matches(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

// urlRules is evaluated top to bottom and the first match wins. The account
// rule must precede the progress rule because both live under
// /backend/project_y/v2.
var urlRules = []urlRule{
	{domain.KindUserInfo, matches(reMe), buildUserInfo},
	{domain.KindQuota, matches(reCheck), buildQuota},
	{domain.KindCreateVideo, matches(reCreate), buildCreateVideo},
	{domain.KindVideoProgress, func(p string) bool {
		return rePending.MatchString(p) || (reV2.MatchString(p) && !reV2Me.MatchString(p))
	}, buildProgress},
	{domain.KindDraftsList, matches(reDrafts), buildDraftsList},
	{domain.KindPublishedList, matches(reProfileFeed), buildPublishedList},
	{domain.KindVideoDetail, matches(rePost), buildVideoDetail},
}

// shapeRules recognise payloads reached through endpoint aliases that the
// URL rules do not know.
var shapeRules = []shapeRule{
	{domain.KindCreateVideo, func(v any) bool {
		return has(object(v), "id", "task_type", "rate_limit_and_credit_balance")
	}, buildCreateVideo},
	{domain.KindVideoProgress, func(v any) bool {
		a := array(v)
		return len(a) > 0 && has(object(a[0]), "id", "task_type", "status")
	}, buildProgress},
	{domain.KindVideoDetail, isVideoData, buildVideoDetail},
	{domain.KindVideoDetail, func(v any) bool {
		for _, it := range array(object(v)["items"]) {
			if isVideoData(it) {
				return true
			}
		}
		return false
	}, buildVideoList},
	{domain.KindVideoDetail, func(v any) bool {
		return object(object(v)["post"]) != nil
	}, buildVideoDetail},
}

// Classify maps one capture to a record. It has no side effects: the same
// capture always yields the same record.
func Classify(c domain.Capture) domain.ClassifiedRecord {
	rec := domain.ClassifiedRecord{
		Kind:       domain.KindUnclassified,
		URL:        c.URL,
		CapturedAt: c.CapturedAt,
	}

	var payload any
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return rec
	}

	path := pathOf(c.URL)
	for _, r := range urlRules {
		if !r.match(path) {
			continue
		}
		if r.build(&rec, payload) {
			rec.Kind = r.kind
		}
		return rec
	}

	for _, r := range shapeRules {
		if !r.match(payload) {
			continue
		}
		if r.build(&rec, payload) {
			rec.Kind = r.kind
		}
		return rec
	}
	return rec
}

// KindOf reports which URL rule matches rawURL, or KindUnclassified.
func KindOf(rawURL string) domain.RecordKind {
	path := pathOf(rawURL)
	for _, r := range urlRules {
		if r.match(path) {
			return r.kind
		}
	}
	return domain.KindUnclassified
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}

func isVideoData(v any) bool {
	post := object(object(v)["post"])
	attachment := object(firstOf(array(post["attachments"])))
	switch str(attachment, "kind") {
	case "sora", "video":
		return true
	}
	return false
}

func buildVideoList(rec *domain.ClassifiedRecord, v any) bool {
	var videos []domain.VideoDetail
	for _, it := range array(object(v)["items"]) {
		if isVideoData(it) {
			videos = append(videos, videoDetail(object(it)))
		}
	}
	rec.Videos = videos
	return len(videos) > 0
}
