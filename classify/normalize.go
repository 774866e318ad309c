package classify

import (
	"sort"
	"strings"

	"github.com/ecociel/autopublish/domain"
)

// builder fills the typed payload of rec from a decoded JSON value and
// reports whether the value had the expected shape.
type builder func(rec *domain.ClassifiedRecord, v any) bool

func buildUserInfo(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	if data == nil {
		return false
	}
	myInfo := object(data["my_info"])
	profile := object(data["profile"])
	if profile == nil {
		profile = object(myInfo["profile"])
	}
	info := &domain.UserInfo{
		UserID:            first(str(profile, "user_id"), str(data, "user_id")),
		Email:             first(str(myInfo, "email"), str(data, "email")),
		Username:          first(str(profile, "username"), str(data, "username")),
		DisplayName:       str(profile, "display_name"),
		ProfilePictureURL: first(str(profile, "profile_picture_url"), str(data, "profile_picture_url")),
		PlanType:          first(str(profile, "plan_type"), str(data, "plan_type")),
		Verified:          boolean(profile, "verified") || boolean(data, "verified"),
		InviteCode:        str(myInfo, "invite_code"),
		InvitesRemaining:  intPtr(myInfo, "invites_remaining"),
		FollowerCount:     intPtr(profile, "follower_count"),
		FollowingCount:    intPtr(profile, "following_count"),
		PostCount:         intPtr(profile, "post_count"),
	}
	if info.UserID == "" && info.Email == "" {
		return false
	}
	rec.UserInfo = info
	return true
}

func buildQuota(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	if data == nil {
		return false
	}
	limits := object(data["rate_limit_and_credit_balance"])
	if limits == nil {
		limits = data
	}
	q := &domain.Quota{
		EstimatedVideosRemaining: intPtr(limits, "estimated_num_videos_remaining"),
		PurchasedVideosRemaining: intPtr(limits, "estimated_num_purchased_videos_remaining"),
		CreditRemaining:          floatPtr(limits, "credit_remaining"),
		RateLimitReached:         boolean(limits, "rate_limit_reached"),
		AccessResetsInSeconds:    intPtr(limits, "access_resets_in_seconds"),
		TypeStatus:               str(limits, "type"),
	}
	if q.EstimatedVideosRemaining == nil {
		q.EstimatedVideosRemaining = intPtr(data, "remaining")
	}
	rec.Quota = q
	return true
}

func buildCreateVideo(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	if data == nil {
		return false
	}
	rec.Create = &domain.CreateVideo{
		TaskID:       taskID(data),
		GenerationID: str(data, "generation_id", "generationId"),
		Prompt:       str(data, "prompt", "text"),
		Status:       str(data, "status"),
		TaskType:     str(data, "task_type", "taskType"),
		Priority:     intPtr(data, "priority"),
	}
	return true
}

// taskID looks for the task id in the well-known keys first and then in any
// key mentioning "task", visiting keys in sorted order.
func taskID(data map[string]any) string {
	if id := str(data, "id", "task_id", "taskId"); id != "" {
		return id
	}
	if id := str(object(data["task"]), "id"); id != "" {
		return id
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.Contains(strings.ToLower(k), "task") {
			continue
		}
		switch val := data[k].(type) {
		case string:
			if strings.HasPrefix(val, "task_") {
				return val
			}
		case map[string]any:
			if id := str(val, "id"); id != "" {
				return id
			}
		}
	}
	return ""
}

func buildProgress(rec *domain.ClassifiedRecord, v any) bool {
	tasks := array(v)
	if tasks == nil {
		if m := object(v); m != nil {
			tasks = []any{m}
		}
	}
	items := make([]domain.ProgressItem, 0, len(tasks))
	for _, t := range tasks {
		task := object(t)
		id := str(task, "id")
		if id == "" {
			continue
		}
		items = append(items, domain.ProgressItem{
			TaskID:        id,
			TaskType:      str(task, "task_type"),
			Status:        str(task, "status"),
			ProgressPct:   floatPtr(task, "progress_pct"),
			Prompt:        str(task, "prompt"),
			Title:         str(task, "title"),
			ThumbnailURL:  str(task, "thumbnail_url"),
			FailureReason: str(task, "failure_reason"),
			Generations:   len(array(task["generations"])),
		})
	}
	if len(items) == 0 && tasks == nil {
		return false
	}
	rec.Progress = items
	return true
}

func buildDraftsList(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	raw, ok := data["items"].([]any)
	if !ok {
		return false
	}
	list := &domain.DraftsList{Items: make([]domain.DraftItem, 0, len(raw))}
	for _, it := range raw {
		item := object(it)
		id := str(item, "id")
		if id == "" {
			continue
		}
		d := domain.DraftItem{
			ID:           id,
			GenerationID: str(item, "generation_id"),
			Kind:         str(item, "kind"),
			TaskID:       str(item, "task_id"),
			Prompt:       str(item, "prompt"),
			Title:        str(item, "title"),
			Reviewed:     boolPtr(item, "draft_reviewed"),
			Width:        integer(item, "width"),
			Height:       integer(item, "height"),
			ReasonStr:    str(item, "reason_str"),
		}
		switch d.Kind {
		case domain.DraftKindSora:
			d.URL = str(item, "url")
			d.DownloadableURL = str(item, "downloadable_url")
			d.ThumbnailURL = str(object(object(item["encodings"])["thumbnail"]), "url")
		case domain.DraftKindViolation:
			list.Violations++
		default:
			list.Others++
		}
		list.Items = append(list.Items, d)
	}
	rec.Drafts = list
	return true
}

func buildPublishedList(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	raw, ok := data["items"].([]any)
	if !ok {
		return false
	}
	posts := make([]domain.PublishedPost, 0, len(raw))
	for _, it := range raw {
		post := object(object(it)["post"])
		if post == nil {
			continue
		}
		attachment := object(firstOf(array(post["attachments"])))
		pt, _ := number(post, "posted_at")
		posts = append(posts, domain.PublishedPost{
			PostID:          str(post, "id"),
			Permalink:       str(post, "permalink"),
			Text:            str(post, "text"),
			DiscoveryPhrase: str(post, "discovery_phrase"),
			GenerationID:    str(attachment, "generation_id"),
			TaskID:          str(attachment, "task_id"),
			IsOwner:         boolean(post, "is_owner"),
			LikeCount:       integer(post, "like_count"),
			ViewCount:       integer(post, "view_count"),
			RemixCount:      integer(post, "remix_count"),
			PostedAt:        pt,
		})
	}
	rec.Published = posts
	return true
}

func buildVideoDetail(rec *domain.ClassifiedRecord, v any) bool {
	data := object(v)
	if object(data["post"]) == nil {
		return false
	}
	rec.Videos = []domain.VideoDetail{videoDetail(data)}
	return true
}

func videoDetail(data map[string]any) domain.VideoDetail {
	post := object(data["post"])
	attachment := object(firstOf(array(post["attachments"])))
	return domain.VideoDetail{
		PostID:       str(post, "id"),
		Text:         str(post, "text"),
		Permalink:    str(post, "permalink"),
		VideoURL:     str(attachment, "url"),
		GenerationID: str(attachment, "generation_id"),
		TaskID:       str(attachment, "task_id"),
		OwnerUserID:  str(object(data["profile"]), "user_id"),
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstOf(a []any) any {
	if len(a) == 0 {
		return nil
	}
	return a[0]
}
