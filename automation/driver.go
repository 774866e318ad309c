// Package automation publishes a single draft by driving its page through
// edit, clear, save, post and the redirect to the published video.
package automation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/emicklei/go-restful/v3/log"
)

type Role string

const (
	RolePromptInput Role = "prompt_input"
	RoleEditButton  Role = "edit_button"
	RoleSaveButton  Role = "save_button"
	RolePostButton  Role = "post_button"
)

// ErrNotFound is returned by Locate when no element has the role.
var ErrNotFound = errors.New("element not found")

type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Surface is the tab a session drives. Close must be safe to call while
// another goroutine still uses the surface.
type Surface interface {
	Locate(ctx context.Context, role Role) (Element, error)
	Location(ctx context.Context) (string, error)
	Close() error
}

type Opener interface {
	Open(ctx context.Context, url string) (Surface, error)
}

type Step string

const (
	StepLocateEdit    Step = "locate_edit_affordance"
	StepClearPrompt   Step = "clear_prompt"
	StepSave          Step = "save"
	StepSubmit        Step = "submit"
	StepAwaitRedirect Step = "await_redirect"
)

const (
	msgEditNotFound   = "edit button not found"
	msgPromptNotFound = "prompt textarea not found"
	msgSaveNotFound   = "save button not found"
	msgPostNotFound   = "Post button not found"
	msgNoRedirect     = "no redirect to the published page detected"
	msgTimedOut       = "publish timed out"
	msgCancelled      = "publish cancelled"
)

// StepError reports the step a session failed in. Its message is what the
// backend receives as the result error.
type StepError struct {
	Step Step
	Msg  string
	Err  error
}

func (e *StepError) Error() string {
	return e.Msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

var (
	rePublished = regexp.MustCompile(`/p/s_`)
	rePostID    = regexp.MustCompile(`/p/(s_[a-f0-9]+)`)
)

type Config struct {
	ReadyDelay       time.Duration
	EditSettle       time.Duration
	ClearSettle      time.Duration
	SaveSettle       time.Duration
	StepTimeout      time.Duration
	RedirectInterval time.Duration
	RedirectAttempts int
	CloseDelay       time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadyDelay:       2 * time.Second,
		EditSettle:       2 * time.Second,
		ClearSettle:      1 * time.Second,
		SaveSettle:       2 * time.Second,
		StepTimeout:      10 * time.Second,
		RedirectInterval: 1 * time.Second,
		RedirectAttempts: 30,
		CloseDelay:       2 * time.Second,
	}
}

type Driver struct {
	opener Opener
	cfg    Config
	now    func() time.Time
}

func New(opener Opener, cfg Config) *Driver {
	return &Driver{opener: opener, cfg: cfg, now: time.Now}
}

// Publish runs one session to its terminal result. It returns no later
// than session.Deadline and always closes the surface it opened.
func (d *Driver) Publish(ctx context.Context, session domain.PublishSession) domain.PublishResult {
	ctx, cancel := context.WithDeadline(ctx, session.Deadline)
	defer cancel()

	draft := session.Draft
	if draft.DraftURL == "" {
		return d.failed(draft, "draft url missing")
	}

	surface, err := d.opener.Open(ctx, draft.DraftURL)
	if err != nil {
		if msg, ok := interrupted(ctx); ok {
			return d.failed(draft, msg)
		}
		return d.failed(draft, fmt.Sprintf("open draft page: %v", err))
	}

	type outcome struct {
		location string
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		location, err := d.run(ctx, surface)
		done <- outcome{location: location, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		msg, _ := interrupted(ctx)
		d.close(surface, session.ID)
		log.Printf("session %s for %s: %s", session.ID, draft.DraftID, msg)
		return d.failed(draft, msg)
	}

	if out.err != nil {
		d.close(surface, session.ID)
		if msg, ok := interrupted(ctx); ok {
			return d.failed(draft, msg)
		}
		var stepErr *StepError
		if errors.As(out.err, &stepErr) {
			log.Printf("session %s for %s failed in %s: %v", session.ID, draft.DraftID, stepErr.Step, stepErr.Err)
		}
		return d.failed(draft, out.err.Error())
	}

	result := domain.NewPublishResult(draft, d.now())
	result.Success = true
	result.PublishedURL = out.location
	if m := rePostID.FindStringSubmatch(out.location); m != nil {
		result.PostID = m[1]
	}
	log.Printf("session %s published %s as %s", session.ID, draft.DraftID, result.PostID)

	_ = sleep(ctx, d.cfg.CloseDelay)
	d.close(surface, session.ID)
	return result
}

func (d *Driver) run(ctx context.Context, s Surface) (string, error) {
	if err := sleep(ctx, d.cfg.ReadyDelay); err != nil {
		return "", err
	}
	if err := d.locateEditAffordance(ctx, s); err != nil {
		return "", err
	}
	if err := d.clearPrompt(ctx, s); err != nil {
		return "", err
	}
	if err := d.clickStep(ctx, s, StepSave, RoleSaveButton, msgSaveNotFound, d.cfg.SaveSettle); err != nil {
		return "", err
	}
	if err := d.clickStep(ctx, s, StepSubmit, RolePostButton, msgPostNotFound, 0); err != nil {
		return "", err
	}
	return d.awaitRedirect(ctx, s)
}

// locateEditAffordance is done when the prompt input is already shown.
// Otherwise the edit button opens it.
func (d *Driver) locateEditAffordance(ctx context.Context, s Surface) error {
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	_, err := s.Locate(stepCtx, RolePromptInput)
	cancel()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return &StepError{Step: StepLocateEdit, Msg: msgEditNotFound, Err: err}
	}
	return d.clickStep(ctx, s, StepLocateEdit, RoleEditButton, msgEditNotFound, d.cfg.EditSettle)
}

func (d *Driver) clearPrompt(ctx context.Context, s Surface) error {
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	defer cancel()
	el, err := s.Locate(stepCtx, RolePromptInput)
	if err != nil {
		return &StepError{Step: StepClearPrompt, Msg: msgPromptNotFound, Err: err}
	}
	if err := el.Clear(stepCtx); err != nil {
		return &StepError{Step: StepClearPrompt, Msg: msgPromptNotFound, Err: err}
	}
	return sleep(ctx, d.cfg.ClearSettle)
}

func (d *Driver) clickStep(ctx context.Context, s Surface, step Step, role Role, msg string, settle time.Duration) error {
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	defer cancel()
	el, err := s.Locate(stepCtx, role)
	if err != nil {
		return &StepError{Step: step, Msg: msg, Err: err}
	}
	if err := el.Click(stepCtx); err != nil {
		return &StepError{Step: step, Msg: msg, Err: err}
	}
	return sleep(ctx, settle)
}

func (d *Driver) awaitRedirect(ctx context.Context, s Surface) (string, error) {
	for i := 0; i < d.cfg.RedirectAttempts; i++ {
		if err := sleep(ctx, d.cfg.RedirectInterval); err != nil {
			return "", err
		}
		location, err := s.Location(ctx)
		if err != nil {
			continue
		}
		if rePublished.MatchString(location) {
			return location, nil
		}
	}
	return "", &StepError{
		Step: StepAwaitRedirect,
		Msg:  msgNoRedirect,
		Err:  fmt.Errorf("%d polls every %s", d.cfg.RedirectAttempts, d.cfg.RedirectInterval),
	}
}

func (d *Driver) close(s Surface, sessionID string) {
	if err := s.Close(); err != nil {
		log.Printf("session %s: close surface: %v", sessionID, err)
	}
}

func (d *Driver) failed(draft domain.Draft, msg string) domain.PublishResult {
	return domain.NewPublishResult(draft, d.now()).Failed(msg)
}

// interrupted reports whether ctx ended, and how.
func interrupted(ctx context.Context) (string, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return msgTimedOut, true
	case ctx.Err() != nil:
		return msgCancelled, true
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
