package capture

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ecociel/autopublish/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	reAllowed = regexp.MustCompile(`/backend/(project_y|nf)/`)
	reMedia   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.(mp4|webm|m3u8|ts|mov)(\?|$)`),
		regexp.MustCompile(`(?i)video|stream|media|blob:http`),
		regexp.MustCompile(`(?i)cdn.*\.(mp4|webm)`),
	}
)

// Allowed reports whether responses of url are handed to the classifier.
func Allowed(url string) bool {
	return reAllowed.MatchString(url)
}

// IsMediaResource reports whether url looks like a video resource that may
// be blocked to save bandwidth. Application API calls are never media.
func IsMediaResource(url string) bool {
	if Allowed(url) {
		return false
	}
	for _, re := range reMedia {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// BearerToken returns the token of an Authorization header value.
func BearerToken(headers map[string]any) string {
	for k, v := range headers {
		if !strings.EqualFold(k, "authorization") {
			continue
		}
		s, _ := v.(string)
		if token, ok := strings.CutPrefix(s, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// ParseToken reads the subject and expiry of a JWT without verifying its
// signature; the token is only inspected, never trusted.
func ParseToken(raw string) (domain.AuthToken, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return domain.AuthToken{}, fmt.Errorf("parse bearer token: %w", err)
	}
	var tok domain.AuthToken
	if sub, err := claims.GetSubject(); err == nil {
		tok.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time.UTC()
	}
	return tok, nil
}

// Expired reports whether tok carries an expiry before now.
func Expired(tok domain.AuthToken, now time.Time) bool {
	return !tok.ExpiresAt.IsZero() && tok.ExpiresAt.Before(now)
}
