package capture

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAllowed(t *testing.T) {
	tests := map[string]bool{
		"https://sora.chatgpt.com/backend/project_y/v2/me":      true,
		"https://sora.chatgpt.com/backend/nf/pending/v2":        true,
		"https://sora.chatgpt.com/backend-api/conversation":     false,
		"https://sora.chatgpt.com/api/auth/session":             false,
		"https://videos.openai.com/vg-assets/task_01/video.mp4": false,
	}
	for url, want := range tests {
		if got := Allowed(url); got != want {
			t.Errorf("%s: expected %v, got %v", url, want, got)
		}
	}
}

func TestIsMediaResource(t *testing.T) {
	tests := map[string]bool{
		"https://videos.openai.com/az/files/x/raw.mp4?se=1": true,
		"https://cdn.example.com/clip.WEBM":                 true,
		"https://cdn.example.com/live/index.m3u8":           true,
		"blob:https://sora.chatgpt.com/1234":                true,
		"https://sora.chatgpt.com/_next/static/app.js":      false,
		"https://sora.chatgpt.com/backend/project_y/media":  false,
	}
	for url, want := range tests {
		if got := IsMediaResource(url); got != want {
			t.Errorf("%s: expected %v, got %v", url, want, got)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken(map[string]any{"authorization": "Bearer abc.def"}); got != "abc.def" {
		t.Errorf("expected abc.def, got %q", got)
	}
	if got := BearerToken(map[string]any{"Authorization": "Basic xyz"}); got != "" {
		t.Errorf("expected no token, got %q", got)
	}
	if got := BearerToken(nil); got != "" {
		t.Errorf("expected no token, got %q", got)
	}
}

func TestParseToken(t *testing.T) {
	exp := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("any-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	tok, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if tok.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", tok.Subject)
	}
	if !tok.ExpiresAt.Equal(exp) {
		t.Errorf("expected expiry %s, got %s", exp, tok.ExpiresAt)
	}
	if !Expired(tok, exp.Add(time.Second)) {
		t.Error("expected token to be expired after its expiry")
	}
	if Expired(tok, exp.Add(-time.Second)) {
		t.Error("expected token to be valid before its expiry")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not-a-jwt"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
