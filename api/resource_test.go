package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecociel/autopublish/domain"
	restful "github.com/emicklei/go-restful/v3"
)

type recordingCommand struct {
	calls []domain.Command
	resp  domain.CommandResponse
}

func (r *recordingCommand) run(ctx context.Context, cmd domain.Command) domain.CommandResponse {
	r.calls = append(r.calls, cmd)
	return r.resp
}

func newTestContainer(cmd *recordingCommand) *restful.Container {
	c := restful.NewContainer()
	c.Add(NewResource(cmd.run).WebService())
	return c
}

func serve(c *restful.Container, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)
	return rec
}

func TestCommands_Dispatch(t *testing.T) {
	n := 2
	cmd := &recordingCommand{resp: domain.CommandResponse{Success: true, QueueLength: &n}}
	c := newTestContainer(cmd)

	rec := serve(c, http.MethodPost, "/control/commands", `{"type": "FETCH_QUEUE"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(cmd.calls) != 1 || cmd.calls[0].Type != domain.CmdFetchQueue {
		t.Fatalf("unexpected calls: %+v", cmd.calls)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["success"] != true || got["queueLength"] != float64(2) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestCommands_InvalidBody(t *testing.T) {
	cmd := &recordingCommand{}
	c := newTestContainer(cmd)

	rec := serve(c, http.MethodPost, "/control/commands", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(cmd.calls) != 0 {
		t.Errorf("expected no command, got %+v", cmd.calls)
	}
}

func TestFixedRoutes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   domain.CommandType
	}{
		{http.MethodGet, "/control/status", domain.CmdGetQueueStatus},
		{http.MethodPost, "/control/publish/start", domain.CmdStartPublish},
		{http.MethodPost, "/control/publish/stop", domain.CmdStopPublish},
		{http.MethodPost, "/control/queue/fetch", domain.CmdFetchQueue},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			cmd := &recordingCommand{resp: domain.CommandResponse{Success: false, Message: "queue is empty"}}
			c := newTestContainer(cmd)

			rec := serve(c, tc.method, tc.path, "")

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if len(cmd.calls) != 1 || cmd.calls[0].Type != tc.want {
				t.Errorf("expected %s, got %+v", tc.want, cmd.calls)
			}
			if !strings.Contains(rec.Body.String(), "queue is empty") {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestFixedRoutes_NoBody(t *testing.T) {
	for _, path := range []string{"/control/publish/start", "/control/publish/stop", "/control/queue/fetch"} {
		t.Run(path, func(t *testing.T) {
			cmd := &recordingCommand{resp: domain.CommandResponse{Success: true}}
			c := newTestContainer(cmd)

			req := httptest.NewRequest(http.MethodPost, path, nil)
			rec := httptest.NewRecorder()
			c.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(cmd.calls) != 1 {
				t.Errorf("expected 1 command, got %d", len(cmd.calls))
			}
		})
	}
}

func TestCommands_RejectsNonJSON(t *testing.T) {
	cmd := &recordingCommand{}
	c := newTestContainer(cmd)

	req := httptest.NewRequest(http.MethodPost, "/control/commands", strings.NewReader("type=FETCH_QUEUE"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if len(cmd.calls) != 0 {
		t.Errorf("expected no command, got %+v", cmd.calls)
	}
}
