package wavespeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "ws-test",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSubmitSendsPayloadWithPrompt(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"id": "job1"},
	})
	client := newTestClient(t, transport)

	jobID, err := client.Submit(context.Background(), SubmitRequest{
		Image:      "http://x/i.png",
		Video:      "http://x/v.mp4",
		Mode:       "animate",
		Resolution: "720p",
		Seed:       42,
		Prompt:     "dance",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "job1" {
		t.Fatalf("job id = %q", jobID)
	}

	req := transport.lastRequest
	if req.Method != http.MethodPost {
		t.Fatalf("method = %s", req.Method)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer ws-test" {
		t.Fatalf("authorization = %q", got)
	}
	if want := "/api/v3/wavespeed-ai/wan-2.2/animate"; req.URL.Path != want {
		t.Fatalf("path = %q, want %q", req.URL.Path, want)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["image"] != "http://x/i.png" || payload["video"] != "http://x/v.mp4" {
		t.Fatalf("payload = %#v", payload)
	}
	if payload["mode"] != "animate" || payload["resolution"] != "720p" {
		t.Fatalf("payload = %#v", payload)
	}
	if payload["seed"] != float64(42) {
		t.Fatalf("seed = %v", payload["seed"])
	}
	if payload["prompt"] != "dance" {
		t.Fatalf("prompt = %v", payload["prompt"])
	}
}

func TestSubmitOmitsEmptyPromptAndKeepsSentinelSeed(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{"id": "job1"},
	})
	client := newTestClient(t, transport)

	if _, err := client.Submit(context.Background(), SubmitRequest{
		Image:      "http://x/i.png",
		Video:      "http://x/v.mp4",
		Mode:       "animate",
		Resolution: "720p",
		Seed:       -1,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := payload["prompt"]; ok {
		t.Fatalf("prompt key should be omitted when empty, payload = %#v", payload)
	}
	if payload["seed"] != float64(-1) {
		t.Fatalf("seed = %v, want -1", payload["seed"])
	}
}

func TestSubmitRejectsNonSuccessBodyCode(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusOK, map[string]any{
		"code":    429,
		"message": "quota exceeded",
	})
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{Image: "i", Video: "v"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected remote message in error, got %v", err)
	}
}

func TestSubmitRejectsHTTPFailure(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusBadGateway, map[string]any{"message": "upstream down"})
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{Image: "i", Video: "v"})
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected remote message in error, got %v", err)
	}
}

func TestSubmitRejectsMissingJobID(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusOK, map[string]any{
		"code": 200,
		"data": map[string]any{},
	})
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{Image: "i", Video: "v"})
	if err == nil || !strings.Contains(err.Error(), "missing job id") {
		t.Fatalf("expected missing job id error, got %v", err)
	}
}

func TestResultParsesJobStates(t *testing.T) {
	cases := []struct {
		name     string
		payload  map[string]any
		want     JobResult
		terminal bool
	}{
		{
			name: "completed",
			payload: map[string]any{
				"code": 200,
				"data": map[string]any{"status": "completed", "outputs": []any{"http://out/video.mp4"}},
			},
			want:     JobResult{Status: StatusCompleted, Outputs: []string{"http://out/video.mp4"}},
			terminal: true,
		},
		{
			name: "failed with message",
			payload: map[string]any{
				"code": 200,
				"data": map[string]any{"status": "failed", "error": "nsfw content detected"},
			},
			want:     JobResult{Status: StatusFailed, Error: "nsfw content detected"},
			terminal: true,
		},
		{
			name: "still processing",
			payload: map[string]any{
				"code": 200,
				"data": map[string]any{"status": "processing"},
			},
			want:     JobResult{Status: "processing"},
			terminal: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &stubTransport{}
			transport.respond(http.StatusOK, tc.payload)
			client := newTestClient(t, transport)

			result, err := client.Result(context.Background(), "job1")
			if err != nil {
				t.Fatalf("result: %v", err)
			}
			if result.Status != tc.want.Status || result.Error != tc.want.Error {
				t.Fatalf("result = %#v, want %#v", result, tc.want)
			}
			if len(result.Outputs) != len(tc.want.Outputs) {
				t.Fatalf("outputs = %#v, want %#v", result.Outputs, tc.want.Outputs)
			}
			if result.Terminal() != tc.terminal {
				t.Fatalf("terminal = %v, want %v", result.Terminal(), tc.terminal)
			}

			req := transport.lastRequest
			if want := "/api/v3/predictions/job1/result"; req.URL.Path != want {
				t.Fatalf("path = %q, want %q", req.URL.Path, want)
			}
			if got := req.Header.Get("Authorization"); got != "Bearer ws-test" {
				t.Fatalf("authorization = %q", got)
			}
		})
	}
}

func TestResultRejectsMissingStatus(t *testing.T) {
	transport := &stubTransport{}
	transport.respond(http.StatusOK, map[string]any{"code": 200, "data": map[string]any{}})
	client := newTestClient(t, transport)

	_, err := client.Result(context.Background(), "job1")
	if err == nil || !strings.Contains(err.Error(), "missing status") {
		t.Fatalf("expected missing status error, got %v", err)
	}
}

type stubTransport struct {
	status      int
	body        []byte
	lastRequest *http.Request
	lastBody    []byte
}

func (s *stubTransport) respond(status int, payload any) {
	body, _ := json.Marshal(payload)
	s.status = status
	s.body = body
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastRequest = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		s.lastBody = body
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(s.body))),
	}, nil
}
