package wavespeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/XI0X-Dev/wan-animate-airtable/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("wavespeed: api key is required")

// successCode is the in-body status code the API returns for accepted
// submissions and readable results; an HTTP 200 with any other code is an
// error.
const successCode = 200

// Job statuses reported by the result endpoint. The enum is open: anything
// that is not completed or failed counts as still in progress.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Options configures the WaveSpeed WAN-animate client.
type Options struct {
	APIKey         string
	BaseURL        string
	SubmitPath     string
	ResultPath     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the WaveSpeed video generation API.
type Client struct {
	apiKey     string
	baseURL    string
	submitPath string
	resultPath string
	httpClient *http.Client
	logger     *infra.Logger
}

// SubmitRequest is the generation payload. Prompt is omitted from the wire
// body when empty; the API treats an absent prompt and an empty prompt
// differently.
type SubmitRequest struct {
	Image      string `json:"image"`
	Video      string `json:"video"`
	Mode       string `json:"mode"`
	Resolution string `json:"resolution"`
	Seed       int    `json:"seed"`
	Prompt     string `json:"prompt,omitempty"`
}

// JobResult is the normalized state of a generation job.
type JobResult struct {
	Status  string
	Outputs []string
	Error   string
}

// Terminal reports whether no further state transition will occur.
func (r JobResult) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

type submitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

type resultResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status  string   `json:"status"`
		Outputs []string `json:"outputs"`
		Error   string   `json:"error"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.wavespeed.ai"
	}
	submitPath := strings.TrimSpace(opts.SubmitPath)
	if submitPath == "" {
		submitPath = "/api/v3/wavespeed-ai/wan-2.2/animate"
	}
	resultPath := strings.TrimSpace(opts.ResultPath)
	if resultPath == "" {
		resultPath = "/api/v3/predictions"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		submitPath: submitPath,
		resultPath: resultPath,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit creates one generation job and returns its id. Transport failures,
// non-2xx responses, a non-success in-body code, and a success response
// without a job id all surface as errors, with the remote message carried
// when the body provides one.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("wavespeed: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.submitPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("wavespeed: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("wavespeed: submit job: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("wavespeed: read response: %w", err)
	}

	var decoded submitResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && decoded.Message != "" {
			return "", fmt.Errorf("wavespeed: submit rejected: %s", decoded.Message)
		}
		return "", fmt.Errorf("wavespeed: submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("wavespeed: decode response: %w", decodeErr)
	}
	if decoded.Code != successCode {
		msg := decoded.Message
		if msg == "" {
			msg = "submission was not accepted"
		}
		return "", fmt.Errorf("wavespeed: submit code %d: %s", decoded.Code, msg)
	}
	if decoded.Data.ID == "" {
		return "", errors.New("wavespeed: submit response missing job id")
	}
	c.logger.Debug().Str("job_id", decoded.Data.ID).Msg("wavespeed: job submitted")
	return decoded.Data.ID, nil
}

// Result queries the current state of a job by id.
func (c *Client) Result(ctx context.Context, jobID string) (JobResult, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobResult{}, errors.New("wavespeed: job id is required")
	}
	endpoint := fmt.Sprintf("%s%s/%s/result", c.baseURL, c.resultPath, url.PathEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return JobResult{}, fmt.Errorf("wavespeed: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return JobResult{}, fmt.Errorf("wavespeed: query result: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobResult{}, fmt.Errorf("wavespeed: read response: %w", err)
	}

	var decoded resultResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && decoded.Message != "" {
			return JobResult{}, fmt.Errorf("wavespeed: result rejected: %s", decoded.Message)
		}
		return JobResult{}, fmt.Errorf("wavespeed: result status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return JobResult{}, fmt.Errorf("wavespeed: decode response: %w", decodeErr)
	}
	if decoded.Data.Status == "" {
		return JobResult{}, errors.New("wavespeed: result response missing status")
	}
	return JobResult{
		Status:  decoded.Data.Status,
		Outputs: decoded.Data.Outputs,
		Error:   decoded.Data.Error,
	}, nil
}
