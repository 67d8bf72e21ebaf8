package airtable

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
var ErrMissingAPIKey = errors.New("airtable: api key is required")

// ErrRecordNotFound indicates that the requested record id does not resolve.
var ErrRecordNotFound = errors.New("airtable: record not found")

// Options configures the Airtable REST client.
type Options struct {
	APIKey         string
	BaseID         string
	Table          string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against a single Airtable table.
type Client struct {
	apiKey     string
	baseID     string
	table      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Record is one row of the table. Fields is the raw cell map as returned by
// Airtable; use the typed accessors to read individual cells.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseID := strings.TrimSpace(opts.BaseID)
	if baseID == "" {
		return nil, errors.New("airtable: base id is required")
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		return nil, errors.New("airtable: table name is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
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
		baseID:     baseID,
		table:      table,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Table returns the configured table name.
func (c *Client) Table() string {
	return c.table
}

// Find fetches a single record by id. It returns ErrRecordNotFound when the
// id does not resolve in the table.
func (c *Client) Find(ctx context.Context, recordID string) (*Record, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, errors.New("airtable: record id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(recordID), nil)
	if err != nil {
		return nil, fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable: fetch record: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("airtable: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if resp.StatusCode >= 300 {
		return nil, c.remoteError("fetch record", resp.StatusCode, raw)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("airtable: decode record: %w", err)
	}
	c.logger.Debug().Str("record_id", record.ID).Int("fields", len(record.Fields)).Msg("airtable: fetched record")
	return &record, nil
}

// Update merges the given field map into the record. Cells not present in
// fields are left untouched (Airtable PATCH semantics).
func (c *Client) Update(ctx context.Context, recordID string, fields map[string]any) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return errors.New("airtable: record id is required")
	}
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("airtable: encode fields: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.recordURL(recordID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable: update record: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("airtable: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if resp.StatusCode >= 300 {
		return c.remoteError("update record", resp.StatusCode, raw)
	}
	c.logger.Debug().Str("record_id", recordID).Int("fields", len(fields)).Msg("airtable: updated record")
	return nil
}

func (c *Client) recordURL(recordID string) string {
	return fmt.Sprintf("%s/v0/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(c.table), url.PathEscape(recordID))
}

func (c *Client) remoteError(op string, status int, raw []byte) error {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		return fmt.Errorf("airtable: %s: %s (%s)", op, detail.Error.Message, detail.Error.Type)
	}
	return fmt.Errorf("airtable: %s: status %d: %s", op, status, strings.TrimSpace(string(raw)))
}

// String returns the named cell as a string, or "" when absent or not text.
func (r *Record) String(name string) string {
	v, _ := r.Fields[name].(string)
	return v
}

// Int returns the named cell as an int, or fallback when absent or not numeric.
func (r *Record) Int(name string, fallback int) int {
	// JSON numbers decode as float64 through the generic field map.
	if v, ok := r.Fields[name].(float64); ok {
		return int(v)
	}
	return fallback
}

// FirstAttachmentURL returns the URL of the first entry in an attachment
// cell. A bare URL string cell is accepted as well, so the same table works
// whether the column is an attachment or a plain URL field.
func (r *Record) FirstAttachmentURL(name string) string {
	switch v := r.Fields[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) == 0 {
			return ""
		}
		entry, ok := v[0].(map[string]any)
		if !ok {
			return ""
		}
		u, _ := entry["url"].(string)
		return strings.TrimSpace(u)
	default:
		return ""
	}
}

// AttachmentByURL builds an attachment cell value that references content by
// URL; Airtable fetches and stores the file itself on write.
func AttachmentByURL(u string) []map[string]any {
	return []map[string]any{{"url": u}}
}
