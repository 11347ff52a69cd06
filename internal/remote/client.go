package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jotapp/jot/internal/model"
)

// ErrUnavailable is the single outcome for any transport fault or error
// status from the server. Callers use it to tell "no network" apart from
// "no changes"; nothing else ever escapes this package for network trouble.
var ErrUnavailable = errors.New("remote unavailable")

// Client talks to the note server's JSON API. It performs no retries; the
// sync coordinator's next pass is the retry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL. token may be empty
// when the server runs without authentication.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// List returns records with updated > since. Tombstones are included only
// when includeDeleted is set.
func (c *Client) List(ctx context.Context, since int64, includeDeleted bool) ([]model.Note, error) {
	params := url.Values{}
	if since > 0 {
		params.Set("since", strconv.FormatInt(since, 10))
	}
	if includeDeleted {
		params.Set("deleted", "true")
	}
	path := "/api/notes"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, _, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var notes []model.Note
	if err := json.Unmarshal(body, &notes); err != nil {
		c.logger.Error("decode note list", "error", err)
		return nil, ErrUnavailable
	}
	return notes, nil
}

// Get returns the record with the given id, nil if the server has no such
// record, or ErrUnavailable. Get is the only operation where 404 is part of
// the contract; everywhere else it is just another server error.
func (c *Client) Get(ctx context.Context, id string) (*model.Note, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeNote(body)
}

// Create pushes a full record to the server. The server upserts by id with
// last-write-wins semantics, so Create doubles as the sync push operation.
func (c *Client) Create(ctx context.Context, n *model.Note) (*model.Note, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/api/notes", n)
	if err != nil {
		return nil, err
	}
	return decodeNote(body)
}

// Replace updates the record with the note's id.
func (c *Client) Replace(ctx context.Context, n *model.Note) (*model.Note, error) {
	body, _, err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(n.ID), n)
	if err != nil {
		return nil, err
	}
	return decodeNote(body)
}

// do performs one request. The returned status is the HTTP status code when
// a response arrived, 0 otherwise; any transport fault or non-2xx status
// yields ErrUnavailable, with the status returned alongside for the one
// caller that treats 404 specially.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, 0, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("request error status", "method", method, "path", path, "status", resp.StatusCode)
		return nil, resp.StatusCode, ErrUnavailable
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug("read response", "method", method, "path", path, "error", err)
		return nil, resp.StatusCode, ErrUnavailable
	}
	return body, resp.StatusCode, nil
}

func decodeNote(body []byte) (*model.Note, error) {
	var n model.Note
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, ErrUnavailable
	}
	return &n, nil
}
