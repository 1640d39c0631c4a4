// Package gateway is the HTTP transport between the viewer and the dataview
// backend. It exposes three operations (submit a file, fetch a page of rows,
// persist column type overrides) and turns every failure into a typed error
// carrying a user-facing message.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/dataview/internal/schema"
)

// maxErrorBody bounds how much of a failed response is read for a message.
const maxErrorBody = 64 << 10

// Page is one response from the upload or data endpoints.
type Page struct {
	Schema     schema.Raw
	Rows       []schema.Row
	TotalCount int
	NextSkip   *int
	DatasetID  string
}

// pageResponse is the wire shape of Page.
type pageResponse struct {
	InferredTypes schema.Raw   `json:"inferred_types"`
	Data          []schema.Row `json:"data"`
	TotalCount    int          `json:"total_count"`
	NextSkip      *int         `json:"next_skip"`
	DatasetID     string       `json:"dataset_id,omitempty"`
}

// errorResponse matches the backend's JSON error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client talks to the backend API rooted at a base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds FetchPage and PersistTypeOverride calls. Uploads are
// bounded only by the caller's context and the server. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API at baseURL (e.g. http://localhost:8080/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// bounded applies the per-request timeout to ctx.
func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// endpoint resolves a path below the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// SubmitFile uploads a file as multipart field "file" and returns the
// inferred schema and first page of rows.
func (c *Client) SubmitFile(ctx context.Context, name string, body io.Reader) (Page, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload/", nil), pr)
	if err != nil {
		pr.Close()
		return Page{}, &UploadError{Message: MsgUploadFailed, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upload request failed", "file", name, "error", err)
		return Page{}, &UploadError{Message: MsgUploadFailed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, cause := readErrorBody(resp)
		if msg == "" {
			msg = MsgUploadFailed
		}
		c.logger.Warn("upload rejected", "file", name, "status", resp.StatusCode, "error", cause)
		return Page{}, &UploadError{Message: msg, Status: resp.StatusCode, Err: cause}
	}

	page, err := decodePage(resp.Body)
	if err != nil {
		return Page{}, &UploadError{Message: MsgUploadFailed, Status: resp.StatusCode, Err: err}
	}
	return page, nil
}

// FetchPage returns up to limit rows starting at offset, with the current
// schema and total row count.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (Page, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	q := url.Values{}
	q.Set("skip", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/data", q), nil)
	if err != nil {
		return Page{}, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("page request failed", "skip", offset, "limit", limit, "error", err)
		return Page{}, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, cause := readErrorBody(resp)
		c.logger.Warn("page request rejected", "skip", offset, "status", resp.StatusCode, "error", cause)
		return Page{}, &FetchError{Status: resp.StatusCode, Err: cause}
	}

	page, err := decodePage(resp.Body)
	if err != nil {
		return Page{}, &FetchError{Status: resp.StatusCode, Err: err}
	}
	return page, nil
}

// PersistTypeOverride sends column type overrides. The response body is
// not inspected beyond its status.
func (c *Client) PersistTypeOverride(ctx context.Context, types map[string]schema.DisplayType) error {
	body, err := json.Marshal(struct {
		ColumnTypes map[string]schema.DisplayType `json:"column_types"`
	}{types})
	if err != nil {
		return &UpdateError{Err: err}
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/update_column_types/", nil), bytes.NewReader(body))
	if err != nil {
		return &UpdateError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("type update request failed", "error", err)
		return &UpdateError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, cause := readErrorBody(resp)
		c.logger.Warn("type update rejected", "status", resp.StatusCode, "error", cause)
		return &UpdateError{Status: resp.StatusCode, Err: cause}
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func decodePage(r io.Reader) (Page, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body pageResponse
	if err := dec.Decode(&body); err != nil {
		return Page{}, fmt.Errorf("decode response: %w", err)
	}
	if body.TotalCount < 0 {
		return Page{}, fmt.Errorf("decode response: negative total_count %d", body.TotalCount)
	}

	return Page{
		Schema:     body.InferredTypes,
		Rows:       body.Data,
		TotalCount: body.TotalCount,
		NextSkip:   body.NextSkip,
		DatasetID:  body.DatasetID,
	}, nil
}

// readErrorBody extracts the backend message (if any) and an error
// describing the failure for logs.
func readErrorBody(resp *http.Response) (string, error) {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		detail := body.Error
		if detail == "" {
			detail = body.Message
		}
		if body.Code != "" {
			detail = fmt.Sprintf("%s (%s)", detail, body.Code)
		}
		return body.Message, fmt.Errorf("http %d: %s", resp.StatusCode, detail)
	}

	return "", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
