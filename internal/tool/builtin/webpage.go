package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"

	"scout/internal/schema"
	"scout/internal/tool"
)

const (
	// DefaultFetchTimeout bounds one page fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxBytes is the largest response body read (5 MB).
	DefaultMaxBytes int64 = 5 * 1024 * 1024

	// DefaultMaxChars limits the text returned to the model.
	DefaultMaxChars = 50000
)

// GetWebPageTool fetches a URL and returns its readable text.
type GetWebPageTool struct {
	client   *http.Client
	maxBytes int64
	maxChars int
}

// WebPageOption configures GetWebPageTool.
type WebPageOption func(*GetWebPageTool)

func WithHTTPClient(c *http.Client) WebPageOption {
	return func(t *GetWebPageTool) { t.client = c }
}

func WithMaxChars(n int) WebPageOption {
	return func(t *GetWebPageTool) {
		if n > 0 {
			t.maxChars = n
		}
	}
}

func WithMaxBytes(n int64) WebPageOption {
	return func(t *GetWebPageTool) {
		if n > 0 {
			t.maxBytes = n
		}
	}
}

func NewGetWebPageTool(opts ...WebPageOption) *GetWebPageTool {
	t := &GetWebPageTool{
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes: DefaultMaxBytes,
		maxChars: DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *GetWebPageTool) Name() string {
	return "get_web_page"
}

func (t *GetWebPageTool) Description() string {
	return "Fetch and retrieve the content of a specific web page given its URL. Use this when you need to read a particular webpage."
}

func (t *GetWebPageTool) Parameters() *jsonschema.Schema {
	return schema.Object(map[string]*jsonschema.Schema{
		"url": schema.String("The URL of the web page to fetch"),
	}, "url")
}

func (t *GetWebPageTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return tool.Failure(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	rawURL := strings.TrimSpace(p.URL)
	if rawURL == "" {
		return tool.Failure("url is required"), nil
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return tool.Failure(fmt.Sprintf("invalid url: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return tool.Failure(fmt.Sprintf("invalid url: %v", err)), nil
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "nl,en;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return tool.Failure(fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, rawURL)), nil
	}

	contentType := resp.Header.Get("Content-Type")
	var title, content string
	switch {
	case isHTML(contentType):
		title, content = extractHTML(string(body))
	case utf8.Valid(body):
		content = strings.TrimSpace(string(body))
	default:
		return tool.Failure(fmt.Sprintf("binary content (%s), %d bytes", contentType, len(body))), nil
	}

	content, truncated := truncateRunes(content, t.maxChars)

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	fmt.Fprintf(&b, "Source: %s\n\n", rawURL)
	b.WriteString(content)
	if truncated {
		b.WriteString("\n\n[content truncated]")
	}

	return &tool.Result{
		Success: true,
		Output:  b.String(),
		Data: map[string]any{
			"url":          rawURL,
			"title":        title,
			"content_type": contentType,
			"truncated":    truncated,
		},
	}, nil
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
