package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"scout/internal/schema"
	"scout/internal/tool"
)

// DefaultSearchResults is how many results web_search returns.
const DefaultSearchResults = 5

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchProvider is a web search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// SearXNG queries a SearXNG instance over its JSON API.
type SearXNG struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewSearXNG creates a provider for the instance at baseURL, for example
// "http://localhost:8080".
func NewSearXNG(baseURL, language string) *SearXNG {
	return &SearXNG{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SearXNG) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (s *SearXNG) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
	}
	if s.language != "" {
		params.Set("language", s.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("searxng: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("searxng: decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(sr.Results))
	for _, r := range sr.Results {
		if count > 0 && len(results) >= count {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}

// WebSearchTool searches the web, optionally restricted to a set of domains.
type WebSearchTool struct {
	provider       SearchProvider
	allowedDomains []string
	count          int
}

// NewWebSearchTool creates the tool. With allowedDomains set, only results
// on those hosts or their subdomains are returned.
func NewWebSearchTool(provider SearchProvider, allowedDomains []string, count int) *WebSearchTool {
	if count <= 0 {
		count = DefaultSearchResults
	}
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, strings.TrimPrefix(d, "www."))
		}
	}
	return &WebSearchTool{provider: provider, allowedDomains: domains, count: count}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	desc := "Search the web for general information. Returns titles, URLs and snippets."
	if len(t.allowedDomains) > 0 {
		desc += " Results are limited to: " + strings.Join(t.allowedDomains, ", ") + "."
	}
	return desc
}

func (t *WebSearchTool) Parameters() *jsonschema.Schema {
	return schema.Object(map[string]*jsonschema.Schema{
		"query": schema.String("The search query"),
	}, "query")
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return tool.Failure(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(p.Query) == "" {
		return tool.Failure("query is required"), nil
	}

	// Over-fetch when filtering so enough results survive.
	want := t.count
	if len(t.allowedDomains) > 0 {
		want = t.count * 4
	}

	results, err := t.provider.Search(ctx, p.Query, want)
	if err != nil {
		return nil, err
	}

	kept := make([]SearchResult, 0, t.count)
	for _, r := range results {
		if len(kept) == t.count {
			break
		}
		if t.allowed(r.URL) {
			kept = append(kept, r)
		}
	}

	return &tool.Result{
		Success: true,
		Output:  FormatResults(kept),
		Data:    map[string]any{"provider": t.provider.Name(), "results": len(kept)},
	}, nil
}

func (t *WebSearchTool) allowed(rawURL string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range t.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FormatResults renders results as a numbered list.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r.Title)
		b.WriteString("\n   ")
		b.WriteString(r.URL)
		if r.Snippet != "" {
			b.WriteString("\n   ")
			b.WriteString(r.Snippet)
		}
	}
	return b.String()
}
