package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchTool_FiltersAllowedDomains(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Kamerbrief", "url": "https://www.rijksoverheid.nl/documenten/x", "content": "AI policy"},
				{"title": "Blog", "url": "https://example.com/ai", "content": "opinion"},
				{"title": "Statistiek", "url": "https://opendata.cbs.nl/y", "content": "numbers"},
				{"title": "Lookalike", "url": "https://notcbs.nl/z", "content": "spoof"},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebSearchTool(NewSearXNG(srv.URL, "nl"), []string{"rijksoverheid.nl", "cbs.nl"}, 5)
	result, err := tool.Execute(context.Background(), []byte(`{"query":"AI beleid"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotQuery != "AI beleid" {
		t.Errorf("query = %q", gotQuery)
	}

	want := "1. Kamerbrief\n   https://www.rijksoverheid.nl/documenten/x\n   AI policy\n\n" +
		"2. Statistiek\n   https://opendata.cbs.nl/y\n   numbers"
	if result.Output != want {
		t.Errorf("Output =\n%s\nwant\n%s", result.Output, want)
	}
	if !strings.Contains(tool.Description(), "rijksoverheid.nl, cbs.nl") {
		t.Errorf("description should list the allowed domains: %s", tool.Description())
	}
}

func TestWebSearchTool_ProviderErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewWebSearchTool(NewSearXNG(srv.URL, ""), nil, 0).
		Execute(context.Background(), []byte(`{"query":"x"}`))
	if err == nil || !strings.Contains(err.Error(), "HTTP 429") {
		t.Fatalf("expected HTTP 429 error, got %v", err)
	}
}

func TestFormatResults_Empty(t *testing.T) {
	if got := FormatResults(nil); got != "No results found." {
		t.Errorf("FormatResults(nil) = %q", got)
	}
}
