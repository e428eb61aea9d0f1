package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Algoritmeregister</title><script>var tracking = 1;</script></head>
<body>
<nav><a href="/">Menu link</a></nav>
<main>
<h1>Register overview</h1>
<p>Government   organisations publish their algorithms here.</p>
<ul><li>First item</li><li>Second item</li></ul>
<script>alert("hi")</script>
</main>
<footer>Copyright notice</footer>
</body>
</html>`

func TestGetWebPageTool_ExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	tool := NewGetWebPageTool()
	result, err := tool.Execute(context.Background(), []byte(`{"url":"`+srv.URL+`"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	out := result.Output
	for _, want := range []string{
		"# Algoritmeregister",
		"Source: " + srv.URL,
		"# Register overview",
		"Government organisations publish their algorithms here.",
		"- First item",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Menu link", "alert", "tracking", "Copyright"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q:\n%s", unwanted, out)
		}
	}
}

func TestGetWebPageTool_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("é", 100))
	}))
	defer srv.Close()

	tool := NewGetWebPageTool(WithMaxChars(10))
	result, err := tool.Execute(context.Background(), []byte(`{"url":"`+srv.URL+`"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, strings.Repeat("é", 10)+"\n\n[content truncated]") {
		t.Errorf("unexpected output:\n%s", result.Output)
	}
	if result.Data["truncated"] != true {
		t.Errorf("truncated = %v", result.Data["truncated"])
	}
}

func TestGetWebPageTool_HTTPErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	result, err := NewGetWebPageTool().Execute(context.Background(), []byte(`{"url":"`+srv.URL+`/missing"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "HTTP 404") {
		t.Errorf("expected HTTP 404 failure, got %+v", result)
	}
}

func TestCleanWhitespace(t *testing.T) {
	got := cleanWhitespace("  a   b \n\n\n\n c\t d  ")
	if got != "a b\n\nc d" {
		t.Errorf("cleanWhitespace = %q", got)
	}
}
