package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html><html class="dark"><head>
<style>body { color: red; }</style>
<link rel="stylesheet" href="/app.css">
<script>alert("hi")</script>
</head><body data-page="home">
<!-- build marker -->
<noscript>enable js</noscript>
<picture><source srcset="a.webp"><img src="a.jpg"></picture>
<h1 id="title">Weather report</h1>
<p class="lead">Sunny, 25C</p>
</body></html>`

func TestFetchSanitizesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	got := New(nil).Fetch(context.Background(), srv.URL)
	if got == "" {
		t.Fatalf("Fetch() returned empty for a valid page")
	}
	for _, keep := range []string{"Weather report", "Sunny, 25C"} {
		if !strings.Contains(got, keep) {
			t.Fatalf("sanitized output lost %q:\n%s", keep, got)
		}
	}
	for _, gone := range []string{"alert", "color: red", "app.css", "enable js", "a.webp", "build marker", "data-page", "class="} {
		if strings.Contains(got, gone) {
			t.Fatalf("sanitized output still contains %q:\n%s", gone, got)
		}
	}
}

func TestFetchRejectsNonHTTPSchemes(t *testing.T) {
	tool := New(nil)
	for _, ref := range []string{"", "ftp://host/file", "not a url", "/etc/passwd"} {
		if got := tool.Fetch(context.Background(), ref); got != "" {
			t.Fatalf("Fetch(%q) = %q, want empty", ref, got)
		}
	}
}

func TestFetchRejectsPlaceholderDomain(t *testing.T) {
	tool := New(nil)
	for _, ref := range []string{"https://example.com", "https://www.example.com/page"} {
		if got := tool.Fetch(context.Background(), ref); got != "" {
			t.Fatalf("Fetch(%q) = %q, want empty", ref, got)
		}
	}
}

func TestFetchNon200ReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if got := New(nil).Fetch(context.Background(), srv.URL); got != "" {
		t.Fatalf("Fetch() = %q for a 503, want empty", got)
	}
}

func TestCallOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>ok</p></body></html>"))
	}))
	defer srv.Close()

	tool := New(nil)

	out := tool.Call(context.Background(), map[string]any{"q": srv.URL})
	if !out.OK || !strings.Contains(out.Message, "ok") {
		t.Fatalf("Call() = %+v, want OK with page content", out)
	}

	out = tool.Call(context.Background(), map[string]any{"q": "nope"})
	if out.OK {
		t.Fatalf("Call() succeeded for a bad URL")
	}
	if out.Message != failureMessage {
		t.Fatalf("Message = %q, want the fixed failure text", out.Message)
	}
}
