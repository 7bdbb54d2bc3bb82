package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/apollo/internal/tool"
)

const duckHTML = `<html><body>
<div class="result">
  <h2 class="result__title"><a href="https://go.dev/">The Go Programming Language</a></h2>
  <a class="result__snippet">Build simple, secure, scalable systems.</a>
</div>
<div class="result">
  <h2 class="result__title"><a href="https://go.dev/doc/">Go docs</a></h2>
</div>
<div class="result">
  <h2 class="result__title">No link here</h2>
</div>
</body></html>`

func TestWebSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			t.Errorf("expected q=golang, got %q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(duckHTML))
	}))
	defer server.Close()

	_, handler := WebSearch(server.Client(), server.URL)

	res, err := handler(context.Background(), "s1", tool.Args{"search_term": "golang"})
	if err != nil {
		t.Fatalf("web_search failed: %v", err)
	}

	var out webSearchResult
	if err := json.Unmarshal([]byte(res.Payload), &out); err != nil {
		t.Fatalf("bad payload: %v", err)
	}

	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(out.Results), out.Results)
	}
	first := out.Results[0]
	if first.Title != "The Go Programming Language" || first.URL != "https://go.dev/" {
		t.Errorf("unexpected first result: %+v", first)
	}
	if first.Snippet != "Build simple, secure, scalable systems." {
		t.Errorf("unexpected snippet: %q", first.Snippet)
	}
	if out.Results[1].Snippet != "No snippet available." {
		t.Errorf("expected snippet fallback, got %q", out.Results[1].Snippet)
	}
}

func TestWebSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	_, handler := WebSearch(server.Client(), server.URL)
	res, err := handler(context.Background(), "s1", tool.Args{"search_term": "nothing"})
	if err != nil {
		t.Fatalf("web_search failed: %v", err)
	}

	var out webSearchResult
	json.Unmarshal([]byte(res.Payload), &out)
	if len(out.Results) != 0 || out.Message == "" {
		t.Errorf("expected empty results with message, got %+v", out)
	}
}

func TestWebSearch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, handler := WebSearch(server.Client(), server.URL)
	if _, err := handler(context.Background(), "s1", tool.Args{"search_term": "x"}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestWikiSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "opensearch" {
			t.Errorf("expected opensearch action, got %q", r.URL.Query().Get("action"))
		}
		w.Write([]byte(`["go",["Go (programming language)","Go (game)"],["A compiled language",""],["https://en.wikipedia.org/wiki/Go_(programming_language)","https://en.wikipedia.org/wiki/Go_(game)"]]`))
	}))
	defer server.Close()

	_, handler := WikiSearch(server.Client(), server.URL)

	res, err := handler(context.Background(), "s1", tool.Args{"search_term": "go"})
	if err != nil {
		t.Fatalf("wiki_search failed: %v", err)
	}

	var out wikiSearchResult
	json.Unmarshal([]byte(res.Payload), &out)
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if out.Results[0].Title != "Go (programming language)" {
		t.Errorf("unexpected title: %q", out.Results[0].Title)
	}
	if out.Results[1].Snippet != "No snippet available." {
		t.Errorf("expected snippet fallback, got %q", out.Results[1].Snippet)
	}
}

func TestWikiSearch_BadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	_, handler := WikiSearch(server.Client(), server.URL)
	if _, err := handler(context.Background(), "s1", tool.Args{"search_term": "x"}); err == nil {
		t.Error("expected error for malformed response")
	}
}
