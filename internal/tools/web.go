package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/felixgeelhaar/apollo/internal/tool"
)

const webRequestTimeout = 20 * time.Second

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Firefox/109.0.0.0",
}

type webResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type webSearchResult struct {
	Query   string      `json:"query"`
	Results []webResult `json:"results"`
	Message string      `json:"message,omitempty"`
}

// WebSearch builds the web_search tool, scraping DuckDuckGo's HTML search
// endpoint. The base URL is injectable for tests.
func WebSearch(client *http.Client, baseURL string) (tool.Spec, tool.Handler) {
	if client == nil {
		client = &http.Client{Timeout: webRequestTimeout}
	}
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}

	spec := tool.Spec{
		Name:        "web_search",
		Description: "Search the web for real-time information about any topic",
		Params: []tool.Param{
			{Name: "search_term", Type: "string", Description: "The search term to look up on the web", Required: true},
		},
		Effect: tool.EffectNetwork,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		query := args.String("search_term", "")

		reqURL := baseURL + "?q=" + url.QueryEscape(query)
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("web search request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
		}

		doc, err := html.Parse(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse search results: %w", err)
		}

		result := webSearchResult{Query: query, Results: parseDuckDuckGo(doc)}
		if len(result.Results) == 0 {
			result.Results = []webResult{}
			result.Message = "No relevant search results found."
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}

// parseDuckDuckGo extracts results from the html.duckduckgo.com markup:
// each .result block holds a .result__title link and a .result__snippet.
func parseDuckDuckGo(doc *html.Node) []webResult {
	var results []webResult
	for _, block := range findAllByClass(doc, "result") {
		var r webResult
		if title := findFirstByClass(block, "result__title"); title != nil {
			r.Title = strings.TrimSpace(textContent(title))
			if link := findFirstTag(title, "a"); link != nil {
				r.URL = attrValue(link, "href")
			}
		}
		if r.URL == "" {
			if link := findFirstByClass(block, "result__url"); link != nil {
				r.URL = strings.TrimSpace(attrValue(link, "href"))
				if r.URL == "" {
					r.URL = strings.TrimSpace(textContent(link))
				}
			}
		}
		if snippet := findFirstByClass(block, "result__snippet"); snippet != nil {
			r.Snippet = strings.TrimSpace(textContent(snippet))
		}
		if r.Snippet == "" {
			r.Snippet = "No snippet available."
		}
		if r.Title != "" && r.URL != "" {
			results = append(results, r)
		}
	}
	return results
}

type wikiSearchResult struct {
	Query   string      `json:"query"`
	Results []webResult `json:"results"`
}

// WikiSearch builds the wiki_search tool using Wikipedia's opensearch API,
// which returns parallel arrays of titles, snippets, and URLs.
func WikiSearch(client *http.Client, baseURL string) (tool.Spec, tool.Handler) {
	if client == nil {
		client = &http.Client{Timeout: webRequestTimeout}
	}
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w/api.php"
	}

	spec := tool.Spec{
		Name:        "wiki_search",
		Description: "Search Wikipedia for articles about a topic",
		Params: []tool.Param{
			{Name: "search_term", Type: "string", Description: "The topic to search for on Wikipedia", Required: true},
		},
		Effect: tool.EffectNetwork,
	}

	handler := func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		query := args.String("search_term", "")

		params := url.Values{}
		params.Set("action", "opensearch")
		params.Set("search", query)
		params.Set("limit", "10")
		params.Set("format", "json")

		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("wiki search request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("wiki search returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		// Response shape: [query, [titles...], [snippets...], [urls...]]
		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse wiki response: %w", err)
		}
		if len(raw) < 4 {
			return nil, fmt.Errorf("unexpected wiki response shape")
		}

		var titles, snippets, urls []string
		json.Unmarshal(raw[1], &titles)
		json.Unmarshal(raw[2], &snippets)
		json.Unmarshal(raw[3], &urls)

		result := wikiSearchResult{Query: query, Results: []webResult{}}
		for i := range titles {
			r := webResult{Title: titles[i]}
			if i < len(urls) {
				r.URL = urls[i]
			}
			if i < len(snippets) && snippets[i] != "" {
				r.Snippet = snippets[i]
			} else {
				r.Snippet = "No snippet available."
			}
			result.Results = append(result.Results, r)
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: string(payload)}, nil
	}

	return spec, handler
}

// html tree helpers

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAllByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, class) {
			out = append(out, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirstByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findFirstByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func findFirstTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
