package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mthakur/oriole/internal/relay"
)

// SearchResult is one entry from a search result page.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResults is the ordered, URL-unique result set of one search.
type SearchResults []SearchResult

func (rs SearchResults) Render() string {
	if len(rs) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range rs {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// Dedupe removes entries with a URL already seen, preserving first-seen order.
func Dedupe(results []SearchResult) SearchResults {
	seen := make(map[string]bool, len(results))
	out := make(SearchResults, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

// QueryRefiner proposes a better search query when one comes back thin.
// The conversation loop backs this with a model call.
type QueryRefiner interface {
	RefineQuery(ctx context.Context, query string, found int) (string, error)
}

const (
	defaultSearchAttempts = 3
	minUsefulResults      = 3
)

// SearchTool performs a web search through the relay pool.
type SearchTool struct {
	Pool        *relay.Pool
	Refiner     QueryRefiner // optional
	MaxAttempts int
}

func NewSearchTool(pool *relay.Pool, refiner QueryRefiner) *SearchTool {
	return &SearchTool{Pool: pool, Refiner: refiner, MaxAttempts: defaultSearchAttempts}
}

func (s *SearchTool) Name() string { return "web_search" }

func (s *SearchTool) Description() string {
	return "Search the web for real-time information. Returns a numbered list of results with title, URL and snippet."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
			"engine": map[string]any{
				"type":        "string",
				"description": "Search engine to use: duckduckgo (default) or bing",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return nil, fmt.Errorf("%w: %q must not be empty", ErrInvalidArgument, "query")
	}
	engine := stringArg(args, "engine")

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultSearchAttempts
	}

	tried := map[string]bool{}
	var collected []SearchResult
	current := query

	for attempt := 0; attempt < attempts; attempt++ {
		tried[strings.ToLower(current)] = true

		results, err := s.searchOnce(ctx, current, engine)
		if err != nil {
			return nil, err
		}
		collected = append(collected, results...)

		unique := Dedupe(collected)
		if len(unique) >= minUsefulResults || s.Refiner == nil || attempt == attempts-1 {
			return unique, nil
		}

		refined, err := s.Refiner.RefineQuery(ctx, current, len(unique))
		if err != nil {
			return unique, nil
		}
		refined = strings.TrimSpace(refined)
		// Stop early when the model repeats itself or declines to improve.
		if refined == "" || tried[strings.ToLower(refined)] {
			return unique, nil
		}
		current = refined
	}
	return Dedupe(collected), nil
}

func (s *SearchTool) searchOnce(ctx context.Context, query, engine string) ([]SearchResult, error) {
	target := searchURL(query, engine)
	body, err := s.Pool.Fetch(ctx, target)
	if err != nil {
		return nil, &ExecutionError{Tool: s.Name(), Err: err}
	}
	results, err := parseResults(body, engine)
	if err != nil {
		return nil, &ExecutionError{Tool: s.Name(), Err: err}
	}
	return results, nil
}

func searchURL(query, engine string) string {
	q := url.QueryEscape(query)
	switch engine {
	case "bing":
		return "https://www.bing.com/search?q=" + q
	default:
		return "https://html.duckduckgo.com/html/?q=" + q
	}
}

func parseResults(body []byte, engine string) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	switch engine {
	case "bing":
		return parseBing(doc), nil
	default:
		return parseDuckDuckGo(doc), nil
	}
}

func parseDuckDuckGo(doc *goquery.Document) []SearchResult {
	var out []SearchResult
	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.result__a").First()
		href := link.AttrOr("href", "")
		r := SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		}
		if r.URL != "" && r.Title != "" {
			out = append(out, r)
		}
	})
	return out
}

func parseBing(doc *goquery.Document) []SearchResult {
	var out []SearchResult
	doc.Find("li.b_algo").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h2 a").First()
		r := SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     link.AttrOr("href", ""),
			Snippet: strings.TrimSpace(sel.Find(".b_caption p").First().Text()),
		}
		if r.URL != "" && r.Title != "" {
			out = append(out, r)
		}
	})
	return out
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.Contains(u.Path, "/l/") {
		if direct := u.Query().Get("uddg"); direct != "" {
			return direct
		}
	}
	return href
}
