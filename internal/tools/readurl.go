package tools

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mthakur/oriole/internal/relay"
)

// ReadResult is a windowed slice of a page's extracted text.
type ReadResult struct {
	Content string `json:"content"`
	HasMore bool   `json:"hasMore"`
}

func (r ReadResult) Render() string {
	if r.Content == "" {
		return "(no readable content)"
	}
	if r.HasMore {
		return r.Content + "\n... (more content available)"
	}
	return r.Content
}

// Renderer fetches a page through a real browser when plain fetching
// yields nothing usable.
type Renderer interface {
	Render(ctx context.Context, target string) (string, error)
}

const defaultReadLength = 2000

// ReadTool fetches a page through the relay pool and returns clean text.
type ReadTool struct {
	Pool     *relay.Pool
	Renderer Renderer // optional
	policy   *bluemonday.Policy
}

func NewReadTool(pool *relay.Pool, renderer Renderer) *ReadTool {
	return &ReadTool{Pool: pool, Renderer: renderer, policy: bluemonday.StrictPolicy()}
}

func (t *ReadTool) Name() string { return "read_url" }

func (t *ReadTool) Description() string {
	return "Fetch a webpage URL and extract the main content as clean text. Supports windowed reads via start and length."
}

func (t *ReadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full URL of the webpage to read (e.g., https://example.com/article)",
			},
			"start": map[string]any{
				"type":        "integer",
				"description": "Byte offset to start reading from (default 0)",
			},
			"length": map[string]any{
				"type":        "integer",
				"description": "Number of bytes to return (default 2000)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	target := strings.TrimSpace(stringArg(args, "url"))
	if target == "" {
		return nil, fmt.Errorf("%w: %q must not be empty", ErrInvalidArgument, "url")
	}
	start := intArg(args, "start", 0)
	length := intArg(args, "length", defaultReadLength)
	if start < 0 {
		start = 0
	}
	if length <= 0 {
		length = defaultReadLength
	}

	html := t.fetch(ctx, target)
	if html == "" {
		// Every relay and fallback exhausted: fail soft.
		return ReadResult{}, nil
	}

	content := t.extract(html, target)
	content = t.policy.Sanitize(content)
	content = collapseWhitespace(content)

	windowed, hasMore := window(content, start, length)
	return ReadResult{Content: windowed, HasMore: hasMore}, nil
}

func (t *ReadTool) fetch(ctx context.Context, target string) string {
	body, err := t.Pool.Fetch(ctx, target)
	if err == nil && len(body) > 0 {
		return string(body)
	}
	if err != nil {
		log.Printf("read_url: relay pool exhausted for %s: %v", target, err)
	}
	if t.Renderer == nil {
		return ""
	}
	rendered, err := t.Renderer.Render(ctx, target)
	if err != nil {
		log.Printf("read_url: render fallback failed for %s: %v", target, err)
		return ""
	}
	return rendered
}

// extract pulls the main text out of a page: readability first, then a
// graceful fallback chain of meta description, title and full body text.
func (t *ReadTool) extract(html, target string) string {
	pageURL, _ := url.Parse(target)

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	if desc := doc.Find(`meta[name="description"]`).AttrOr("content", ""); strings.TrimSpace(desc) != "" {
		return desc
	}
	if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
		if body := strings.TrimSpace(doc.Find("body").Text()); body != "" {
			return title + "\n" + body
		}
		return title
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

// window slices content to [start, start+length) by byte offset.
func window(content string, start, length int) (string, bool) {
	if start >= len(content) {
		return "", false
	}
	end := start + length
	if end >= len(content) {
		return content[start:], false
	}
	return content[start:end], true
}

var whitespaceRe = regexp.MustCompile(`[ \t]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

func collapseWhitespace(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
