package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mthakur/oriole/internal/relay"
)

type failRelay struct{}

func (failRelay) Name() string { return "fail" }

func (failRelay) Fetch(ctx context.Context, target string) ([]byte, error) {
	return nil, errors.New("unreachable")
}

type fixedRelay struct {
	body []byte
}

func (f *fixedRelay) Name() string { return "fixed" }

func (f *fixedRelay) Fetch(ctx context.Context, target string) ([]byte, error) {
	return f.body, nil
}

func articlePage(paragraphs int) []byte {
	var b strings.Builder
	b.WriteString(`<html><head><title>Test Article</title></head><body><article><h1>Test Article</h1>`)
	for i := 0; i < paragraphs; i++ {
		b.WriteString("<p>The quick brown fox jumps over the lazy dog, again and again, without ever getting tired of the chase.</p>")
	}
	b.WriteString("</article></body></html>")
	return []byte(b.String())
}

func TestReadTool_ExtractsArticleText(t *testing.T) {
	pool := relay.NewPool(&fixedRelay{body: articlePage(10)})
	tool := NewReadTool(pool, nil)

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://example.com/post"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	read, ok := res.(ReadResult)
	if !ok {
		t.Fatalf("Expected ReadResult, got %T", res)
	}
	if !strings.Contains(read.Content, "quick brown fox") {
		t.Errorf("Extracted content missing article text:\n%s", read.Content)
	}
	if strings.Contains(read.Content, "<p>") {
		t.Errorf("HTML leaked into extracted content:\n%s", read.Content)
	}
}

func TestReadTool_WindowedRead(t *testing.T) {
	pool := relay.NewPool(&fixedRelay{body: articlePage(50)})
	tool := NewReadTool(pool, nil)
	ctx := context.Background()

	res, err := tool.Execute(ctx, map[string]any{"url": "https://example.com/post", "start": float64(0), "length": float64(100)})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	first := res.(ReadResult)
	if len(first.Content) != 100 {
		t.Errorf("Expected 100 bytes, got %d", len(first.Content))
	}
	if !first.HasMore {
		t.Error("Expected more content after the first window")
	}
	if !strings.Contains(first.Render(), "more content available") {
		t.Errorf("Render should flag remaining content:\n%s", first.Render())
	}

	res, err = tool.Execute(ctx, map[string]any{"url": "https://example.com/post", "start": float64(100), "length": float64(100)})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	second := res.(ReadResult)
	if second.Content == first.Content {
		t.Error("Second window returned the same bytes as the first")
	}
}

func TestReadTool_FailsSoftWhenUnreachable(t *testing.T) {
	pool := relay.NewPool(failRelay{})
	tool := NewReadTool(pool, nil)

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://down.example.com"})
	if err != nil {
		t.Fatalf("Expected soft failure, got error: %v", err)
	}
	read := res.(ReadResult)
	if read.Content != "" || read.HasMore {
		t.Errorf("Expected empty result, got %+v", read)
	}
	if read.Render() != "(no readable content)" {
		t.Errorf("Unexpected empty render: %q", read.Render())
	}
}

type fixedRenderer struct {
	html  string
	calls int
}

func (f *fixedRenderer) Render(ctx context.Context, target string) (string, error) {
	f.calls++
	return f.html, nil
}

func TestReadTool_RendererFallback(t *testing.T) {
	renderer := &fixedRenderer{html: string(articlePage(5))}
	pool := relay.NewPool(failRelay{})
	tool := NewReadTool(pool, renderer)

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://spa.example.com"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	read := res.(ReadResult)
	if renderer.calls != 1 {
		t.Errorf("Expected one render call, got %d", renderer.calls)
	}
	if !strings.Contains(read.Content, "quick brown fox") {
		t.Errorf("Rendered content not extracted:\n%s", read.Content)
	}
}

func TestReadTool_MetaDescriptionFallback(t *testing.T) {
	page := `<html><head><title>Sparse</title><meta name="description" content="A sparse page about nothing."></head><body></body></html>`
	pool := relay.NewPool(&fixedRelay{body: []byte(page)})
	tool := NewReadTool(pool, nil)

	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://sparse.example.com"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	read := res.(ReadResult)
	if !strings.Contains(read.Content, "A sparse page about nothing.") {
		t.Errorf("Meta description fallback not used: %q", read.Content)
	}
}

func TestWindow(t *testing.T) {
	content := "abcdefghij"

	got, more := window(content, 0, 4)
	if got != "abcd" || !more {
		t.Errorf("window(0,4) = %q, %v", got, more)
	}
	got, more = window(content, 4, 10)
	if got != "efghij" || more {
		t.Errorf("window(4,10) = %q, %v", got, more)
	}
	got, more = window(content, 20, 4)
	if got != "" || more {
		t.Errorf("window past end = %q, %v", got, more)
	}
	got, more = window(content, 0, 10)
	if got != "abcdefghij" || more {
		t.Errorf("window exact length = %q, %v", got, more)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "a   b\t\tc\n\n\n\n\nd"
	want := "a b c\n\nd"
	if got := collapseWhitespace(in); got != want {
		t.Errorf("collapseWhitespace: got %q, want %q", got, want)
	}
}
