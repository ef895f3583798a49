package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Relay fetches a URL through some outbound path (direct or proxied).
type Relay interface {
	Name() string
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// Direct fetches the target URL with a plain HTTP client.
type Direct struct {
	Client    *http.Client
	UserAgent string
}

func NewDirect(timeout time.Duration) *Direct {
	return &Direct{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: defaultUserAgent,
	}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target)
	}
	return io.ReadAll(resp.Body)
}

// Proxy fetches the target through a relay endpoint. The endpoint is a
// template containing %s, which is replaced with the url-encoded target.
type Proxy struct {
	Label    string
	Endpoint string
	Client   *http.Client
}

func NewProxy(name, endpoint string, timeout time.Duration) *Proxy {
	return &Proxy{
		Label:    name,
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (p *Proxy) Name() string { return p.Label }

func (p *Proxy) Fetch(ctx context.Context, target string) ([]byte, error) {
	endpoint := p.Endpoint
	if strings.Contains(endpoint, "%s") {
		endpoint = fmt.Sprintf(endpoint, url.QueryEscape(target))
	} else {
		endpoint += url.QueryEscape(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay %s: unexpected status %d", p.Label, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

const (
	scoreReward  = 1.0
	scorePenalty = 2.0
)

type entry struct {
	relay Relay
	score float64
}

// Pool tries relays in order of a running health score. A success rewards
// the relay, a failure penalizes it; ordering is recomputed before every
// fetch so a flaky relay sinks to the back of the pool.
type Pool struct {
	entries []*entry
}

func NewPool(relays ...Relay) *Pool {
	p := &Pool{}
	for _, r := range relays {
		p.entries = append(p.entries, &entry{relay: r})
	}
	return p
}

// Add appends a relay with a neutral score.
func (p *Pool) Add(r Relay) {
	p.entries = append(p.entries, &entry{relay: r})
}

func (p *Pool) Len() int { return len(p.entries) }

// Score reports the current health score of a relay by name.
func (p *Pool) Score(name string) (float64, bool) {
	for _, e := range p.entries {
		if e.relay.Name() == name {
			return e.score, true
		}
	}
	return 0, false
}

// Fetch tries every relay in health order until one returns a body.
// The returned error wraps the last failure once the pool is exhausted.
func (p *Pool) Fetch(ctx context.Context, target string) ([]byte, error) {
	if len(p.entries) == 0 {
		return nil, fmt.Errorf("relay pool is empty")
	}

	// Stable sort keeps the configured order among equally scored relays.
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].score > p.entries[j].score
	})

	var lastErr error
	for _, e := range p.entries {
		body, err := e.relay.Fetch(ctx, target)
		if err != nil {
			e.score -= scorePenalty
			lastErr = err
			continue
		}
		e.score += scoreReward
		return body, nil
	}
	return nil, fmt.Errorf("all %d relays failed: %w", len(p.entries), lastErr)
}
