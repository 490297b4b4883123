package llmclient

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

// DefaultPoolMaxSize and DefaultIdleTimeout match §4.4's stated pool
// bounds: at most 20 live clients, idle-evicted after an hour.
const (
	DefaultPoolMaxSize  = 20
	DefaultIdleTimeout  = 1 * time.Hour
	idleSweepInterval   = 5 * time.Minute
)

type poolEntry struct {
	client   openai.Client
	lastUsed time.Time
}

// Pool is a bounded, idle-evicting cache of openai.Client values keyed by
// (api_key, base_url), so that concurrent completions against the same
// preset reuse one underlying HTTP transport (§4.4). Grounded on the
// teacher's NewOpenAIProviderWithBaseURL (pkg/connector/provider_openai.go),
// which builds one openai.Client per (apiKey, baseURL) pair via
// option.WithAPIKey/option.WithBaseURL.
type Pool struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *poolEntry]
	idle    time.Duration
	log     zerolog.Logger
	stopCh  chan struct{}
	stopped bool
}

// NewPool builds a Pool with the given size bound and idle timeout, and
// starts a background sweep that evicts clients unused for longer than idle.
func NewPool(maxSize int, idle time.Duration, log zerolog.Logger) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultPoolMaxSize
	}
	cache, _ := lru.New[string, *poolEntry](maxSize)
	p := &Pool{
		cache:  cache,
		idle:   idle,
		log:    log.With().Str("component", "llm_client_pool").Logger(),
		stopCh: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

func poolKey(c Credentials) string {
	return c.APIKey + "|" + c.BaseURL
}

// Get returns the pooled client for c, constructing and caching one if
// this is the first use of this (api_key, base_url) pair.
func (p *Pool) Get(c Credentials) openai.Client {
	key := poolKey(c)

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.cache.Get(key); ok {
		entry.lastUsed = time.Now()
		return entry.client
	}

	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	client := openai.NewClient(opts...)
	p.cache.Add(key, &poolEntry{client: client, lastUsed: time.Now()})
	return client
}

func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for _, key := range p.cache.Keys() {
		entry, ok := p.cache.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.lastUsed) >= p.idle {
			p.cache.Remove(key)
		}
	}
}

// Close stops the idle-eviction sweep goroutine.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
}
