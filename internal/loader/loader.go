// Package loader fetches per-store CSV exports, parses them into tables, and
// serves them through an explicit read-through cache with invalidation hooks.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/slotscope/internal/logger"
	"github.com/rewired-gh/slotscope/internal/models"
	"github.com/rewired-gh/slotscope/internal/storage"
)

// Config tunes transport behavior for resource fetches.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client resolves store keys to resources and caches loaded tables.
// The cache lives until Invalidate or process exit; a snapshot store, when
// present, provides a fallback for unreachable resources.
type Client struct {
	registry       map[string]string
	snapshots      *storage.SnapshotStore
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration

	mu    sync.Mutex
	cache map[string]*models.Table
}

// New creates a loader over a store->URL registry. snapshots may be nil to
// disable the fetch fallback.
func New(registry map[string]string, snapshots *storage.SnapshotStore, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		registry:       registry,
		snapshots:      snapshots,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		cache:          make(map[string]*models.Table),
	}
}

// Stores returns the registered store keys, sorted.
func (c *Client) Stores() []string {
	out := make([]string, 0, len(c.registry))
	for k := range c.registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load returns the table for a store key, fetching and parsing the resource
// on first use and serving the cached table afterwards. Fetch failures fall
// back to the newest persisted snapshot when one exists; otherwise a
// LoadError carrying the original cause is returned. The loader itself
// never retries beyond the transport-level backoff.
func (c *Client) Load(ctx context.Context, store string) (*models.Table, error) {
	c.mu.Lock()
	table, ok := c.cache[store]
	c.mu.Unlock()
	if ok {
		return table, nil
	}

	url, ok := c.registry[store]
	if !ok {
		return nil, &models.LoadError{Store: store, Cause: fmt.Errorf("store not registered")}
	}

	payload, err := c.fetch(ctx, url)
	if err != nil {
		table, ferr := c.loadFromSnapshot(store, err)
		if ferr != nil {
			return nil, ferr
		}
		c.put(store, table)
		return table, nil
	}

	table, err = ParseTable(store, payload)
	if err != nil {
		return nil, err
	}

	if c.snapshots != nil {
		if serr := c.snapshots.SaveSnapshot(store, payload, table.FetchedAt); serr != nil {
			logger.Warn("Failed to persist snapshot for %s: %v", store, serr)
		}
	}

	c.put(store, table)
	logger.Info("Loaded %s: %d rows, %d metric columns", store, len(table.Records), len(table.MetricColumns))
	return table, nil
}

func (c *Client) loadFromSnapshot(store string, fetchErr error) (*models.Table, error) {
	if c.snapshots == nil {
		return nil, &models.LoadError{Store: store, Cause: fetchErr}
	}
	snap, err := c.snapshots.LatestSnapshot(store)
	if err != nil || snap == nil {
		return nil, &models.LoadError{Store: store, Cause: fetchErr}
	}
	table, err := ParseTable(store, snap.Payload)
	if err != nil {
		return nil, err
	}
	table.FetchedAt = snap.FetchedAt
	logger.Warn("Fetch failed for %s, serving snapshot from %s: %v",
		store, snap.FetchedAt.Format(time.RFC3339), fetchErr)
	return table, nil
}

func (c *Client) put(store string, table *models.Table) {
	c.mu.Lock()
	c.cache[store] = table
	c.mu.Unlock()
}

// Invalidate drops the cached table for one store; the next Load refetches.
func (c *Client) Invalidate(store string) {
	c.mu.Lock()
	delete(c.cache, store)
	c.mu.Unlock()
}

// InvalidateAll drops every cached table.
func (c *Client) InvalidateAll() {
	c.mu.Lock()
	c.cache = make(map[string]*models.Table)
	c.mu.Unlock()
}

// fetch performs the HTTP GET with linear-backoff retry on transport errors
// and 5xx responses.
func (c *Client) fetch(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
