// Package client builds the http.Client handed to the API collaborator.
package client

import (
	"net/http"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/peterbourgon/diskv"
	"github.com/rs/zerolog/log"
)

// diskCacheSizeMax matches the in-memory index size diskcache.New uses.
const diskCacheSizeMax = 100 * 1024 * 1024

// NewHTTPClient returns a plain client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewCachingHTTPClient creates an HTTP client that honours Cache-Control and
// ETag revalidation on GET responses. With an empty cacheDir the cache lives
// in memory for the life of the process, otherwise it persists on disk.
//
// Fresh responses are only served without a round trip when the request
// allows it. The API client sends every read with max-age=0, so the server
// is always asked and a stored body is reused only on 304 Not Modified.
// Responses are keyed by URL alone; clear the returned cache whenever the
// principal changes.
func NewCachingHTTPClient(cacheDir string, timeout time.Duration) (*http.Client, *ResponseCache) {
	responses := NewResponseCache(cacheDir)

	transport := httpcache.NewTransport(responses)
	transport.MarkCachedResponses = true

	log.Debug().Str("dir", cacheDir).Msg("http response cache enabled")

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, responses
}

// FromCache reports whether resp was served or revalidated by the caching
// transport.
func FromCache(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(httpcache.XFromCache) == "1"
}

var _ httpcache.Cache = (*ResponseCache)(nil)

// ResponseCache is the httpcache backend of a caching client. Unlike the
// stock backends it can be emptied.
type ResponseCache struct {
	dir  string
	disk *diskv.Diskv

	mu    sync.RWMutex
	cache httpcache.Cache
}

// NewResponseCache stores responses in memory when dir is empty and under
// dir otherwise.
func NewResponseCache(dir string) *ResponseCache {
	c := &ResponseCache{dir: dir}
	if dir == "" {
		c.cache = httpcache.NewMemoryCache()
		return c
	}

	c.disk = diskv.New(diskv.Options{BasePath: dir, CacheSizeMax: diskCacheSizeMax})
	c.cache = diskcache.NewWithDiskv(c.disk)
	return c
}

func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache.Get(key)
}

func (c *ResponseCache) Set(key string, resp []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.cache.Set(key, resp)
}

func (c *ResponseCache) Delete(key string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.cache.Delete(key)
}

// Name identifies the cache in logs.
func (c *ResponseCache) Name() string {
	return "http-responses"
}

// Clear drops every stored response, on disk as well.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disk == nil {
		c.cache = httpcache.NewMemoryCache()
		return
	}

	if err := c.disk.EraseAll(); err != nil {
		log.Warn().Err(err).Str("dir", c.dir).Msg("failed to erase http response cache")
	}
}
