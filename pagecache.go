package main

import (
	"sync"
	"time"
)

type cachedPage struct {
	HTML       string
	Status     int
	RenderedAt time.Time
}

// pageCache holds rendered pages keyed by request path. Page GETs fill it and
// the revalidation webhook purges it; there is no TTL.
type pageCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPage
}

func newPageCache() *pageCache {
	return &pageCache{entries: make(map[string]cachedPage)}
}

func (p *pageCache) Get(path string) (cachedPage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[path]
	return entry, ok
}

func (p *pageCache) Put(path string, entry cachedPage) {
	p.mu.Lock()
	p.entries[path] = entry
	p.mu.Unlock()
}

// Purge drops one path and reports whether it was cached.
func (p *pageCache) Purge(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[path]
	delete(p.entries, path)
	return ok
}

// PurgeAll drops every cached page and returns how many were dropped.
func (p *pageCache) PurgeAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	dropped := len(p.entries)
	p.entries = make(map[string]cachedPage)
	return dropped
}

func (p *pageCache) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
