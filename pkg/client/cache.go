package client

import (
	"context"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
)

// LookupState separates "not fetched yet" from "fetched and absent".
type LookupState int

const (
	Loading LookupState = iota
	Found
	NotFound
)

func (s LookupState) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	}
	return "loading"
}

type cacheEntry struct {
	state LookupState
	draft *draft.Draft
	err   error
	done  chan struct{}
}

// DraftCache memoizes draft reads for one client. Failed fetches other than
// NotFound are not cached.
type DraftCache struct {
	api     *Client
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

func NewDraftCache(api *Client) *DraftCache {
	return &DraftCache{api: api, entries: make(map[string]*cacheEntry)}
}

// Lookup never blocks. The first call for an id starts a background fetch
// and reports Loading until it completes.
func (c *DraftCache) Lookup(id string) (LookupState, *draft.Draft) {
	e := c.entry(id)
	select {
	case <-e.done:
		return e.state, e.draft
	default:
		return Loading, nil
	}
}

// Get waits for the fetch of id. It returns the error of a failed fetch, in
// which case the next call fetches again.
func (c *DraftCache) Get(ctx context.Context, id string) (LookupState, *draft.Draft, error) {
	e := c.entry(id)
	select {
	case <-ctx.Done():
		return Loading, nil, ctx.Err()
	case <-e.done:
		return e.state, e.draft, e.err
	}
}

// Put records a draft the caller already holds, such as a save response.
func (c *DraftCache) Put(d *draft.Draft) {
	done := make(chan struct{})
	close(done)
	c.mu.Lock()
	c.entries[d.ID] = &cacheEntry{state: Found, draft: d, done: done}
	c.mu.Unlock()
}

// Invalidate forgets id so the next lookup refetches it.
func (c *DraftCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *DraftCache) entry(id string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e
	}
	e := &cacheEntry{state: Loading, done: make(chan struct{})}
	c.entries[id] = e
	go c.fetch(id, e)
	return e
}

func (c *DraftCache) fetch(id string, e *cacheEntry) {
	d, err := c.api.GetDraft(context.Background(), id)
	switch {
	case err == nil:
		e.state, e.draft = Found, d
	case apperr.Is(err, apperr.NotFound):
		e.state = NotFound
	default:
		e.err = err
		c.mu.Lock()
		if c.entries[id] == e {
			delete(c.entries, id)
		}
		c.mu.Unlock()
	}
	close(e.done)
}
