// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/model"
)

// DefaultTTL is how long a fetched list is served without a network call.
const DefaultTTL = 5 * time.Minute

// Backend is the subset of the API the cache fronts.
type Backend interface {
	ListDocuments(ctx context.Context, sessionID string) ([]model.Document, error)
	UploadDocument(ctx context.Context, sessionID, filename string, r io.Reader) (*model.UploadResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// Entry is one session's cached list.
type Entry struct {
	SessionID string
	Documents []model.Document
	FetchedAt time.Time
}

// =============================================================================
// CACHE
// =============================================================================

// Cache serves session document lists with TTL expiry. Expired entries are
// swept by a janitor running every TTL.
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	entries *cache.Cache

	mu sync.Mutex
	// views is the list most recently served per session.
	views map[string][]model.Document
	// pending holds ids whose delete is in flight, per session.
	pending map[string]map[string]struct{}
	// gens counts invalidations per session. A load only stores its
	// result when the count is unchanged since its fetch started.
	gens map[string]uint64
	// epoch counts ClearAll calls.
	epoch uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a cache in front of backend.
func NewCache(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
		views:   make(map[string][]model.Document),
		pending: make(map[string]map[string]struct{}),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = cache.New(c.ttl, c.ttl)
	c.entries.OnEvicted(func(sessionID string, _ interface{}) {
		c.logger.Debug("document cache entry evicted", zap.String("session_id", sessionID))
	})
	return c
}

// Load returns the session's documents, from cache when the entry is
// younger than the TTL and force is false, from the backend otherwise.
// Concurrent loads are not coalesced; the last to finish wins. A load
// whose session was invalidated while it was fetching returns its result
// without caching it.
func (c *Cache) Load(ctx context.Context, sessionID string, force bool) ([]model.Document, error) {
	if sessionID == "" {
		return []model.Document{}, nil
	}

	if !force {
		if entry, ok := c.fresh(sessionID); ok {
			c.logger.Debug("document cache hit", zap.String("session_id", sessionID))
			return c.serve(sessionID, entry.Documents), nil
		}
	}

	gen := c.generation(sessionID)
	fetchedAt := c.now()
	docs, err := c.backend.ListDocuments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []model.Document{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generationLocked(sessionID) {
		c.logger.Debug("document list invalidated during fetch, not cached",
			zap.String("session_id", sessionID))
		return model.CloneDocuments(c.filterLocked(sessionID, docs)), nil
	}
	c.entries.Set(sessionID, &Entry{
		SessionID: sessionID,
		Documents: model.CloneDocuments(docs),
		FetchedAt: fetchedAt,
	}, cache.DefaultExpiration)
	c.logger.Debug("document list fetched",
		zap.String("session_id", sessionID),
		zap.Int("count", len(docs)))

	return c.serveLocked(sessionID, docs), nil
}

// Refresh reloads the session's documents from the backend.
func (c *Cache) Refresh(ctx context.Context, sessionID string) ([]model.Document, error) {
	return c.Load(ctx, sessionID, true)
}

// Upload validates and uploads a file, then invalidates the session's
// entry and reloads the list. A failed reload is logged; the upload result
// is still returned.
func (c *Cache) Upload(ctx context.Context, sessionID, filename string, r io.Reader) (*model.UploadResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	data, err := readUpload(filename, r)
	if err != nil {
		return nil, err
	}

	res, err := c.backend.UploadDocument(ctx, sessionID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	c.Clear(sessionID)
	if _, err := c.Load(ctx, sessionID, true); err != nil {
		c.logger.Warn("reload after upload failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return res, nil
}

// Delete removes a document optimistically. The id is hidden from every
// list served until the backend answers. On backend failure the cache is
// reloaded and a *CacheInconsistencyError is returned.
func (c *Cache) Delete(ctx context.Context, sessionID, documentID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	c.mu.Lock()
	ids := c.pending[sessionID]
	if ids == nil {
		ids = make(map[string]struct{})
		c.pending[sessionID] = ids
	}
	ids[documentID] = struct{}{}
	c.views[sessionID] = without(c.views[sessionID], documentID)
	c.mu.Unlock()

	c.Clear(sessionID)
	err := c.backend.DeleteDocument(ctx, documentID)

	c.mu.Lock()
	delete(c.pending[sessionID], documentID)
	if len(c.pending[sessionID]) == 0 {
		delete(c.pending, sessionID)
	}
	c.mu.Unlock()

	// Invalidates loads that started before the backend answered.
	c.Clear(sessionID)

	if err == nil {
		c.logger.Info("document deleted",
			zap.String("session_id", sessionID), zap.String("document_id", documentID))
		return nil
	}

	c.logger.Warn("document delete failed, reconciling",
		zap.String("session_id", sessionID),
		zap.String("document_id", documentID),
		zap.Error(err))
	_, reloadErr := c.Load(ctx, sessionID, true)
	return &CacheInconsistencyError{
		SessionID:  sessionID,
		DocumentID: documentID,
		Err:        err,
		ReloadErr:  reloadErr,
	}
}

// Documents returns the list most recently served for the session.
func (c *Cache) Documents(sessionID string) []model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneDocuments(c.views[sessionID])
}

// Get finds a document in the session's current list.
func (c *Cache) Get(sessionID, documentID string) (model.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.views[sessionID] {
		if d.ID == documentID {
			return d, true
		}
	}
	return model.Document{}, false
}

// Count returns the size of the session's current list.
func (c *Cache) Count(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views[sessionID])
}

// Entry returns the cached entry for the session if it is still fresh.
func (c *Cache) Entry(sessionID string) (Entry, bool) {
	e, ok := c.fresh(sessionID)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		SessionID: e.SessionID,
		Documents: model.CloneDocuments(e.Documents),
		FetchedAt: e.FetchedAt,
	}, true
}

// Clear invalidates the session's entry so the next load fetches. Loads
// already in flight for the session will not cache their result.
func (c *Cache) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[sessionID]++
	c.entries.Delete(sessionID)
}

// ClearAll invalidates every entry and forgets every served list.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Flush()
	c.views = make(map[string][]model.Document)
}

// Len returns the number of cached entries, including expired ones the
// janitor has not swept yet.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

// =============================================================================
// HELPERS
// =============================================================================

// fresh returns the session's entry when it is younger than the TTL.
func (c *Cache) fresh(sessionID string) (*Entry, bool) {
	v, ok := c.entries.Get(sessionID)
	if !ok {
		return nil, false
	}
	entry := v.(*Entry)
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	return entry, true
}

func (c *Cache) generation(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(sessionID)
}

func (c *Cache) generationLocked(sessionID string) uint64 {
	return c.gens[sessionID] + c.epoch
}

// serve filters pending deletes out of docs, records the result as the
// session's current list and returns a copy.
func (c *Cache) serve(sessionID string, docs []model.Document) []model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serveLocked(sessionID, docs)
}

func (c *Cache) serveLocked(sessionID string, docs []model.Document) []model.Document {
	out := c.filterLocked(sessionID, docs)
	c.views[sessionID] = out
	return model.CloneDocuments(out)
}

// filterLocked drops documents whose delete is in flight.
func (c *Cache) filterLocked(sessionID string, docs []model.Document) []model.Document {
	out := make([]model.Document, 0, len(docs))
	hidden := c.pending[sessionID]
	for _, d := range docs {
		if _, skip := hidden[d.ID]; skip {
			continue
		}
		out = append(out, d)
	}
	return out
}

func without(docs []model.Document, documentID string) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID != documentID {
			out = append(out, d)
		}
	}
	return out
}
