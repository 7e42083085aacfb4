// Package cache serves built post pages with stale-while-revalidate semantics.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var _ application.PageInvalidator = (*PageCache)(nil)

// PageBuilder assembles a post page from the content store.
type PageBuilder interface {
	BuildPage(ctx context.Context, uid string) (*domain.PostPage, error)
}

// PageStore persists built pages across restarts.
type PageStore interface {
	Save(ctx context.Context, entry *domain.CacheEntry) error
	Delete(ctx context.Context, uid string) error
	List(ctx context.Context) ([]*domain.CacheEntry, error)
}

// Option configures a PageCache.
type Option func(*PageCache)

// WithStore persists every built page and lets Warm preload them.
func WithStore(store PageStore) Option {
	return func(c *PageCache) {
		c.store = store
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *PageCache) {
		c.now = now
	}
}

// WithRetry sets how often a build is attempted after transport failures.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *PageCache) {
		c.attempts = attempts
		c.delay = delay
	}
}

// PageCache holds the current page per uid. A stale page keeps being served while one
// regeneration runs in the background; a successful build replaces it in one step.
type PageCache struct {
	builder  PageBuilder
	store    PageStore
	now      func() time.Time
	attempts uint
	delay    time.Duration

	group singleflight.Group

	mu         sync.RWMutex
	entries    map[string]*domain.CacheEntry
	refreshing map[string]bool
	pending    map[string]bool

	// Lifecycle context for background regeneration - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewPageCache(builder PageBuilder, opts ...Option) *PageCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &PageCache{
		builder:    builder,
		now:        time.Now,
		attempts:   3,
		delay:      500 * time.Millisecond,
		entries:    make(map[string]*domain.CacheEntry),
		refreshing: make(map[string]bool),
		pending:    make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		wg:         &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops background regeneration and waits for running builds to finish.
func (c *PageCache) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// Get returns the page for uid. A cached page is returned immediately even when stale;
// a miss builds the page before returning.
func (c *PageCache) Get(ctx context.Context, uid string) (*domain.PostPage, error) {
	if entry := c.lookup(uid); entry != nil {
		if application.IsStale(entry.BuiltAt, c.now()) {
			c.Revalidate(uid)
		}
		return entry.Page, nil
	}

	ch := c.group.DoChan(uid, func() (any, error) {
		return c.build(c.ctx, uid)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CacheEntry).Page, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Revalidate starts a background rebuild of a cached page unless one is already running.
func (c *PageCache) Revalidate(uid string) {
	c.startRefresh(uid, false)
}

// Invalidate rebuilds a cached page now instead of waiting for it to go stale.
// When a rebuild is already running it may have read the old source, so another
// one is queued to start after it.
func (c *PageCache) Invalidate(uid string) {
	if c.lookup(uid) == nil {
		return
	}
	c.startRefresh(uid, true)
}

func (c *PageCache) startRefresh(uid string, queueIfRunning bool) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if c.refreshing[uid] {
		if queueIfRunning {
			c.pending[uid] = true
		}
		c.mu.Unlock()
		return
	}
	c.refreshing[uid] = true
	c.mu.Unlock()

	c.wg.Go(func() {
		for {
			_, err, _ := c.group.Do(uid, func() (any, error) {
				return c.build(c.ctx, uid)
			})
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				log.Warn().Err(err).Str("uid", uid).Msg("Page regeneration failed; serving previous version")
			}

			c.mu.Lock()
			again := c.pending[uid] && c.ctx.Err() == nil && c.entries[uid] != nil
			delete(c.pending, uid)
			if !again {
				delete(c.refreshing, uid)
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	})
}

// Prebuild builds the given pages synchronously. It stops at the first failure.
func (c *PageCache) Prebuild(ctx context.Context, uids []string) error {
	for _, uid := range uids {
		if _, err := c.Get(ctx, uid); err != nil {
			return fmt.Errorf("prebuild %s: %w", uid, err)
		}
	}
	return nil
}

// Warm loads persisted pages. Their original build times are kept, so old pages
// are regenerated on first access.
func (c *PageCache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	pages, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored pages: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range pages {
		if entry.Page == nil || entry.Page.Post == nil {
			continue
		}
		uid := entry.Page.Post.UID
		if _, ok := c.entries[uid]; !ok {
			c.entries[uid] = entry
		}
	}
	return len(pages), nil
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PageCache) lookup(uid string) *domain.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[uid]
}

// build produces a fresh entry and swaps it in. Transport failures are retried;
// a post that no longer exists is evicted.
func (c *PageCache) build(ctx context.Context, uid string) (*domain.CacheEntry, error) {
	var page *domain.PostPage
	err := retry.Do(
		func() error {
			var buildErr error
			page, buildErr = c.builder.BuildPage(ctx, uid)
			return buildErr
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(domain.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Info().Err(err).Uint("attempt", n).Str("uid", uid).Msg("Retrying page build")
		}),
	)
	if errors.Is(err, domain.ErrNotFound) {
		c.evict(ctx, uid)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	entry := &domain.CacheEntry{Page: page, BuiltAt: c.now()}

	c.mu.Lock()
	c.entries[uid] = entry
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, entry); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("Failed to persist page")
		}
	}

	log.Debug().Str("uid", uid).Msg("Page built")
	return entry, nil
}

func (c *PageCache) evict(ctx context.Context, uid string) {
	c.mu.Lock()
	_, had := c.entries[uid]
	delete(c.entries, uid)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx, uid); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("Failed to delete stored page")
		}
	}
	if had {
		log.Info().Str("uid", uid).Msg("Evicted page for removed post")
	}
}
