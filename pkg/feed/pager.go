package feed

import (
	"context"
	"errors"
	"log"

	"github.com/getsentry/sentry-go"
)

// AdvanceThreshold is the scroll fraction past which the next page is
// requested.
const AdvanceThreshold = 90

// ShouldAdvance decides whether the next page should be fetched.
func ShouldAdvance(fraction float64, hasNextPage bool, inFlight bool) bool {
	return fraction > AdvanceThreshold && hasNextPage && !inFlight
}

// Pager fetches successive pages for one query key and appends them to the
// store. At most one fetch is in flight per key and store, however many
// pagers share it.
type Pager struct {
	store     *Store
	transport Transport
	key       QueryKey
	pageSize  int

	// OnError receives failures of fetches started by MaybeAdvance.
	OnError func(error)
}

func NewPager(store *Store, transport Transport, key QueryKey, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	store.Ensure(key)
	return &Pager{
		store:     store,
		transport: transport,
		key:       key,
		pageSize:  pageSize,
	}
}

func (p *Pager) Fetching() bool {
	return p.store.Fetching(p.key)
}

func (p *Pager) HasNextPage() bool {
	c, _ := p.store.Get(p.key)
	return c.HasNextPage()
}

// MaybeAdvance starts a background fetch of the next page if the scroll
// fraction is past the threshold, there is a next page and no fetch is
// running. It returns whether a fetch was started.
func (p *Pager) MaybeAdvance(ctx context.Context, fraction float64) bool {
	claim, err := p.store.claimFetch(p.key, func(c FeedCache, fetching bool) error {
		if !ShouldAdvance(fraction, c.HasNextPage(), fetching) {
			return ErrNoNextPage
		}
		return nil
	})
	if err != nil {
		return false
	}

	go func() {
		if err := p.fetch(ctx, claim); err != nil && p.OnError != nil {
			p.OnError(err)
		}
	}()

	return true
}

// FetchNext fetches the next page and waits for it. With an empty cache it
// fetches the first page. It is also the retry path after a failed fetch.
func (p *Pager) FetchNext(ctx context.Context) error {
	claim, err := p.store.claimFetch(p.key, func(c FeedCache, fetching bool) error {
		if fetching {
			return ErrFetchInFlight
		}
		if len(c.Pages) > 0 && !c.HasNextPage() {
			return ErrNoNextPage
		}
		return nil
	})
	if err != nil {
		return err
	}

	return p.fetch(ctx, claim)
}

func (p *Pager) fetch(ctx context.Context, claim fetchClaim) error {
	// Get page
	page, err := p.transport.FetchPage(ctx, p.key, claim.cursor, p.pageSize)
	if err != nil {
		p.store.completeFetch(p.key, claim, nil)
		log.Println("feed", p.key.Hash(), err)
		if !errors.Is(err, ErrNetwork) && !errors.Is(err, context.Canceled) {
			sentry.CaptureException(err)
		}
		return &FetchError{Key: p.key, Cursor: claim.cursor, Err: err}
	}
	page.Cursor = claim.cursor

	// Append to cache and release the fetch, unless the scope has gone away in
	// the meantime
	p.store.completeFetch(p.key, claim, AppendPage(page))

	return nil
}
