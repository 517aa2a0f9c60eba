package feed

import (
	"context"
	"errors"
	"sync"
)

const (
	DefaultPageSize = 6
	DraftsPageSize  = 5
)

type Config struct {
	Store     *Store
	Key       QueryKey
	Transport Transport
	Auth      Auth
	Notifier  Notifier
	PageSize  int

	// OnError receives fetch failures that happen in the background.
	OnError func(error)
}

// Feed wires a scroll signal, a pager and a mutator to one cache scope.
// Everything it renders is read from the store. In ModePaged the scroll
// signal is not followed and View steps through pages instead.
type Feed struct {
	store *Store
	key   QueryKey

	Scroll  *ScrollSignal
	Pager   *Pager
	Mutator *Mutator
	View    *PageView

	notifier Notifier
	onError  func(error)

	cancel  context.CancelFunc
	done    chan struct{}
	mounted bool
	lock    sync.Mutex
}

func New(cfg Config) *Feed {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(func(string, string) {})
	}
	if cfg.Key.Filter.Limit > 0 && cfg.PageSize <= 0 {
		cfg.PageSize = cfg.Key.Filter.Limit
	}

	f := &Feed{
		store:    cfg.Store,
		key:      cfg.Key,
		Scroll:   NewScrollSignal(),
		Mutator:  NewMutator(cfg.Store, cfg.Key, cfg.Transport, cfg.Auth, cfg.Notifier),
		notifier: cfg.Notifier,
		onError:  cfg.OnError,
	}
	f.Pager = NewPager(cfg.Store, cfg.Transport, cfg.Key, cfg.PageSize)
	f.Pager.OnError = f.reportError
	f.View = NewPageView(cfg.Store, f.Pager, cfg.Key)

	return f
}

func (f *Feed) Key() QueryKey {
	return f.key
}

func (f *Feed) Store() *Store {
	return f.store
}

// Mount loads the first page if the cache is empty and, in ModeInfinite,
// starts listening to the scroll signal. The initial load error, if any, is
// returned; the feed stays mounted so that Retry can be used.
func (f *Feed) Mount(ctx context.Context) error {
	f.lock.Lock()
	if f.mounted {
		f.lock.Unlock()
		return nil
	}
	f.store.Acquire(f.key)
	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	done := make(chan struct{})
	f.done = done
	f.mounted = true
	f.lock.Unlock()

	// Scroll loop
	if f.key.Mode == ModeInfinite {
		stream := f.Scroll.Observe(loopCtx)
		go func() {
			defer close(done)
			for fraction := range stream {
				f.Pager.MaybeAdvance(ctx, fraction)
			}
		}()
	} else {
		close(done)
	}

	// Initial page
	c, _ := f.store.Get(f.key)
	if len(c.Pages) == 0 {
		if err := f.Pager.FetchNext(ctx); err != nil && !errors.Is(err, ErrFetchInFlight) {
			f.notifier.Notify(NotifyFetchFailed, "Couldn't load posts")
			return err
		}
	}

	return nil
}

// Unmount stops the scroll subscription and releases the cache scope, which
// is dropped once no mounted feed uses it. Fetches and mutations still running
// against a dropped scope are ignored.
func (f *Feed) Unmount() {
	f.lock.Lock()
	if !f.mounted {
		f.lock.Unlock()
		return
	}
	f.mounted = false
	f.cancel()
	done := f.done
	f.lock.Unlock()

	<-done
	if f.store.Release(f.key) {
		f.View.reset()
	}
}

func (f *Feed) Mounted() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.mounted
}

// ScrollTo publishes a new scroll fraction.
func (f *Feed) ScrollTo(fraction float64) {
	f.Scroll.Publish(fraction)
}

func (f *Feed) Cache() FeedCache {
	c, ok := f.store.Get(f.key)
	if !ok {
		return emptyCache()
	}
	return c
}

func (f *Feed) Posts() []Post {
	return f.Cache().Posts()
}

func (f *Feed) HasNextPage() bool {
	return f.Cache().HasNextPage()
}

// Retry fetches the next page explicitly, typically after a FetchError.
func (f *Feed) Retry(ctx context.Context) error {
	if !f.Mounted() {
		return ErrUnmounted
	}
	err := f.Pager.FetchNext(ctx)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			f.notifier.Notify(NotifyFetchFailed, "Couldn't load more posts")
		}
	}
	return err
}

// NextPage moves the page view forward, fetching the page if needed.
func (f *Feed) NextPage(ctx context.Context) error {
	if !f.Mounted() {
		return ErrUnmounted
	}
	err := f.View.Next(ctx)
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		f.notifier.Notify(NotifyFetchFailed, "Couldn't load more posts")
	}
	return err
}

func (f *Feed) PrevPage() error {
	if !f.Mounted() {
		return ErrUnmounted
	}
	return f.View.Prev()
}

func (f *Feed) Like(ctx context.Context, postId string) error {
	return f.Mutator.Like(ctx, postId)
}

func (f *Feed) Unlike(ctx context.Context, postId string) error {
	return f.Mutator.Unlike(ctx, postId)
}

func (f *Feed) Toggle(ctx context.Context, postId string) error {
	return f.Mutator.Toggle(ctx, postId)
}

func (f *Feed) reportError(err error) {
	f.notifier.Notify(NotifyFetchFailed, "Couldn't load more posts")
	if f.onError != nil {
		f.onError(err)
	}
}
