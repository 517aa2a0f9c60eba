package feed

import (
	"context"
	"sync"
)

// PageView steps through a feed one page at a time with explicit previous
// and next controls. Pages already fetched are revisited from the cache;
// only moving past the last cached page fetches.
type PageView struct {
	store *Store
	pager *Pager
	key   QueryKey

	index int
	lock  sync.Mutex
}

func NewPageView(store *Store, pager *Pager, key QueryKey) *PageView {
	return &PageView{
		store: store,
		pager: pager,
		key:   key,
	}
}

func (v *PageView) Index() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.index
}

// Current returns the page at the view's index, if it has been fetched.
func (v *PageView) Current() (Page, bool) {
	c, _ := v.store.Get(v.key)
	i := v.Index()
	if i >= len(c.Pages) {
		return Page{}, false
	}
	return c.Pages[i], true
}

func (v *PageView) HasPrevPage() bool {
	return v.Index() > 0
}

// HasNextPage reports whether the current page has a next cursor.
func (v *PageView) HasNextPage() bool {
	page, ok := v.Current()
	return ok && page.NextCursor != ""
}

// Next moves to the following page, fetching it first if it isn't cached.
// The index only moves once the page is there.
func (v *PageView) Next(ctx context.Context) error {
	i := v.Index()
	c, _ := v.store.Get(v.key)
	if i >= len(c.Pages) || c.Pages[i].NextCursor == "" {
		return ErrNoNextPage
	}

	if i+1 >= len(c.Pages) {
		// The pager fetches after the last cached page, which is page i
		if err := v.pager.FetchNext(ctx); err != nil {
			return err
		}
		if c, _ = v.store.Get(v.key); i+1 >= len(c.Pages) {
			return ErrUnmounted
		}
	}

	v.lock.Lock()
	defer v.lock.Unlock()
	if v.index == i {
		v.index = i + 1
	}
	return nil
}

func (v *PageView) Prev() error {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.index == 0 {
		return ErrNoPrevPage
	}
	v.index--
	return nil
}

func (v *PageView) reset() {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.index = 0
}
