package feed

import "sync"

// Store holds one cache scope per QueryKey. A Store is created per top-level
// feed instance and passed to everything that reads or patches its caches.
// Feeds built on the same Store and key share the scope: its pages, its
// in-flight fetch and its pending mutations.
//
// Reads return snapshots: a FeedCache value handed out by Get is never
// modified afterwards.
type Store struct {
	scopes map[QueryKey]*scope

	listeners      map[int64]func(QueryKey, FeedCache)
	nextListenerId int64

	closed bool
	lock   sync.Mutex
}

// scope is everything the store tracks for one key. A dropped scope is never
// reused, so completions holding a stale pointer can tell it has gone.
type scope struct {
	cache    FeedCache
	mounts   int
	fetching bool
	pending  map[string]*PendingMutation
	states   map[string]MutationState
}

func newScope() *scope {
	return &scope{
		cache:   emptyCache(),
		pending: make(map[string]*PendingMutation),
		states:  make(map[string]MutationState),
	}
}

func NewStore() *Store {
	return &Store{
		scopes:    make(map[QueryKey]*scope),
		listeners: make(map[int64]func(QueryKey, FeedCache)),
	}
}

func (s *Store) Get(key QueryKey) (FeedCache, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sc, ok := s.scopes[key]
	if !ok {
		return FeedCache{}, false
	}
	return sc.cache, true
}

// Patch replaces the cache for key with fn applied to it, starting from the
// empty state if the key has no cache yet. A closed store ignores patches.
func (s *Store) Patch(key QueryKey, fn PatchFunc) FeedCache {
	c, _ := s.update(key, true, func(sc *scope) (bool, error) {
		sc.cache = Patch(&sc.cache, fn)
		return true, nil
	})
	return c
}

// PatchExisting is like Patch but ignores keys whose scope no longer exists.
func (s *Store) PatchExisting(key QueryKey, fn PatchFunc) bool {
	_, err := s.update(key, false, func(sc *scope) (bool, error) {
		sc.cache = Patch(&sc.cache, fn)
		return true, nil
	})
	return err == nil
}

// update runs fn on the scope for key under the store lock. When fn reports
// a change, listeners are called with the new cache after the lock is
// released.
func (s *Store) update(key QueryKey, create bool, fn func(sc *scope) (bool, error)) (FeedCache, error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return emptyCache(), ErrUnmounted
	}

	sc, ok := s.scopes[key]
	if !ok {
		if !create {
			s.lock.Unlock()
			return emptyCache(), ErrUnmounted
		}
		sc = newScope()
		s.scopes[key] = sc
	}

	changed, err := fn(sc)
	updated := sc.cache
	if err != nil || !changed {
		s.lock.Unlock()
		return updated, err
	}
	listeners := s.listenersLocked()
	s.lock.Unlock()

	for _, l := range listeners {
		l(key, updated)
	}

	return updated, nil
}

func (s *Store) listenersLocked() []func(QueryKey, FeedCache) {
	listeners := make([]func(QueryKey, FeedCache), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

// Ensure creates an empty scope for key if there isn't one.
func (s *Store) Ensure(key QueryKey) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.scopes[key]; !ok {
		s.scopes[key] = newScope()
	}
}

// Acquire marks key as used by one more mounted feed, creating its scope if
// needed.
func (s *Store) Acquire(key QueryKey) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	sc, ok := s.scopes[key]
	if !ok {
		sc = newScope()
		s.scopes[key] = sc
	}
	sc.mounts++
}

// Release undoes one Acquire. The scope is dropped when the last mounted feed
// releases it, and returns whether that happened.
func (s *Store) Release(key QueryKey) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	sc, ok := s.scopes[key]
	if !ok {
		return false
	}
	if sc.mounts > 0 {
		sc.mounts--
	}
	if sc.mounts > 0 {
		return false
	}
	delete(s.scopes, key)
	return true
}

// Drop removes the scope for key regardless of who is using it.
func (s *Store) Drop(key QueryKey) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.scopes, key)
}

func (s *Store) Keys() []QueryKey {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]QueryKey, 0, len(s.scopes))
	for k := range s.scopes {
		keys = append(keys, k)
	}
	return keys
}

// Fetching reports whether a page fetch is in flight for key.
func (s *Store) Fetching(key QueryKey) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	sc, ok := s.scopes[key]
	return ok && sc.fetching
}

// MutationState returns the state of the latest like/unlike on postId in the
// scope for key.
func (s *Store) MutationState(key QueryKey, postId string) MutationState {
	s.lock.Lock()
	defer s.lock.Unlock()
	sc, ok := s.scopes[key]
	if !ok {
		return StateIdle
	}
	return sc.states[postId]
}

// fetchClaim is held by the one fetch allowed to run for a scope.
type fetchClaim struct {
	scope  *scope
	cursor string
}

// claimFetch marks key as fetching if check allows it, and returns the cursor
// of the next page.
func (s *Store) claimFetch(key QueryKey, check func(c FeedCache, fetching bool) error) (fetchClaim, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return fetchClaim{}, ErrUnmounted
	}
	sc, ok := s.scopes[key]
	if !ok {
		return fetchClaim{}, ErrUnmounted
	}
	if err := check(sc.cache, sc.fetching); err != nil {
		return fetchClaim{}, err
	}
	sc.fetching = true
	return fetchClaim{scope: sc, cursor: sc.cache.NextCursor()}, nil
}

// completeFetch applies fn, if any, and clears the fetching flag in the same
// step. Nothing is applied if the claimed scope has been dropped.
func (s *Store) completeFetch(key QueryKey, claim fetchClaim, fn PatchFunc) bool {
	s.lock.Lock()
	claim.scope.fetching = false
	if s.closed || s.scopes[key] != claim.scope || fn == nil {
		s.lock.Unlock()
		return false
	}
	claim.scope.cache = Patch(&claim.scope.cache, fn)
	updated := claim.scope.cache
	listeners := s.listenersLocked()
	s.lock.Unlock()

	for _, l := range listeners {
		l(key, updated)
	}
	return true
}

// beginMutation registers pm as the pending mutation for its post and applies
// the patch prepare returns, in one step.
func (s *Store) beginMutation(key QueryKey, pm *PendingMutation, prepare func(c FeedCache) PatchFunc) error {
	_, err := s.update(key, false, func(sc *scope) (bool, error) {
		if sc.states[pm.PostId] == StatePending {
			return false, ErrMutationPending
		}
		fn := prepare(sc.cache)
		sc.pending[pm.PostId] = pm
		sc.states[pm.PostId] = StatePending
		sc.cache = Patch(&sc.cache, fn)
		return true, nil
	})
	return err
}

// completeMutation applies fn and records state if pm is still the pending
// mutation for its post in the scope for key.
func (s *Store) completeMutation(key QueryKey, pm *PendingMutation, fn PatchFunc, state MutationState) bool {
	_, err := s.update(key, false, func(sc *scope) (bool, error) {
		if sc.pending[pm.PostId] != pm {
			return false, ErrUnmounted
		}
		delete(sc.pending, pm.PostId)
		sc.states[pm.PostId] = state
		sc.cache = Patch(&sc.cache, fn)
		return true, nil
	})
	return err == nil
}

// Subscribe registers fn to be called after every successful patch. Calls
// happen outside the store lock, on the goroutine that patched.
func (s *Store) Subscribe(fn func(QueryKey, FeedCache)) (unsubscribe func()) {
	s.lock.Lock()
	id := s.nextListenerId
	s.nextListenerId++
	s.listeners[id] = fn
	s.lock.Unlock()

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.listeners, id)
	}
}

// Close drops every scope. Later patches are ignored.
func (s *Store) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	s.scopes = make(map[QueryKey]*scope)
	s.listeners = make(map[int64]func(QueryKey, FeedCache))
}
