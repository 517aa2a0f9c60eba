package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMutator(t *testing.T, transport *fakeTransport, viewer string, posts ...Post) (*Mutator, *Store, *fakeNotifier) {
	t.Helper()
	store := NewStore()
	store.Patch(testKey, AppendPage(Page{Posts: posts}))
	notifier := &fakeNotifier{}
	return NewMutator(store, testKey, transport, StaticAuth(viewer), notifier), store, notifier
}

func cachedPost(t *testing.T, store *Store, id string) Post {
	t.Helper()
	c, ok := store.Get(testKey)
	require.True(t, ok)
	p, ok := c.FindPost(id)
	require.True(t, ok)
	return p
}

func TestMutatorLikeCommitted(t *testing.T) {
	transport := newFakeTransport()
	m, store, notifier := newTestMutator(t, transport, "u1", post("p1", 3, false))

	pm, err := m.Begin("p1", LikeKindLike)
	require.NoError(t, err)
	assert.Equal(t, StatePending, m.State("p1"))

	// Applied before the server answers
	p := cachedPost(t, store, "p1")
	assert.Equal(t, int64(4), p.LikeCount)
	assert.True(t, p.ViewerHasLiked)

	require.NoError(t, m.Resolve(context.Background(), pm))
	p = cachedPost(t, store, "p1")
	assert.Equal(t, int64(4), p.LikeCount)
	assert.True(t, p.ViewerHasLiked)
	assert.Equal(t, []string{"u9"}, p.Likes)
	assert.Equal(t, StateCommitted, m.State("p1"))
	assert.Equal(t, []string{NotifyLiked}, notifier.kinds())
}

func TestMutatorLikeReverted(t *testing.T) {
	transport := newFakeTransport()
	transport.likeErr = fmt.Errorf("%w: 500", ErrServer)
	m, store, notifier := newTestMutator(t, transport, "u1", post("p1", 3, false))

	pm, err := m.Begin("p1", LikeKindLike)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cachedPost(t, store, "p1").LikeCount)

	err = m.Resolve(context.Background(), pm)
	var mutErr *MutationError
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, "p1", mutErr.PostId)
	assert.ErrorIs(t, err, ErrServer)

	p := cachedPost(t, store, "p1")
	assert.Equal(t, int64(3), p.LikeCount)
	assert.False(t, p.ViewerHasLiked)
	assert.Equal(t, StateReverted, m.State("p1"))
	assert.Equal(t, []string{NotifyLikeFailed}, notifier.kinds())
}

func TestMutatorUnlikeReverted(t *testing.T) {
	transport := newFakeTransport()
	transport.likeErr = ErrNetwork
	m, store, _ := newTestMutator(t, transport, "u1", post("p1", 5, true))
	before := cachedPost(t, store, "p1")

	err := m.Unlike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, before, cachedPost(t, store, "p1"))
}

func TestMutatorConvergesRegardlessOfGuess(t *testing.T) {
	tcs := []struct {
		name   string
		start  Post
		kind   LikeKind
		count  int64
		liked  bool
		likes  []string
		viewer string
	}{
		{name: "like", start: post("p1", 3, false), kind: LikeKindLike, count: 4, liked: true, likes: []string{"u9"}},
		{name: "like already liked", start: post("p1", 3, true), kind: LikeKindLike, count: 3, liked: true, likes: []string{"u9"}},
		{name: "unlike", start: post("p1", 3, true), kind: LikeKindUnlike, count: 2, liked: false, likes: []string{}},
		{name: "unlike not liked", start: post("p1", 3, false), kind: LikeKindUnlike, count: 3, liked: false, likes: []string{}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			transport := newFakeTransport()
			m, store, _ := newTestMutator(t, transport, "guess", tc.start)

			var err error
			if tc.kind == LikeKindLike {
				err = m.Like(context.Background(), "p1")
			} else {
				err = m.Unlike(context.Background(), "p1")
			}
			require.NoError(t, err)

			p := cachedPost(t, store, "p1")
			assert.Equal(t, tc.count, p.LikeCount)
			assert.Equal(t, tc.liked, p.ViewerHasLiked)
			assert.Equal(t, tc.likes, p.Likes)
		})
	}
}

func TestMutatorBlocksSecondClickWhilePending(t *testing.T) {
	transport := newFakeTransport()
	transport.likeGate = make(chan struct{})
	m, store, _ := newTestMutator(t, transport, "u1", post("p1", 3, false))

	errs := make(chan error, 1)
	go func() { errs <- m.Like(context.Background(), "p1") }()
	require.Eventually(t, func() bool { return m.Pending("p1") }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Unlike(context.Background(), "p1"), ErrMutationPending)
	assert.ErrorIs(t, m.Toggle(context.Background(), "p1"), ErrMutationPending)
	assert.Equal(t, int64(4), cachedPost(t, store, "p1").LikeCount)

	close(transport.likeGate)
	require.NoError(t, <-errs)
	assert.Equal(t, int64(4), cachedPost(t, store, "p1").LikeCount)

	// A new click is accepted once the first one resolved
	require.NoError(t, m.Unlike(context.Background(), "p1"))
	assert.Equal(t, int64(3), cachedPost(t, store, "p1").LikeCount)
}

func TestMutatorRelocatesPostAfterAppend(t *testing.T) {
	transport := newFakeTransport()
	m, store, _ := newTestMutator(t, transport, "u1", post("p0", 0, false))
	store.Patch(testKey, AppendPage(Page{Cursor: "c1", Posts: []Post{post("p1", 1, false)}}))

	pm, err := m.Begin("p1", LikeKindLike)
	require.NoError(t, err)

	// A page lands between the click and the server's answer
	store.Patch(testKey, AppendPage(Page{Cursor: "c2", Posts: []Post{post("p2", 0, false)}}))

	require.NoError(t, m.Resolve(context.Background(), pm))
	p := cachedPost(t, store, "p1")
	assert.Equal(t, int64(2), p.LikeCount)
	c, _ := store.Get(testKey)
	assert.Len(t, c.Pages, 3)
}

func TestMutatorToggle(t *testing.T) {
	transport := newFakeTransport()
	m, store, _ := newTestMutator(t, transport, "u1", post("p1", 3, false), post("p2", 3, true))

	require.NoError(t, m.Toggle(context.Background(), "p1"))
	require.NoError(t, m.Toggle(context.Background(), "p2"))
	assert.Equal(t, []string{"p1"}, transport.likes)
	assert.Equal(t, []string{"p2"}, transport.unlikes)
	assert.True(t, cachedPost(t, store, "p1").ViewerHasLiked)
	assert.False(t, cachedPost(t, store, "p2").ViewerHasLiked)

	// Not cached
	require.NoError(t, m.Toggle(context.Background(), "p404"))
	assert.Len(t, transport.likes, 1)
}

func TestMutatorRequiresViewer(t *testing.T) {
	transport := newFakeTransport()
	m, store, _ := newTestMutator(t, transport, "", post("p1", 3, false))

	assert.ErrorIs(t, m.Like(context.Background(), "p1"), ErrNoViewer)
	assert.Equal(t, int64(3), cachedPost(t, store, "p1").LikeCount)
	assert.Empty(t, transport.likes)
}

func TestMutatorIgnoresDroppedScope(t *testing.T) {
	transport := newFakeTransport()
	transport.likeErr = ErrNetwork
	m, store, _ := newTestMutator(t, transport, "u1", post("p1", 3, false))

	pm, err := m.Begin("p1", LikeKindLike)
	require.NoError(t, err)
	store.Drop(testKey)

	assert.Error(t, m.Resolve(context.Background(), pm))
	_, ok := store.Get(testKey)
	assert.False(t, ok)
	assert.Equal(t, StateIdle, m.State("p1"))
}

func TestMutatorIgnoresRecreatedScope(t *testing.T) {
	transport := newFakeTransport()
	transport.likeErr = ErrNetwork
	m, store, _ := newTestMutator(t, transport, "u1", post("p1", 3, false))

	pm, err := m.Begin("p1", LikeKindLike)
	require.NoError(t, err)

	// The scope is dropped and loaded again before the server answers
	store.Drop(testKey)
	store.Patch(testKey, AppendPage(Page{Posts: []Post{post("p1", 3, false)}}))

	assert.Error(t, m.Resolve(context.Background(), pm))
	assert.Equal(t, int64(3), cachedPost(t, store, "p1").LikeCount)
	assert.Equal(t, StateIdle, m.State("p1"))
}

func TestMutatorBeginWithoutScope(t *testing.T) {
	m := NewMutator(NewStore(), testKey, newFakeTransport(), StaticAuth("u1"), nil)
	_, err := m.Begin("p1", LikeKindLike)
	assert.ErrorIs(t, err, ErrUnmounted)
}

func TestMutatorRevertRestoresOtherViewersLikes(t *testing.T) {
	transport := newFakeTransport()
	transport.likeErr = ErrNetwork
	// Cached as liked by u1, while auth only has a guess for the viewer
	m, store, _ := newTestMutator(t, transport, "guess", post("p1", 5, true))

	pm, err := m.Begin("p1", LikeKindUnlike)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, pm.PrevLikes)
	assert.Empty(t, cachedPost(t, store, "p1").Likes)

	err = m.Resolve(context.Background(), pm)
	var mutErr *MutationError
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, pm.Id, mutErr.MutationId)
	assert.NotZero(t, mutErr.MutationId)

	p := cachedPost(t, store, "p1")
	assert.Equal(t, []string{"u1"}, p.Likes)
	assert.Equal(t, int64(5), p.LikeCount)
	assert.True(t, p.ViewerHasLiked)
}
