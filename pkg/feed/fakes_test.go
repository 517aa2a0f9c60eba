package feed

import (
	"context"
	"fmt"
	"sync"
)

type fakeTransport struct {
	pages    map[string]Page // by cursor
	fetchErr error
	likeErr  error
	viewerId string

	// when set, calls block until a value is received
	fetchGate chan struct{}
	likeGate  chan struct{}

	fetches   []string
	sizes     []int
	likes     []string
	unlikes   []string
	fetchDone chan struct{}
	lock      sync.Mutex
}

func newFakeTransport(pages ...Page) *fakeTransport {
	t := &fakeTransport{
		pages:     make(map[string]Page),
		viewerId:  "u9",
		fetchDone: make(chan struct{}, 16),
	}
	for _, p := range pages {
		t.pages[p.Cursor] = p
	}
	return t
}

func (t *fakeTransport) FetchPage(ctx context.Context, key QueryKey, cursor string, pageSize int) (Page, error) {
	t.lock.Lock()
	t.fetches = append(t.fetches, cursor)
	t.sizes = append(t.sizes, pageSize)
	gate := t.fetchGate
	err := t.fetchErr
	page, ok := t.pages[cursor]
	t.lock.Unlock()

	defer func() { t.fetchDone <- struct{}{} }()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return Page{}, err
	}
	if !ok {
		return Page{}, fmt.Errorf("%w: unknown cursor %q", ErrServer, cursor)
	}
	return page, nil
}

func (t *fakeTransport) Like(ctx context.Context, postId string) (LikeResult, error) {
	t.lock.Lock()
	t.likes = append(t.likes, postId)
	gate, err, viewerId := t.likeGate, t.likeErr, t.viewerId
	t.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{ViewerId: viewerId}, nil
}

func (t *fakeTransport) Unlike(ctx context.Context, postId string) (LikeResult, error) {
	t.lock.Lock()
	t.unlikes = append(t.unlikes, postId)
	gate, err, viewerId := t.likeGate, t.likeErr, t.viewerId
	t.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{ViewerId: viewerId}, nil
}

func (t *fakeTransport) fetchCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.fetches)
}

type recordedNotification struct {
	kind    string
	message string
}

type fakeNotifier struct {
	got  []recordedNotification
	lock sync.Mutex
}

func (n *fakeNotifier) Notify(kind string, message string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.got = append(n.got, recordedNotification{kind, message})
}

func (n *fakeNotifier) kinds() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	kinds := []string{}
	for _, r := range n.got {
		kinds = append(kinds, r.kind)
	}
	return kinds
}

var testKey = QueryKey{
	Filter: Filter{Published: true, Limit: DefaultPageSize},
	Mode:   ModeInfinite,
}

func post(id string, likes int64, liked bool) Post {
	p := Post{
		Id:        id,
		Author:    Author{Id: "a1", Name: "tnix"},
		Images:    []string{"https://cdn.example/" + id + ".png"},
		LikeCount: likes,
		Likes:     []string{},
	}
	if liked {
		p.ViewerHasLiked = true
		p.Likes = []string{"u1"}
	}
	return p
}

func cacheWith(posts ...Post) FeedCache {
	return Patch(nil, AppendPage(Page{Posts: posts}))
}
