package feed

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/meower-media/feed/pkg/meowid"
)

type MutationState uint8

const (
	StateIdle      MutationState = 0
	StatePending   MutationState = 1
	StateCommitted MutationState = 2
	StateReverted  MutationState = 3
)

func (s MutationState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateReverted:
		return "reverted"
	default:
		return "idle"
	}
}

// Mutator applies like/unlike to the cache before the server answers and
// then commits or reverts the change. Each post has at most one pending
// mutation per key and store; the bookkeeping lives in the store so that
// feeds sharing a scope also share it.
type Mutator struct {
	store     *Store
	key       QueryKey
	transport Transport
	auth      Auth
	notifier  Notifier
}

func NewMutator(store *Store, key QueryKey, transport Transport, auth Auth, notifier Notifier) *Mutator {
	if notifier == nil {
		notifier = NotifierFunc(func(string, string) {})
	}
	return &Mutator{
		store:     store,
		key:       key,
		transport: transport,
		auth:      auth,
		notifier:  notifier,
	}
}

func (m *Mutator) State(postId string) MutationState {
	return m.store.MutationState(m.key, postId)
}

func (m *Mutator) Pending(postId string) bool {
	return m.State(postId) == StatePending
}

// Begin records a pending mutation and patches the cache right away.
func (m *Mutator) Begin(postId string, kind LikeKind) (*PendingMutation, error) {
	viewerId, ok := m.auth.CurrentViewerId()
	if !ok {
		return nil, ErrNoViewer
	}

	pm := &PendingMutation{
		Id:        meowid.GenId(),
		PostId:    postId,
		Kind:      kind,
		ViewerId:  viewerId,
		CreatedAt: time.Now(),
	}

	err := m.store.beginMutation(m.key, pm, func(c FeedCache) PatchFunc {
		// Record what the optimistic patch changes, for the revert
		if post, ok := c.FindPost(postId); ok {
			_, pm.Delta, _ = likeTransition(post, viewerId, kind)
			pm.Flipped = post.ViewerHasLiked != (kind == LikeKindLike)
			pm.PrevLikes = append([]string{}, post.Likes...)
		}
		return ApplyLikeDelta(postId, viewerId, kind)
	})
	if err != nil {
		return nil, err
	}

	return pm, nil
}

// Resolve sends the mutation to the server and reconciles the cache with the
// answer.
func (m *Mutator) Resolve(ctx context.Context, pm *PendingMutation) error {
	var res LikeResult
	var err error
	if pm.Kind == LikeKindLike {
		res, err = m.transport.Like(ctx, pm.PostId)
	} else {
		res, err = m.transport.Unlike(ctx, pm.PostId)
	}

	if err != nil {
		m.revert(pm)
		log.Println("mutation", pm.Id, pm.Kind, pm.PostId, "failed after", time.Since(pm.CreatedAt), err)
		if !errors.Is(err, ErrNetwork) {
			sentry.CaptureException(err)
		}
		if pm.Kind == LikeKindLike {
			m.notifier.Notify(NotifyLikeFailed, "Couldn't like this post")
		} else {
			m.notifier.Notify(NotifyLikeFailed, "Couldn't unlike this post")
		}
		return &MutationError{MutationId: pm.Id, PostId: pm.PostId, Kind: pm.Kind, Err: err}
	}

	m.commit(pm, res)
	if pm.Kind == LikeKindLike {
		m.notifier.Notify(NotifyLiked, "You liked this post")
	} else {
		m.notifier.Notify(NotifyUnliked, "You unliked this post")
	}
	return nil
}

func (m *Mutator) Like(ctx context.Context, postId string) error {
	return m.run(ctx, postId, LikeKindLike)
}

func (m *Mutator) Unlike(ctx context.Context, postId string) error {
	return m.run(ctx, postId, LikeKindUnlike)
}

// Toggle likes or unlikes depending on the cached viewer state. A post that
// is no longer cached is left alone.
func (m *Mutator) Toggle(ctx context.Context, postId string) error {
	c, _ := m.store.Get(m.key)
	post, ok := c.FindPost(postId)
	if !ok {
		return nil
	}
	if post.ViewerHasLiked {
		return m.run(ctx, postId, LikeKindUnlike)
	}
	return m.run(ctx, postId, LikeKindLike)
}

func (m *Mutator) run(ctx context.Context, postId string, kind LikeKind) error {
	pm, err := m.Begin(postId, kind)
	if err != nil {
		return err
	}
	return m.Resolve(ctx, pm)
}

// commit re-applies the patch with the server's viewer id. The patch is
// keyed by post id so it lands wherever the post is now.
func (m *Mutator) commit(pm *PendingMutation, res LikeResult) {
	viewerId := res.ViewerId
	if viewerId == "" {
		viewerId = pm.ViewerId
	}
	m.store.completeMutation(m.key, pm, ApplyLikeDelta(pm.PostId, viewerId, pm.Kind), StateCommitted)
}

func (m *Mutator) revert(pm *PendingMutation) {
	m.store.completeMutation(m.key, pm, RevertLikeDelta(pm), StateReverted)
}
