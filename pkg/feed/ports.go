package feed

import "context"

// Transport talks to the feed API. Failures should wrap ErrNetwork or
// ErrServer.
type Transport interface {
	FetchPage(ctx context.Context, key QueryKey, cursor string, pageSize int) (Page, error)
	Like(ctx context.Context, postId string) (LikeResult, error)
	Unlike(ctx context.Context, postId string) (LikeResult, error)
}

type Auth interface {
	// CurrentViewerId returns false when nobody is signed in.
	CurrentViewerId() (string, bool)
}

type StaticAuth string

func (a StaticAuth) CurrentViewerId() (string, bool) {
	return string(a), a != ""
}

// Notifier is fire-and-forget user feedback.
type Notifier interface {
	Notify(kind string, message string)
}

type NotifierFunc func(kind string, message string)

func (f NotifierFunc) Notify(kind string, message string) {
	f(kind, message)
}

const (
	NotifyLiked       = "liked"
	NotifyUnliked     = "unliked"
	NotifyLikeFailed  = "like_failed"
	NotifyFetchFailed = "fetch_failed"
)
