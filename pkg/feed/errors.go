package feed

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork         = errors.New("network error")
	ErrServer          = errors.New("server error")
	ErrFetchInFlight   = errors.New("fetch already in flight")
	ErrNoNextPage      = errors.New("no next page")
	ErrMutationPending = errors.New("mutation already pending for post")
	ErrNoViewer        = errors.New("no viewer signed in")
	ErrUnmounted       = errors.New("feed is not mounted")
	ErrNoPrevPage      = errors.New("no previous page")
)

// FetchError is returned when a page fetch fails. The cache is left unchanged.
type FetchError struct {
	Key    QueryKey
	Cursor string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page (cursor %q): %v", e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError is returned when a like/unlike failed and the optimistic
// patch has been reverted.
type MutationError struct {
	MutationId int64
	PostId     string
	Kind       LikeKind
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s post %s (mutation %d): %v", e.Kind, e.PostId, e.MutationId, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
