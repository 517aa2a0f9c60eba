package feed

import (
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

type PaginationMode int8

const (
	// ModeInfinite appends pages as the reader scrolls.
	ModeInfinite PaginationMode = 0

	// ModePaged shows one page at a time behind explicit previous/next
	// controls.
	ModePaged PaginationMode = 1
)

func (m PaginationMode) String() string {
	if m == ModePaged {
		return "paged"
	}
	return "infinite"
}

// Filter holds the feed's filter parameters. It must only contain comparable
// fields so that QueryKey can be used as a map key.
type Filter struct {
	ChatId    int64 `msgpack:"chat" validate:"min=0"`
	AuthorId  int64 `msgpack:"author" validate:"min=0"`
	Published bool  `msgpack:"published"`
	Drafts    bool  `msgpack:"drafts"` // only the author's unpublished posts
	Limit     int   `msgpack:"limit" validate:"min=0,max=100"`
}

// QueryKey identifies one FeedCache. Two keys built from the same filter
// parameters are equal with ==.
type QueryKey struct {
	Filter Filter         `msgpack:"filter"`
	Mode   PaginationMode `msgpack:"mode"`
}

// DraftsKey is the query key for an author's drafts, five to a page.
func DraftsKey(authorId int64) QueryKey {
	return QueryKey{
		Filter: Filter{
			AuthorId: authorId,
			Drafts:   true,
			Limit:    DraftsPageSize,
		},
		Mode: ModePaged,
	}
}

// Hash returns a stable opaque identifier for the key. Rendered feeds and log
// lines carry it so that clients and operators can tell feeds apart.
func (k QueryKey) Hash() string {
	h := sha3.NewShake256()
	h.Write([]byte("feed"))
	h.Write([]byte(fmt.Sprint(k.Filter.ChatId, ":", k.Filter.AuthorId, ":", k.Filter.Published, ":", k.Filter.Drafts, ":", k.Filter.Limit, ":", k.Mode)))

	sum := make([]byte, 16)
	h.Read(sum)
	return base64.RawURLEncoding.EncodeToString(sum)
}

type Author struct {
	Id    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Image string `json:"image" msgpack:"image"`
}

type Comment struct {
	Id      string `json:"id" msgpack:"id"`
	Content string `json:"content" msgpack:"content"`
	Author  Author `json:"user" msgpack:"user"`
}

type Post struct {
	Id     string   `json:"id" msgpack:"id"`
	Author Author   `json:"user" msgpack:"user"`
	Images []string `json:"image" msgpack:"image"`

	LikeCount      int64    `json:"like_count" msgpack:"like_count"`
	ViewerHasLiked bool     `json:"viewer_has_liked" msgpack:"viewer_has_liked"`
	Likes          []string `json:"likes" msgpack:"likes"` // 0 or 1 viewer ids

	Comments     []Comment `json:"comments" msgpack:"comments"`
	CommentCount int64     `json:"comment_count" msgpack:"comment_count"`

	CreatedAt int64 `json:"created_at" msgpack:"created_at"`
}

// Page is immutable once fetched.
type Page struct {
	Cursor     string `json:"cursor" msgpack:"cursor"` // cursor used to fetch this page, "" for the first one
	Posts      []Post `json:"posts" msgpack:"posts"`
	NextCursor string `json:"next_cursor" msgpack:"next_cursor"` // "" when there are no more pages
}

// FeedCache holds the pages fetched for one QueryKey, oldest first.
// Values are never modified in place after they have been stored.
type FeedCache struct {
	Pages   []Page
	Cursors []string
}

func emptyCache() FeedCache {
	return FeedCache{
		Pages:   []Page{},
		Cursors: []string{},
	}
}

func (c FeedCache) Posts() []Post {
	posts := []Post{}
	for _, page := range c.Pages {
		posts = append(posts, page.Posts...)
	}
	return posts
}

func (c FeedCache) NextCursor() string {
	if len(c.Pages) == 0 {
		return ""
	}
	return c.Pages[len(c.Pages)-1].NextCursor
}

// HasNextPage reports whether the last fetched page had a next cursor.
// An empty cache has no next page; the first page is loaded explicitly.
func (c FeedCache) HasNextPage() bool {
	return c.NextCursor() != ""
}

func (c FeedCache) FindPost(postId string) (Post, bool) {
	for _, page := range c.Pages {
		for _, post := range page.Posts {
			if post.Id == postId {
				return post, true
			}
		}
	}
	return Post{}, false
}

type LikeKind uint8

const (
	LikeKindLike   LikeKind = 0
	LikeKindUnlike LikeKind = 1
)

func (k LikeKind) String() string {
	if k == LikeKindUnlike {
		return "unlike"
	}
	return "like"
}

func (k LikeKind) Inverse() LikeKind {
	if k == LikeKindUnlike {
		return LikeKindLike
	}
	return LikeKindUnlike
}

// PendingMutation lives from the click until the server answers.
type PendingMutation struct {
	Id        int64
	PostId    string
	Kind      LikeKind
	Delta     int64 // change applied to LikeCount by the optimistic patch
	Flipped   bool  // whether the optimistic patch changed the viewer's like state
	PrevLikes []string
	ViewerId  string
	CreatedAt time.Time
}

type LikeResult struct {
	ViewerId string `json:"userId" msgpack:"user_id"`
}
