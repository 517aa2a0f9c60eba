package feed

// PatchFunc produces a new cache value from the current one. Patch functions
// must not modify their argument and must never panic.
type PatchFunc func(FeedCache) FeedCache

// Patch applies fn to cache, or to the empty state if cache is nil.
func Patch(cache *FeedCache, fn PatchFunc) FeedCache {
	if cache == nil {
		return fn(emptyCache())
	}
	return fn(*cache)
}

// AppendPage pushes page and its cursor to the end of the cache.
//
// Appending the same page twice stores it twice. The pager's single-flight
// guard is what keeps each page from being applied more than once.
func AppendPage(page Page) PatchFunc {
	return func(c FeedCache) FeedCache {
		pages := make([]Page, len(c.Pages), len(c.Pages)+1)
		copy(pages, c.Pages)
		cursors := make([]string, len(c.Cursors), len(c.Cursors)+1)
		copy(cursors, c.Cursors)

		return FeedCache{
			Pages:   append(pages, page),
			Cursors: append(cursors, page.Cursor),
		}
	}
}

// ApplyLikeDelta sets the viewer's like state on postId, wherever the post
// currently sits in the cache. Count and viewer state always move together:
// a like that the post already has, or an unlike it doesn't, leaves the count
// alone. A post that is not cached is a no-op.
func ApplyLikeDelta(postId string, viewerId string, kind LikeKind) PatchFunc {
	return func(c FeedCache) FeedCache {
		return patchPost(c, postId, func(p Post) (Post, bool) {
			updated, _, changed := likeTransition(p, viewerId, kind)
			return updated, changed
		})
	}
}

// RevertLikeDelta undoes the optimistic patch recorded in pm, restoring the
// count, viewer state and likes list the post had before the click.
func RevertLikeDelta(pm *PendingMutation) PatchFunc {
	return func(c FeedCache) FeedCache {
		if pm == nil || !pm.Flipped {
			return c
		}
		return patchPost(c, pm.PostId, func(p Post) (Post, bool) {
			p.LikeCount -= pm.Delta
			if p.LikeCount < 0 {
				p.LikeCount = 0
			}
			p.ViewerHasLiked = pm.Kind != LikeKindLike
			p.Likes = make([]string, len(pm.PrevLikes))
			copy(p.Likes, pm.PrevLikes)
			return p, true
		})
	}
}

func likeTransition(p Post, viewerId string, kind LikeKind) (Post, int64, bool) {
	switch kind {
	case LikeKindLike:
		if p.ViewerHasLiked {
			if len(p.Likes) == 1 && p.Likes[0] == viewerId {
				return p, 0, false
			}
			p.Likes = []string{viewerId}
			return p, 0, true
		}
		p.LikeCount++
		p.ViewerHasLiked = true
		p.Likes = []string{viewerId}
		return p, 1, true
	case LikeKindUnlike:
		if !p.ViewerHasLiked {
			return p, 0, false
		}
		var delta int64 = -1
		if p.LikeCount > 0 {
			p.LikeCount--
		} else {
			delta = 0
		}
		p.ViewerHasLiked = false
		p.Likes = []string{}
		return p, delta, true
	}
	return p, 0, false
}

// patchPost copies only the page that holds postId.
func patchPost(c FeedCache, postId string, fn func(Post) (Post, bool)) FeedCache {
	for i, page := range c.Pages {
		for j, post := range page.Posts {
			if post.Id != postId {
				continue
			}

			updated, changed := fn(post)
			if !changed {
				return c
			}

			posts := make([]Post, len(page.Posts))
			copy(posts, page.Posts)
			posts[j] = updated

			pages := make([]Page, len(c.Pages))
			copy(pages, c.Pages)
			pages[i] = Page{
				Cursor:     page.Cursor,
				Posts:      posts,
				NextCursor: page.NextCursor,
			}

			return FeedCache{
				Pages:   pages,
				Cursors: c.Cursors,
			}
		}
	}

	return c
}
