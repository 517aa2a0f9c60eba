package structs

import "github.com/meower-media/feed/pkg/feed"

// V0FeedPage is what a client renders. Infinite feeds carry every cached
// post in fetch order; paged feeds carry the posts of the current page.
type V0FeedPage struct {
	Key         string   `json:"key" msgpack:"key"`
	Mode        string   `json:"mode" msgpack:"mode"`
	Posts       []V0Post `json:"posts" msgpack:"posts"`
	Pages       int      `json:"pages" msgpack:"pages"`
	Page        int      `json:"page" msgpack:"page"`
	HasPrevPage bool     `json:"has_prev_page" msgpack:"has_prev_page"`
	HasNextPage bool     `json:"has_next_page" msgpack:"has_next_page"`
	Fetching    bool     `json:"fetching" msgpack:"fetching"`
}

func ConstructFeedPageV0(f *feed.Feed) V0FeedPage {
	key := f.Key()
	c := f.Cache()
	page := V0FeedPage{
		Key:         key.Hash(),
		Mode:        key.Mode.String(),
		Posts:       []V0Post{},
		Pages:       len(c.Pages),
		HasNextPage: c.HasNextPage(),
		Fetching:    f.Pager.Fetching(),
	}

	posts := c.Posts()
	if key.Mode == feed.ModePaged {
		posts = []feed.Post{}
		if current, ok := f.View.Current(); ok {
			posts = current.Posts
		}
		page.Page = f.View.Index()
		page.HasPrevPage = f.View.HasPrevPage()
		page.HasNextPage = f.View.HasNextPage()
	}

	for _, p := range posts {
		page.Posts = append(page.Posts, ConstructPostV0(p, f.Mutator.Pending(p.Id)))
	}
	return page
}
