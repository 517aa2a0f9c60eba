package structs

import "github.com/meower-media/feed/pkg/feed"

type V0Post struct {
	Id             string      `json:"id" msgpack:"id"`
	Author         V0User      `json:"user" msgpack:"user"`
	Images         []string    `json:"image" msgpack:"image"`
	Likes          []string    `json:"likes" msgpack:"likes"`
	ViewerHasLiked bool        `json:"viewer_has_liked" msgpack:"viewer_has_liked"`
	Count          V0Count     `json:"_count" msgpack:"_count"`
	Comments       []V0Comment `json:"comments" msgpack:"comments"`
	Timestamp      int64       `json:"t" msgpack:"t"`

	// like button is disabled while a like/unlike is pending
	LikePending bool `json:"like_pending,omitempty" msgpack:"like_pending,omitempty"`
}

type V0Count struct {
	Likes    int64 `json:"likes" msgpack:"likes"`
	Comments int64 `json:"comments" msgpack:"comments"`
}

type V0Comment struct {
	Id      string `json:"id" msgpack:"id"`
	Content string `json:"content" msgpack:"content"`
	Author  V0User `json:"user" msgpack:"user"`
}

func ConstructPostV0(p feed.Post, likePending bool) V0Post {
	v0p := V0Post{
		Id:             p.Id,
		Author:         ConstructUserV0(p.Author),
		Images:         []string{},
		Likes:          []string{},
		ViewerHasLiked: p.ViewerHasLiked,
		Count: V0Count{
			Likes:    p.LikeCount,
			Comments: p.CommentCount,
		},
		Comments:    []V0Comment{},
		Timestamp:   p.CreatedAt,
		LikePending: likePending,
	}
	v0p.Images = append(v0p.Images, p.Images...)
	v0p.Likes = append(v0p.Likes, p.Likes...)
	for _, c := range p.Comments {
		v0p.Comments = append(v0p.Comments, V0Comment{
			Id:      c.Id,
			Content: c.Content,
			Author:  ConstructUserV0(c.Author),
		})
	}
	return v0p
}
