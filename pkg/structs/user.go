package structs

import "github.com/meower-media/feed/pkg/feed"

type V0User struct {
	Id    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Image string `json:"image,omitempty" msgpack:"image,omitempty"`
}

func ConstructUserV0(a feed.Author) V0User {
	return V0User{
		Id:    a.Id,
		Name:  a.Name,
		Image: a.Image,
	}
}
