// Package mongo reads the feed straight from the posts database. Pages are
// cut with before-id cursors over post MeowIDs, newest first.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/meower-media/feed/pkg/db"
	"github.com/meower-media/feed/pkg/feed"
	"github.com/meower-media/feed/pkg/meowid"
	"github.com/meower-media/feed/pkg/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrInvalidViewer = errors.New("invalid viewer")
	ErrForbidden     = errors.New("drafts can only be read by their author")
)

type userDoc struct {
	Id       meowid.MeowID `bson:"_id"`
	Username string        `bson:"username"`
	Avatar   string        `bson:"avatar"`
}

type commentDoc struct {
	Id       meowid.MeowID `bson:"_id"`
	AuthorId meowid.MeowID `bson:"author"`
	Content  string        `bson:"content"`
}

type postDoc struct {
	Id             meowid.MeowID `bson:"_id"`
	ChatId         meowid.MeowID `bson:"chat"`
	AuthorId       meowid.MeowID `bson:"author"`
	Images         []string      `bson:"images"`
	Published      bool          `bson:"published"`
	LikeCount      int64         `bson:"like_count"`
	CommentCount   int64         `bson:"comment_count"`
	RecentComments []commentDoc  `bson:"recent_comments"`
}

type likeKey struct {
	PostId meowid.MeowID `bson:"post"`
	UserId meowid.MeowID `bson:"user"`
}

type likeDoc struct {
	Id likeKey `bson:"_id"`
}

// Transport is a feed.Transport backed by the db collections. It acts on
// behalf of a single viewer.
type Transport struct {
	ViewerId meowid.MeowID
}

var _ feed.Transport = (*Transport)(nil)

func New(viewerId meowid.MeowID) *Transport {
	return &Transport{ViewerId: viewerId}
}

// Filter builds the posts query for a key and cursor.
func Filter(key feed.QueryKey, cursor string) (bson.M, error) {
	q := bson.M{}
	if key.Filter.ChatId != 0 {
		q["chat"] = key.Filter.ChatId
	}
	if key.Filter.AuthorId != 0 {
		q["author"] = key.Filter.AuthorId
	}
	if key.Filter.Drafts {
		q["published"] = false
	} else if key.Filter.Published {
		q["published"] = true
	}
	if cursor != "" {
		beforeId, err := meowid.Parse(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid cursor %q", feed.ErrServer, cursor)
		}
		q["_id"] = bson.M{"$lt": beforeId}
	}
	return q, nil
}

func (t *Transport) FetchPage(ctx context.Context, key feed.QueryKey, cursor string, pageSize int) (feed.Page, error) {
	if key.Filter.Drafts && (t.ViewerId == 0 || key.Filter.AuthorId != t.ViewerId) {
		return feed.Page{}, fmt.Errorf("%w: %w", feed.ErrServer, ErrForbidden)
	}

	q, err := Filter(key, cursor)
	if err != nil {
		return feed.Page{}, err
	}

	// Get one extra post to know whether there's a next page
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(pageSize) + 1)
	cur, err := db.Posts.Find(ctx, q, opts)
	if err != nil {
		return feed.Page{}, classify(err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return feed.Page{}, classify(err)
	}

	page := feed.Page{Cursor: cursor, Posts: []feed.Post{}}
	if len(docs) > pageSize {
		docs = docs[:pageSize]
		page.NextCursor = meowid.String(docs[len(docs)-1].Id)
	}

	// Get authors and viewer likes
	users, err := t.getUsers(ctx, docs)
	if err != nil {
		return feed.Page{}, err
	}
	liked, err := t.getViewerLikes(ctx, docs)
	if err != nil {
		return feed.Page{}, err
	}

	for _, d := range docs {
		page.Posts = append(page.Posts, constructPost(d, users, liked[d.Id], t.ViewerId))
	}

	return page, nil
}

func (t *Transport) Like(ctx context.Context, postId string) (feed.LikeResult, error) {
	if t.ViewerId == 0 {
		return feed.LikeResult{}, fmt.Errorf("%w: %v", feed.ErrServer, ErrInvalidViewer)
	}

	id, err := meowid.Parse(postId)
	if err != nil {
		return feed.LikeResult{}, fmt.Errorf("%w: %v", feed.ErrServer, ErrPostNotFound)
	}

	// Add like, a duplicate means the viewer already liked the post
	_, err = db.PostLikes.InsertOne(ctx, likeDoc{Id: likeKey{PostId: id, UserId: t.ViewerId}})
	if mongo.IsDuplicateKeyError(err) {
		return feed.LikeResult{ViewerId: meowid.String(t.ViewerId)}, nil
	} else if err != nil {
		return feed.LikeResult{}, classify(err)
	}

	// Update count
	res, err := db.Posts.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"like_count": 1}})
	if err != nil {
		return feed.LikeResult{}, classify(err)
	}
	if res.MatchedCount == 0 {
		db.PostLikes.DeleteOne(ctx, bson.M{"_id": likeKey{PostId: id, UserId: t.ViewerId}})
		return feed.LikeResult{}, fmt.Errorf("%w: %v", feed.ErrServer, ErrPostNotFound)
	}

	return feed.LikeResult{ViewerId: meowid.String(t.ViewerId)}, nil
}

func (t *Transport) Unlike(ctx context.Context, postId string) (feed.LikeResult, error) {
	if t.ViewerId == 0 {
		return feed.LikeResult{}, fmt.Errorf("%w: %v", feed.ErrServer, ErrInvalidViewer)
	}

	id, err := meowid.Parse(postId)
	if err != nil {
		return feed.LikeResult{}, fmt.Errorf("%w: %v", feed.ErrServer, ErrPostNotFound)
	}

	// Remove like
	res, err := db.PostLikes.DeleteOne(ctx, bson.M{"_id": likeKey{PostId: id, UserId: t.ViewerId}})
	if err != nil {
		return feed.LikeResult{}, classify(err)
	}

	// Update count
	if res.DeletedCount > 0 {
		_, err := db.Posts.UpdateOne(
			ctx,
			bson.M{"_id": id, "like_count": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"like_count": -1}},
		)
		if err != nil {
			return feed.LikeResult{}, classify(err)
		}
	}

	return feed.LikeResult{ViewerId: meowid.String(t.ViewerId)}, nil
}

func (t *Transport) getUsers(ctx context.Context, docs []postDoc) (map[meowid.MeowID]userDoc, error) {
	users := make(map[meowid.MeowID]userDoc)
	ids := []meowid.MeowID{}
	for _, d := range docs {
		ids = append(ids, d.AuthorId)
		for _, c := range d.RecentComments {
			ids = append(ids, c.AuthorId)
		}
	}
	if len(ids) == 0 {
		return users, nil
	}

	cur, err := db.Users.Find(ctx, bson.M{"_id": bson.M{"$in": utils.RemoveDuplicates(ids)}})
	if err != nil {
		return nil, classify(err)
	}
	var found []userDoc
	if err := cur.All(ctx, &found); err != nil {
		return nil, classify(err)
	}
	for _, u := range found {
		users[u.Id] = u
	}
	return users, nil
}

func (t *Transport) getViewerLikes(ctx context.Context, docs []postDoc) (map[meowid.MeowID]bool, error) {
	liked := make(map[meowid.MeowID]bool)
	if t.ViewerId == 0 || len(docs) == 0 {
		return liked, nil
	}

	keys := []likeKey{}
	for _, d := range docs {
		keys = append(keys, likeKey{PostId: d.Id, UserId: t.ViewerId})
	}
	cur, err := db.PostLikes.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, classify(err)
	}
	var found []likeDoc
	if err := cur.All(ctx, &found); err != nil {
		return nil, classify(err)
	}
	for _, l := range found {
		liked[l.Id.PostId] = true
	}
	return liked, nil
}

func constructPost(d postDoc, users map[meowid.MeowID]userDoc, liked bool, viewerId meowid.MeowID) feed.Post {
	p := feed.Post{
		Id:             meowid.String(d.Id),
		Author:         constructAuthor(d.AuthorId, users),
		Images:         []string{},
		LikeCount:      d.LikeCount,
		ViewerHasLiked: liked,
		Likes:          []string{},
		Comments:       []feed.Comment{},
		CommentCount:   d.CommentCount,
		CreatedAt:      meowid.Extract(d.Id).Timestamp,
	}
	p.Images = append(p.Images, d.Images...)
	if liked {
		p.Likes = []string{meowid.String(viewerId)}
	}
	for _, c := range d.RecentComments {
		p.Comments = append(p.Comments, feed.Comment{
			Id:      meowid.String(c.Id),
			Content: c.Content,
			Author:  constructAuthor(c.AuthorId, users),
		})
	}
	return p
}

func constructAuthor(id meowid.MeowID, users map[meowid.MeowID]userDoc) feed.Author {
	a := feed.Author{Id: meowid.String(id)}
	if u, ok := users[id]; ok {
		a.Name = u.Username
		a.Image = u.Avatar
	}
	return a
}

func classify(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", feed.ErrNetwork, err)
	}
	return fmt.Errorf("%w: %v", feed.ErrServer, err)
}
