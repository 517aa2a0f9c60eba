package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/meower-media/feed/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("token"))
		assert.Equal(t, "6", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("published"))

		if r.URL.Query().Get("cursor") == "c1" {
			w.Write([]byte(`{"posts":[{"id":"p3","like_count":0}],"nextCursor":null}`))
			return
		}
		w.Write([]byte(`{"posts":[{"id":"p1","like_count":3,"likes":[]},{"id":"p2","like_count":1,"likes":["u1"],"viewer_has_liked":true}],"nextCursor":"c1"}`))
	})
	r.Post("/posts/{postId}/like", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "postId") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":true,"type":"notFound"}`))
			return
		}
		w.Write([]byte(`{"userId":"u9"}`))
	})
	r.Delete("/posts/{postId}/like", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func TestFetchPage(t *testing.T) {
	s := testServer(t)
	c := NewClient(s.URL, "secret")
	key := feed.QueryKey{Filter: feed.Filter{Published: true}}

	page, err := c.FetchPage(context.Background(), key, "", 6)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "c1", page.NextCursor)
	assert.Equal(t, int64(3), page.Posts[0].LikeCount)
	assert.True(t, page.Posts[1].ViewerHasLiked)

	page, err = c.FetchPage(context.Background(), key, "c1", 6)
	require.NoError(t, err)
	assert.Equal(t, "c1", page.Cursor)
	assert.Equal(t, "", page.NextCursor)
}

func TestLikeAndUnlike(t *testing.T) {
	s := testServer(t)
	c := NewClient(s.URL, "secret")

	res, err := c.Like(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "u9", res.ViewerId)

	_, err = c.Like(context.Background(), "gone")
	assert.ErrorIs(t, err, feed.ErrServer)
	assert.Contains(t, err.Error(), "notFound")

	_, err = c.Unlike(context.Background(), "p1")
	assert.ErrorIs(t, err, feed.ErrServer)
}

func TestNetworkError(t *testing.T) {
	s := testServer(t)
	c := NewClient(s.URL, "secret")
	s.Close()

	_, err := c.FetchPage(context.Background(), feed.QueryKey{}, "", 6)
	assert.ErrorIs(t, err, feed.ErrNetwork)
}

func TestFetchPageDrafts(t *testing.T) {
	queries := make(chan url.Values, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		w.Write([]byte(`{"posts":[],"nextCursor":null}`))
	}))
	defer s.Close()

	page, err := NewClient(s.URL, "secret").FetchPage(context.Background(), feed.DraftsKey(7), "", 5)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)

	q := <-queries
	assert.Equal(t, "false", q.Get("published"))
	assert.Equal(t, "7", q.Get("author"))
	assert.Equal(t, "5", q.Get("limit"))
	assert.Equal(t, "paged", q.Get("mode"))
}
