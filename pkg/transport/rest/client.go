package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/meower-media/feed/pkg/feed"
)

// Client is a feed.Transport for the feed REST API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

var _ feed.Transport = (*Client)(nil)

func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type errResp struct {
	Error bool   `json:"error"`
	Type  string `json:"type"`
}

type timelineResp struct {
	Error      bool        `json:"error"`
	Posts      []feed.Post `json:"posts"`
	NextCursor *string     `json:"nextCursor"`
}

func (c *Client) FetchPage(ctx context.Context, key feed.QueryKey, cursor string, pageSize int) (feed.Page, error) {
	// Build query
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if key.Filter.ChatId != 0 {
		q.Set("chat", strconv.FormatInt(key.Filter.ChatId, 10))
	}
	if key.Filter.AuthorId != 0 {
		q.Set("author", strconv.FormatInt(key.Filter.AuthorId, 10))
	}
	if key.Filter.Drafts {
		q.Set("published", "false")
	} else if key.Filter.Published {
		q.Set("published", "true")
	}
	if key.Mode == feed.ModePaged {
		q.Set("mode", "paged")
	}

	var resp timelineResp
	if err := c.do(ctx, http.MethodGet, "/posts?"+q.Encode(), &resp); err != nil {
		return feed.Page{}, err
	}

	page := feed.Page{
		Cursor: cursor,
		Posts:  resp.Posts,
	}
	if page.Posts == nil {
		page.Posts = []feed.Post{}
	}
	if resp.NextCursor != nil {
		page.NextCursor = *resp.NextCursor
	}
	return page, nil
}

func (c *Client) Like(ctx context.Context, postId string) (feed.LikeResult, error) {
	var res feed.LikeResult
	err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postId)+"/like", &res)
	return res, err
}

func (c *Client) Unlike(ctx context.Context, postId string) (feed.LikeResult, error) {
	var res feed.LikeResult
	err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postId)+"/like", &res)
	return res, err
}

// do sends a request and decodes the JSON response into v. Failures to reach
// the server wrap feed.ErrNetwork, error responses wrap feed.ErrServer.
func (c *Client) do(ctx context.Context, method string, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("token", c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", feed.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", feed.ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		var e errResp
		if json.Unmarshal(body, &e) == nil && e.Type != "" {
			return fmt.Errorf("%w: %s %s: %d %s", feed.ErrServer, method, path, resp.StatusCode, e.Type)
		}
		return fmt.Errorf("%w: %s %s: %d", feed.ErrServer, method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", feed.ErrServer, err)
	}
	return nil
}
