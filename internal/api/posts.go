package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rickgao/bumpfeed/internal/model"
)

// GetFeed fetches a page of the feed.
func (c *Client) GetFeed(ctx context.Context, opts FeedOptions) (*FeedResponse, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp FeedResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "/feed", query: query}, &resp); err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return &resp, nil
}

// GetRecentPosts pages through the feed until it has at least limit posts
// or the feed ends.
func (c *Client) GetRecentPosts(ctx context.Context, limit int) ([]model.Post, error) {
	var posts []model.Post
	opts := FeedOptions{Limit: min(limit, 100)}

	for len(posts) < limit {
		resp, err := c.GetFeed(ctx, opts)
		if err != nil {
			return nil, err
		}

		posts = append(posts, resp.Posts...)

		if resp.Cursor == "" || len(resp.Posts) == 0 {
			break
		}
		opts.Cursor = resp.Cursor
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// CreatePost publishes a new post. The client ID doubles as the idempotency
// key so a retried request cannot publish twice.
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*model.Post, error) {
	var resp PostResponse
	r := request{
		method:         http.MethodPost,
		path:           "/posts",
		body:           req,
		idempotencyKey: req.ClientID,
	}
	if err := c.call(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &resp.Post, nil
}

// UpdatePost edits a post.
func (c *Client) UpdatePost(ctx context.Context, postID string, req UpdatePostRequest) (*model.Post, error) {
	var resp PostResponse
	r := request{method: http.MethodPatch, path: "/posts/" + url.PathEscape(postID), body: req}
	if err := c.call(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("update post %s: %w", postID, err)
	}
	return &resp.Post, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	r := request{method: http.MethodDelete, path: "/posts/" + url.PathEscape(postID)}
	if err := c.call(ctx, r, nil); err != nil {
		return fmt.Errorf("delete post %s: %w", postID, err)
	}
	return nil
}

// AddReaction reacts to a post and returns the updated post.
func (c *Client) AddReaction(ctx context.Context, postID, emoji string) (*model.Post, error) {
	var resp PostResponse
	r := request{
		method: http.MethodPost,
		path:   "/posts/" + url.PathEscape(postID) + "/reactions",
		body:   ReactionRequest{Emoji: emoji},
	}
	if err := c.call(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("add reaction to %s: %w", postID, err)
	}
	return &resp.Post, nil
}

// RemoveReaction withdraws a reaction and returns the updated post.
func (c *Client) RemoveReaction(ctx context.Context, postID, emoji string) (*model.Post, error) {
	var resp PostResponse
	r := request{
		method: http.MethodDelete,
		path:   "/posts/" + url.PathEscape(postID) + "/reactions/" + url.PathEscape(emoji),
	}
	if err := c.call(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("remove reaction from %s: %w", postID, err)
	}
	return &resp.Post, nil
}
