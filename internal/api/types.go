package api

import "github.com/rickgao/bumpfeed/internal/model"

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	ClientID string `json:"clientId"`
	Text     string `json:"text"`
	Mood     string `json:"mood,omitempty"`
	Week     int    `json:"week,omitempty"`
}

// UpdatePostRequest is the body of PATCH /posts/{id}.
type UpdatePostRequest struct {
	Text string `json:"text"`
	Mood string `json:"mood,omitempty"`
}

// ReactionRequest is the body of POST /posts/{id}/reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// PostResponse wraps a single post.
type PostResponse struct {
	Post model.Post `json:"post"`
}

// FeedResponse is one page of the feed, newest first.
type FeedResponse struct {
	Posts  []model.Post `json:"posts"`
	Cursor string       `json:"cursor,omitempty"`
}

// FeedOptions selects a feed page.
type FeedOptions struct {
	Limit  int
	Cursor string
}
