package model

import "slices"

// ItemKind distinguishes entries in the family feed.
type ItemKind string

const (
	KindPost      ItemKind = "post"
	KindMilestone ItemKind = "milestone"
)

// Post is one feed entry: an update shared by a family member, or a
// pregnancy milestone card.
type Post struct {
	ID         string   `json:"id"`
	ClientID   string   `json:"clientId,omitempty"` // Set by the author's device before the server assigns ID
	Kind       ItemKind `json:"kind"`
	AuthorID   string   `json:"authorId,omitempty"`
	AuthorName string   `json:"authorName,omitempty"`
	Title      string   `json:"title,omitempty"` // Milestones only
	Text       string   `json:"text"`
	Mood       string   `json:"mood,omitempty"`
	Week       int      `json:"week,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt,omitempty"`
	Edited     bool     `json:"edited,omitempty"`

	// Emoji -> IDs of users who reacted with it
	Reactions map[string][]string `json:"reactions,omitempty"`
	Comments  []Comment           `json:"comments,omitempty"`

	// Pending marks a local change the server has not confirmed yet.
	Pending bool `json:"-"`
}

// Comment is a reply on a post.
type Comment struct {
	ID         string `json:"id"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	if p.Reactions != nil {
		reactions := make(map[string][]string, len(p.Reactions))
		for emoji, users := range p.Reactions {
			reactions[emoji] = slices.Clone(users)
		}
		p.Reactions = reactions
	}
	p.Comments = slices.Clone(p.Comments)
	return p
}

// AddReaction records userID reacting with emoji. It reports whether the
// post changed; repeated reactions are ignored.
func (p *Post) AddReaction(userID, emoji string) bool {
	if slices.Contains(p.Reactions[emoji], userID) {
		return false
	}
	if p.Reactions == nil {
		p.Reactions = make(map[string][]string)
	}
	p.Reactions[emoji] = append(p.Reactions[emoji], userID)
	return true
}

// RemoveReaction withdraws userID's emoji reaction. It reports whether the
// post changed.
func (p *Post) RemoveReaction(userID, emoji string) bool {
	users := p.Reactions[emoji]
	i := slices.Index(users, userID)
	if i < 0 {
		return false
	}
	users = slices.Delete(slices.Clone(users), i, i+1)
	if len(users) == 0 {
		delete(p.Reactions, emoji)
	} else {
		p.Reactions[emoji] = users
	}
	return true
}

// ReactionCount returns how many users reacted with emoji.
func (p Post) ReactionCount(emoji string) int {
	return len(p.Reactions[emoji])
}

// AddComment appends c unless a comment with the same ID is already
// present. It reports whether the post changed.
func (p *Post) AddComment(c Comment) bool {
	for _, existing := range p.Comments {
		if existing.ID == c.ID {
			return false
		}
	}
	p.Comments = append(p.Comments, c)
	return true
}
