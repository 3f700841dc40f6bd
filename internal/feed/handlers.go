package feed

import (
	"github.com/rickgao/bumpfeed/internal/message"
	"github.com/rickgao/bumpfeed/internal/model"
)

func (c *Controller) count(changed bool) {
	if changed {
		c.applied.Add(1)
	} else {
		c.ignored.Add(1)
	}
}

func (c *Controller) onReaction(in message.Inbound) {
	r, ok := in.Payload.(message.Reaction)
	if !ok {
		return
	}
	c.count(c.store.Update(r.PostID, func(p *model.Post) bool {
		if r.Removed {
			return p.RemoveReaction(r.UserID, r.Emoji)
		}
		return p.AddReaction(r.UserID, r.Emoji)
	}))
}

func (c *Controller) onComment(in message.Inbound) {
	m, ok := in.Payload.(message.Comment)
	if !ok {
		return
	}
	comment := model.Comment{
		ID:         m.CommentID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
	c.count(c.store.Update(m.PostID, func(p *model.Post) bool {
		return p.AddComment(comment)
	}))
}

func (c *Controller) onMilestone(in message.Inbound) {
	m, ok := in.Payload.(message.Milestone)
	if !ok || m.ID == "" {
		c.count(false)
		return
	}
	post := model.Post{
		ID:        m.ID,
		Kind:      model.KindMilestone,
		Title:     m.Title,
		Text:      m.Description,
		Week:      m.Week,
		CreatedAt: m.CreatedAt,
	}
	if c.store.Prepend(post) {
		c.count(true)
		return
	}
	c.count(c.store.Update(m.ID, func(p *model.Post) bool {
		if p.Title == post.Title && p.Text == post.Text && p.Week == post.Week {
			return false
		}
		p.Title, p.Text, p.Week = post.Title, post.Text, post.Week
		return true
	}))
}

// onPost adds a new post, updates an edited one, or swaps in the server
// copy of a post this device created.
func (c *Controller) onPost(in message.Inbound) {
	m, ok := in.Payload.(message.Post)
	if !ok || m.ID == "" {
		c.count(false)
		return
	}
	post := model.Post{
		ID:         m.ID,
		ClientID:   m.ClientID,
		Kind:       model.KindPost,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Text:       m.Text,
		Mood:       m.Mood,
		Week:       m.Week,
		CreatedAt:  m.CreatedAt,
		Edited:     m.Edited,
	}

	if local, ok := c.store.FindByClientID(m.ClientID); ok && local.ID != m.ID {
		post.Reactions = local.Reactions
		post.Comments = local.Comments
		c.count(c.store.Replace(local.ID, post))
		return
	}

	if existing, ok := c.store.Get(m.ID); ok {
		if existing.Pending {
			// A local edit is in flight; its own response settles it.
			c.count(false)
			return
		}
		post.Reactions = existing.Reactions
		post.Comments = existing.Comments
		post.UpdatedAt = existing.UpdatedAt
		c.count(c.store.Replace(m.ID, post))
		return
	}

	c.count(c.store.Prepend(post))
}
