package model

import "testing"

func TestPost_Reactions(t *testing.T) {
	var p Post

	if !p.AddReaction("u1", "❤️") {
		t.Fatal("first reaction not recorded")
	}
	if p.AddReaction("u1", "❤️") {
		t.Error("duplicate reaction recorded")
	}
	p.AddReaction("u2", "❤️")
	p.AddReaction("u2", "🎉")

	if got := p.ReactionCount("❤️"); got != 2 {
		t.Errorf("❤️ count = %d, want 2", got)
	}

	if !p.RemoveReaction("u2", "🎉") {
		t.Error("RemoveReaction returned false")
	}
	if _, ok := p.Reactions["🎉"]; ok {
		t.Error("empty emoji entry kept")
	}
	if p.RemoveReaction("u3", "❤️") {
		t.Error("RemoveReaction for absent user returned true")
	}
}

func TestPost_Comments(t *testing.T) {
	var p Post

	if !p.AddComment(Comment{ID: "c1", Text: "Congrats!"}) {
		t.Fatal("comment not added")
	}
	if p.AddComment(Comment{ID: "c1", Text: "Congrats!"}) {
		t.Error("duplicate comment added")
	}
	if len(p.Comments) != 1 {
		t.Errorf("comments = %d, want 1", len(p.Comments))
	}
}

func TestPost_Clone(t *testing.T) {
	orig := Post{ID: "p1", Kind: KindPost}
	orig.AddReaction("u1", "❤️")
	orig.AddComment(Comment{ID: "c1"})

	c := orig.Clone()
	c.AddReaction("u2", "❤️")
	c.Comments[0].Text = "edited"
	c.RemoveReaction("u1", "❤️")

	if orig.ReactionCount("❤️") != 1 || orig.Reactions["❤️"][0] != "u1" {
		t.Errorf("original reactions changed: %v", orig.Reactions)
	}
	if orig.Comments[0].Text != "" {
		t.Error("original comments changed")
	}
}
