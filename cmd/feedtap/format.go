package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rickgao/bumpfeed/internal/message"
)

// tappedTypes are the application message types feedtap subscribes to.
// Reserved types never reach OnMessage handlers.
var tappedTypes = []string{
	message.TypeReaction,
	message.TypeComment,
	message.TypeMilestone,
	message.TypePost,
}

// formatMessage renders one inbound message as a console line.
func formatMessage(in message.Inbound, verbose bool) string {
	lag := ""
	if in.Timestamp > 0 && !in.ReceivedAt.IsZero() {
		lag = fmt.Sprintf(" lag=%s", in.ReceivedAt.Sub(time.UnixMilli(in.Timestamp)).Round(time.Millisecond))
	}

	if verbose {
		data, _ := json.MarshalIndent(in.Payload, "", "  ")
		return fmt.Sprintf("[%s]%s %s", in.Type, lag, data)
	}

	switch p := in.Payload.(type) {
	case message.Reaction:
		action := "added"
		if p.Removed {
			action = "removed"
		}
		return fmt.Sprintf("[REACTION]%s post=%s user=%s emoji=%s %s", lag, p.PostID, p.UserID, p.Emoji, action)
	case message.Comment:
		return fmt.Sprintf("[COMMENT]%s post=%s id=%s author=%s text=%q", lag, p.PostID, p.CommentID, p.AuthorName, p.Text)
	case message.Milestone:
		return fmt.Sprintf("[MILESTONE]%s id=%s week=%d title=%q", lag, p.ID, p.Week, p.Title)
	case message.Post:
		return fmt.Sprintf("[POST]%s id=%s client_id=%s author=%s edited=%t text=%q", lag, p.ID, p.ClientID, p.AuthorName, p.Edited, p.Text)
	case message.Heartbeat:
		return fmt.Sprintf("[HEARTBEAT]%s server_time=%d", lag, p.ServerTime)
	case message.Unknown:
		return fmt.Sprintf("[%s]%s %s", p.Type, lag, p.Raw)
	default:
		return fmt.Sprintf("[%s]%s", in.Type, lag)
	}
}
