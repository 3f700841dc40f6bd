package optimistic

import (
	"strings"
	"time"

	"github.com/rickgao/bumpfeed/internal/notify"
)

// isNetworkError reports whether err reads like a connectivity problem.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"network", "fetch", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// rollbackNotice picks the user-facing message for a failed mutation.
func rollbackNotice(kind Kind, err error) notify.Notification {
	network := isNetworkError(err)

	var title, desc string
	switch kind {
	case KindAdd:
		if network {
			title = "Your update is waiting for a connection"
			desc = "We couldn't reach the family feed. Check your connection and try sharing again."
		} else {
			title = "We couldn't share your update"
			desc = "Nothing was lost. Please try again in a moment."
		}
	case KindUpdate:
		if network {
			title = "Your changes weren't saved yet"
			desc = "The connection dropped before we could save. Your original post is still there."
		} else {
			title = "We couldn't save your changes"
			desc = "Your post is back the way it was. Please try again."
		}
	case KindRemove:
		if network {
			title = "We couldn't remove that right now"
			desc = "It looks like you're offline. It's still on the feed; try again when you're connected."
		} else {
			title = "We couldn't remove that"
			desc = "It's back on the feed. Please try again."
		}
	default:
		title = "Something didn't go through"
		desc = "Please try again."
	}

	return notify.Notification{
		Title:       title,
		Description: desc,
		Type:        notify.TypeError,
		Duration:    5 * time.Second,
	}
}
