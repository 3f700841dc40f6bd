package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rickgao/bumpfeed/internal/model"
	"github.com/rickgao/bumpfeed/internal/window"
)

const commandHelp = `commands:
  post <text>               share a post
  react <post-id> <emoji>   toggle a reaction
  edit <post-id> <text>     change a post's text
  delete <post-id>          delete a post
  scroll <px>               move the viewport
  top                       scroll to the newest post
  list                      show the visible posts
  refresh                   reload recent posts`

type commander interface {
	CreatePost(text, mood string, week int) (string, error)
	React(postID, emoji string) (string, error)
	EditPost(postID, text, mood string) (string, error)
	DeletePost(postID string) (string, error)
	Load(ctx context.Context) error
}

type viewport interface {
	OnScroll(scrollTop float64)
	ScrollToItem(index int, behavior window.Behavior) bool
	Visible() []window.Item[model.Post]
}

// runCommands reads one command per line from in until EOF or ctx ends.
func runCommands(ctx context.Context, in io.Reader, out io.Writer, ctrl commander, view viewport, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(out, handleCommand(ctx, line, ctrl, view))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("command input closed", "error", err)
	}
}

// handleCommand runs one command line and returns the reply.
func handleCommand(ctx context.Context, line string, ctrl commander, view viewport) string {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "post":
		if rest == "" {
			return "usage: post <text>"
		}
		return opReply(ctrl.CreatePost(rest, "", 0))

	case "react":
		postID, emoji, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(emoji) == "" {
			return "usage: react <post-id> <emoji>"
		}
		return opReply(ctrl.React(postID, strings.TrimSpace(emoji)))

	case "edit":
		postID, text, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(text) == "" {
			return "usage: edit <post-id> <text>"
		}
		return opReply(ctrl.EditPost(postID, strings.TrimSpace(text), ""))

	case "delete":
		if rest == "" {
			return "usage: delete <post-id>"
		}
		return opReply(ctrl.DeletePost(rest))

	case "scroll":
		px, err := strconv.ParseFloat(rest, 64)
		if err != nil || px < 0 {
			return "usage: scroll <px>"
		}
		view.OnScroll(px)
		return "ok"

	case "top":
		if !view.ScrollToItem(0, window.BehaviorSmooth) {
			return "feed is empty"
		}
		return "ok"

	case "list":
		items := view.Visible()
		if len(items) == 0 {
			return "no posts"
		}
		var b strings.Builder
		for i, it := range items {
			if i > 0 {
				b.WriteByte('\n')
			}
			p := it.Data
			flag := ""
			if p.Pending {
				flag = " (sending)"
			}
			fmt.Fprintf(&b, "%3d %s %s: %s [%d reactions]%s", it.Index, p.ID, p.AuthorName, p.Text, totalReactions(p), flag)
		}
		return b.String()

	case "refresh":
		if err := ctrl.Load(ctx); err != nil {
			return "error: " + err.Error()
		}
		return "ok"

	case "help":
		return commandHelp

	default:
		return fmt.Sprintf("unknown command %q; try help", cmd)
	}
}

func opReply(opID string, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok " + opID
}

func totalReactions(p model.Post) int {
	n := 0
	for _, users := range p.Reactions {
		n += len(users)
	}
	return n
}
