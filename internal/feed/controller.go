package feed

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bumpfeed/internal/api"
	"github.com/rickgao/bumpfeed/internal/clock"
	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/message"
	"github.com/rickgao/bumpfeed/internal/model"
	"github.com/rickgao/bumpfeed/internal/optimistic"
	"github.com/rickgao/bumpfeed/internal/window"
)

// Errors
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrPostPending    = errors.New("post not yet confirmed by server")
	ErrEmptyText      = errors.New("post text is empty")
	ErrStopped        = errors.New("controller stopped")
	ErrAlreadyStarted = errors.New("controller already started")
)

// Backend sends mutations to the server. *api.Client implements it.
type Backend interface {
	GetRecentPosts(ctx context.Context, limit int) ([]model.Post, error)
	CreatePost(ctx context.Context, req api.CreatePostRequest) (*model.Post, error)
	UpdatePost(ctx context.Context, postID string, req api.UpdatePostRequest) (*model.Post, error)
	DeletePost(ctx context.Context, postID string) error
	AddReaction(ctx context.Context, postID, emoji string) (*model.Post, error)
	RemoveReaction(ctx context.Context, postID, emoji string) (*model.Post, error)
}

// Feed delivers pushed messages and connection status.
// *connection.Manager implements it.
type Feed interface {
	OnMessage(msgType string, fn connection.MessageHandler) func()
	OnConnection(fn connection.ConnectionHandler) func()
}

// Config configures a Controller.
type Config struct {
	UserID         string
	UserName       string
	RefreshLimit   int           // Posts loaded by Load and after a reconnect
	RequestTimeout time.Duration // Per backend call
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshLimit:   50,
		RequestTimeout: 15 * time.Second,
	}
}

// Stats counts controller activity.
type Stats struct {
	InboundApplied int64 // Pushed messages that changed the store
	InboundIgnored int64 // Pushed messages that changed nothing
	Refreshes      int64
	RefreshErrors  int64
}

// Health is a point-in-time view of the whole engine.
type Health struct {
	Connection connection.Status
	Pending    int
	Failed     int
	Items      int
	RangeStart int
	RangeEnd   int
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler sets the clock used to stamp local posts.
func WithScheduler(s clock.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// Controller applies pushed and local changes to a Store and keeps a Window
// in step with it.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	sched   clock.Scheduler
	store   *Store
	feed    Feed
	backend Backend
	tracker *optimistic.Tracker[model.Post]
	win     *window.Window[model.Post]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	lastState connection.State
	unsubs    []func()

	applied       atomic.Int64
	ignored       atomic.Int64
	refreshes     atomic.Int64
	refreshErrors atomic.Int64
}

// NewController creates a Controller. Zero config fields fall back to
// DefaultConfig values.
func NewController(
	cfg Config,
	store *Store,
	feed Feed,
	backend Backend,
	tracker *optimistic.Tracker[model.Post],
	win *window.Window[model.Post],
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = def.RefreshLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	c := &Controller{
		cfg:     cfg,
		logger:  logger,
		sched:   clock.NewReal(),
		store:   store,
		feed:    feed,
		backend: backend,
		tracker: tracker,
		win:     win,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Key identifies a post in the window. Locally created posts keep their
// client ID after the server assigns a real one, so measured heights
// survive the swap.
func Key(p model.Post) string {
	if p.ClientID != "" {
		return p.ClientID
	}
	return p.ID
}

// Start registers the message and connection handlers and begins mirroring
// the store into the window.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.unsubs = append(c.unsubs,
		c.store.OnChange(c.win.SetItems),
		c.feed.OnMessage(message.TypeReaction, c.onReaction),
		c.feed.OnMessage(message.TypeComment, c.onComment),
		c.feed.OnMessage(message.TypeMilestone, c.onMilestone),
		c.feed.OnMessage(message.TypePost, c.onPost),
		c.feed.OnConnection(c.onConnection),
	)
	c.win.SetItems(c.store.Snapshot())

	c.logger.Info("feed controller started", "user", c.cfg.UserID)
	return nil
}

// Stop removes handlers, cancels in-flight requests, and waits for them to
// finish or for ctx to end. Pending operations stay pending; close the
// tracker to roll them back.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped || !c.started {
		c.stopped = true
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	c.logger.Info("stopping feed controller")

	for _, unsub := range unsubs {
		unsub()
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("feed controller stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("feed controller stop timed out")
		return ctx.Err()
	}
}

// Store returns the backing store.
func (c *Controller) Store() *Store {
	return c.store
}

// Stats returns activity counters.
func (c *Controller) Stats() Stats {
	return Stats{
		InboundApplied: c.applied.Load(),
		InboundIgnored: c.ignored.Load(),
		Refreshes:      c.refreshes.Load(),
		RefreshErrors:  c.refreshErrors.Load(),
	}
}

// Health combines connection, tracker, and window state. status is the
// current connection status, passed in so the controller need not own the
// manager.
func (c *Controller) Health(status connection.Status) Health {
	start, end := c.win.Range()
	return Health{
		Connection: status,
		Pending:    c.tracker.PendingCount(),
		Failed:     c.tracker.FailedCount(),
		Items:      c.store.Len(),
		RangeStart: start,
		RangeEnd:   end,
	}
}

// Load fetches the most recent posts and merges them into the store.
// Local posts still waiting on the server are kept on top.
func (c *Controller) Load(ctx context.Context) error {
	c.refreshes.Add(1)

	posts, err := c.backend.GetRecentPosts(ctx, c.cfg.RefreshLimit)
	if err != nil {
		c.refreshErrors.Add(1)
		return err
	}

	c.store.Reset(mergeRefresh(c.store.Snapshot(), posts))
	c.logger.Debug("feed loaded", "posts", len(posts))
	return nil
}

// mergeRefresh combines a fresh server page with the local list. Pending
// local creates stay on top and pending local edits win over the server
// copy.
func mergeRefresh(local, server []model.Post) []model.Post {
	pendingByID := make(map[string]model.Post)
	for _, p := range local {
		if p.Pending {
			pendingByID[p.ID] = p
		}
	}

	serverIDs := make(map[string]struct{}, len(server))
	serverClientIDs := make(map[string]struct{}, len(server))
	for _, p := range server {
		serverIDs[p.ID] = struct{}{}
		if p.ClientID != "" {
			serverClientIDs[p.ClientID] = struct{}{}
		}
	}

	out := make([]model.Post, 0, len(server)+len(pendingByID))
	for _, p := range local {
		if !p.Pending {
			continue
		}
		if _, ok := serverIDs[p.ID]; ok {
			continue
		}
		if _, ok := serverClientIDs[p.ClientID]; ok && p.ClientID != "" {
			continue
		}
		out = append(out, p)
	}
	for _, p := range server {
		if local, ok := pendingByID[p.ID]; ok {
			out = append(out, local)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Controller) onConnection(st connection.Status) {
	c.mu.Lock()
	prev := c.lastState
	c.lastState = st.State
	c.mu.Unlock()

	if st.State != connection.StateConnected || prev != connection.StateReconnecting {
		return
	}

	c.goTracked(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
		if err := c.Load(ctx); err != nil {
			c.logger.Warn("feed refresh after reconnect failed", "error", err)
		}
	})
}

// goTracked runs fn on a goroutine Stop waits for. It reports false if the
// controller is not running.
func (c *Controller) goTracked(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopped {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
	return true
}

func (c *Controller) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.stopped
}

// CreatePost shows a new post immediately and publishes it in the
// background. It returns the operation ID.
func (c *Controller) CreatePost(text, mood string, week int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if !c.running() {
		return "", ErrStopped
	}

	clientID := "local-" + uuid.NewString()
	post := model.Post{
		ID:         clientID,
		ClientID:   clientID,
		Kind:       model.KindPost,
		AuthorID:   c.cfg.UserID,
		AuthorName: c.cfg.UserName,
		Text:       text,
		Mood:       mood,
		Week:       week,
		CreatedAt:  c.sched.Now().UnixMilli(),
		Pending:    true,
	}
	c.store.Prepend(post)

	opID := c.tracker.Apply(optimistic.Mutation[model.Post]{
		Key:  clientID,
		Kind: optimistic.KindAdd,
		Data: post,
		Rollback: func() {
			c.store.Remove(clientID)
		},
	})

	req := api.CreatePostRequest{ClientID: clientID, Text: text, Mood: mood, Week: week}
	c.send(opID,
		func(ctx context.Context) (*model.Post, error) {
			return c.backend.CreatePost(ctx, req)
		},
		func(srv *model.Post) {
			if srv.ClientID == "" {
				srv.ClientID = clientID
			}
			if !c.store.Replace(clientID, *srv) {
				c.store.Replace(srv.ID, *srv)
			}
		},
	)
	return opID, nil
}

// React toggles the user's emoji reaction on a post.
func (c *Controller) React(postID, emoji string) (string, error) {
	orig, err := c.confirmedPost(postID)
	if err != nil {
		return "", err
	}

	adding := !slices.Contains(orig.Reactions[emoji], c.cfg.UserID)
	toggle := func(add bool) func(p *model.Post) bool {
		return func(p *model.Post) bool {
			if add {
				return p.AddReaction(c.cfg.UserID, emoji)
			}
			return p.RemoveReaction(c.cfg.UserID, emoji)
		}
	}
	c.store.Update(postID, toggle(adding))
	updated, _ := c.store.Get(postID)

	opID := c.tracker.Apply(optimistic.Mutation[model.Post]{
		Key:      postID,
		Kind:     optimistic.KindUpdate,
		Data:     updated,
		Original: &orig,
		Rollback: func() {
			c.store.Update(postID, toggle(!adding))
		},
	})

	c.send(opID,
		func(ctx context.Context) (*model.Post, error) {
			if adding {
				return c.backend.AddReaction(ctx, postID, emoji)
			}
			return c.backend.RemoveReaction(ctx, postID, emoji)
		},
		c.settleReplace(postID),
	)
	return opID, nil
}

// EditPost changes a post's text and mood.
func (c *Controller) EditPost(postID, text, mood string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	orig, err := c.confirmedPost(postID)
	if err != nil {
		return "", err
	}

	now := c.sched.Now().UnixMilli()
	c.store.Update(postID, func(p *model.Post) bool {
		p.Text = text
		p.Mood = mood
		p.Edited = true
		p.UpdatedAt = now
		p.Pending = true
		return true
	})
	updated, _ := c.store.Get(postID)

	opID := c.tracker.Apply(optimistic.Mutation[model.Post]{
		Key:      postID,
		Kind:     optimistic.KindUpdate,
		Data:     updated,
		Original: &orig,
		Rollback: func() {
			c.store.Update(postID, func(p *model.Post) bool {
				p.Text = orig.Text
				p.Mood = orig.Mood
				p.Edited = orig.Edited
				p.UpdatedAt = orig.UpdatedAt
				p.Pending = orig.Pending
				return true
			})
		},
	})

	req := api.UpdatePostRequest{Text: text, Mood: mood}
	c.send(opID,
		func(ctx context.Context) (*model.Post, error) {
			return c.backend.UpdatePost(ctx, postID, req)
		},
		c.settleReplace(postID),
	)
	return opID, nil
}

// DeletePost hides a post immediately and deletes it in the background.
// A rollback puts it back where it was.
func (c *Controller) DeletePost(postID string) (string, error) {
	if _, err := c.confirmedPost(postID); err != nil {
		return "", err
	}

	removed, at, ok := c.store.Remove(postID)
	if !ok {
		return "", ErrPostNotFound
	}

	opID := c.tracker.Apply(optimistic.Mutation[model.Post]{
		Key:      postID,
		Kind:     optimistic.KindRemove,
		Data:     removed,
		Original: &removed,
		Rollback: func() {
			c.store.Insert(at, removed)
		},
	})

	c.send(opID,
		func(ctx context.Context) (*model.Post, error) {
			return nil, c.backend.DeletePost(ctx, postID)
		},
		nil,
	)
	return opID, nil
}

// confirmedPost returns a post the server already knows about.
func (c *Controller) confirmedPost(postID string) (model.Post, error) {
	if !c.running() {
		return model.Post{}, ErrStopped
	}
	p, ok := c.store.Get(postID)
	if !ok {
		return model.Post{}, ErrPostNotFound
	}
	if p.ClientID != "" && p.ID == p.ClientID {
		return model.Post{}, ErrPostPending
	}
	return p, nil
}

func (c *Controller) settleReplace(postID string) func(*model.Post) {
	return func(srv *model.Post) {
		c.store.Replace(postID, *srv)
	}
}

// send arms auto-rollback and runs call in the background. A failed first
// attempt hands the operation to the tracker's retry loop unless the server
// rejected it outright. settle runs with the server's copy once the
// operation commits.
func (c *Controller) send(opID string, call optimistic.RetryFunc[model.Post], settle func(*model.Post)) {
	c.tracker.SetupAutoRollback(opID)

	ok := c.goTracked(func(ctx context.Context) {
		var result *model.Post
		attempt := func(ctx context.Context) (*model.Post, error) {
			reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()

			p, err := call(reqCtx)
			if err == nil {
				result = p
			}
			return p, err
		}

		if _, err := attempt(ctx); err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
				c.tracker.Rollback(opID, err, true)
				return
			}

			c.logger.Warn("mutation failed, retrying", "op", opID, "error", err)
			if !c.tracker.Retry(ctx, opID, attempt) {
				return
			}
		} else if !c.tracker.Commit(opID, result) {
			// Already resolved, usually by auto-rollback.
			return
		}

		if settle != nil && result != nil {
			srv := result.Clone()
			srv.Pending = false
			settle(&srv)
		}
	})
	if !ok {
		c.tracker.Rollback(opID, ErrStopped, false)
	}
}
