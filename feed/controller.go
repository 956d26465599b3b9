// Package feed keeps a rendered comment list in sync with the comment API:
// it polls for new comments, submits new ones and deduplicates by id.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/folio/portfolio/client"
	"github.com/folio/portfolio/models"
)

const (
	// DefaultInterval is the time between two polls.
	DefaultInterval = 5 * time.Second
	// DefaultLimit is the page size requested per poll.
	DefaultLimit = 20
	// DefaultOfflineThreshold is the number of consecutive failed polls
	// after which the view is marked offline.
	DefaultOfflineThreshold = 3

	// ConnectivityMessage is shown when a submit cannot reach the server.
	ConnectivityMessage = "Could not send your comment. Check your internet connection and try again."

	defaultSuccessMessage = "Comment posted, thank you!"
)

// ErrSubmitInFlight is returned when Submit is called while another submit
// has not finished yet.
var ErrSubmitInFlight = errors.New("a comment is already being submitted")

// API is the part of the comment API the controller needs; *client.Client
// implements it.
type API interface {
	ListSince(ctx context.Context, afterID uint64, limit int) ([]models.CommentDTO, error)
	Submit(ctx context.Context, in models.CommentInput) (*client.Submitted, error)
}

// Form holds the submit form fields as typed by the user.
type Form struct {
	Name    string
	Email   string
	Message string
}

// Input converts the form into a normalized submit payload.
func (f Form) Input() models.CommentInput {
	in := models.CommentInput{Name: f.Name, Email: f.Email, Message: f.Message}
	in.Normalize()
	return in
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLimit sets the page size requested per poll.
func WithLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger sets the logger used for background poll failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOfflineThreshold sets how many consecutive failed polls mark the feed
// offline.
func WithOfflineThreshold(threshold uint32) Option {
	return func(c *Controller) {
		if threshold > 0 {
			c.offlineThreshold = threshold
		}
	}
}

// Controller owns the client side state of one comment feed.
type Controller struct {
	api              API
	view             View
	interval         time.Duration
	limit            int
	logger           *zap.Logger
	offlineThreshold uint32
	breaker          *gobreaker.CircuitBreaker
	breakerOpen      atomic.Bool

	mu         sync.Mutex
	latestID   uint64              // highest id rendered
	cursor     uint64              // highest id delivered by a poll
	known      map[uint64]struct{} // rendered ids
	order      []uint64            // rendered ids, newest first
	emptyShown bool
	submitting bool
	offline    bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a stopped controller rendering into view.
func NewController(api API, view View, opts ...Option) *Controller {
	c := &Controller{
		api:              api,
		view:             view,
		interval:         DefaultInterval,
		limit:            DefaultLimit,
		logger:           zap.NewNop(),
		offlineThreshold: DefaultOfflineThreshold,
		known:            make(map[uint64]struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	// The breaker only tracks connectivity and must never skip a poll: it is
	// half-open again by the next call, and a failure there reopens it.
	threshold := c.offlineThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "comment-poll",
		MaxRequests: 1,
		Timeout:     time.Nanosecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures count against connectivity.
			return err == nil || !errors.Is(err, client.ErrTransport)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.logger.Debug("poll breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			switch to {
			case gobreaker.StateOpen:
				c.breakerOpen.Store(true)
			case gobreaker.StateClosed:
				c.breakerOpen.Store(false)
			}
		},
	})
	return c
}

// LatestID returns the highest comment id rendered so far.
func (c *Controller) LatestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestID
}

// Offline reports whether the view currently shows the offline indicator.
func (c *Controller) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offline
}

// Poll fetches comments newer than the last poll and renders the new ones.
// Failures are logged and returned but never shown as an error; repeated
// transport failures only toggle the offline indicator.
func (c *Controller) Poll(ctx context.Context) error {
	c.mu.Lock()
	after := c.cursor
	c.mu.Unlock()

	fetch := func() (interface{}, error) {
		return c.api.ListSince(ctx, after, c.limit)
	}
	res, err := c.breaker.Execute(fetch)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// a concurrent poll holds the half-open slot; go out anyway
		res, err = fetch()
	}
	if ctx.Err() != nil {
		// stopped while the request was in flight
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncOfflineLocked()

	if err != nil {
		c.logger.Debug("poll comments failed", zap.Uint64("after_id", after), zap.Error(err))
		return err
	}

	comments, _ := res.([]models.CommentDTO)
	if len(comments) == 0 {
		if c.latestID == 0 && !c.emptyShown {
			c.view.ShowEmpty()
			c.emptyShown = true
		}
		return nil
	}
	for _, cm := range comments {
		if cm.ID > c.cursor {
			c.cursor = cm.ID
		}
	}
	c.renderLocked(comments)
	return nil
}

// Render shows the comments that are not rendered yet, each at its id
// ordered position, and returns how many were added.
func (c *Controller) Render(comments []models.CommentDTO) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked(comments)
}

func (c *Controller) renderLocked(comments []models.CommentDTO) int {
	added := 0
	for _, cm := range comments {
		if _, ok := c.known[cm.ID]; ok {
			continue
		}
		c.known[cm.ID] = struct{}{}

		pos := len(c.order)
		for i, id := range c.order {
			if id < cm.ID {
				pos = i
				break
			}
		}
		c.order = append(c.order, 0)
		copy(c.order[pos+1:], c.order[pos:])
		c.order[pos] = cm.ID

		if c.emptyShown {
			c.view.HideEmpty()
			c.emptyShown = false
		}
		c.view.Insert(pos, cm)
		if cm.ID > c.latestID {
			c.latestID = cm.ID
		}
		added++
	}
	return added
}

func (c *Controller) syncOfflineLocked() {
	open := c.breakerOpen.Load()
	if open == c.offline {
		return
	}
	c.offline = open
	c.view.SetOffline(open)
	if open {
		c.logger.Warn("comment server unreachable, marking feed offline")
	} else {
		c.logger.Info("comment server reachable again")
	}
}

// Submit validates f and posts it. Validation failures and server
// rejections are shown through the view and returned; a transport failure
// shows ConnectivityMessage. Calling Submit while a submit is in flight
// returns ErrSubmitInFlight and has no other effect.
func (c *Controller) Submit(ctx context.Context, f Form) error {
	in := f.Input()

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	if err := in.Validate(); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.view.Notify(NoticeError, verr.Message)
		}
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	c.view.SetBusy(true)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.view.SetBusy(false)
		c.mu.Unlock()
	}()

	res, err := c.api.Submit(ctx, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			c.view.Notify(NoticeError, apiErr.Message)
		} else {
			c.logger.Warn("submit comment failed", zap.Error(err))
			c.view.Notify(NoticeError, ConnectivityMessage)
		}
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = defaultSuccessMessage
	}
	c.view.Notify(NoticeSuccess, msg)
	c.renderLocked([]models.CommentDTO{res.Comment})
	c.view.ClearForm()
	return nil
}

// Start begins polling: one poll right away, then one per interval, until
// Stop is called or ctx ends. A running loop is stopped first, so at most
// one loop exists.
func (c *Controller) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go c.loop(loopCtx, done)
}

// Stop ends polling and waits for the loop to exit. An in-flight poll is
// aborted and its result dropped.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

// Running reports whether the poll loop is active.
func (c *Controller) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// SetVisible stops polling while the feed is hidden and resumes it, with an
// immediate poll, when it becomes visible again.
func (c *Controller) SetVisible(ctx context.Context, visible bool) {
	if visible {
		c.Start(ctx)
		return
	}
	c.Stop()
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	_ = c.Poll(ctx)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = c.Poll(ctx)
		}
	}
}
