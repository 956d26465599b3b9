package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/portfolio/client"
	"github.com/folio/portfolio/models"
)

type listCall struct {
	afterID uint64
	limit   int
}

// fakeAPI serves scripted responses; with no script, ListSince returns
// nothing and Submit echoes the input with the next id.
type fakeAPI struct {
	mu          sync.Mutex
	lists       []listCall
	submits     []models.CommentInput
	listResults []func() ([]models.CommentDTO, error)
	submitFn    func(ctx context.Context, in models.CommentInput) (*client.Submitted, error)
	nextID      uint64
}

func (f *fakeAPI) ListSince(ctx context.Context, afterID uint64, limit int) ([]models.CommentDTO, error) {
	f.mu.Lock()
	f.lists = append(f.lists, listCall{afterID, limit})
	var next func() ([]models.CommentDTO, error)
	if len(f.listResults) > 0 {
		next, f.listResults = f.listResults[0], f.listResults[1:]
	}
	f.mu.Unlock()
	if next == nil {
		return []models.CommentDTO{}, nil
	}
	return next()
}

func (f *fakeAPI) Submit(ctx context.Context, in models.CommentInput) (*client.Submitted, error) {
	f.mu.Lock()
	f.submits = append(f.submits, in)
	fn := f.submitFn
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &client.Submitted{
		Message: "Comment posted, thank you!",
		Comment: models.CommentDTO{ID: id, Name: in.Name, Message: in.Message, CreatedAt: "now"},
	}, nil
}

func (f *fakeAPI) queue(results ...func() ([]models.CommentDTO, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listResults = append(f.listResults, results...)
}

func (f *fakeAPI) listCalls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.lists...)
}

func (f *fakeAPI) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func ok(ids ...uint64) func() ([]models.CommentDTO, error) {
	return func() ([]models.CommentDTO, error) {
		out := make([]models.CommentDTO, 0, len(ids))
		for _, id := range ids {
			out = append(out, models.CommentDTO{ID: id, Name: "n", Message: fmt.Sprintf("m%d", id), CreatedAt: "now"})
		}
		return out, nil
	}
}

func transportFailure() ([]models.CommentDTO, error) {
	return nil, fmt.Errorf("%w: connection refused", client.ErrTransport)
}

// recordingView keeps the rendered ids and logs every other call.
type recordingView struct {
	mu     sync.Mutex
	ids    []uint64
	events []string
}

func (v *recordingView) Insert(pos int, c models.CommentDTO) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids = append(v.ids, 0)
	copy(v.ids[pos+1:], v.ids[pos:])
	v.ids[pos] = c.ID
}

func (v *recordingView) record(e string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func (v *recordingView) ShowEmpty() { v.record("empty") }
func (v *recordingView) HideEmpty() { v.record("hide-empty") }
func (v *recordingView) Notify(kind NoticeKind, msg string) { v.record(string(kind) + ": " + msg) }
func (v *recordingView) SetBusy(busy bool) { v.record(fmt.Sprintf("busy=%v", busy)) }
func (v *recordingView) ClearForm() { v.record("clear") }
func (v *recordingView) SetOffline(off bool) { v.record(fmt.Sprintf("offline=%v", off)) }

func (v *recordingView) rendered() []uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]uint64(nil), v.ids...)
}

func (v *recordingView) log() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.events...)
}

func newTestController(opts ...Option) (*Controller, *fakeAPI, *recordingView) {
	api := &fakeAPI{}
	view := &recordingView{}
	return NewController(api, view, opts...), api, view
}

func TestPollEmptyShowsEmptyStateOnce(t *testing.T) {
	c, api, view := newTestController()
	ctx := context.Background()

	require.NoError(t, c.Poll(ctx))
	require.NoError(t, c.Poll(ctx))

	assert.Equal(t, []string{"empty"}, view.log())
	assert.Equal(t, []listCall{{0, DefaultLimit}, {0, DefaultLimit}}, api.listCalls())
	assert.Zero(t, c.LatestID())
}

func TestPollRendersNewestFirstAndAdvances(t *testing.T) {
	c, api, view := newTestController(WithLimit(5))
	ctx := context.Background()
	api.queue(ok(1, 2, 3), ok(3, 4), ok())

	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, []uint64{3, 2, 1}, view.rendered())
	assert.EqualValues(t, 3, c.LatestID())

	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, []uint64{4, 3, 2, 1}, view.rendered(), "id 3 is not rendered twice")
	assert.EqualValues(t, 4, c.LatestID())

	require.NoError(t, c.Poll(ctx))
	assert.NotContains(t, view.log(), "empty", "empty state only before anything rendered")

	assert.Equal(t, []listCall{{0, 5}, {3, 5}, {4, 5}}, api.listCalls())
}

func TestRenderIsIdempotentAndOrderInsensitive(t *testing.T) {
	c, _, view := newTestController()

	dto := func(id uint64) models.CommentDTO { return models.CommentDTO{ID: id} }
	assert.Equal(t, 1, c.Render([]models.CommentDTO{dto(5)}))
	assert.Equal(t, 2, c.Render([]models.CommentDTO{dto(2), dto(7)}))
	assert.Equal(t, 0, c.Render([]models.CommentDTO{dto(5), dto(7)}))
	assert.Equal(t, 1, c.Render([]models.CommentDTO{dto(6)}))

	assert.Equal(t, []uint64{7, 6, 5, 2}, view.rendered())
	assert.EqualValues(t, 7, c.LatestID())
}

func TestEmptyStateHiddenOnFirstRender(t *testing.T) {
	c, api, view := newTestController()
	ctx := context.Background()
	api.queue(ok(), ok(1))

	require.NoError(t, c.Poll(ctx))
	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, []string{"empty", "hide-empty"}, view.log())
}

func TestPollFailureIsSilent(t *testing.T) {
	c, api, view := newTestController()
	api.queue(transportFailure)

	err := c.Poll(context.Background())
	assert.ErrorIs(t, err, client.ErrTransport)
	assert.Empty(t, view.log())
	assert.Empty(t, view.rendered())
	assert.Zero(t, c.LatestID())
}

func TestOfflineIndicator(t *testing.T) {
	c, api, view := newTestController(WithOfflineThreshold(3))
	ctx := context.Background()
	api.queue(transportFailure, transportFailure, transportFailure, ok(1))

	_ = c.Poll(ctx)
	_ = c.Poll(ctx)
	assert.Empty(t, view.log(), "a couple of failures do not change the view")
	assert.False(t, c.Offline())

	_ = c.Poll(ctx)
	assert.Equal(t, []string{"offline=true"}, view.log())
	assert.True(t, c.Offline())

	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, []string{"offline=true", "offline=false"}, view.log())
	assert.False(t, c.Offline())
	assert.Equal(t, []uint64{1}, view.rendered())
}

func TestEveryPollReachesServerWhileOffline(t *testing.T) {
	c, api, view := newTestController()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		api.queue(transportFailure)
	}
	api.queue(ok(1))

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, c.Poll(ctx), client.ErrTransport, "poll %d", i)
	}
	assert.Len(t, api.listCalls(), 10)
	assert.True(t, c.Offline())

	require.NoError(t, c.Poll(ctx))
	assert.False(t, c.Offline())
	assert.Equal(t, []string{"offline=true", "offline=false"}, view.log())
}

func TestPollLoopKeepsIntervalWhileOffline(t *testing.T) {
	const interval = 10 * time.Millisecond
	c, api, _ := newTestController(WithInterval(interval))
	for i := 0; i < 1000; i++ {
		api.queue(transportFailure)
	}

	c.Start(context.Background())
	defer c.Stop()
	require.Eventually(t, c.Offline, time.Second, time.Millisecond)

	before := len(api.listCalls())
	time.Sleep(20 * interval)
	polled := len(api.listCalls()) - before
	assert.GreaterOrEqual(t, polled, 14, "one request per tick, none skipped")
}

func TestServerErrorsDoNotTripOffline(t *testing.T) {
	c, api, view := newTestController(WithOfflineThreshold(1))
	api.queue(func() ([]models.CommentDTO, error) {
		return nil, &client.APIError{Status: 500, Message: "failed to load comments"}
	})

	assert.Error(t, c.Poll(context.Background()))
	assert.Empty(t, view.log())
	assert.False(t, c.Offline())
}

func TestSubmitLocalValidation(t *testing.T) {
	cases := []struct {
		name string
		form Form
		want string
	}{
		{"empty name", Form{Message: "hi"}, "error: name is required"},
		{"blank message", Form{Name: "Ada", Message: "   "}, "error: message is required"},
		{"too long", Form{Name: "Ada", Message: strings.Repeat("x", 501)}, "error: message is too long (max 500 characters)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, api, view := newTestController()
			err := c.Submit(context.Background(), tc.form)

			var verr *models.ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Zero(t, api.submitCount(), "no network call")
			assert.Equal(t, []string{tc.want}, view.log())
		})
	}
}

func TestSubmitAtLimitIsSent(t *testing.T) {
	c, api, _ := newTestController()
	require.NoError(t, c.Submit(context.Background(), Form{Name: "Ada", Message: strings.Repeat("é", 500)}))
	assert.Equal(t, 1, api.submitCount())
}

func TestSubmitSuccess(t *testing.T) {
	c, api, view := newTestController()
	api.nextID = 41

	require.NoError(t, c.Submit(context.Background(), Form{Name: " Ada ", Message: "Hello "}))

	assert.Equal(t, []string{"busy=true", "success: Comment posted, thank you!", "clear", "busy=false"}, view.log())
	assert.Equal(t, []uint64{42}, view.rendered())
	assert.EqualValues(t, 42, c.LatestID())
	assert.Equal(t, models.CommentInput{Name: "Ada", Message: "Hello"}, api.submits[0])
}

func TestSubmitServerRejection(t *testing.T) {
	c, api, view := newTestController()
	api.submitFn = func(context.Context, models.CommentInput) (*client.Submitted, error) {
		return nil, &client.APIError{Status: 400, Message: "email is not a valid email address"}
	}

	err := c.Submit(context.Background(), Form{Name: "Ada", Message: "hi"})
	assert.Error(t, err)
	assert.Equal(t, []string{"busy=true", "error: email is not a valid email address", "busy=false"}, view.log())
	assert.Empty(t, view.rendered())
}

func TestSubmitTransportFailure(t *testing.T) {
	c, api, view := newTestController()
	api.submitFn = func(context.Context, models.CommentInput) (*client.Submitted, error) {
		return nil, fmt.Errorf("%w: dial tcp: connection refused", client.ErrTransport)
	}

	err := c.Submit(context.Background(), Form{Name: "Ada", Message: "hi"})
	assert.ErrorIs(t, err, client.ErrTransport)
	assert.Equal(t, []string{"busy=true", "error: " + ConnectivityMessage, "busy=false"}, view.log())
}

func TestSubmitInFlightGuard(t *testing.T) {
	c, api, view := newTestController()
	entered := make(chan struct{})
	release := make(chan struct{})
	api.submitFn = func(_ context.Context, in models.CommentInput) (*client.Submitted, error) {
		close(entered)
		<-release
		return &client.Submitted{Message: "ok", Comment: models.CommentDTO{ID: 1, Name: in.Name, Message: in.Message}}, nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Submit(context.Background(), Form{Name: "Ada", Message: "first"}) }()
	<-entered

	err := c.Submit(context.Background(), Form{Name: "Ada", Message: "second"})
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.Equal(t, []string{"busy=true"}, view.log(), "guarded submit has no side effects")

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, api.submitCount())

	// idle again
	api.submitFn = nil
	assert.NoError(t, c.Submit(context.Background(), Form{Name: "Ada", Message: "third"}))
}

func TestSubmitThenPollKeepsCommentsBetween(t *testing.T) {
	c, api, view := newTestController()
	ctx := context.Background()
	api.queue(ok(1))
	require.NoError(t, c.Poll(ctx))

	// someone else posted id 2 before our submit got id 3
	api.nextID = 2
	require.NoError(t, c.Submit(ctx, Form{Name: "Ada", Message: "mine"}))
	assert.EqualValues(t, 3, c.LatestID())

	api.queue(ok(2, 3))
	require.NoError(t, c.Poll(ctx))

	calls := api.listCalls()
	assert.EqualValues(t, 1, calls[len(calls)-1].afterID)
	assert.Equal(t, []uint64{3, 2, 1}, view.rendered())
}

func TestStartPollsImmediatelyAndStopHalts(t *testing.T) {
	c, api, _ := newTestController(WithInterval(10 * time.Millisecond))
	ctx := context.Background()

	assert.False(t, c.Running())
	c.Start(ctx)
	assert.True(t, c.Running())
	assert.Eventually(t, func() bool { return len(api.listCalls()) >= 3 }, time.Second, 5*time.Millisecond)

	c.Stop()
	assert.False(t, c.Running())
	n := len(api.listCalls())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, len(api.listCalls()), "no polls after stop")

	c.Stop()
}

func TestStartTwiceKeepsOneLoop(t *testing.T) {
	c, api, _ := newTestController(WithInterval(time.Hour))
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx)
	c.Start(ctx)
	assert.Eventually(t, func() bool { return len(api.listCalls()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, api.listCalls(), 3, "one immediate poll per start, no leftover loops")
	c.Stop()
}

func TestSetVisible(t *testing.T) {
	c, api, _ := newTestController(WithInterval(time.Hour))
	ctx := context.Background()

	c.SetVisible(ctx, true)
	assert.Eventually(t, func() bool { return len(api.listCalls()) == 1 }, time.Second, 5*time.Millisecond)

	c.SetVisible(ctx, false)
	assert.False(t, c.Running())

	c.SetVisible(ctx, true)
	assert.Eventually(t, func() bool { return len(api.listCalls()) == 2 }, time.Second, 5*time.Millisecond)
	c.Stop()
}

func TestStopDropsInFlightPoll(t *testing.T) {
	c, api, view := newTestController(WithInterval(time.Hour))
	started := make(chan struct{})
	api.queue(func() ([]models.CommentDTO, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		return ok(1)()
	})

	c.Start(context.Background())
	<-started
	c.Stop()
	assert.Empty(t, view.rendered())
}
