package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/portfolio/models"
	"github.com/folio/portfolio/store/storetest"
)

func newStore(t *testing.T) *CommentStore {
	t.Helper()
	return NewCommentStore(storetest.NewDB(t))
}

func mustInsert(t *testing.T, s *CommentStore, name, message string) *models.Comment {
	t.Helper()
	c, err := s.Insert(context.Background(), models.CommentInput{Name: name, Message: message})
	require.NoError(t, err)
	return c
}

func TestInsertAssignsIncreasingIDs(t *testing.T) {
	s := newStore(t)

	var last uint64
	for i := 0; i < 5; i++ {
		c := mustInsert(t, s, "Ada", fmt.Sprintf("message %d", i))
		assert.Greater(t, c.ID, last)
		assert.False(t, c.CreatedAt.IsZero())
		last = c.ID
	}
}

func TestInsertReturnsStoredRecord(t *testing.T) {
	s := newStore(t)

	c, err := s.Insert(context.Background(), models.CommentInput{
		Name:    "  Ada ",
		Email:   "ada@example.com",
		Message: " <b>Hello</b> ",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.ID)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "<b>Hello</b>", c.Message)
}

func TestInsertKeepsTextVerbatim(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	messages := []string{
		"if a<b and c>d then swap",
		"Go generics: func Map<T>(xs []T)",
		"<T>",
		"<i></i>",
		"Tom & Jerry &amp; friends",
	}
	for _, msg := range messages {
		c, err := s.Insert(ctx, models.CommentInput{Name: "<Ada>", Message: msg})
		require.NoError(t, err, msg)
		assert.Equal(t, msg, c.Message)
		assert.Equal(t, "<Ada>", c.Name)
	}

	stored, err := s.ListSince(ctx, 0, 20)
	require.NoError(t, err)
	require.Len(t, stored, len(messages))
	for i, c := range stored {
		assert.Equal(t, messages[i], c.Message)
	}
}

func TestInsertValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    models.CommentInput
		field string
	}{
		{"empty name", models.CommentInput{Message: "hi"}, "name"},
		{"empty message", models.CommentInput{Name: "Ada"}, "message"},
		{"whitespace only", models.CommentInput{Name: "Ada", Message: " \n\t "}, "message"},
		{"too long", models.CommentInput{Name: "Ada", Message: strings.Repeat("x", 501)}, "message"},
		{"bad email", models.CommentInput{Name: "Ada", Email: "nope", Message: "hi"}, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := s.Insert(ctx, tc.in)
			assert.Nil(t, c)
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Count, "rejected input must not be written")
}

func TestInsertAtLimit(t *testing.T) {
	s := newStore(t)
	c := mustInsert(t, s, "Ada", strings.Repeat("x", models.MaxMessageLength))
	assert.Len(t, c.Message, models.MaxMessageLength)
}

func TestListSince(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	empty, err := s.ListSince(ctx, 0, 20)
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	for i := 1; i <= 30; i++ {
		mustInsert(t, s, "Ada", fmt.Sprintf("m%d", i))
	}

	page, err := s.ListSince(ctx, 0, 20)
	require.NoError(t, err)
	require.Len(t, page, 20)
	for i, c := range page {
		assert.EqualValues(t, i+1, c.ID, "ascending by id")
	}

	rest, err := s.ListSince(ctx, 20, 20)
	require.NoError(t, err)
	require.Len(t, rest, 10)
	for _, c := range rest {
		assert.Greater(t, c.ID, uint64(20))
	}

	none, err := s.ListSince(ctx, 30, 20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListSinceLimits(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < MaxListLimit+5; i++ {
		mustInsert(t, s, "Ada", "m")
	}

	def, err := s.ListSince(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, def, DefaultListLimit)

	capped, err := s.ListSince(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, capped, MaxListLimit)

	one, err := s.ListSince(ctx, 3, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.EqualValues(t, 4, one[0].ID)
}

func TestConcurrentInsertsGetDistinctIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const writers = 8
	ids := make(chan uint64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.Insert(ctx, models.CommentInput{Name: fmt.Sprintf("client-%d", i), Message: "hi"})
			if assert.NoError(t, err) {
				ids <- c.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)

	all, err := s.ListSince(ctx, 0, 20)
	require.NoError(t, err)
	require.Len(t, all, writers)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	mustInsert(t, s, "Ada", "one")
	last := mustInsert(t, s, "Grace", "two")

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Count)
	assert.Equal(t, last.ID, st.LatestID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ClampLimit(-1))
	assert.Equal(t, DefaultListLimit, ClampLimit(0))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxListLimit, ClampLimit(MaxListLimit+1))
}
