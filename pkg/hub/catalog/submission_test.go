package catalog

import (
	"context"
	"testing"

	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type transition struct{ from, to State }

func newTestSubmitter(t *testing.T) (*Submitter, *[]transition, *memoryCache) {
	t.Helper()
	db := setupTestDB(t)
	createTestUser(t, db, "u1@example.com")
	cache := newMemoryCache()

	s := NewSubmitter(NewWriter(db, cache, nil), zaptest.NewLogger(t))
	var seen []transition
	s.OnTransition = func(from, to State) { seen = append(seen, transition{from, to}) }
	return s, &seen, cache
}

func sqlSubmission() Submission {
	return Submission{
		Title:       "SQL Basics",
		Description: "intro",
		URL:         "https://x",
		Type:        "article",
		Tags:        []string{"sql", "beginner"},
	}
}

func TestSubmitCreatesResource(t *testing.T) {
	s, seen, _ := newTestSubmitter(t)

	created, err := s.Submit(context.Background(), sqlSubmission(), 1)
	require.NoError(t, err)

	assert.Equal(t, "sql", created.Category)
	assert.Equal(t, []string{"sql", "beginner"}, created.Tags)
	assert.False(t, created.Featured)
	assert.Equal(t, uint(1), created.AuthorID)

	assert.Equal(t, []transition{
		{StateIdle, StateValidating},
		{StateValidating, StateWriting},
		{StateWriting, StateSuccess},
		{StateSuccess, StateIdle},
	}, *seen)
}

func TestSubmitThenClearTags(t *testing.T) {
	s, _, _ := newTestSubmitter(t)
	ctx := context.Background()

	created, err := s.Submit(ctx, sqlSubmission(), 1)
	require.NoError(t, err)

	before := Filter([]FlattenedResource{*created}, FilterState{Tags: []string{"beginner"}})
	assert.Len(t, before, 1)

	sub := sqlSubmission()
	updated, err := s.writer.Update(ctx, created.ID, Fields{
		Title: sub.Title, Description: sub.Description, URL: sub.URL, Type: sub.Type,
	}, []string{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, updated.Tags)
	assert.Equal(t, DefaultCategory, updated.Category)

	after := Filter([]FlattenedResource{*updated}, FilterState{Tags: []string{"beginner"}})
	assert.Empty(t, after)
}

func TestSubmitAnonymous(t *testing.T) {
	s, seen, cache := newTestSubmitter(t)

	created, err := s.Submit(context.Background(), sqlSubmission(), 0)
	assert.Nil(t, created)
	assert.ErrorIs(t, err, ErrAuthRequired)

	db := s.writer.db
	assert.Zero(t, countRows(t, db, &models.Resource{}))
	assert.Zero(t, countRows(t, db, &models.ResourceType{}))
	assert.Zero(t, countRows(t, db, &models.Category{}))
	assert.Zero(t, cache.dels)

	assert.Equal(t, []transition{
		{StateIdle, StateValidating},
		{StateValidating, StateUnauthenticated},
		{StateUnauthenticated, StateIdle},
	}, *seen)
}

func TestSubmitAnonymousBeforeValidation(t *testing.T) {
	s, _, _ := newTestSubmitter(t)

	_, err := s.Submit(context.Background(), Submission{}, 0)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestSubmitInvalid(t *testing.T) {
	s, seen, _ := newTestSubmitter(t)

	sub := sqlSubmission()
	sub.URL = ""
	_, err := s.Submit(context.Background(), sub, 1)
	assert.True(t, IsValidation(err))
	assert.Contains(t, *seen, transition{StateValidating, StateInvalid})

	*seen = nil
	sub = sqlSubmission()
	sub.Tags = []string{"sql", ""}
	_, err = s.Submit(context.Background(), sub, 1)
	assert.True(t, IsValidation(err))
	assert.Contains(t, *seen, transition{StateValidating, StateInvalid})

	assert.Zero(t, countRows(t, s.writer.db, &models.Resource{}))
}

func TestSubmitStoreFailure(t *testing.T) {
	s, seen, _ := newTestSubmitter(t)
	require.NoError(t, s.writer.db.Migrator().DropTable(&models.ResourceCategory{}))

	_, err := s.Submit(context.Background(), sqlSubmission(), 1)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, PhaseJoinInsert, we.Phase)
	assert.Contains(t, *seen, transition{StateWriting, StateFailure})
	assert.Zero(t, countRows(t, s.writer.db, &models.Resource{}))
}
