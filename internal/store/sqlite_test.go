package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-spacetraveling/internal/model"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(d int) *time.Time {
	t := time.Date(2021, 3, d, 10, 0, 0, 0, time.UTC)
	return &t
}

func TestUpsertAndList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "a", Title: "A", PublicationDate: day(1)}))
	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "b", Title: "B", PublicationDate: day(5)}))
	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "c", Title: "C"}))
	// 同 uid 再次写入只更新字段
	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "a", Title: "A2", Author: "Ana", PublicationDate: day(1)}))

	all, err := s.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].UID, all[1].UID, all[2].UID})
	assert.Equal(t, "A2", all[1].Title)
	assert.Equal(t, "Ana", all[1].Author)
	assert.Nil(t, all[2].PublicationDate)

	page, err := s.ListPosts(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].UID)

	assert.Error(t, s.UpsertPost(ctx, model.Post{}))
}

func TestDetailCache(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "a", Title: "A"}))
	_, _, err := s.GetDetail(ctx, "a")
	assert.ErrorIs(t, err, ErrNotCached)
	_, _, err = s.GetDetail(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotCached)

	d := model.PostDetail{
		UID:   "a",
		Title: "A",
		Content: []model.ContentBlock{{
			Heading: "Parte",
			Body:    model.RichText{{Type: "paragraph", Text: "um dois"}},
		}},
	}
	before := time.Now().Add(-time.Second)
	require.NoError(t, s.SaveDetail(ctx, d))

	got, fetched, err := s.GetDetail(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Parte", got.Content[0].Heading)
	assert.Equal(t, "um dois", got.Content[0].Body[0].Text)
	assert.True(t, fetched.After(before))

	// 摘要更新不会清掉详情
	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "a", Title: "A3"}))
	_, _, err = s.GetDetail(ctx, "a")
	assert.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.PostsTotal)
	assert.Equal(t, 1, st.PostsRendered)
}

func TestCleanStale(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertPost(ctx, model.Post{UID: uid}))
	}
	n, err := s.CleanStale(ctx, []string{"a"}, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := s.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].UID)
}

func TestBuildsAndReset(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute).UTC()
	b := Build{ID: uuid.NewString(), StartedAt: start, FinishedAt: start.Add(time.Second), Posts: 3, Failed: 1, Status: "ok"}
	require.NoError(t, s.RecordBuild(ctx, b))

	last, err := s.LastBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, last.ID)
	assert.Equal(t, 3, last.Posts)
	assert.Equal(t, 1, last.Failed)

	require.NoError(t, s.UpsertPost(ctx, model.Post{UID: "a"}))
	require.NoError(t, s.Reset(ctx))
	_, err = s.LastBuild(ctx)
	assert.Error(t, err)
	left, err := s.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}
