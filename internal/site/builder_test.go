package site

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-spacetraveling/internal/config"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/render"
	"go-spacetraveling/internal/store"
)

type fakeSource struct {
	pages     map[string]model.PostPage // "" 为首屏页
	nextErr   error
	details   map[string]model.PostDetail
	detailHit int32
}

func (f *fakeSource) FirstPage(context.Context) (model.PostPage, error) { return f.pages[""], nil }

func (f *fakeSource) NextPage(_ context.Context, tok string) (model.PostPage, error) {
	if f.nextErr != nil {
		return model.PostPage{}, f.nextErr
	}
	return f.pages[tok], nil
}

func (f *fakeSource) GetByUID(_ context.Context, uid string) (model.PostDetail, error) {
	atomic.AddInt32(&f.detailHit, 1)
	d, ok := f.details[uid]
	if !ok {
		return d, errors.New("not found")
	}
	return d, nil
}

func at(d int) *time.Time {
	t := time.Date(2021, 3, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func words(n int) model.RichText {
	return model.RichText{{Type: "paragraph", Text: strings.TrimSpace(strings.Repeat("palavra ", n))}}
}

func newSource() *fakeSource {
	return &fakeSource{
		pages: map[string]model.PostPage{
			"":   {Results: []model.Post{{UID: "a", Title: "A", PublicationDate: at(3)}, {UID: "b", Title: "B"}}, NextPage: "p2"},
			"p2": {Results: []model.Post{{UID: "b", Title: "B"}, {UID: "c", Title: "C", PublicationDate: at(1)}}},
		},
		details: map[string]model.PostDetail{
			"a": {UID: "a", Title: "A", PublicationDate: at(3), Content: []model.ContentBlock{{Heading: "um", Body: words(401)}}},
			"c": {UID: "c", Title: "C", Content: []model.ContentBlock{{Body: words(10)}}},
		},
	}
}

func newConfig(t *testing.T, simple bool) *config.Config {
	t.Helper()
	cfg := &config.Config{
		CMS:        config.CMS{Type: "feed", FeedURL: "https://blog"},
		SimpleMode: simple,
		Revalidate: 3600,
	}
	require.NoError(t, cfg.Validate())
	cfg.Site.Output = t.TempDir()
	cfg.Concurrency.Fetch = 2
	return cfg
}

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Options{SiteTitle: "spacetraveling", Locale: "pt-BR"})
	require.NoError(t, err)
	return r
}

func TestBuild_SimpleMode(t *testing.T) {
	cfg := newConfig(t, true)
	src := newSource()
	b := New(cfg, src, nil, nil, newRenderer(t))

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 2, res.Stats.PagesFetched)
	assert.Equal(t, 3, res.Stats.PostsTotal)
	assert.Equal(t, 2, res.Stats.PostsRendered)
	assert.Equal(t, 1, res.Stats.PostsFailed)
	assert.True(t, res.First.HasNext)

	require.Len(t, res.Posts, 3)
	assert.Equal(t, "/post/a", res.Posts[0].Href)
	assert.Equal(t, 3, res.Posts[0].ReadingTime)
	assert.Equal(t, "03 mar 2021", res.Posts[0].DateLabel)
	assert.Equal(t, "Data indisponível", res.Posts[1].DateLabel)

	out := cfg.Site.Output
	assert.FileExists(t, filepath.Join(out, "index.html"))
	assert.FileExists(t, filepath.Join(out, "post", "a", "index.html"))
	assert.FileExists(t, filepath.Join(out, "post", "c", "index.html"))
	assert.NoFileExists(t, filepath.Join(out, "post", "b", "index.html"))

	raw, err := os.ReadFile(filepath.Join(out, "posts.json"))
	require.NoError(t, err)
	var exp model.Export
	require.NoError(t, json.Unmarshal(raw, &exp))
	assert.Equal(t, "p2", exp.NextPage)
	require.Len(t, exp.Results, 2)
	assert.Equal(t, "a", exp.Results[0].UID)

	snap := b.BufferData()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{snap[0].UID, snap[1].UID, snap[2].UID})
}

func TestBuild_NextPageFailureKeepsFirstPage(t *testing.T) {
	cfg := newConfig(t, true)
	src := newSource()
	src.nextErr = errors.New("upstream down")
	b := New(cfg, src, nil, nil, newRenderer(t))

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.PagesFetched)
	assert.Equal(t, 2, res.Stats.PostsTotal)
	assert.True(t, res.First.HasNext)
}

func TestBuild_DetailCache(t *testing.T) {
	cfg := newConfig(t, false)
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	defer s.Close()
	src := newSource()
	b := New(cfg, src, s, nil, newRenderer(t))
	ctx := context.Background()

	_, err = b.Build(ctx)
	require.NoError(t, err)
	first := atomic.LoadInt32(&src.detailHit)
	assert.Equal(t, int32(3), first)

	// 第二轮：a/c 命中缓存，b 仍然失败并重新请求
	_, err = b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, atomic.LoadInt32(&src.detailHit))

	last, err := s.LastBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partial", last.Status)
	assert.Equal(t, 2, last.Posts)

	posts, err := s.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}

func TestBuild_FirstPageFailure(t *testing.T) {
	cfg := newConfig(t, true)
	b := New(cfg, failingSource{}, nil, nil, newRenderer(t))
	_, err := b.Build(context.Background())
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.Site.Output, "index.html"))
}

type failingSource struct{}

func (failingSource) FirstPage(context.Context) (model.PostPage, error) {
	return model.PostPage{}, errors.New("down")
}
func (failingSource) NextPage(context.Context, string) (model.PostPage, error) {
	return model.PostPage{}, errors.New("down")
}
func (failingSource) GetByUID(context.Context, string) (model.PostDetail, error) {
	return model.PostDetail{}, errors.New("down")
}

func TestBufferSnapshotOrder(t *testing.T) {
	buf := NewBuffer()
	buf.AddPost(model.ListedPost{Post: model.Post{UID: "old", PublicationDate: at(1)}})
	buf.AddPost(model.ListedPost{Post: model.Post{UID: "none"}})
	buf.AddPost(model.ListedPost{Post: model.Post{UID: "new", PublicationDate: at(9)}})
	buf.AddPost(model.ListedPost{Post: model.Post{}})
	snap := buf.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"new", "old", "none"}, []string{snap[0].UID, snap[1].UID, snap[2].UID})
}

func TestBuild_RejectsRoutesOutsideOutput(t *testing.T) {
	cfg := newConfig(t, true)
	root := cfg.Site.Output
	cfg.Site.Output = filepath.Join(root, "out")
	src := &fakeSource{
		pages: map[string]model.PostPage{"": {Results: []model.Post{
			{UID: "../../escaped"}, {UID: ".."}, {UID: "ok"},
		}}},
		details: map[string]model.PostDetail{
			"../../escaped": {UID: "../../escaped", Title: "x"},
			"..":            {UID: "..", Title: "y"},
			"ok":            {UID: "ok", Title: "ok"},
		},
	}
	b := New(cfg, src, nil, nil, newRenderer(t))

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.PostsFailed)
	assert.Equal(t, 1, res.Stats.PostsRendered)
	assert.NoFileExists(t, filepath.Join(root, "escaped", "index.html"))
	assert.FileExists(t, filepath.Join(cfg.Site.Output, "post", "ok", "index.html"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.detailHit))

	_, err = b.pagePath("/post/..%2F..%2Fescaped")
	assert.ErrorIs(t, err, ErrNoRoute)
	rel, err := b.pagePath("/post/ol%C3%A1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("post", "olá", "index.html"), rel)
}

func TestBuild_SimpleModeReusesDetails(t *testing.T) {
	cfg := newConfig(t, true)
	src := newSource()
	b := New(cfg, src, nil, nil, newRenderer(t))
	ctx := context.Background()

	_, err := b.Build(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&src.detailHit))

	// a/c 来自内存缓冲，b 仍然失败并重新请求
	res, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&src.detailHit))
	assert.Equal(t, 2, res.Stats.PostsRendered)

	d, _, ok := b.buf.Detail("a")
	require.True(t, ok)
	assert.Equal(t, "A", d.Title)

	cfg.Revalidate = 0
	_, err = b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(7), atomic.LoadInt32(&src.detailHit))
}
