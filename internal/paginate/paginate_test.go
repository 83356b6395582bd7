package paginate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-spacetraveling/internal/model"
)

func posts(uids ...string) []model.Post {
	out := make([]model.Post, 0, len(uids))
	for _, u := range uids {
		out = append(out, model.Post{UID: u, Title: "t-" + u})
	}
	return out
}

func uids(ps []model.Post) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UID)
	}
	return out
}

func TestInitializeAndMerge(t *testing.T) {
	s := Initialize(model.PostPage{Results: posts("a", "b"), NextPage: "tok1"})
	assert.Equal(t, []string{"a", "b"}, uids(s.Accumulated))
	assert.True(t, CanLoadMore(s))

	s = MergePage(s, model.PostPage{Results: posts("c"), NextPage: ""})
	assert.Equal(t, []string{"a", "b", "c"}, uids(s.Accumulated))
	assert.False(t, CanLoadMore(s))
}

func TestInitialize_NilResults(t *testing.T) {
	s := Initialize(model.PostPage{})
	assert.NotNil(t, s.Accumulated)
	assert.Empty(t, s.Accumulated)
	assert.False(t, s.HasNext)
}

func TestMergePage_ConcatenatesInCallOrder(t *testing.T) {
	pages := []model.PostPage{
		{Results: posts("1", "2"), NextPage: "a"},
		{Results: posts("3"), NextPage: "b"},
		{Results: nil, NextPage: "c"},
		{Results: posts("4", "5", "6"), NextPage: "d"},
	}
	s := Initialize(pages[0])
	for _, p := range pages[1:] {
		s = MergePage(s, p)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, uids(s.Accumulated))
	assert.True(t, s.HasNext)
	assert.Equal(t, "d", s.NextPage)
}

func TestMergePage_HasNextFollowsLatestPage(t *testing.T) {
	s := Initialize(model.PostPage{Results: posts("a"), NextPage: ""})
	require.False(t, s.HasNext)
	s = MergePage(s, model.PostPage{Results: posts("b"), NextPage: "more"})
	assert.True(t, s.HasNext)
	s = MergePage(s, model.PostPage{Results: posts("c")})
	assert.False(t, s.HasNext)
}

func TestMergePage_EmptyPageKeepsPaginationAlive(t *testing.T) {
	s := Initialize(model.PostPage{Results: posts("a"), NextPage: "t1"})
	s = MergePage(s, model.PostPage{NextPage: "t2"})
	assert.Equal(t, []string{"a"}, uids(s.Accumulated))
	assert.True(t, s.HasNext)
	assert.Equal(t, "t2", s.NextPage)
}

func TestMergePage_DoesNotAliasInputs(t *testing.T) {
	base := Initialize(model.PostPage{Results: posts("a", "b"), NextPage: "x"})
	page := model.PostPage{Results: posts("c")}
	s1 := MergePage(base, page)
	s2 := MergePage(base, model.PostPage{Results: posts("d")})
	assert.Equal(t, []string{"a", "b", "c"}, uids(s1.Accumulated))
	assert.Equal(t, []string{"a", "b", "d"}, uids(s2.Accumulated))
	assert.Equal(t, []string{"a", "b"}, uids(base.Accumulated))
	assert.Equal(t, []string{"c"}, uids(page.Results))
}

func TestDedupByUID(t *testing.T) {
	in := append(posts("a", "b", "a", "c", "b"), model.Post{Title: "no uid"}, model.Post{Title: "no uid 2"})
	out := DedupByUID(in)
	assert.Equal(t, []string{"a", "b", "c", "", ""}, uids(out))
}

type fakeSource struct {
	mu    sync.Mutex
	pages map[string]model.PostPage
	fail  map[string]bool
	calls int
}

func (f *fakeSource) FirstPage(ctx context.Context) (model.PostPage, error) {
	return f.NextPage(ctx, "")
}

func (f *fakeSource) NextPage(_ context.Context, token string) (model.PostPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[token] {
		return model.PostPage{}, errors.New("boom")
	}
	return f.pages[token], nil
}

func TestListing_LoadMoreAndLoadAll(t *testing.T) {
	src := &fakeSource{pages: map[string]model.PostPage{
		"":   {Results: posts("a", "b"), NextPage: "p2"},
		"p2": {Results: posts("c"), NextPage: "p3"},
		"p3": {Results: posts("d"), NextPage: ""},
	}}
	ctx := context.Background()
	l, err := NewListing(ctx, src)
	require.NoError(t, err)

	s, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, uids(s.Accumulated))

	s, err = l.LoadAll(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, uids(s.Accumulated))
	assert.False(t, s.HasNext)
	assert.Equal(t, 3, l.Pages())

	// 已到末页：不再请求
	calls := src.calls
	_, err = l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, calls, src.calls)
}

func TestListing_LoadAllRespectsPageCap(t *testing.T) {
	src := &fakeSource{pages: map[string]model.PostPage{
		"":   {Results: posts("a"), NextPage: "p2"},
		"p2": {Results: posts("b"), NextPage: "p3"},
		"p3": {Results: posts("c"), NextPage: "p4"},
	}}
	l, err := NewListing(context.Background(), src)
	require.NoError(t, err)
	s, err := l.LoadAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uids(s.Accumulated))
	assert.True(t, s.HasNext)
}

func TestListing_FetchFailureDoesNotMerge(t *testing.T) {
	src := &fakeSource{
		pages: map[string]model.PostPage{"": {Results: posts("a"), NextPage: "p2"}},
		fail:  map[string]bool{"p2": true},
	}
	l, err := NewListing(context.Background(), src)
	require.NoError(t, err)
	s, err := l.LoadMore(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, uids(s.Accumulated))
	assert.True(t, s.HasNext)
	assert.Equal(t, "p2", l.State().NextPage)
}

func TestListing_ConcurrentLoadMoreIsSerialized(t *testing.T) {
	pages := map[string]model.PostPage{"": {Results: posts("0"), NextPage: "1"}}
	for i := 1; i <= 20; i++ {
		next := ""
		if i < 20 {
			next = string(rune('a' + i))
		}
		tok := string(rune('a' + i - 1))
		if i == 1 {
			tok = "1"
		}
		pages[tok] = model.PostPage{Results: posts(tok), NextPage: next}
	}
	src := &fakeSource{pages: pages}
	l, err := NewListing(context.Background(), src)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.LoadMore(context.Background())
		}()
	}
	wg.Wait()
	s := l.State()
	assert.Len(t, s.Accumulated, 21)
	assert.Len(t, DedupByUID(s.Accumulated), 21)
	assert.False(t, s.HasNext)
}
