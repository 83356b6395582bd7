package paginate

import (
	"context"
	"fmt"
	"sync"

	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
)

// Source 为内容抓取协作者：首屏页与按令牌取后续页。
type Source interface {
	FirstPage(ctx context.Context) (model.PostPage, error)
	NextPage(ctx context.Context, token string) (model.PostPage, error)
}

// Listing 持有一个列表视图的状态；LoadMore 串行执行（单写者）。
type Listing struct {
	src   Source
	mu    sync.Mutex
	state State
	pages int
}

// NewListing 抓取首屏页并初始化列表。
func NewListing(ctx context.Context, src Source) (*Listing, error) {
	page, err := src.FirstPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("first page: %w", err)
	}
	return &Listing{src: src, state: Initialize(page), pages: 1}, nil
}

// State 返回当前状态的副本。
func (l *Listing) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return MergePage(State{}, model.PostPage{Results: l.state.Accumulated, NextPage: l.state.NextPage})
}

// Pages 返回已合并的页数（含首屏页）。
func (l *Listing) Pages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pages
}

// LoadMore 抓取下一页并合并。没有下一页时直接返回当前状态；
// 抓取失败时不合并任何内容，状态保持不变。
func (l *Listing) LoadMore(ctx context.Context) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !CanLoadMore(l.state) {
		return l.state, nil
	}
	page, err := l.src.NextPage(ctx, l.state.NextPage)
	if err != nil {
		return l.state, fmt.Errorf("next page: %w", err)
	}
	l.state = MergePage(l.state, page)
	l.pages++
	logx.Debugf("已合并第 %d 页：新增=%d 累计=%d 还有下一页=%v", l.pages, len(page.Results), len(l.state.Accumulated), l.state.HasNext)
	return l.state, nil
}

// LoadAll 连续加载直到没有下一页，maxPages>0 时最多累计到 maxPages 页。
func (l *Listing) LoadAll(ctx context.Context, maxPages int) (State, error) {
	for {
		l.mu.Lock()
		done := !CanLoadMore(l.state) || (maxPages > 0 && l.pages >= maxPages)
		cur := l.state
		l.mu.Unlock()
		if done {
			return cur, nil
		}
		if _, err := l.LoadMore(ctx); err != nil {
			return l.State(), err
		}
	}
}
