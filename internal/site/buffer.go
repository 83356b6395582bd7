package site

import (
	"sort"
	"sync"
	"time"

	"go-spacetraveling/internal/model"
)

// Buffer 在极简模式下收集构建结果，避免落库。
type Buffer struct {
	mu      sync.Mutex
	posts   map[string]model.ListedPost // key: uid
	details map[string]cachedDetail
}

type cachedDetail struct {
	detail    model.PostDetail
	fetchedAt time.Time
}

func NewBuffer() *Buffer {
	return &Buffer{
		posts:   make(map[string]model.ListedPost),
		details: make(map[string]cachedDetail),
	}
}

func (b *Buffer) AddPost(p model.ListedPost) {
	if p.UID == "" {
		return
	}
	b.mu.Lock()
	b.posts[p.UID] = p
	b.mu.Unlock()
}

func (b *Buffer) AddDetail(d model.PostDetail) {
	if d.UID == "" {
		return
	}
	b.mu.Lock()
	b.details[d.UID] = cachedDetail{detail: d, fetchedAt: time.Now()}
	b.mu.Unlock()
}

// Detail 返回内存中缓存的详情及其抓取时间。
func (b *Buffer) Detail(uid string) (model.PostDetail, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.details[uid]
	return c.detail, c.fetchedAt, ok
}

// Snapshot 返回副本，按发布时间倒序；无日期的排在最后，同时间按 uid 排序。
func (b *Buffer) Snapshot() []model.ListedPost {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps := make([]model.ListedPost, 0, len(b.posts))
	for _, v := range b.posts {
		ps = append(ps, v)
	}
	sort.Slice(ps, func(i, j int) bool {
		a, c := ps[i].PublicationDate, ps[j].PublicationDate
		switch {
		case a == nil && c == nil:
			return ps[i].UID < ps[j].UID
		case a == nil:
			return false
		case c == nil:
			return true
		case a.Equal(*c):
			return ps[i].UID < ps[j].UID
		}
		return a.After(*c)
	})
	return ps
}
