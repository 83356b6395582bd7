// 包 site 负责一次站点构建的编排：
// - 抓取首屏页并连续加载后续页，按 uid 去重
// - 并发抓取文章详情（可复用缓存），计算阅读时长并渲染文章页
// - 渲染首页、导出 posts.json、落库与过期清理
package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"go-spacetraveling/internal/config"
	"go-spacetraveling/internal/datefmt"
	"go-spacetraveling/internal/export"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/paginate"
	"go-spacetraveling/internal/readtime"
	"go-spacetraveling/internal/render"
	"go-spacetraveling/internal/routes"
	"go-spacetraveling/internal/store"
)

// ErrNoRoute 表示文章无法解析出独立的页面路径。
var ErrNoRoute = errors.New("no route for post")

// Source 为内容来源：分页列表 + 按 uid 取详情。
type Source interface {
	paginate.Source
	GetByUID(ctx context.Context, uid string) (model.PostDetail, error)
}

// Builder 构建执行器，持有配置/来源/存储/路由/渲染器。
type Builder struct {
	cfg    *config.Config
	src    Source
	store  *store.SQLite
	rt     *routes.Routes
	render *render.Renderer
	dates  datefmt.Formatter
	// 极简模式：仅收集内存数据，不落库
	buf *Buffer
}

// Result 为一次构建的结果。
type Result struct {
	ID    string
	First paginate.State     // 首屏页状态，对应首页与 posts.json
	Posts []model.ListedPost // 去重后的全部文章
	Stats model.Stats
}

// New 创建 Builder；s 为 nil 或开启极简模式时不使用数据库。
func New(cfg *config.Config, src Source, s *store.SQLite, rt *routes.Routes, r *render.Renderer) *Builder {
	b := &Builder{cfg: cfg, src: src, store: s, rt: rt, render: r}
	b.dates = datefmt.New(cfg.Date.Locale, cfg.Date.Placeholder)
	if cfg.Date.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Date.Timezone); err == nil {
			b.dates.Location = loc
		} else {
			logx.Warnf("时区无效，使用原始时区：%s 错误=%v", cfg.Date.Timezone, err)
		}
	}
	if cfg.SimpleMode || s == nil {
		b.store = nil
		b.buf = NewBuffer()
	}
	return b
}

// Dates 返回构建使用的日期格式化器。
func (b *Builder) Dates() datefmt.Formatter { return b.dates }

// Href 返回文章页面路径；无法解析时返回 "/"。
func (b *Builder) Href(uid string) string {
	return b.rt.Resolve(routes.Doc{UID: uid, Type: b.cfg.CMS.DocumentType})
}

// Label 为列表条目附加链接与日期文案。
func (b *Builder) Label(p model.Post) model.ListedPost {
	return model.ListedPost{Post: p, Href: b.Href(p.UID), DateLabel: b.dates.Format(p.PublicationDate)}
}

// Build 执行一轮构建。首屏页抓取失败时返回错误；单篇文章失败只记录日志并跳过。
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{ID: uuid.NewString()}
	logx.Infof("开始构建 %s", res.ID)

	listing, err := paginate.NewListing(ctx, b.src)
	if err != nil {
		b.recordBuild(ctx, res, start, "failed")
		return res, fmt.Errorf("build %s: %w", res.ID, err)
	}
	res.First = listing.State()
	all, loadErr := listing.LoadAll(ctx, b.cfg.Site.MaxPages)
	if loadErr != nil {
		logx.Warnf("加载后续页失败，使用已加载的 %d 页：%v", listing.Pages(), loadErr)
	}
	posts := paginate.DedupByUID(all.Accumulated)
	if dup := len(all.Accumulated) - len(posts); dup > 0 {
		logx.Infof("跨页重复文章=%d", dup)
	}
	res.Stats.PagesFetched = listing.Pages()
	res.Stats.PostsTotal = len(posts)

	minutes, failed := b.renderPosts(ctx, posts)
	res.Stats.PostsFailed = failed
	res.Stats.PostsRendered = len(posts) - failed

	res.Posts = make([]model.ListedPost, 0, len(posts))
	for _, p := range posts {
		lp := b.Label(p)
		lp.ReadingTime = minutes[p.UID]
		res.Posts = append(res.Posts, lp)
		if b.buf != nil {
			b.buf.AddPost(lp)
		} else if err := b.store.UpsertPost(ctx, p); err != nil {
			logx.Warnf("写入文章失败：%v", err)
		}
	}

	first := make([]model.ListedPost, 0, len(res.First.Accumulated))
	for _, p := range paginate.DedupByUID(res.First.Accumulated) {
		lp := b.Label(p)
		lp.ReadingTime = minutes[p.UID]
		first = append(first, lp)
	}
	if err := b.writeFile("index.html", func(w io.Writer) error {
		return b.render.Index(w, render.IndexPage{Posts: first, NextPage: res.First.NextPage})
	}); err != nil {
		return res, fmt.Errorf("build %s: %w", res.ID, err)
	}
	res.Stats.UpdatedAt = time.Now()
	if err := export.ToJSONData(ctx, res.Stats, first, res.First.NextPage, filepath.Join(b.cfg.Site.Output, export.FileName)); err != nil {
		return res, fmt.Errorf("build %s: %w", res.ID, err)
	}

	status := "ok"
	if loadErr != nil || failed > 0 {
		status = "partial"
	}
	// 只有完整加载了列表时才清理上游已删除的文章
	if b.store != nil && loadErr == nil && !all.HasNext {
		keep := make([]string, 0, len(posts))
		for _, p := range posts {
			keep = append(keep, p.UID)
		}
		if n, err := b.store.CleanStale(ctx, keep, start); err != nil {
			logx.Warnf("清理过期文章失败：%v", err)
		} else if n > 0 {
			logx.Infof("已清理过期文章 %d 篇", n)
		}
	}
	b.recordBuild(ctx, res, start, status)
	logx.Infof("构建 %s 完成：页数=%d 文章=%s 渲染=%d 失败=%d 用时=%s",
		res.ID, res.Stats.PagesFetched, humanize.Comma(int64(res.Stats.PostsTotal)),
		res.Stats.PostsRendered, res.Stats.PostsFailed, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// renderPosts 以有界并发渲染文章页，返回 uid→阅读时长 与失败数。
func (b *Builder) renderPosts(ctx context.Context, posts []model.Post) (map[string]int, int) {
	minutes := make(map[string]int, len(posts))
	failed := 0
	var mu sync.Mutex
	sem := make(chan struct{}, max(1, b.cfg.Concurrency.Fetch))
	var wg sync.WaitGroup
	for _, p := range posts {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			m, err := b.processPost(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logx.Warnf("[%s] 渲染文章失败：%v", p.UID, err)
				return
			}
			minutes[p.UID] = m
		}()
	}
	wg.Wait()
	return minutes, failed
}

// processPost 处理单篇文章：取详情→阅读时长→渲染到路由对应的目录。
func (b *Builder) processPost(ctx context.Context, p model.Post) (int, error) {
	if p.UID == "" {
		return 0, ErrNoRoute
	}
	rel, err := b.pagePath(b.Href(p.UID))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, p.UID)
	}
	d, err := b.detail(ctx, p.UID)
	if err != nil {
		return 0, err
	}
	m := readtime.Estimate(d.Content, b.cfg.Reading.WordsPerMinute)
	page := render.NewPostPage(d, b.dates.Format(d.PublicationDate), m)
	if err := b.writeFile(rel, func(w io.Writer) error { return b.render.Post(w, page) }); err != nil {
		return 0, err
	}
	return m, nil
}

// pagePath 把站内路径换算为输出目录下的相对文件路径；
// 指向首页或输出目录之外的路径返回 ErrNoRoute。
func (b *Builder) pagePath(href string) (string, error) {
	dir, err := url.PathUnescape(strings.Trim(href, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoRoute, href)
	}
	dir = filepath.FromSlash(dir)
	if !filepath.IsLocal(dir) || filepath.Clean(dir) == "." {
		return "", fmt.Errorf("%w: %s", ErrNoRoute, href)
	}
	return filepath.Join(dir, "index.html"), nil
}

// detail 读取文章详情；REVALIDATE 秒内抓取过的详情直接复用缓存（数据库或极简模式的内存缓冲）。
func (b *Builder) detail(ctx context.Context, uid string) (model.PostDetail, error) {
	ttl := time.Duration(b.cfg.Revalidate) * time.Second
	if b.buf != nil && ttl > 0 {
		if d, at, ok := b.buf.Detail(uid); ok && time.Since(at) < ttl {
			logx.Debugf("[%s] 使用内存详情（%s抓取）", uid, humanize.Time(at))
			return d, nil
		}
	}
	if b.store != nil && ttl > 0 {
		d, at, err := b.store.GetDetail(ctx, uid)
		switch {
		case err == nil && time.Since(at) < ttl:
			logx.Debugf("[%s] 使用缓存详情（%s抓取）", uid, humanize.Time(at))
			return d, nil
		case err != nil && !errors.Is(err, store.ErrNotCached):
			logx.Warnf("[%s] 读取缓存失败：%v", uid, err)
		}
	}
	d, err := b.src.GetByUID(ctx, uid)
	if err != nil {
		return d, fmt.Errorf("get detail %s: %w", uid, err)
	}
	if b.buf != nil {
		b.buf.AddDetail(d)
	} else if err := b.store.SaveDetail(ctx, d); err != nil {
		logx.Warnf("[%s] 写入详情缓存失败：%v", uid, err)
	}
	return d, nil
}

// writeFile 在输出目录下创建文件并写入内容。
func (b *Builder) writeFile(rel string, fn func(io.Writer) error) error {
	path := filepath.Join(b.cfg.Site.Output, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (b *Builder) recordBuild(ctx context.Context, res Result, start time.Time, status string) {
	if b.store == nil {
		return
	}
	err := b.store.RecordBuild(ctx, store.Build{
		ID:         res.ID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Posts:      res.Stats.PostsRendered,
		Failed:     res.Stats.PostsFailed,
		Status:     status,
	})
	if err != nil {
		logx.Warnf("写入构建记录失败：%v", err)
	}
}

// BufferData 返回极简模式下收集的内存数据。
func (b *Builder) BufferData() []model.ListedPost {
	if b == nil || b.buf == nil {
		return nil
	}
	return b.buf.Snapshot()
}
