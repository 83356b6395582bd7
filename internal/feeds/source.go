package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"

	"go-spacetraveling/internal/fetch"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/richtext"
)

var (
	// ErrBadToken 表示分页令牌不是合法的偏移量。
	ErrBadToken = errors.New("invalid feed page token")
	// ErrNotFound 表示订阅中没有对应 uid 的条目。
	ErrNotFound = errors.New("feed item not found")
)

// cacheTTL 内重复分页不重新抓取订阅。
const cacheTTL = time.Minute

const subtitleRunes = 160

// Source 以订阅为后端实现分页与详情；令牌为十进制偏移量。
type Source struct {
	cl       *fetch.Client
	site     string
	suffix   string
	pageSize int

	mu       sync.Mutex
	feedURL  string
	items    []*gofeed.Item
	loadedAt time.Time
}

// NewSource 创建订阅来源；site 可以是站点首页或订阅地址本身。
func NewSource(cl *fetch.Client, site, feedSuffix string, pageSize int) *Source {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Source{cl: cl, site: site, suffix: feedSuffix, pageSize: pageSize}
}

// load 发现（仅首次）并解析订阅，结果缓存 cacheTTL。
func (s *Source) load(ctx context.Context) ([]*gofeed.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items != nil && time.Since(s.loadedAt) < cacheTTL {
		return s.items, nil
	}
	if s.feedURL == "" {
		u, err := DiscoverFeed(ctx, s.cl, s.site, s.suffix)
		if err != nil {
			return nil, err
		}
		s.feedURL = u
		logx.Infof("使用订阅：%s", u)
	}
	reqCtx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()
	resp, err := s.cl.Get(reqCtx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", s.feedURL, err)
	}
	defer resp.Body.Close()
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feedURL, err)
	}
	items := make([]*gofeed.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it != nil {
			items = append(items, it)
		}
	}
	s.items, s.loadedAt = items, time.Now()
	return items, nil
}

// FirstPage 返回偏移 0 的一页。
func (s *Source) FirstPage(ctx context.Context) (model.PostPage, error) {
	return s.page(ctx, 0)
}

// NextPage 按偏移量令牌返回后续页。
func (s *Source) NextPage(ctx context.Context, token string) (model.PostPage, error) {
	off, err := strconv.Atoi(token)
	if err != nil || off < 0 {
		return model.PostPage{}, fmt.Errorf("%w: %q", ErrBadToken, token)
	}
	return s.page(ctx, off)
}

func (s *Source) page(ctx context.Context, off int) (model.PostPage, error) {
	items, err := s.load(ctx)
	if err != nil {
		return model.PostPage{}, err
	}
	if off > len(items) {
		off = len(items)
	}
	end := off + s.pageSize
	if end > len(items) {
		end = len(items)
	}
	page := model.PostPage{Results: make([]model.Post, 0, end-off)}
	for _, it := range items[off:end] {
		page.Results = append(page.Results, toPost(it))
	}
	if end < len(items) {
		page.NextPage = strconv.Itoa(end)
	}
	return page, nil
}

// GetByUID 在订阅中查找 uid 对应的条目并转换为详情。
func (s *Source) GetByUID(ctx context.Context, uid string) (model.PostDetail, error) {
	items, err := s.load(ctx)
	if err != nil {
		return model.PostDetail{}, err
	}
	for _, it := range items {
		if itemUID(it) == uid {
			return toDetail(it), nil
		}
	}
	return model.PostDetail{}, fmt.Errorf("uid %s: %w", uid, ErrNotFound)
}

func toPost(it *gofeed.Item) model.Post {
	sub := strings.Join(strings.Fields(richtext.AsText(richtext.FromHTML(it.Description))), " ")
	if r := []rune(sub); len(r) > subtitleRunes {
		sub = strings.TrimSpace(string(r[:subtitleRunes])) + "…"
	}
	return model.Post{
		UID:             itemUID(it),
		PublicationDate: pickTime(it.PublishedParsed, it.UpdatedParsed),
		Title:           strings.TrimSpace(it.Title),
		Subtitle:        sub,
		Author:          authorName(it),
	}
}

// toDetail 以正文中的标题为界把内容切分成小节；首个标题之前的内容归入无标题小节。
func toDetail(it *gofeed.Item) model.PostDetail {
	body := it.Content
	if strings.TrimSpace(body) == "" {
		body = it.Description
	}
	d := model.PostDetail{
		UID:             itemUID(it),
		Type:            "posts",
		PublicationDate: pickTime(it.PublishedParsed, it.UpdatedParsed),
		Title:           strings.TrimSpace(it.Title),
		Author:          authorName(it),
	}
	if it.Image != nil {
		d.Banner.URL = it.Image.URL
	}
	var cur *model.ContentBlock
	for _, b := range richtext.FromHTML(body) {
		if strings.HasPrefix(b.Type, "heading") {
			d.Content = append(d.Content, model.ContentBlock{Heading: strings.TrimSpace(b.Text)})
			cur = &d.Content[len(d.Content)-1]
			continue
		}
		if cur == nil {
			d.Content = append(d.Content, model.ContentBlock{})
			cur = &d.Content[len(d.Content)-1]
		}
		cur.Body = append(cur.Body, b)
	}
	return d
}

// itemUID 取链接路径最后一段作为 uid，缺失时退回 GUID。
func itemUID(it *gofeed.Item) string {
	if it.Link != "" {
		if u, err := url.Parse(it.Link); err == nil {
			if s := slugify(path.Base(strings.TrimRight(u.Path, "/"))); s != "" {
				return s
			}
		}
	}
	return slugify(it.GUID)
}

func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

func pickTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil {
		if it.Author.Name != "" {
			return it.Author.Name
		}
		return it.Author.Email
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		return it.Authors[0].Name
	}
	return ""
}
