// 包 cms 为无头内容 API（Prismic REST v2 兼容）的客户端：
// - FirstPage/NextPage：分页拉取文章摘要，next_page 作为不透明令牌原样传递
// - GetByUID：拉取文章详情并转换为 model.PostDetail
// - ResolvePreview：预览令牌 + 文档 ID 解析为站内跳转路径
package cms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-spacetraveling/internal/fetch"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/routes"
)

var (
	// ErrNotFound 表示按 uid 找不到文档。
	ErrNotFound = errors.New("document not found")
	// ErrForeignToken 表示分页令牌不指向当前 API 主机。
	ErrForeignToken = errors.New("page token does not belong to the content api")
)

// refTTL 为 master ref 的缓存时间；发布新内容后 ref 会变化。
const refTTL = time.Minute

// Options 为客户端参数。
type Options struct {
	Endpoint     string
	AccessToken  string
	DocumentType string
	PageSize     int
	Fields       []string // 列表页只取这些字段（不带类型前缀）
}

// Client 为内容 API 客户端，可被多个 goroutine 共享。
type Client struct {
	fetch *fetch.Client
	opts  Options
	base  *url.URL

	mu       sync.Mutex
	ref      string
	refUntil time.Time
}

// New 创建客户端。
func New(cl *fetch.Client, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid cms endpoint %q", opts.Endpoint)
	}
	if opts.DocumentType == "" {
		opts.DocumentType = "posts"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &Client{fetch: cl, opts: opts, base: base}, nil
}

// MasterRef 返回当前发布版本的 ref（带短期缓存）。
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && time.Now().Before(c.refUntil) {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	u := *c.base
	q := u.Query()
	if c.opts.AccessToken != "" {
		q.Set("access_token", c.opts.AccessToken)
	}
	u.RawQuery = q.Encode()
	var info apiInfo
	if err := c.fetch.GetJSON(ctx, u.String(), &info); err != nil {
		return "", fmt.Errorf("get api refs: %w", err)
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.ref, c.refUntil = r.Ref, time.Now().Add(refTTL)
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", errors.New("api has no master ref")
}

// searchURL 拼接 documents/search 请求地址。
func (c *Client) searchURL(ref string, predicates []string, params url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("q", "["+strings.Join(predicates, "")+"]")
	if c.opts.AccessToken != "" {
		q.Set("access_token", c.opts.AccessToken)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// At 构造 at(path, value) 谓词。
func At(path, value string) string {
	return "[at(" + path + "," + strconv.Quote(value) + ")]"
}

func (c *Client) search(ctx context.Context, rawURL string) (searchResponse, error) {
	var sr searchResponse
	if err := c.fetch.GetJSON(ctx, rawURL, &sr); err != nil {
		return sr, fmt.Errorf("search documents: %w", err)
	}
	return sr, nil
}

func toPage(sr searchResponse) model.PostPage {
	page := model.PostPage{Results: make([]model.Post, 0, len(sr.Results))}
	for _, d := range sr.Results {
		page.Results = append(page.Results, d.toPost())
	}
	if sr.NextPage != nil {
		page.NextPage = *sr.NextPage
	}
	return page
}

// FirstPage 拉取首屏列表页。
func (c *Client) FirstPage(ctx context.Context) (model.PostPage, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return model.PostPage{}, err
	}
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(c.opts.PageSize))
	if len(c.opts.Fields) > 0 {
		fields := make([]string, 0, len(c.opts.Fields))
		for _, f := range c.opts.Fields {
			fields = append(fields, c.opts.DocumentType+"."+f)
		}
		params.Set("fetch", strings.Join(fields, ","))
	}
	sr, err := c.search(ctx, c.searchURL(ref, []string{At("document.type", c.opts.DocumentType)}, params))
	if err != nil {
		return model.PostPage{}, err
	}
	logx.Debugf("首屏页：%d/%d 篇", len(sr.Results), sr.TotalResultsSize)
	return toPage(sr), nil
}

// NextPage 按令牌（上一页的 next_page 地址）拉取后续页。
// 令牌必须指向配置的 API 主机，避免被当作任意 URL 代理。
func (c *Client) NextPage(ctx context.Context, token string) (model.PostPage, error) {
	u, err := c.CheckToken(token)
	if err != nil {
		return model.PostPage{}, err
	}
	if c.opts.AccessToken != "" && u.Query().Get("access_token") == "" {
		q := u.Query()
		q.Set("access_token", c.opts.AccessToken)
		u.RawQuery = q.Encode()
	}
	sr, err := c.search(ctx, u.String())
	if err != nil {
		return model.PostPage{}, err
	}
	return toPage(sr), nil
}

// CheckToken 校验分页令牌并返回解析后的地址。
func (c *Client) CheckToken(token string) (*url.URL, error) {
	u, err := url.Parse(token)
	if err != nil || u.Host == "" {
		return nil, ErrForeignToken
	}
	if !strings.EqualFold(u.Host, c.base.Host) || u.Scheme != c.base.Scheme {
		return nil, ErrForeignToken
	}
	return u, nil
}

// GetByUID 拉取文章详情。
func (c *Client) GetByUID(ctx context.Context, uid string) (model.PostDetail, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return model.PostDetail{}, err
	}
	return c.getByUID(ctx, ref, uid)
}

func (c *Client) getByUID(ctx context.Context, ref, uid string) (model.PostDetail, error) {
	params := url.Values{}
	params.Set("pageSize", "1")
	raw := c.searchURL(ref, []string{
		At("document.type", c.opts.DocumentType),
		At("my."+c.opts.DocumentType+".uid", uid),
	}, params)
	sr, err := c.search(ctx, raw)
	if err != nil {
		return model.PostDetail{}, err
	}
	if len(sr.Results) == 0 {
		return model.PostDetail{}, fmt.Errorf("uid %s: %w", uid, ErrNotFound)
	}
	return sr.Results[0].toDetail(), nil
}

// ResolvePreview 以预览 ref 查询文档并解析跳转路径；
// 令牌或文档 ID 为空、文档不存在时返回空串（由调用方返回 401）。
func (c *Client) ResolvePreview(ctx context.Context, token, documentID string, rt *routes.Routes) (string, error) {
	if token == "" || documentID == "" {
		return "", nil
	}
	params := url.Values{}
	params.Set("pageSize", "1")
	sr, err := c.search(ctx, c.searchURL(token, []string{At("document.id", documentID)}, params))
	if err != nil {
		if fetch.IsStatus(err, 400) || fetch.IsStatus(err, 404) {
			return "", nil
		}
		return "", err
	}
	if len(sr.Results) == 0 {
		return "", nil
	}
	d := sr.Results[0]
	return rt.Resolve(routes.Doc{ID: d.ID, UID: d.UID, Type: d.Type}), nil
}
