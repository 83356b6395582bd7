// 包 feeds 提供以订阅为后端的内容来源：
// - DiscoverFeed：基于常见路径与 HTML <link> 自动发现订阅
// - Source：使用 gofeed 解析 RSS/Atom/JSON Feed，按偏移量分页并支持按 uid 取详情
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-spacetraveling/internal/fetch"
	"go-spacetraveling/internal/logx"
)

// DiscoverFeed 尝试常见端点与 HTML <link> 以发现订阅地址。
// site 本身就是订阅时直接返回。
func DiscoverFeed(ctx context.Context, cl *fetch.Client, site string, feedSuffix string) (string, error) {
	candidates := []string{site}
	if feedSuffix != "" {
		candidates = append(candidates, joinURL(site, feedSuffix), joinURLDir(site, feedSuffix))
	}
	// 先按子路径拼接（适配 https://host/blog 这类站点），再按站点根拼接
	for _, p := range []string{"index.xml", "feed.xml", "atom.xml", "rss.xml", "feed", "feed.json"} {
		candidates = append(candidates, joinURLDir(site, p))
	}
	for _, p := range []string{"/feed", "/feed.xml", "/index.xml", "/atom.xml", "/rss.xml", "/rss", "/?feed=rss2", "/index.json", "/feed.json"} {
		candidates = append(candidates, joinURL(site, p))
	}
	seen := map[string]bool{}
	for _, u := range candidates {
		if seen[u] {
			continue
		}
		seen[u] = true
		logx.Debugf("探测候选订阅：%s", u)
		if probeFeed(ctx, cl, u) {
			return u, nil
		}
	}
	// 回退：抓取 HTML 并解析 <link rel=alternate>
	resp, err := cl.Get(ctx, site)
	if err != nil {
		return "", fmt.Errorf("GET site %s: %w", site, err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var found string
	doc.Find(`link[rel~="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.AttrOr("type", ""))
		href := s.AttrOr("href", "")
		if href != "" && (strings.Contains(t, "rss") || strings.Contains(t, "atom") || strings.Contains(t, "json")) {
			found = joinURL(site, href)
			return false
		}
		return true
	})
	if found != "" && probeFeed(ctx, cl, found) {
		logx.Debugf("从 <link> 发现订阅：%s", found)
		return found, nil
	}
	return "", fmt.Errorf("no feed discovered for %s", site)
}

// probeFeed 根据 Content-Type 与内容开头粗略判断 URL 是否为订阅。
func probeFeed(ctx context.Context, cl *fetch.Client, feedURL string) bool {
	prCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	resp, err := cl.Get(prCtx, feedURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	lb := bytes.ToLower(head)
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "rss"), strings.Contains(ct, "atom"):
		return true
	case strings.Contains(ct, "json"):
		return bytes.Contains(lb, []byte("jsonfeed.org/version"))
	case strings.Contains(ct, "html"):
		return false
	}
	return bytes.Contains(lb, []byte("<rss")) || bytes.Contains(lb, []byte("<feed")) || bytes.Contains(lb, []byte("<rdf"))
}

// joinURL 将相对路径解析为绝对 URL。
func joinURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return u.ResolveReference(ru).String()
}

// joinURLDir 将 base 视为目录进行相对拼接（即便 base 不以 / 结尾）。
func joinURLDir(base, ref string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimPrefix(ref, "/")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	ru, err := url.Parse(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return u.String() + strings.TrimPrefix(ref, "/")
	}
	return u.ResolveReference(ru).String()
}
