// 包 export 负责导出 posts.json：首屏文章（带日期文案与阅读时长）、下一页令牌与统计。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"go-spacetraveling/internal/datefmt"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/store"
)

// FileName 为导出文件名。
const FileName = "posts.json"

// ToJSON 从缓存库中取最新的 limit 篇文章写入 JSON 文件，用于上游不可用时的离线导出。
// 缓存中没有下一页令牌，因此 next_page 为空。
func ToJSON(ctx context.Context, s *store.SQLite, dates datefmt.Formatter, href func(uid string) string, limit int, path string) error {
	posts, err := s.ListPosts(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	out := model.Export{Stats: stats, Results: make([]model.ListedPost, 0, len(posts))}
	for _, p := range posts {
		lp := model.ListedPost{Post: p, DateLabel: dates.Format(p.PublicationDate)}
		if href != nil {
			lp.Href = href(p.UID)
		}
		out.Results = append(out.Results, lp)
	}
	return write(out, path)
}

// write 以缩进格式写入文件（先写临时文件再改名，避免读到半截内容）。
func write(out model.Export, path string) error {
	if out.Results == nil {
		out.Results = []model.ListedPost{}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	logx.Infof("已导出 %s：文章=%d 大小=%s", path, len(out.Results), humanize.Bytes(uint64(len(b)+1)))
	return nil
}
