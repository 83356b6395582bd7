// 包 routes 负责链接解析（routes.yaml）：按文档类型给出站内路径模板，
// 例如 posts: /post/{uid}。预览跳转与页面输出路径都通过这里计算。
package routes

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Routes 表示全部路由：键为文档类型，值为路径模板（支持 {uid} {type} {id}）。
type Routes struct {
	Patterns map[string]string `yaml:",inline"`
}

// Doc 为解析链接所需的最少文档信息。
type Doc struct {
	ID   string
	UID  string
	Type string
}

// 未配置 routes.yaml 时的内置规则。
var builtin = map[string]string{"posts": "/post/{uid}"}

// Load 从文件加载 YAML 到 Routes.Patterns。
func Load(path string) (*Routes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open routes %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read routes %s: %w", path, err)
	}
	var r Routes
	if err := yaml.Unmarshal(b, &r.Patterns); err != nil {
		return nil, fmt.Errorf("unmarshal routes %s: %w", path, err)
	}
	return &r, nil
}

// Pattern 按类型获取模板（不区分大小写），不存在时回退到 "default"，
// 再回退到内置规则；都没有时返回 false。
func (r *Routes) Pattern(docType string) (string, bool) {
	var patterns map[string]string
	if r != nil {
		patterns = r.Patterns
	}
	if p, ok := lookup(patterns, docType); ok {
		return p, true
	}
	if p, ok := patterns["default"]; ok && p != "" {
		return p, true
	}
	if p, ok := lookup(builtin, docType); ok {
		return p, true
	}
	return "", false
}

func lookup(m map[string]string, key string) (string, bool) {
	if key == "" || len(m) == 0 {
		return "", false
	}
	if p, ok := m[key]; ok && p != "" {
		return p, true
	}
	lower := strings.ToLower(key)
	for k, v := range m {
		if strings.ToLower(k) == lower && v != "" {
			return v, true
		}
	}
	return "", false
}

// Resolve 计算文档的站内路径；无匹配规则或缺少 uid 时返回 "/"。
func (r *Routes) Resolve(d Doc) string {
	p, ok := r.Pattern(d.Type)
	if !ok {
		return "/"
	}
	if strings.Contains(p, "{uid}") && d.UID == "" {
		return "/"
	}
	out := strings.NewReplacer(
		"{uid}", url.PathEscape(d.UID),
		"{type}", url.PathEscape(d.Type),
		"{id}", url.PathEscape(d.ID),
	).Replace(p)
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}
