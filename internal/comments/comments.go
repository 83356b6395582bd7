// 包 comments 负责在页面中挂载 Utterances 评论脚本。
// 挂载即获取资源，Close 负责移除；节点 id 由调用方显式传入，不依赖任何全局状态。
package comments

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ScriptSrc 为 Utterances 客户端脚本地址。
const ScriptSrc = "https://utteranc.es/client.js"

// Config 为脚本属性；Repo 为空表示未启用评论。
type Config struct {
	Repo      string
	IssueTerm string
	Label     string
	Theme     string
}

// Enabled 判断是否配置了评论仓库。
func (c Config) Enabled() bool { return strings.TrimSpace(c.Repo) != "" }

// ScriptHTML 生成 script 标签；term 非空时覆盖 IssueTerm（例如按 slug 区分）。
func (c Config) ScriptHTML(term string) string {
	if term == "" {
		term = c.IssueTerm
	}
	if term == "" {
		term = "pathname"
	}
	attrs := [][2]string{
		{"src", ScriptSrc},
		{"repo", c.Repo},
		{"issue-term", term},
		{"label", c.Label},
		{"theme", c.Theme},
		{"crossorigin", "anonymous"},
	}
	var sb strings.Builder
	sb.WriteString(`<script async data-comments=""`)
	for _, a := range attrs {
		if a[1] == "" {
			continue
		}
		sb.WriteString(" " + a[0] + `="` + html.EscapeString(a[1]) + `"`)
	}
	sb.WriteString("></script>")
	return sb.String()
}

// Widget 为一次挂载得到的资源句柄。
type Widget struct {
	cfg    Config
	parent *goquery.Selection
	script *goquery.Selection
}

// Mount 在 #nodeID 元素内追加评论脚本。
// 未启用或找不到节点时返回空句柄（Mounted 为 false），不视为错误。
func Mount(doc *goquery.Document, nodeID string, cfg Config, term string) *Widget {
	w := &Widget{cfg: cfg}
	if doc == nil || !cfg.Enabled() || nodeID == "" {
		return w
	}
	parent := doc.Find("#" + nodeID).First()
	if parent.Length() == 0 {
		return w
	}
	w.parent = parent
	w.attach(term)
	return w
}

func (w *Widget) attach(term string) {
	before := w.parent.Children().Length()
	w.parent.AppendHtml(w.cfg.ScriptHTML(term))
	w.script = w.parent.Children().Slice(before, goquery.ToEnd)
}

// Mounted 判断脚本当前是否挂载在页面中。
func (w *Widget) Mounted() bool { return w != nil && w.script != nil && w.script.Length() > 0 }

// Close 只移除本次挂载的脚本，可重复调用。
func (w *Widget) Close() {
	if !w.Mounted() {
		return
	}
	w.script.Remove()
	w.script = nil
}

// Remount 在标识变化时先释放旧脚本再挂载新脚本。
func (w *Widget) Remount(term string) {
	if w == nil || w.parent == nil {
		return
	}
	w.Close()
	w.attach(term)
}
