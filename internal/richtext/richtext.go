// 包 richtext 负责结构化富文本的转换：
// - AsText：拼接为纯文本（用于字数统计/摘要）
// - AsHTML：渲染为 HTML（段落/标题/列表/图片 + strong/em/hyperlink 标注）
// - FromHTML：将 HTML 片段（如订阅正文）解析为富文本块
package richtext

import (
	"html"
	"net/url"
	"sort"
	"strings"

	"go-spacetraveling/internal/model"
)

// 块类型，与内容 API 的命名保持一致。
const (
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// AsText 以空格拼接所有块的文本，图片/嵌入块不贡献文本。
func AsText(rt model.RichText) string {
	parts := make([]string, 0, len(rt))
	for _, b := range rt {
		if b.Type == Image || b.Type == Embed {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " ")
}

// Heading 返回标题字段的纯文本（去除首尾空白）。
func Heading(rt model.RichText) string {
	return strings.TrimSpace(AsText(rt))
}

// AsHTML 渲染富文本；连续的列表项合并到同一个 ul/ol 中。
func AsHTML(rt model.RichText) string {
	var sb strings.Builder
	list := ""
	closeList := func() {
		if list != "" {
			sb.WriteString("</" + list + ">")
			list = ""
		}
	}
	for _, b := range rt {
		switch b.Type {
		case ListItem, OListItem:
			want := "ul"
			if b.Type == OListItem {
				want = "ol"
			}
			if list != want {
				closeList()
				sb.WriteString("<" + want + ">")
				list = want
			}
			sb.WriteString("<li>" + renderSpans(b.Text, b.Spans) + "</li>")
			continue
		}
		closeList()
		switch b.Type {
		case Image:
			sb.WriteString(`<p class="block-img"><img src="` + html.EscapeString(b.URL) + `" alt="` + html.EscapeString(b.Alt) + `"></p>`)
		case Embed:
			if b.URL != "" {
				sb.WriteString(`<div data-oembed="` + html.EscapeString(b.URL) + `"></div>`)
			}
		case Preformatted:
			sb.WriteString("<pre>" + renderSpans(b.Text, b.Spans) + "</pre>")
		default:
			tag := "p"
			if lv, ok := headingLevel(b.Type); ok {
				tag = "h" + lv
			}
			sb.WriteString("<" + tag + ">" + renderSpans(b.Text, b.Spans) + "</" + tag + ">")
		}
	}
	closeList()
	return sb.String()
}

// headingLevel 识别 heading1..heading6。
func headingLevel(t string) (string, bool) {
	if len(t) == len("heading1") && strings.HasPrefix(t, "heading") {
		lv := t[len(t)-1:]
		if lv >= "1" && lv <= "6" {
			return lv, true
		}
	}
	return "", false
}

// renderSpans 按字符位置插入标注标签；越界的标注会被截断，未知类型忽略。
// 交叉的标注在外层边界处拆开后重新打开，保证标签正确嵌套。
func renderSpans(text string, spans []model.Span) string {
	runes := []rune(text)
	if len(spans) == 0 {
		return html.EscapeString(text)
	}
	valid := make([]model.Span, 0, len(spans))
	for _, s := range spans {
		if _, ok := openTag(s); !ok {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(runes) {
			s.End = len(runes)
		}
		if s.Start >= s.End {
			continue
		}
		valid = append(valid, s)
	}
	// 外层（更长）的标注先打开
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})
	bounds := make([]int, 0, 2*len(valid))
	for _, s := range valid {
		bounds = append(bounds, s.Start, s.End)
	}
	sort.Ints(bounds)

	var sb strings.Builder
	var stack []model.Span
	cur, next := 0, 0
	for i, pos := range bounds {
		if i > 0 && pos == bounds[i-1] {
			continue
		}
		if pos > cur {
			sb.WriteString(html.EscapeString(string(runes[cur:pos])))
			cur = pos
		}
		low := -1
		for k, s := range stack {
			if s.End == pos {
				low = k
				break
			}
		}
		if low >= 0 {
			for k := len(stack) - 1; k >= low; k-- {
				sb.WriteString(closeTag(stack[k]))
			}
			rest := append([]model.Span(nil), stack[low:]...)
			stack = stack[:low]
			for _, s := range rest {
				if s.End == pos {
					continue
				}
				tag, _ := openTag(s)
				sb.WriteString(tag)
				stack = append(stack, s)
			}
		}
		for next < len(valid) && valid[next].Start == pos {
			tag, _ := openTag(valid[next])
			sb.WriteString(tag)
			stack = append(stack, valid[next])
			next++
		}
	}
	if cur < len(runes) {
		sb.WriteString(html.EscapeString(string(runes[cur:])))
	}
	return sb.String()
}

func openTag(s model.Span) (string, bool) {
	switch s.Type {
	case "strong":
		return "<strong>", true
	case "em":
		return "<em>", true
	case "hyperlink":
		if !safeLink(s.URL) {
			return "", false
		}
		return `<a href="` + html.EscapeString(s.URL) + `" target="_blank" rel="noopener noreferrer">`, true
	default:
		return "", false
	}
}

// safeLink 只允许 http/https/mailto 与站内相对链接。
func safeLink(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	case "":
		return u.Host == "" && !strings.HasPrefix(raw, "//")
	}
	return false
}

func closeTag(s model.Span) string {
	switch s.Type {
	case "strong":
		return "</strong>"
	case "em":
		return "</em>"
	default:
		return "</a>"
	}
}
