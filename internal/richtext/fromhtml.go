package richtext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-spacetraveling/internal/model"
)

// FromHTML 将 HTML 片段解析为富文本块：
// 标题/段落/pre/列表项/图片各成一块，其他容器只取其下的块级元素。
// 没有任何块级元素时，整体文本作为一个段落；解析失败返回 nil。
func FromHTML(fragment string) model.RichText {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var out model.RichText
	doc.Find("h1,h2,h3,h4,h5,h6,p,pre,li,img").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "img":
			src, _ := s.Attr("src")
			alt, _ := s.Attr("alt")
			if src != "" {
				out = append(out, model.TextBlock{Type: Image, URL: src, Alt: alt})
			}
			return
		case "li":
			typ := ListItem
			if goquery.NodeName(s.Parent()) == "ol" {
				typ = OListItem
			}
			out = append(out, textBlock(typ, s))
			return
		case "pre":
			out = append(out, model.TextBlock{Type: Preformatted, Text: s.Text()})
			return
		case "p":
			// 列表项里的段落已经算在 li 中
			if s.ParentsFiltered("li").Length() > 0 {
				return
			}
			out = append(out, textBlock(Paragraph, s))
		default:
			out = append(out, textBlock("heading"+name[1:], s))
		}
	})
	if len(out) == 0 {
		if txt := strings.TrimSpace(doc.Text()); txt != "" {
			out = append(out, model.TextBlock{Type: Paragraph, Text: txt})
		}
	}
	return out
}

// textBlock 提取元素文本，同时把 strong/b、em/i、a 记录为标注。
func textBlock(typ string, s *goquery.Selection) model.TextBlock {
	b := model.TextBlock{Type: typ}
	var sb strings.Builder
	pos := 0
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				t := c.Text()
				sb.WriteString(t)
				pos += len([]rune(t))
				return
			}
			start := pos
			walk(c)
			span := model.Span{Start: start, End: pos}
			switch goquery.NodeName(c) {
			case "strong", "b":
				span.Type = "strong"
			case "em", "i":
				span.Type = "em"
			case "a":
				span.Type = "hyperlink"
				span.URL, _ = c.Attr("href")
			default:
				return
			}
			if span.End > span.Start {
				b.Spans = append(b.Spans, span)
			}
		})
	}
	walk(s)
	b.Text = sb.String()
	return b
}
