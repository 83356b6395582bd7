// 包 render 使用内嵌的 html/template 渲染首页与文章页，
// 文章页渲染后再用 goquery 挂载评论脚本。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-spacetraveling/internal/comments"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/richtext"
)

//go:embed templates/*.html
var files embed.FS

var loadMoreLabels = map[string]string{
	"pt": "Carregar mais posts",
	"en": "Load more posts",
	"zh": "加载更多文章",
}

// Options 为渲染器配置。
type Options struct {
	SiteTitle    string
	Locale       string
	API          string // 加载更多使用的接口地址
	Comments     comments.Config
	CommentsNode string
}

// Renderer 持有解析好的模板，可并发使用。
type Renderer struct {
	opts Options
	tpl  *template.Template
}

// IndexPage 为首页数据：首屏文章与下一页令牌。
type IndexPage struct {
	Posts    []model.ListedPost
	NextPage string
}

// Section 为文章页中的一节，Body 为已渲染的 HTML。
type Section struct {
	Heading string
	Body    template.HTML
}

// PostPage 为文章页数据。
type PostPage struct {
	UID         string
	Title       string
	Author      string
	Banner      string
	DateLabel   string
	ReadingTime int
	Sections    []Section
}

// New 解析内嵌模板。
func New(opts Options) (*Renderer, error) {
	if opts.API == "" {
		opts.API = "/api/posts"
	}
	if opts.CommentsNode == "" {
		opts.CommentsNode = "comments"
	}
	tpl, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{opts: opts, tpl: tpl}, nil
}

// NewPostPage 将文章详情转换为页面数据；正文按富文本渲染为 HTML。
func NewPostPage(d model.PostDetail, dateLabel string, minutes int) PostPage {
	p := PostPage{
		UID:         d.UID,
		Title:       d.Title,
		Author:      d.Author,
		Banner:      d.Banner.URL,
		DateLabel:   dateLabel,
		ReadingTime: minutes,
		Sections:    make([]Section, 0, len(d.Content)),
	}
	for _, c := range d.Content {
		p.Sections = append(p.Sections, Section{
			Heading: c.Heading,
			// AsHTML 对文本与属性做了转义
			Body: template.HTML(richtext.AsHTML(c.Body)),
		})
	}
	return p
}

func (r *Renderer) lang() string {
	l := strings.ToLower(r.opts.Locale)
	for k := range loadMoreLabels {
		if strings.HasPrefix(l, k) {
			return k
		}
	}
	return "pt"
}

// Index 渲染首页；有下一页时输出“加载更多”按钮。
func (r *Renderer) Index(w io.Writer, p IndexPage) error {
	data := struct {
		IndexPage
		SiteTitle     string
		Lang          string
		API           string
		LoadMoreLabel string
		CanLoadMore   bool
	}{
		IndexPage:     p,
		SiteTitle:     r.opts.SiteTitle,
		Lang:          r.opts.Locale,
		API:           r.opts.API,
		LoadMoreLabel: loadMoreLabels[r.lang()],
		CanLoadMore:   p.NextPage != "",
	}
	if err := r.tpl.ExecuteTemplate(w, "index.html", data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}

// Post 渲染文章页并在评论节点中挂载评论脚本。
func (r *Renderer) Post(w io.Writer, p PostPage) error {
	data := struct {
		PostPage
		SiteTitle    string
		Lang         string
		CommentsNode string
	}{p, r.opts.SiteTitle, r.opts.Locale, r.opts.CommentsNode}
	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, "post.html", data); err != nil {
		return fmt.Errorf("render post %s: %w", p.UID, err)
	}
	if !r.opts.Comments.Enabled() {
		_, err := buf.WriteTo(w)
		return err
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return fmt.Errorf("parse rendered post %s: %w", p.UID, err)
	}
	comments.Mount(doc, r.opts.CommentsNode, r.opts.Comments, "")
	out, err := doc.Html()
	if err != nil {
		return fmt.Errorf("serialize post %s: %w", p.UID, err)
	}
	_, err = io.WriteString(w, out)
	return err
}
