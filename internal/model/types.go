// 包 model 定义博客的数据模型（文章摘要/分页/富文本/详情/导出结构）。
package model

import "time"

// Post 为列表页使用的文章摘要；标题等字段上游可能缺失，缺失即空串。
type Post struct {
	UID             string     `json:"uid"`
	PublicationDate *time.Time `json:"first_publication_date"`
	Title           string     `json:"title"`
	Subtitle        string     `json:"subtitle"`
	Author          string     `json:"author"`
}

// PostPage 为一次抓取结果：结果保持服务端顺序，NextPage 为空表示没有下一页。
type PostPage struct {
	Results  []Post `json:"results"`
	NextPage string `json:"next_page"`
}

// Span 为富文本片段上的标注（strong/em/hyperlink）。
// Start/End 以字符（rune）为单位。
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
}

// TextBlock 为富文本中的一个块（段落、标题、列表项、图片等）。
type TextBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`
	URL   string `json:"url,omitempty"`
	Alt   string `json:"alt,omitempty"`
}

// RichText 为结构化富文本。
type RichText []TextBlock

// ContentBlock 为文章正文的一节：标题 + 富文本正文。
type ContentBlock struct {
	Heading string   `json:"heading"`
	Body    RichText `json:"body"`
}

// Banner 为文章头图。
type Banner struct {
	URL string `json:"url"`
}

// PostDetail 为文章详情页数据。
type PostDetail struct {
	UID             string         `json:"uid"`
	Type            string         `json:"type"`
	PublicationDate *time.Time     `json:"first_publication_date"`
	Title           string         `json:"title"`
	Author          string         `json:"author"`
	Banner          Banner         `json:"banner"`
	Content         []ContentBlock `json:"content"`
}

// Summary 返回详情对应的摘要形式（详情没有副标题）。
func (d PostDetail) Summary() Post {
	return Post{
		UID:             d.UID,
		PublicationDate: d.PublicationDate,
		Title:           d.Title,
		Author:          d.Author,
	}
}

// Stats 为一次构建的统计信息。
type Stats struct {
	PostsTotal    int       `json:"posts_total"`
	PostsRendered int       `json:"posts_rendered"`
	PostsFailed   int       `json:"posts_failed"`
	PagesFetched  int       `json:"pages_fetched"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListedPost 为导出/接口返回的列表条目，附带格式化后的日期与文章链接。
type ListedPost struct {
	Post
	Href        string `json:"href"`
	DateLabel   string `json:"date_label"`
	ReadingTime int    `json:"reading_time,omitempty"`
}

// Export 为 posts.json 顶层结构，供客户端“加载更多”合并使用。
type Export struct {
	Stats    Stats        `json:"stats"`
	Results  []ListedPost `json:"results"`
	NextPage string       `json:"next_page"`
}
