package cms

import (
	"encoding/json"
	"strings"
	"time"

	"go-spacetraveling/internal/datefmt"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/richtext"
)

// apiInfo 为 API 根路径返回的仓库信息（只取 refs）。
type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// searchResponse 为 documents/search 的响应。
type searchResponse struct {
	Page             int        `json:"page"`
	TotalResultsSize int        `json:"total_results_size"`
	NextPage         *string    `json:"next_page"`
	Results          []document `json:"results"`
}

type document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

type postData struct {
	Title    json.RawMessage `json:"title"`
	Subtitle json.RawMessage `json:"subtitle"`
	Author   json.RawMessage `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading json.RawMessage `json:"heading"`
		Body    []rawBlock      `json:"body"`
	} `json:"content"`
}

type rawBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Alt   string `json:"alt"`
	Spans []struct {
		Start int    `json:"start"`
		End   int    `json:"end"`
		Type  string `json:"type"`
		Data  struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"spans"`
	Oembed struct {
		EmbedURL string `json:"embed_url"`
	} `json:"oembed"`
}

// date 解析发布日期；缺失为 nil，格式异常时记录调试日志并视为缺失。
func (d document) date() *time.Time {
	if d.FirstPublicationDate == nil || *d.FirstPublicationDate == "" {
		return nil
	}
	t := datefmt.ParsePtr(*d.FirstPublicationDate)
	if t == nil {
		logx.Debugf("发布日期格式异常：uid=%s 值=%q", d.UID, *d.FirstPublicationDate)
	}
	return t
}

func (d document) data() postData {
	var pd postData
	if len(d.Data) == 0 {
		return pd
	}
	if err := json.Unmarshal(d.Data, &pd); err != nil {
		logx.Debugf("文档数据解析失败：uid=%s 错误=%v", d.UID, err)
	}
	return pd
}

func (d document) toPost() model.Post {
	pd := d.data()
	return model.Post{
		UID:             d.UID,
		PublicationDate: d.date(),
		Title:           textField(pd.Title),
		Subtitle:        textField(pd.Subtitle),
		Author:          textField(pd.Author),
	}
}

func (d document) toDetail() model.PostDetail {
	pd := d.data()
	det := model.PostDetail{
		UID:             d.UID,
		Type:            d.Type,
		PublicationDate: d.date(),
		Title:           textField(pd.Title),
		Author:          textField(pd.Author),
		Banner:          model.Banner{URL: pd.Banner.URL},
		Content:         make([]model.ContentBlock, 0, len(pd.Content)),
	}
	for _, c := range pd.Content {
		det.Content = append(det.Content, model.ContentBlock{
			Heading: textField(c.Heading),
			Body:    toRichText(c.Body),
		})
	}
	return det
}

// textField 兼容 Key Text（字符串）与 Rich Text（块数组）两种字段类型；
// 缺失、null 或无法识别时返回空串。
func textField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []rawBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return richtext.Heading(toRichText(blocks))
	}
	return ""
}

func toRichText(in []rawBlock) model.RichText {
	out := make(model.RichText, 0, len(in))
	for _, b := range in {
		tb := model.TextBlock{Type: b.Type, Text: b.Text, URL: b.URL, Alt: b.Alt}
		if b.Type == richtext.Embed {
			tb.URL = b.Oembed.EmbedURL
		}
		for _, s := range b.Spans {
			tb.Spans = append(tb.Spans, model.Span{Start: s.Start, End: s.End, Type: s.Type, URL: s.Data.URL})
		}
		out = append(out, tb)
	}
	return out
}
