package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-spacetraveling/internal/comments"
	"go-spacetraveling/internal/model"
)

func TestIndex_LoadMore(t *testing.T) {
	r, err := New(Options{SiteTitle: "spacetraveling", Locale: "pt-BR"})
	require.NoError(t, err)

	posts := []model.ListedPost{{
		Post:      model.Post{UID: "a", Title: "Como <utilizar> Hooks", Subtitle: "sub", Author: "Joseph"},
		Href:      "/post/a",
		DateLabel: "15 mar 2021",
	}}
	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf, IndexPage{Posts: posts, NextPage: "https://cms/api?page=2"}))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find("article.post").Length())
	assert.Equal(t, "Como <utilizar> Hooks", doc.Find("article h2").Text())
	assert.Equal(t, "/post/a", doc.Find("article a").AttrOr("href", ""))
	assert.Equal(t, "15 mar 2021", doc.Find(".post-info .date").Text())
	btn := doc.Find("#load-more")
	require.Equal(t, 1, btn.Length())
	assert.Equal(t, "Carregar mais posts", btn.Text())
	assert.Equal(t, "https://cms/api?page=2", btn.AttrOr("data-next", ""))

	buf.Reset()
	require.NoError(t, r.Index(&buf, IndexPage{Posts: posts}))
	assert.NotContains(t, buf.String(), "load-more")
}

func TestPost_WithComments(t *testing.T) {
	r, err := New(Options{
		SiteTitle: "spacetraveling",
		Locale:    "pt-BR",
		Comments:  comments.Config{Repo: "owner/repo", IssueTerm: "pathname", Theme: "photon-dark"},
	})
	require.NoError(t, err)

	ts := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	d := model.PostDetail{
		UID:             "como-utilizar-hooks",
		Title:           "Como utilizar Hooks",
		Author:          "Joseph",
		PublicationDate: &ts,
		Banner:          model.Banner{URL: "https://images/banner.png"},
		Content: []model.ContentBlock{{
			Heading: "Proin et varius",
			Body:    model.RichText{{Type: "paragraph", Text: "Lorem ipsum", Spans: []model.Span{{Start: 0, End: 5, Type: "strong"}}}},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, r.Post(&buf, NewPostPage(d, "15 mar 2021", 4)))
	out := buf.String()
	assert.True(t, strings.HasPrefix(strings.ToLower(out), "<!doctype html>"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "Como utilizar Hooks", doc.Find("h1").Text())
	assert.Equal(t, "4 min", doc.Find(".reading-time").Text())
	assert.Equal(t, "https://images/banner.png", doc.Find("img.banner").AttrOr("src", ""))
	assert.Equal(t, "Proin et varius", doc.Find("section h2").Text())
	assert.Equal(t, "Lorem", doc.Find(".post-content strong").Text())

	script := doc.Find("#comments script")
	require.Equal(t, 1, script.Length())
	assert.Equal(t, comments.ScriptSrc, script.AttrOr("src", ""))
	assert.Equal(t, "owner/repo", script.AttrOr("repo", ""))
}

func TestPost_CommentsDisabled(t *testing.T) {
	r, err := New(Options{SiteTitle: "blog", Locale: "en"})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Post(&buf, NewPostPage(model.PostDetail{UID: "x", Title: "X"}, "Date unavailable", 0)))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#comments").Length())
	assert.Equal(t, 0, doc.Find("#comments script").Length())
	assert.Equal(t, 0, doc.Find(".reading-time").Length())
	assert.Equal(t, "Date unavailable", doc.Find(".date").Text())
}
