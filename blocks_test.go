package main

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testGinContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	return c
}

func TestRenderBlocksSkipsUnknownTypes(t *testing.T) {
	app := newTestApp(t)
	c := testGinContext(t)

	body, err := app.renderBlocks(c, []Block{
		{"_type": "video-embed", "url": "https://example.com"},
		{"_type": "hero", "title": "Visible"},
		{"_type": ""},
	}, defaultLanguage)
	if err != nil {
		t.Fatalf("renderBlocks() error = %v", err)
	}

	if !strings.Contains(string(body), "Visible") {
		t.Error("known block missing from output")
	}
	if strings.Contains(string(body), "video-embed") || strings.Contains(string(body), "example.com") {
		t.Error("unknown block leaked into output")
	}
}

func TestRenderBlocksPreservesOrder(t *testing.T) {
	app := newTestApp(t)
	c := testGinContext(t)

	body, err := app.renderBlocks(c, []Block{
		{"_type": "section-header", "title": "Alpha"},
		{"_type": "hero", "title": "Beta"},
		{"_type": "section-header", "title": "Gamma"},
	}, defaultLanguage)
	if err != nil {
		t.Fatalf("renderBlocks() error = %v", err)
	}

	rendered := string(body)
	if !(strings.Index(rendered, "Alpha") < strings.Index(rendered, "Beta") && strings.Index(rendered, "Beta") < strings.Index(rendered, "Gamma")) {
		t.Fatalf("blocks out of order:\n%s", rendered)
	}
}

func TestRenderMarkdownDoesNotPassRawHTML(t *testing.T) {
	out, err := renderMarkdown("hello <script>alert(1)</script> **world**")
	if err != nil {
		t.Fatalf("renderMarkdown() error = %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Fatalf("raw HTML passed through: %s", out)
	}
	if !strings.Contains(string(out), "<strong>world</strong>") {
		t.Errorf("markdown emphasis not rendered: %s", out)
	}
}

func TestRenderHeroEscapesTitle(t *testing.T) {
	out, err := renderHeroBlock(Block{"_type": "hero", "title": `<img onerror=x>`})
	if err != nil {
		t.Fatalf("renderHeroBlock() error = %v", err)
	}
	if strings.Contains(string(out), "<img") {
		t.Fatalf("unescaped title: %s", out)
	}
}

func TestRenderAllPostsBlockLocalized(t *testing.T) {
	app := newTestApp(t)
	app.fetchPosts = func(c *gin.Context) ([]Post, error) {
		return []Post{
			{Title: "First post", Slug: SlugField{Current: "first"}, Categories: []PostCategory{{Title: "News"}}},
		}, nil
	}
	c := testGinContext(t)

	it, err := app.renderAllPostsBlock(c, defaultLanguage)
	if err != nil {
		t.Fatalf("render (it) error = %v", err)
	}
	if !strings.Contains(string(it), "Ultime notizie") || !strings.Contains(string(it), `href="/blog/first"`) {
		t.Errorf("unexpected italian output: %s", it)
	}

	en, err := app.renderAllPostsBlock(c, englishLanguage)
	if err != nil {
		t.Fatalf("render (en) error = %v", err)
	}
	if !strings.Contains(string(en), "Latest News") || !strings.Contains(string(en), `href="/en/blog/first"`) {
		t.Errorf("unexpected english output: %s", en)
	}
}

func TestRenderAllPostsBlockFetchError(t *testing.T) {
	app := newTestApp(t)
	app.fetchPosts = func(c *gin.Context) ([]Post, error) {
		return nil, fmt.Errorf("cms down")
	}
	c := testGinContext(t)

	if _, err := app.renderBlocks(c, []Block{{"_type": "all-posts"}}, defaultLanguage); err == nil {
		t.Fatal("expected the post list fetch error to propagate")
	}
}

func TestRenderContactFormBlockIncludesSiteKey(t *testing.T) {
	app := newTestApp(t)

	out := app.renderContactFormBlock(Block{"_type": "contactform", "title": "Contattaci", "button_text": "Invia ora"})
	rendered := string(out)

	if !strings.Contains(rendered, `data-sitekey="site-key"`) {
		t.Error("captcha widget placeholder missing")
	}
	if !strings.Contains(rendered, `action="/api/contactform"`) {
		t.Error("form action missing")
	}
	for _, field := range []string{"email", "name", "surname", "organization", "subject", "description"} {
		if !strings.Contains(rendered, `name="`+field+`"`) {
			t.Errorf("field %s missing from form", field)
		}
	}
}
