package main

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown renders CMS rich text. Raw HTML in the source is not passed
// through, so rendered output is safe to embed without further escaping.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// renderBlocks renders a page's block list in document order. Unknown block
// types render nothing rather than failing the whole page.
func (a *App) renderBlocks(c *gin.Context, blocks []Block, language string) (template.HTML, error) {
	var sb strings.Builder
	for _, block := range blocks {
		var (
			rendered template.HTML
			err      error
		)
		switch block.Type() {
		case "hero":
			rendered, err = renderHeroBlock(block)
		case "section-header":
			rendered, err = renderSectionHeaderBlock(block)
		case "all-posts":
			rendered, err = a.renderAllPostsBlock(c, language)
		case "contactform":
			rendered = a.renderContactFormBlock(block)
		default:
			continue
		}
		if err != nil {
			return "", fmt.Errorf("render block %q: %w", block.Type(), err)
		}
		sb.WriteString(string(rendered))
	}
	return template.HTML(sb.String()), nil
}

func renderHeroBlock(block Block) (template.HTML, error) {
	var sb strings.Builder
	sb.WriteString(`<section class="hero">`)
	if title := block.Field("title"); title != "" {
		sb.WriteString("<h1>" + template.HTMLEscapeString(title) + "</h1>")
	}
	if tagline := block.Field("tagline"); tagline != "" {
		body, err := renderMarkdown(tagline)
		if err != nil {
			return "", err
		}
		sb.WriteString(string(body))
	}
	sb.WriteString("</section>")
	return template.HTML(sb.String()), nil
}

func renderSectionHeaderBlock(block Block) (template.HTML, error) {
	var sb strings.Builder
	sb.WriteString(`<section class="section-header">`)
	if title := block.Field("title"); title != "" {
		sb.WriteString("<h2>" + template.HTMLEscapeString(title) + "</h2>")
	}
	if content := block.Field("content"); content != "" {
		body, err := renderMarkdown(content)
		if err != nil {
			return "", err
		}
		sb.WriteString(string(body))
	}
	sb.WriteString("</section>")
	return template.HTML(sb.String()), nil
}

func (a *App) renderAllPostsBlock(c *gin.Context, language string) (template.HTML, error) {
	posts, err := a.fetchPosts(c)
	if err != nil {
		return "", err
	}

	heading := "Ultime notizie"
	blogBase := "/blog/"
	if language == englishLanguage {
		heading = "Latest News"
		blogBase = "/en/blog/"
	}

	var sb strings.Builder
	sb.WriteString(`<section class="all-posts"><h1>` + heading + "</h1><ul>")
	for _, post := range posts {
		sb.WriteString(`<li><a href="` + blogBase + template.HTMLEscapeString(post.Slug.Current) + `">`)
		sb.WriteString(template.HTMLEscapeString(post.Title))
		sb.WriteString("</a>")
		if post.Excerpt != "" {
			sb.WriteString("<p>" + template.HTMLEscapeString(post.Excerpt) + "</p>")
		}
		if len(post.Categories) > 0 {
			sb.WriteString(`<span class="categories">`)
			for i, category := range post.Categories {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(template.HTMLEscapeString(category.Title))
			}
			sb.WriteString("</span>")
		}
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul></section>")
	return template.HTML(sb.String()), nil
}

func (a *App) renderContactFormBlock(block Block) template.HTML {
	var sb strings.Builder
	sb.WriteString(`<section class="contactform">`)
	if title := block.Field("title"); title != "" {
		sb.WriteString("<h2>" + template.HTMLEscapeString(title) + "</h2>")
	}
	if description := block.Field("description"); description != "" {
		sb.WriteString("<p>" + template.HTMLEscapeString(description) + "</p>")
	}
	buttonText := block.Field("button_text")
	if buttonText == "" {
		buttonText = "Invia"
	}
	sb.WriteString(`<form method="post" action="/api/contactform">`)
	for _, field := range []string{"email", "name", "surname", "organization", "subject"} {
		sb.WriteString(`<input name="` + field + `" required>`)
	}
	sb.WriteString(`<textarea name="description" required></textarea>`)
	if a.cfg.HCaptchaSiteKey != "" {
		sb.WriteString(`<div class="h-captcha" data-sitekey="` + template.HTMLEscapeString(a.cfg.HCaptchaSiteKey) + `"></div>`)
	}
	sb.WriteString(`<button type="submit">` + template.HTMLEscapeString(buttonText) + "</button>")
	sb.WriteString("</form></section>")
	return template.HTML(sb.String())
}
