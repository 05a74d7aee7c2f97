package main

import (
	"html/template"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const contentTypeHTML = "text/html; charset=utf-8"

// notFoundCacheLimit bounds the cache when filling it with not-found renders;
// arbitrary-path probing must not grow the map without limit.
const notFoundCacheLimit = 1024

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">{{end}}
</head>
<body>
<header class="site-header">
<a class="logo" href="{{.HomeHref}}" aria-label="Home page">Spreetzit</a>
<nav>
{{range .Nav}}<a href="{{.Href}}">{{.Label}}</a>
{{end}}</nav>
</header>
<main>
{{.Body}}
</main>
<footer class="site-footer">
<nav>
{{range .Nav}}<a href="{{.Href}}">{{.Label}}</a>
{{end}}</nav>
<p>&copy; {{.Year}} Spreetzit</p>
</footer>
</body>
</html>
`))

type navLink struct {
	Label string
	Href  string
}

type shellData struct {
	Lang        string
	Title       string
	Description string
	HomeHref    string
	Nav         []navLink
	Body        template.HTML
	Year        int
}

var baseNavItems = []struct {
	Href  string
	Label map[string]string
}{
	{Href: "/", Label: map[string]string{"it": "Home", "en": "Home"}},
	{Href: "/blog", Label: map[string]string{"it": "Blog", "en": "Blog"}},
	{Href: "/about", Label: map[string]string{"it": "About", "en": "About"}},
}

func navLinksFor(language string) []navLink {
	links := make([]navLink, 0, len(baseNavItems))
	for _, item := range baseNavItems {
		href := item.Href
		if language == englishLanguage {
			href = withEnglishPrefix(href)
		}
		links = append(links, navLink{Label: item.Label[language], Href: href})
	}
	return links
}

func withEnglishPrefix(p string) string {
	if p == "/" {
		return "/en"
	}
	if p == "/en" || strings.HasPrefix(p, "/en/") {
		return p
	}
	return "/en" + p
}

// languageForPath derives the language from the reserved leading segment.
func languageForPath(requestPath string) string {
	if requestPath == "/en" || strings.HasPrefix(requestPath, "/en/") {
		return englishLanguage
	}
	return defaultLanguage
}

// slugForPath joins the path segments into the lookup slug. The language
// prefix stays part of the slug ("en/blog"); a bare language root maps to its
// reserved root slug, never to the empty string.
func slugForPath(requestPath string) string {
	slug := strings.Trim(requestPath, "/")
	if slug == "" {
		return homeSlug
	}
	return slug
}

// pageMetadata derives the page-shell metadata from an already fetched
// document so the shell and the body always come from the same fetch.
func pageMetadata(page *Page) (title, description string) {
	title = page.MetaTitle
	if title == "" {
		title = page.Title
	}
	if title == "" {
		title = "Spreetzit"
	}
	return title, page.MetaDescription
}

func (a *App) pageHandler(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "Not found"})
		return
	}

	requestPath := path.Clean(c.Request.URL.Path)
	if !strings.HasPrefix(requestPath, "/") {
		requestPath = "/" + requestPath
	}

	if entry, ok := a.pages.Get(requestPath); ok {
		metricPageCacheHits.Inc()
		c.Data(entry.Status, contentTypeHTML, []byte(entry.HTML))
		return
	}

	language := languageForPath(requestPath)
	slug := slugForPath(requestPath)

	page, err := a.fetchPageBySlug(c, slug)
	if err != nil {
		a.log.Error("page fetch failed", "slug", slug, "err", err)
		metricPageRenders.WithLabelValues(language, "error").Inc()
		c.Data(http.StatusInternalServerError, contentTypeHTML, []byte(a.renderErrorPage(language)))
		return
	}

	if page == nil {
		// Not-found renders are cached too: publishing the page later
		// triggers a webhook purge that makes it appear.
		html := a.renderNotFoundPage(language)
		if a.pages.Len() < notFoundCacheLimit {
			a.pages.Put(requestPath, cachedPage{HTML: html, Status: http.StatusNotFound, RenderedAt: time.Now()})
		}
		metricPageRenders.WithLabelValues(language, "not_found").Inc()
		c.Data(http.StatusNotFound, contentTypeHTML, []byte(html))
		return
	}

	body, err := a.renderBlocks(c, page.Blocks, language)
	if err != nil {
		a.log.Error("block render failed", "slug", slug, "err", err)
		metricPageRenders.WithLabelValues(language, "error").Inc()
		c.Data(http.StatusInternalServerError, contentTypeHTML, []byte(a.renderErrorPage(language)))
		return
	}

	title, description := pageMetadata(page)
	html, err := a.renderShell(language, title, description, body)
	if err != nil {
		a.log.Error("shell render failed", "slug", slug, "err", err)
		metricPageRenders.WithLabelValues(language, "error").Inc()
		c.Data(http.StatusInternalServerError, contentTypeHTML, []byte(a.renderErrorPage(language)))
		return
	}

	a.pages.Put(requestPath, cachedPage{HTML: html, Status: http.StatusOK, RenderedAt: time.Now()})
	metricPageRenders.WithLabelValues(language, "ok").Inc()
	c.Data(http.StatusOK, contentTypeHTML, []byte(html))
}

func (a *App) renderShell(language, title, description string, body template.HTML) (string, error) {
	var sb strings.Builder
	data := shellData{
		Lang:        language,
		Title:       title,
		Description: description,
		HomeHref:    languageRootPaths[language],
		Nav:         navLinksFor(language),
		Body:        body,
		Year:        time.Now().Year(),
	}
	if err := shellTemplate.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (a *App) renderNotFoundPage(language string) string {
	title := "Pagina non trovata"
	message := "La pagina che stai cercando non esiste."
	if language == englishLanguage {
		title = "Page not found"
		message = "The page you are looking for does not exist."
	}
	body := template.HTML("<section class=\"not-found\"><h1>404</h1><p>" + template.HTMLEscapeString(message) + "</p></section>")
	html, err := a.renderShell(language, title, "", body)
	if err != nil {
		return "<!DOCTYPE html><html><body><h1>404</h1></body></html>"
	}
	return html
}

func (a *App) renderErrorPage(language string) string {
	title := "Errore"
	message := "Si è verificato un errore. Riprova più tardi."
	if language == englishLanguage {
		title = "Error"
		message = "Something went wrong. Please try again later."
	}
	body := template.HTML("<section class=\"error\"><h1>500</h1><p>" + template.HTMLEscapeString(message) + "</p></section>")
	html, err := a.renderShell(language, title, "", body)
	if err != nil {
		return "<!DOCTYPE html><html><body><h1>500</h1></body></html>"
	}
	return html
}
