package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spreetzit/api/mailer"

	"github.com/gin-gonic/gin"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &App{
		cfg: &Config{
			Env:              "test",
			PublicBaseURL:    "https://spreetzit.com",
			HCaptchaSecret:   "captcha-secret",
			HCaptchaSiteKey:  "site-key",
			RevalidateSecret: "webhook-secret",
			OperatorEmail:    "operator@spreetzit.com",
			MailerFromAddresses: map[string]string{
				"log": "noreply@spreetzit.local",
			},
		},
		log:      logger,
		pages:    newPageCache(),
		mailFrom: "noreply@spreetzit.local",
	}
	app.mailer = mailer.New(mailer.NewLogProvider(logger), app.mailFrom)

	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) { return nil, nil }
	app.fetchPosts = func(c *gin.Context) ([]Post, error) { return nil, nil }
	app.fetchEmailTemplate = func(c *gin.Context, key, language string) (*EmailTemplate, error) { return nil, nil }
	app.verifyCaptcha = func(c *gin.Context, token, remoteIP string) (*CaptchaVerification, error) {
		return &CaptchaVerification{Success: true}, nil
	}
	app.runRawQuery = func(c *gin.Context, query string) ([]byte, error) { return []byte("null"), nil }

	return app
}

func newTestRouter(app *App) *gin.Engine {
	r := gin.New()
	app.registerRoutes(r)
	return r
}

func TestSlugForPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", homeSlug},
		{"/en", englishRootSlug},
		{"/about", "about"},
		{"/en/blog", "en/blog"},
		{"/a/b/c", "a/b/c"},
	}
	for _, tc := range cases {
		if got := slugForPath(tc.path); got != tc.want {
			t.Errorf("slugForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLanguageForPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", defaultLanguage},
		{"/about", defaultLanguage},
		{"/entry", defaultLanguage},
		{"/en", englishLanguage},
		{"/en/blog", englishLanguage},
	}
	for _, tc := range cases {
		if got := languageForPath(tc.path); got != tc.want {
			t.Errorf("languageForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPageMetadataPrefersMetaTitle(t *testing.T) {
	title, description := pageMetadata(&Page{Title: "Plain", MetaTitle: "Meta", MetaDescription: "Desc"})
	if title != "Meta" || description != "Desc" {
		t.Fatalf("got (%q, %q), want (Meta, Desc)", title, description)
	}

	title, _ = pageMetadata(&Page{Title: "Plain"})
	if title != "Plain" {
		t.Fatalf("title = %q, want fallback to Title", title)
	}
}

func TestPageHandlerRendersBlocksInOrder(t *testing.T) {
	app := newTestApp(t)
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		return &Page{
			Title:           "About us",
			MetaDescription: "About Spreetzit",
			Blocks: []Block{
				{"_type": "hero", "title": "First Heading"},
				{"_type": "section-header", "title": "Second Heading"},
			},
		}, nil
	}
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/about", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	first := strings.Index(body, "First Heading")
	second := strings.Index(body, "Second Heading")
	if first < 0 || second < 0 {
		t.Fatalf("rendered body missing block content:\n%s", body)
	}
	if first > second {
		t.Errorf("blocks rendered out of order")
	}
	if !strings.Contains(body, "About Spreetzit") {
		t.Errorf("meta description missing from shell")
	}
}

func TestPageHandlerUnknownSlugNotFound(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no-such-page", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "404") {
		t.Errorf("not-found page missing 404 marker")
	}
}

func TestPageHandlerRootUsesHomeSlug(t *testing.T) {
	app := newTestApp(t)
	var requested string
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		requested = slug
		return &Page{Title: "Home"}, nil
	}
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if requested != homeSlug {
		t.Fatalf("fetched slug %q, want %q", requested, homeSlug)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPageHandlerEnglishRootSlug(t *testing.T) {
	app := newTestApp(t)
	var requested string
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		requested = slug
		return &Page{Title: "Home"}, nil
	}
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/en", nil))

	if requested != englishRootSlug {
		t.Fatalf("fetched slug %q, want %q", requested, englishRootSlug)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPageHandlerMultiSegmentSlug(t *testing.T) {
	app := newTestApp(t)
	var requested string
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		requested = slug
		return &Page{Title: "Blog"}, nil
	}
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/en/blog", nil))

	if requested != "en/blog" {
		t.Fatalf("fetched slug %q, want en/blog", requested)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPageHandlerServesSecondRequestFromCache(t *testing.T) {
	app := newTestApp(t)
	fetches := 0
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		fetches++
		return &Page{Title: "Cached"}, nil
	}
	router := newTestRouter(app)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cached-page", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	if fetches != 1 {
		t.Fatalf("fetch count = %d, want 1 (second request should hit the cache)", fetches)
	}
}

func TestPageHandlerFetchErrorIsServerError(t *testing.T) {
	app := newTestApp(t)
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		return nil, io.ErrUnexpectedEOF
	}
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if app.pages.Len() != 0 {
		t.Errorf("error responses must not be cached")
	}
}

func TestNavLinksLocalization(t *testing.T) {
	it := navLinksFor(defaultLanguage)
	if it[0].Href != "/" || it[1].Href != "/blog" {
		t.Errorf("unexpected italian nav: %+v", it)
	}

	en := navLinksFor(englishLanguage)
	if en[0].Href != "/en" || en[1].Href != "/en/blog" {
		t.Errorf("unexpected english nav: %+v", en)
	}
}

func TestPageHandlerRejectsNonGET(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/about", strings.NewReader("{}")))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "not_found" || resp.Message != "Not found" {
		t.Errorf("unexpected error body: %+v", resp)
	}
}

func TestPageHandlerNotFoundCacheIsBounded(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)

	for i := 0; i < notFoundCacheLimit; i++ {
		app.pages.Put(fmt.Sprintf("/probe-%d", i), cachedPage{HTML: "x", Status: http.StatusNotFound})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/one-more-probe", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if _, ok := app.pages.Get("/one-more-probe"); ok {
		t.Error("not-found render cached past the bound")
	}
	if app.pages.Len() != notFoundCacheLimit {
		t.Errorf("Len() = %d, want %d", app.pages.Len(), notFoundCacheLimit)
	}
}
