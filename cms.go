package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// GROQ queries against the hosted content backend. Slugs are stored with the
// language prefix included ("en/blog"), so a single lookup serves both
// languages.
const (
	pageBySlugQuery = `*[_type == "page" && slug.current == $slug][0]{_id, title, slug, meta_title, meta_description, blocks[]}`
	postsQuery      = `*[_type == "post"] | order(created_at desc){_id, title, slug, excerpt, created_at, categories[]->{title}}`
	emailTmplQuery  = `*[_type == "emailTemplate" && key == $key && language == $language][0]{key, language, subject, body, text}`
)

type SlugField struct {
	Current string `json:"current"`
}

// Block is one typed content unit of a page. The shape varies per _type, so it
// stays a loose map and renderers pull out the fields they know.
type Block map[string]any

func (b Block) Type() string {
	return b.Field("_type")
}

// Field returns the named value as a string, or "" when absent or non-string.
func (b Block) Field(key string) string {
	value, _ := b[key].(string)
	return value
}

type Page struct {
	ID              string    `json:"_id"`
	Slug            SlugField `json:"slug"`
	Title           string    `json:"title"`
	MetaTitle       string    `json:"meta_title"`
	MetaDescription string    `json:"meta_description"`
	Blocks          []Block   `json:"blocks"`
}

type PostCategory struct {
	Title string `json:"title"`
}

type Post struct {
	ID         string         `json:"_id"`
	Title      string         `json:"title"`
	Slug       SlugField      `json:"slug"`
	Excerpt    string         `json:"excerpt"`
	CreatedAt  string         `json:"created_at"`
	Categories []PostCategory `json:"categories"`
}

type EmailTemplate struct {
	Key      string `json:"key"`
	Language string `json:"language"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Text     string `json:"text"`
}

// CMSClient reads documents from the Sanity query API. It performs pure reads;
// caching happens in the rendered-page cache, never here.
type CMSClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewCMSClient(cfg *Config, client *http.Client) *CMSClient {
	host := "api.sanity.io"
	if cfg.SanityUseCDN {
		host = "apicdn.sanity.io"
	}
	return &CMSClient{
		BaseURL: fmt.Sprintf("https://%s.%s/v%s/data/query/%s", cfg.SanityProjectID, host, cfg.SanityAPIVersion, cfg.SanityDataset),
		Token:   cfg.SanityToken,
		Client:  client,
	}
}

// Query runs a GROQ query with JSON-encoded params and decodes the result
// envelope into out. A null result leaves out untouched.
func (c *CMSClient) Query(ctx context.Context, query string, params map[string]any, out any) error {
	raw, err := c.fetch(ctx, query, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cms decode failed: %w", err)
	}
	return nil
}

// RawQuery runs a GROQ query and returns the raw result JSON.
func (c *CMSClient) RawQuery(ctx context.Context, query string) ([]byte, error) {
	return c.fetch(ctx, query, nil)
}

func (c *CMSClient) fetch(ctx context.Context, query string, params map[string]any) ([]byte, error) {
	values := url.Values{}
	values.Set("query", query)
	for key, param := range params {
		encoded, err := json.Marshal(param)
		if err != nil {
			return nil, fmt.Errorf("cms param %s: %w", key, err)
		}
		values.Set("$"+key, string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		metricCMSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metricCMSRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cms error (%d): %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metricCMSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cms decode failed: %w", err)
	}

	metricCMSRequests.WithLabelValues("ok").Inc()
	return envelope.Result, nil
}

// PageBySlug resolves one page document. A nil page with a nil error means the
// document does not exist; callers must treat that as "not found", not as a
// failure.
func (c *CMSClient) PageBySlug(ctx context.Context, slug string) (*Page, error) {
	var page *Page
	if err := c.Query(ctx, pageBySlugQuery, map[string]any{"slug": slug}, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// Posts returns all posts, newest first.
func (c *CMSClient) Posts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.Query(ctx, postsQuery, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// EmailTemplate looks up a localized mail template; nil means no template for
// that key/language pair.
func (c *CMSClient) EmailTemplate(ctx context.Context, key, language string) (*EmailTemplate, error) {
	var tmpl *EmailTemplate
	if err := c.Query(ctx, emailTmplQuery, map[string]any{"key": key, "language": language}, &tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}
