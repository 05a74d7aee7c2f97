package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// InvalidationEvent is the change notification the CMS webhook delivers.
type InvalidationEvent struct {
	Type string    `json:"_type"`
	Slug SlugField `json:"slug"`
	ID   string    `json:"_id"`
}

// globalLayoutMarker labels a layout-level purge in the invalidation report.
const globalLayoutMarker = "/ (layout)"

// pathsToInvalidate maps an event to the set of page paths it touches. The
// second result reports whether the whole cache must go (layout-level
// documents affect every rendered page). Pure, so the same event always
// yields the same set.
func pathsToInvalidate(docType, slug string) ([]string, bool) {
	switch docType {
	case "page":
		if slug == "" {
			return nil, false
		}
		if slug == homeSlug {
			// The home document is cached under every language root and
			// under its literal slug path, which stays reachable.
			paths := make([]string, 0, len(supportedLanguages)+1)
			for _, language := range supportedLanguages {
				paths = append(paths, languageRootPaths[language])
			}
			return append(paths, "/"+slug), false
		}
		return []string{"/" + slug}, false
	case "post":
		if slug == "" {
			return nil, false
		}
		return []string{
			"/blog/" + slug,
			"/en/blog/" + slug,
			"/blog",
			"/en/blog",
		}, false
	case "navigation", "footer", "seo", "site":
		return []string{globalLayoutMarker}, true
	default:
		return nil, false
	}
}

func (a *App) revalidateHandler(c *gin.Context) {
	secret := a.cfg.RevalidateSecret
	auth := c.GetHeader("Authorization")
	expected := "Bearer " + secret
	if secret == "" || subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	var event InvalidationEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
		return
	}

	slug := strings.TrimSpace(event.Slug.Current)
	paths, purgeAll := pathsToInvalidate(event.Type, slug)

	if purgeAll {
		dropped := a.pages.PurgeAll()
		a.log.Info("revalidated global content", "type", event.Type, "dropped", dropped)
	} else {
		for _, p := range paths {
			a.pages.Purge(p)
		}
		if len(paths) > 0 {
			a.log.Info("revalidated paths", "type", event.Type, "slug", slug, "paths", paths)
		}
	}
	metricRevalidations.WithLabelValues(event.Type).Inc()

	if paths == nil {
		paths = []string{}
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.JSON(http.StatusOK, gin.H{
		"message":     "Revalidated successfully",
		"revalidated": true,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"paths":       paths,
		"type":        event.Type,
		"id":          event.ID,
	})
}
