package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkPageHandler probes the CMS for a slug without rendering; used to debug
// routing and webhook behavior.
func (a *App) checkPageHandler(c *gin.Context) {
	slug := c.Query("slug")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Slug parameter required"})
		return
	}

	page, err := a.fetchPageBySlug(c, slug)
	if err != nil {
		a.log.Error("check-page fetch failed", "slug", slug, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to fetch page",
			"slug":      slug,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	response := gin.H{
		"found":     page != nil,
		"slug":      slug,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if page != nil {
		response["metaTitle"] = page.MetaTitle
		response["metaDescription"] = page.MetaDescription
		response["hasBlocks"] = len(page.Blocks) > 0
	}
	c.JSON(http.StatusOK, response)
}

// rawQueryHandler proxies a raw GROQ query to the CMS and returns the result
// as-is.
func (a *App) rawQueryHandler(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter is required"})
		return
	}

	result, err := a.runRawQuery(c, query)
	if err != nil {
		a.log.Error("raw cms query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data from CMS"})
		return
	}
	if len(result) == 0 {
		result = []byte("null")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}
