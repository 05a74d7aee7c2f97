package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPageRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreetzit_page_renders_total",
		Help: "Pages rendered from CMS content, by language and status.",
	}, []string{"language", "status"})

	metricPageCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spreetzit_page_cache_hits_total",
		Help: "Page requests served from the rendered-page cache.",
	})

	metricRevalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreetzit_revalidations_total",
		Help: "Webhook-triggered cache invalidations, by document type.",
	}, []string{"type"})

	metricContactForm = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreetzit_contact_form_total",
		Help: "Contact form submissions, by outcome.",
	}, []string{"outcome"})

	metricCMSRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreetzit_cms_requests_total",
		Help: "Outbound CMS query requests, by outcome.",
	}, []string{"outcome"})
)
