package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	LinkChecksTotal     *prometheus.CounterVec
	LinkCheckDuration   *prometheus.HistogramVec
	PagesCrawledTotal   prometheus.Counter
	URLsSkippedTotal    prometheus.Counter
	FrontierSize        prometheus.Gauge
	SitemapURLsTotal    prometheus.Counter
	CTAChecksTotal      *prometheus.CounterVec
	ReportEventsTotal   *prometheus.CounterVec
	SitesAuditedTotal   *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		LinkChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_link_checks_total",
			Help: "Link status checks by outcome and reason.",
		}, []string{"outcome", "reason"}), // outcome: ok, recovered, broken
		LinkCheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_link_check_duration_seconds",
			Help:    "Duration of link status checks.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"method"}),
		PagesCrawledTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "auditor_pages_crawled_total",
			Help: "Pages dispatched by the crawl frontier.",
		}),
		URLsSkippedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "auditor_urls_skipped_total",
			Help: "Template or disallowed URLs never dispatched.",
		}),
		FrontierSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_frontier_size",
			Help: "Current number of URLs waiting in crawl frontiers.",
		}),
		SitemapURLsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "auditor_sitemap_urls_total",
			Help: "Page URLs resolved from sitemaps.",
		}),
		CTAChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_cta_checks_total",
			Help: "CTA validations by kind and status.",
		}, []string{"kind", "status"}),
		ReportEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_report_events_total",
			Help: "Report events by check and status.",
		}, []string{"check", "status"}),
		SitesAuditedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_sites_audited_total",
			Help: "Completed site audits by result.",
		}, []string{"result"}), // result: passed, failed, aborted
	}
}

// ObserveHTTP records one served API request.
func (m *Metrics) ObserveHTTP(method, path string, status int, seconds float64) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(seconds)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveLinkCheck records one status validation.
func (m *Metrics) ObserveLinkCheck(outcome, reason, method string, seconds float64) {
	if m == nil {
		return
	}
	m.LinkChecksTotal.WithLabelValues(outcome, reason).Inc()
	m.LinkCheckDuration.WithLabelValues(method).Observe(seconds)
}

// IncPagesCrawled counts one dispatched page.
func (m *Metrics) IncPagesCrawled() {
	if m == nil {
		return
	}
	m.PagesCrawledTotal.Inc()
}

// IncSkipped counts one skipped URL.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.URLsSkippedTotal.Inc()
}

// AddFrontier adjusts the frontier gauge by delta.
func (m *Metrics) AddFrontier(delta float64) {
	if m == nil {
		return
	}
	m.FrontierSize.Add(delta)
}

// AddSitemapURLs counts resolved sitemap page URLs.
func (m *Metrics) AddSitemapURLs(n int) {
	if m == nil {
		return
	}
	m.SitemapURLsTotal.Add(float64(n))
}

// IncCTA counts one CTA outcome.
func (m *Metrics) IncCTA(kind, status string) {
	if m == nil {
		return
	}
	m.CTAChecksTotal.WithLabelValues(kind, status).Inc()
}

// IncReportEvent counts one emitted report event.
func (m *Metrics) IncReportEvent(check, status string) {
	if m == nil {
		return
	}
	m.ReportEventsTotal.WithLabelValues(check, status).Inc()
}

// IncSiteAudited counts one finished site.
func (m *Metrics) IncSiteAudited(result string) {
	if m == nil {
		return
	}
	m.SitesAuditedTotal.WithLabelValues(result).Inc()
}
