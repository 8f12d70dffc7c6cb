package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
)

const unnamedCTA = "Unnamed CTA"

// DefaultCTASkipMarkers identify menu toggles and accessibility skip links.
var DefaultCTASkipMarkers = []string{"skip to", "menu-toggle", "navbar-toggler", "hamburger", "toggle navigation", "toggle menu"}

// CTAOptions configures interaction probing.
type CTAOptions struct {
	StaleRetries int
	StaleDelay   time.Duration
	SkipMarkers  []string
}

// CTAValidator drives each interactive element on a rendered page through
// classification and probing. A validator holds no per-page state and may be
// shared; the Browser it is handed must not be.
type CTAValidator struct {
	opts    CTAOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCTAValidator creates a validator.
func NewCTAValidator(opts CTAOptions, m *metrics.Metrics, logger *zap.Logger) *CTAValidator {
	if opts.StaleRetries < 0 {
		opts.StaleRetries = 0
	}
	if opts.SkipMarkers == nil {
		opts.SkipMarkers = DefaultCTASkipMarkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CTAValidator{opts: opts, metrics: m, logger: logger}
}

// ValidatePage checks every CTA on page, which b must already show. Elements
// are looked up by index against the live list each time so DOM changes
// between probes are tolerated. The returned error is set only when the
// browser can no longer be brought back to page; the summary then holds the
// results gathered so far.
func (v *CTAValidator) ValidatePage(ctx context.Context, b repository.Browser, page string, sink repository.ReportSink) (*entity.PageCTASummary, error) {
	summary := &entity.PageCTASummary{Page: page, Sections: make(map[entity.CTASection]int)}
	if err := b.ScrollToBottom(ctx); err != nil {
		v.logger.Debug("scroll failed", zap.String("page", page), zap.Error(err))
	}
	count, err := b.CountCTAs(ctx)
	if err != nil {
		return summary, fmt.Errorf("count ctas on %s: %w", page, err)
	}

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res, restoreErr := v.check(ctx, b, page, i)
		v.record(ctx, summary, res, sink)
		if restoreErr != nil {
			return summary, restoreErr
		}
	}
	v.logger.Info("ctas validated",
		zap.String("page", page),
		zap.Int("total", len(summary.Results)),
		zap.Int("pass", summary.Pass),
		zap.Int("fail", summary.Fail),
		zap.Int("warning", summary.Warning))
	return summary, nil
}

func (v *CTAValidator) record(ctx context.Context, summary *entity.PageCTASummary, res entity.CTAResult, sink repository.ReportSink) {
	summary.Results = append(summary.Results, res)
	switch {
	case res.Kind == entity.CTASkipped:
		summary.Skipped++
	case res.Status == entity.StatusPass:
		summary.Pass++
	case res.Status == entity.StatusFail:
		summary.Fail++
	case res.Status == entity.StatusWarning:
		summary.Warning++
	}
	if res.Kind != entity.CTAUnresolved {
		summary.Sections[res.Item.Section]++
	}
	v.metrics.IncCTA(string(res.Kind), string(res.Status))

	ev := newEvent(summary.Page, entity.CheckCTA, res.Item.Name, res.Status, res.Message)
	if res.Item.Href != "" {
		ev.Target = res.Item.Name + " -> " + res.Item.Href
	}
	emit(ctx, sink, v.logger, ev)
}

// lookup re-queries element index, retrying stale or missing results.
func (v *CTAValidator) lookup(ctx context.Context, b repository.Browser, index int) (entity.CTAItem, bool) {
	for attempt := 0; ; attempt++ {
		l := b.CTAAt(ctx, index)
		if l.State == entity.LookupFound {
			return l.Item, true
		}
		if attempt >= v.opts.StaleRetries {
			v.logger.Debug("cta lookup gave up",
				zap.Int("index", index), zap.String("state", l.State.String()))
			return entity.CTAItem{Index: index}, false
		}
		if err := sleepContext(ctx, v.opts.StaleDelay); err != nil {
			return entity.CTAItem{Index: index}, false
		}
	}
}

// check classifies and probes element index. The second return value is
// non-nil when page could not be restored afterwards.
func (v *CTAValidator) check(ctx context.Context, b repository.Browser, page string, index int) (entity.CTAResult, error) {
	item, ok := v.lookup(ctx, b, index)
	if !ok {
		item.Name = fmt.Sprintf("CTA #%d", index+1)
		return entity.CTAResult{Item: item, Kind: entity.CTAUnresolved, Status: entity.StatusWarning,
			Message: "not found after update"}, nil
	}
	item.Name = DisplayName(item)
	if v.skippable(item) {
		return result(item, entity.CTASkipped, entity.StatusInfo, "skipped "+item.Name), nil
	}

	href := strings.TrimSpace(item.Href)
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "tel:"):
		return result(item, entity.CTATelephone, entity.StatusPass, "phone CTA "+href), nil
	case strings.HasPrefix(lower, "mailto:"):
		return result(item, entity.CTAEmail, entity.StatusPass, "email CTA "+href), nil
	case strings.HasPrefix(lower, "sms:"):
		return result(item, entity.CTASMS, entity.StatusPass, "sms CTA "+href), nil
	case href != "" && utils.IsSocial(href):
		return result(item, entity.CTASocial, entity.StatusPass, "social CTA "+href), nil
	case href == "" && item.OnClick:
		return result(item, entity.CTAInteractive, entity.StatusPass, "interactive CTA (onclick)"), nil
	case href == "":
		return v.probeClick(ctx, b, page, item)
	case strings.HasPrefix(lower, "javascript"):
		return result(item, entity.CTAScript, entity.StatusFail, "invalid CTA target "+href), nil
	case utils.SameDocument(resolveHref(page, href), page):
		return result(item, entity.CTASamePage, entity.StatusPass, "same-page CTA"), nil
	default:
		return v.probeNavigate(ctx, b, page, item, resolveHref(page, href))
	}
}

func (v *CTAValidator) probeClick(ctx context.Context, b repository.Browser, page string, item entity.CTAItem) (entity.CTAResult, error) {
	if item.Name == unnamedCTA && !item.HasIcon {
		return result(item, entity.CTADecorative, entity.StatusWarning, "no href, onclick or label; possibly decorative"), nil
	}
	before, err := b.Location(ctx)
	if err != nil {
		before = page
	}
	if err := b.ClickCTA(ctx, item.Index); err != nil {
		return result(item, entity.CTAUnresolved, entity.StatusWarning, "click failed: "+err.Error()), v.restore(ctx, b, page)
	}
	after, err := b.Location(ctx)
	if err != nil {
		return result(item, entity.CTAUnresolved, entity.StatusWarning, "location unavailable after click: "+err.Error()), v.restore(ctx, b, page)
	}
	if !utils.SameDocument(before, after) {
		return result(item, entity.CTAClickNav, entity.StatusPass, "click navigated to "+after), v.restore(ctx, b, page)
	}
	return result(item, entity.CTAJSHandled, entity.StatusPass, "JS-handled in-place interaction"), nil
}

func (v *CTAValidator) probeNavigate(ctx context.Context, b repository.Browser, page string, item entity.CTAItem, target string) (entity.CTAResult, error) {
	var res entity.CTAResult
	if err := b.Navigate(ctx, target); err != nil {
		res = result(item, entity.CTANoRedirect, entity.StatusFail, "navigation failed: "+err.Error())
	} else if loc, err := b.Location(ctx); err != nil {
		res = result(item, entity.CTANoRedirect, entity.StatusFail, "location unavailable: "+err.Error())
	} else if utils.SameDocument(loc, page) {
		res = result(item, entity.CTANoRedirect, entity.StatusFail, "no redirect")
	} else {
		res = result(item, entity.CTARedirect, entity.StatusPass, "redirected to "+loc)
	}
	return res, v.restore(ctx, b, page)
}

// restore navigates back to page, retrying once.
func (v *CTAValidator) restore(ctx context.Context, b repository.Browser, page string) error {
	err := b.Navigate(ctx, page)
	if err == nil {
		return nil
	}
	v.logger.Warn("restoring page failed, retrying", zap.String("page", page), zap.Error(err))
	if err = b.Navigate(ctx, page); err != nil {
		return fmt.Errorf("restore %s: %w", page, err)
	}
	return nil
}

func (v *CTAValidator) skippable(item entity.CTAItem) bool {
	hay := strings.ToLower(item.Name + " " + item.ClassName + " " + item.AriaLabel)
	if strings.Contains(hay, "menu") && strings.Contains(hay, "toggle") {
		return true
	}
	for _, m := range v.opts.SkipMarkers {
		if m != "" && strings.Contains(hay, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func result(item entity.CTAItem, kind entity.CTAKind, status entity.EventStatus, msg string) entity.CTAResult {
	return entity.CTAResult{Item: item, Kind: kind, Status: status, Message: msg}
}

func resolveHref(page, href string) string {
	base, err := url.Parse(page)
	if err != nil {
		return href
	}
	abs, err := utils.ToAbsoluteURL(base, href)
	if err != nil {
		return href
	}
	return abs
}

// DisplayName picks the human-readable label of a CTA: visible text, ARIA
// label, alt, title, the alt of a nested image, the target of a contact link,
// the href path, then a placeholder.
func DisplayName(item entity.CTAItem) string {
	for _, s := range []string{item.Text, item.AriaLabel, item.Alt, item.Title} {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			return s
		}
	}
	if alt := strings.TrimSpace(item.ImageAlt); alt != "" {
		return alt + " (Logo)"
	}
	href := strings.TrimSpace(item.Href)
	lower := strings.ToLower(href)
	for _, scheme := range []string{"tel:", "mailto:", "sms:"} {
		if strings.HasPrefix(lower, scheme) {
			return href[len(scheme):]
		}
	}
	if href != "" && !strings.HasPrefix(lower, "javascript") {
		if u, err := url.Parse(href); err == nil && u.Path != "" && u.Path != "/" {
			return u.Path
		}
	}
	return unnamedCTA
}
