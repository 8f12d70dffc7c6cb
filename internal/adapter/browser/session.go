package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"go.uber.org/zap"
)

// ErrElementGone is returned by ClickCTA when the index no longer matches an
// element.
var ErrElementGone = errors.New("element no longer on the page")

const opTimeout = 10 * time.Second

// Options configures the Chrome sessions handed out by a Factory.
type Options struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	SettleDelay     time.Duration
	PageLoadTimeout time.Duration
}

// Factory starts one Chrome process per acquired session.
type Factory struct {
	opts   Options
	logger *zap.Logger
}

// NewFactory creates a session factory.
func NewFactory(opts Options, logger *zap.Logger) *Factory {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{opts: opts, logger: logger}
}

// Acquire starts a browser and opens its first tab. Credentials, when given,
// are sent as a basic auth header with every request of the session.
func (f *Factory) Acquire(ctx context.Context, auth *entity.BasicAuth) (repository.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(f.opts.UserAgent))
	}
	if f.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.opts.ExecPath))
	}
	// The allocator outlives the acquiring request; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		headers:     authHeaders(auth),
		opts:        f.opts,
		logger:      f.logger,
	}
	if err := s.openTab(); err != nil {
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Session is a single Chrome tab bound to one site. It implements
// repository.Browser and must be driven from one goroutine.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	headers     network.Headers
	opts        Options
	logger      *zap.Logger
}

func (s *Session) openTab() error {
	s.tabCtx, s.tabCancel = chromedp.NewContext(s.allocCtx, chromedp.WithLogf(s.logger.Sugar().Debugf))
	actions := []chromedp.Action{network.Enable()}
	if len(s.headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(s.headers))
	}
	// The first Run allocates the browser, so it must not carry a deadline.
	if err := chromedp.Run(s.tabCtx, actions...); err != nil {
		s.tabCancel()
		return err
	}
	return nil
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{chromedp.Navigate(url), waitForDocumentReady()}
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	if err := s.run(ctx, s.opts.PageLoadTimeout, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, opTimeout, chromedp.Location(&loc))
	return loc, err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) ScrollToBottom(ctx context.Context) error {
	actions := []chromedp.Action{chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)}
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	return s.run(ctx, opTimeout+s.opts.SettleDelay, actions...)
}

func (s *Session) Links(ctx context.Context) ([]string, error) {
	var links []string
	err := s.run(ctx, opTimeout, chromedp.Evaluate(linksScript, &links))
	return links, err
}

func (s *Session) CountCTAs(ctx context.Context) (int, error) {
	var n int
	err := s.run(ctx, opTimeout, chromedp.Evaluate(ctaListScript+`.length`, &n))
	return n, err
}

// CTAAt re-queries the element list. Evaluation errors mean the document
// changed underneath the query and are reported as stale.
func (s *Session) CTAAt(ctx context.Context, index int) entity.CTALookup {
	var snap *ctaSnapshot
	if err := s.run(ctx, opTimeout, chromedp.Evaluate(snapshotScript(index), &snap)); err != nil {
		s.logger.Debug("cta snapshot failed", zap.Int("index", index), zap.Error(err))
		return entity.CTALookup{State: entity.LookupStale}
	}
	if snap == nil {
		return entity.CTALookup{State: entity.LookupNotFound}
	}
	item := snap.item()
	item.Index = index
	return entity.CTALookup{State: entity.LookupFound, Item: item}
}

func (s *Session) ClickCTA(ctx context.Context, index int) error {
	var clicked bool
	actions := []chromedp.Action{chromedp.Evaluate(clickScript(index), &clicked)}
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	if err := s.run(ctx, opTimeout+s.opts.SettleDelay, actions...); err != nil {
		return fmt.Errorf("click element %d: %w", index, err)
	}
	if !clicked {
		return fmt.Errorf("click element %d: %w", index, ErrElementGone)
	}
	return nil
}

// Reset closes the current tab and opens a fresh one in the same browser.
func (s *Session) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tabCancel()
	return s.openTab()
}

func (s *Session) Close() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	s.allocCancel()
	return nil
}

func authHeaders(auth *entity.BasicAuth) network.Headers {
	if auth == nil || auth.Username == "" {
		return nil
	}
	token := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
	return network.Headers{"Authorization": "Basic " + token}
}

func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}

// ctaSnapshot is the JSON shape returned by snapshotScript.
type ctaSnapshot struct {
	Tag       string `json:"tag"`
	Href      string `json:"href"`
	OnClick   bool   `json:"onclick"`
	Text      string `json:"text"`
	AriaLabel string `json:"ariaLabel"`
	Alt       string `json:"alt"`
	Title     string `json:"title"`
	ImageAlt  string `json:"imageAlt"`
	ClassName string `json:"className"`
	HasIcon   bool   `json:"hasIcon"`
	Section   string `json:"section"`
	Style     struct {
		Color        string `json:"color"`
		FontSize     string `json:"fontSize"`
		FontWeight   string `json:"fontWeight"`
		Padding      string `json:"padding"`
		BorderRadius string `json:"borderRadius"`
	} `json:"style"`
}

func (s *ctaSnapshot) item() entity.CTAItem {
	section := entity.CTASection(s.Section)
	switch section {
	case entity.SectionHeader, entity.SectionFooter:
	default:
		section = entity.SectionBody
	}
	return entity.CTAItem{
		Tag:       strings.ToLower(s.Tag),
		Href:      strings.TrimSpace(s.Href),
		OnClick:   s.OnClick,
		Text:      s.Text,
		AriaLabel: s.AriaLabel,
		Alt:       s.Alt,
		Title:     s.Title,
		ImageAlt:  s.ImageAlt,
		ClassName: s.ClassName,
		HasIcon:   s.HasIcon,
		Section:   section,
		Style: entity.CTAStyle{
			Color:        s.Style.Color,
			FontSize:     s.Style.FontSize,
			FontWeight:   s.Style.FontWeight,
			Padding:      s.Style.Padding,
			BorderRadius: s.Style.BorderRadius,
		},
	}
}
