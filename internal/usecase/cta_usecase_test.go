package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
	"go.uber.org/zap"
)

// fakeBrowser models a site as a map of page URL to its CTA list.
type fakeBrowser struct {
	pages          map[string][]entity.CTAItem
	html           map[string]string
	location       string
	navigations    []string
	noRedirect     map[string]bool
	navErr         map[string]error
	clickNavigates map[int]string
	stale          map[int]int
	missing        map[int]bool
	clicks         []int
	resets         int
	closed         bool
}

func (f *fakeBrowser) Navigate(_ context.Context, u string) error {
	f.navigations = append(f.navigations, u)
	if err := f.navErr[u]; err != nil {
		return err
	}
	if f.noRedirect[u] {
		return nil
	}
	f.location = u
	return nil
}

func (f *fakeBrowser) Location(context.Context) (string, error) { return f.location, nil }

func (f *fakeBrowser) HTML(context.Context) (string, error) { return f.html[f.location], nil }

func (f *fakeBrowser) ScrollToBottom(context.Context) error { return nil }

func (f *fakeBrowser) Links(context.Context) ([]string, error) {
	var out []string
	for _, it := range f.pages[f.location] {
		if it.Href != "" {
			out = append(out, it.Href)
		}
	}
	return out, nil
}

func (f *fakeBrowser) CountCTAs(context.Context) (int, error) { return len(f.pages[f.location]), nil }

func (f *fakeBrowser) CTAAt(_ context.Context, index int) entity.CTALookup {
	if f.stale[index] > 0 {
		f.stale[index]--
		return entity.CTALookup{State: entity.LookupStale}
	}
	items := f.pages[f.location]
	if f.missing[index] || index >= len(items) {
		return entity.CTALookup{State: entity.LookupNotFound}
	}
	item := items[index]
	item.Index = index
	return entity.CTALookup{State: entity.LookupFound, Item: item}
}

func (f *fakeBrowser) ClickCTA(_ context.Context, index int) error {
	f.clicks = append(f.clicks, index)
	if target, ok := f.clickNavigates[index]; ok {
		f.location = target
	}
	return nil
}

func (f *fakeBrowser) Reset(context.Context) error {
	f.resets++
	return nil
}

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

const ctaPage = "https://example.com/"

func TestValidatePageClassifiesEveryCTA(t *testing.T) {
	b := &fakeBrowser{
		location: ctaPage,
		pages: map[string][]entity.CTAItem{ctaPage: {
			{Tag: "a", Href: "tel:+15550100", Section: entity.SectionHeader},
			{Tag: "a", Href: "mailto:info@example.com", Text: "Email us", Section: entity.SectionFooter},
			{Tag: "a", Href: "https://twitter.com/x", AriaLabel: "Twitter", Section: entity.SectionFooter},
			{Tag: "button", OnClick: true, Text: "Book now"},
			{Tag: "button", Text: "Open chat"},
			{Tag: "a", Href: "javascript:void(0)", Text: "Broken"},
			{Tag: "a", Href: "https://example.com/#contact", Text: "Contact"},
			{Tag: "a", Href: "https://example.com/about", Text: "About"},
			{Tag: "a", Href: "https://example.com/dead", Text: "Dead"},
			{Tag: "button", ClassName: "menu-toggle", AriaLabel: "Toggle menu", Section: entity.SectionHeader},
			{Tag: "div"},
		}},
		noRedirect: map[string]bool{"https://example.com/dead": true},
	}
	sink := &recordingSink{}

	v := NewCTAValidator(CTAOptions{}, nil, zap.NewNop())
	summary, err := v.ValidatePage(context.Background(), b, ctaPage, sink)
	require.NoError(t, err)
	require.Len(t, summary.Results, 11)

	kinds := make([]entity.CTAKind, len(summary.Results))
	for i, r := range summary.Results {
		kinds[i] = r.Kind
	}
	assert.Equal(t, []entity.CTAKind{
		entity.CTATelephone, entity.CTAEmail, entity.CTASocial, entity.CTAInteractive,
		entity.CTAJSHandled, entity.CTAScript, entity.CTASamePage, entity.CTARedirect,
		entity.CTANoRedirect, entity.CTASkipped, entity.CTADecorative,
	}, kinds)

	assert.Equal(t, 7, summary.Pass)
	assert.Equal(t, 2, summary.Fail)
	assert.Equal(t, 1, summary.Warning)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Sections[entity.SectionHeader])
	assert.Equal(t, 2, summary.Sections[entity.SectionFooter])

	// Only /about and /dead are navigated, each followed by a return.
	assert.Equal(t, []string{
		"https://example.com/about", ctaPage,
		"https://example.com/dead", ctaPage,
	}, b.navigations)
	assert.Equal(t, []int{4}, b.clicks)
	assert.Equal(t, "+15550100", summary.Results[0].Item.Name)
	assert.Len(t, sink.byCheck(entity.CheckCTA), 11)
}

func TestValidatePageClickThatNavigatesIsRestored(t *testing.T) {
	b := &fakeBrowser{
		location:       ctaPage,
		pages:          map[string][]entity.CTAItem{ctaPage: {{Tag: "button", Text: "Next"}}},
		clickNavigates: map[int]string{0: "https://example.com/step-2"},
	}
	v := NewCTAValidator(CTAOptions{}, nil, zap.NewNop())
	summary, err := v.ValidatePage(context.Background(), b, ctaPage, nil)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, entity.CTAClickNav, summary.Results[0].Kind)
	assert.Equal(t, entity.StatusPass, summary.Results[0].Status)
	assert.Equal(t, ctaPage, b.location)
}

func TestValidatePageRetriesStaleLookups(t *testing.T) {
	b := &fakeBrowser{
		location: ctaPage,
		pages: map[string][]entity.CTAItem{ctaPage: {
			{Tag: "a", Href: "tel:5550100"},
			{Tag: "a", Href: "mailto:a@example.com"},
		}},
		stale:   map[int]int{0: 2},
		missing: map[int]bool{1: true},
	}
	v := NewCTAValidator(CTAOptions{StaleRetries: 2}, nil, zap.NewNop())
	summary, err := v.ValidatePage(context.Background(), b, ctaPage, nil)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, entity.CTATelephone, summary.Results[0].Kind)
	assert.Equal(t, entity.CTAUnresolved, summary.Results[1].Kind)
	assert.Equal(t, entity.StatusWarning, summary.Results[1].Status)
	assert.Equal(t, "not found after update", summary.Results[1].Message)
}

func TestValidatePageStopsWhenPageCannotBeRestored(t *testing.T) {
	b := &fakeBrowser{
		location: ctaPage,
		pages: map[string][]entity.CTAItem{ctaPage: {
			{Tag: "a", Href: "https://example.com/about", Text: "About"},
			{Tag: "a", Href: "tel:5550100"},
		}},
		navErr: map[string]error{ctaPage: errors.New("net::ERR_CONNECTION_RESET")},
	}
	v := NewCTAValidator(CTAOptions{}, nil, zap.NewNop())
	summary, err := v.ValidatePage(context.Background(), b, ctaPage, nil)
	require.Error(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, entity.CTARedirect, summary.Results[0].Kind)
}

func TestValidatePageNavigationFailureFails(t *testing.T) {
	b := &fakeBrowser{
		location: ctaPage,
		pages:    map[string][]entity.CTAItem{ctaPage: {{Tag: "a", Href: "/gone", Text: "Gone"}}},
		navErr:   map[string]error{"https://example.com/gone": errors.New("net::ERR_NAME_NOT_RESOLVED")},
	}
	v := NewCTAValidator(CTAOptions{}, nil, zap.NewNop())
	summary, err := v.ValidatePage(context.Background(), b, ctaPage, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFail, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Message, "ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, ctaPage, b.navigations[len(b.navigations)-1])
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		item entity.CTAItem
		want string
	}{
		{"text", entity.CTAItem{Text: "  Call \n now ", AriaLabel: "ignored"}, "Call now"},
		{"aria", entity.CTAItem{AriaLabel: "Open menu"}, "Open menu"},
		{"alt", entity.CTAItem{Alt: "Map"}, "Map"},
		{"title", entity.CTAItem{Title: "Directions"}, "Directions"},
		{"logo", entity.CTAItem{ImageAlt: "Acme"}, "Acme (Logo)"},
		{"tel", entity.CTAItem{Href: "tel:555-0100"}, "555-0100"},
		{"mailto", entity.CTAItem{Href: "MAILTO:a@b.com"}, "a@b.com"},
		{"path", entity.CTAItem{Href: "https://example.com/services"}, "/services"},
		{"root", entity.CTAItem{Href: "https://example.com/"}, unnamedCTA},
		{"empty", entity.CTAItem{}, unnamedCTA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.item))
		})
	}
}
