package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNormalize(t *testing.T) {
	base := mustURL(t, "https://example.com/")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"relative path", "/about", "https://example.com/about"},
		{"fragment stripped", "/about#team", "https://example.com/about"},
		{"trailing slash removed", "/about/", "https://example.com/about"},
		{"root keeps slash", "https://example.com", "https://example.com/"},
		{"host lower-cased", "HTTPS://Example.COM/Contact", "https://example.com/Contact"},
		{"default port dropped", "https://example.com:443/a", "https://example.com/a"},
		{"query kept", "/search?q=1", "https://example.com/search?q=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(base, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	site := mustURL(t, "https://example.com/")

	tests := []struct {
		raw  string
		kind entity.LinkKind
	}{
		{"", entity.KindInvalid},
		{"   ", entity.KindInvalid},
		{"#top", entity.KindAnchor},
		{"tel:+15550100", entity.KindTelephone},
		{"mailto:info@example.com", entity.KindEmail},
		{"SMS:5550100", entity.KindSMS},
		{"javascript:void(0)", entity.KindScript},
		{"/about", entity.KindPage},
		{"https://example.com/contact#map", entity.KindPage},
		{"https://twitter.com/x", entity.KindExternal},
		{"https://example.com.evil.net/", entity.KindExternal},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Classify(tt.raw, site)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestClassifyStripsFragmentBeforeScheme(t *testing.T) {
	site := mustURL(t, "https://example.com/")
	got := Classify("/about#mailto:x", site)
	assert.Equal(t, entity.KindPage, got.Kind)
	assert.Equal(t, "https://example.com/about", got.Normalized)
}

func TestIsTemplateURL(t *testing.T) {
	assert.True(t, IsTemplateURL("https://example.com/{{slug}}"))
	assert.True(t, IsTemplateURL("https://example.com/p?x=%22y%22"))
	assert.True(t, IsTemplateURL("https://example.com/AUD_BRAND/cars"))
	assert.True(t, IsTemplateURL("https://example.com/a[0]"))
	assert.True(t, IsTemplateURL("https://example.com/$PLACEHOLDER", "$PLACEHOLDER"))
	assert.False(t, IsTemplateURL("https://example.com/about"))
}

func TestIsSocial(t *testing.T) {
	assert.True(t, IsSocial("https://twitter.com/x"))
	assert.True(t, IsSocial("https://www.facebook.com/acme"))
	assert.True(t, IsSocial("https://x.com/acme"))
	assert.True(t, IsSocial("https://uk.linkedin.com/company/acme"))
	assert.False(t, IsSocial("https://example.com/facebook"))
	assert.False(t, IsSocial("/relative"))
}

func TestSameDocument(t *testing.T) {
	assert.True(t, SameDocument("https://example.com/page#", "https://example.com/page"))
	assert.True(t, SameDocument("https://Example.com/page/", "https://example.com/page"))
	assert.False(t, SameDocument("https://example.com/a", "https://example.com/b"))
}

func TestHashURLIsStable(t *testing.T) {
	assert.Equal(t, HashURL("https://example.com/"), HashURL("https://example.com/"))
	assert.Len(t, HashURL("x"), 64)
}
