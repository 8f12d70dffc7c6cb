package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
)

type stubBrowser struct {
	repository.Browser
	links   map[string][]string
	current string
	navErr  error
	resets  int
	closed  bool
}

func (b *stubBrowser) Navigate(_ context.Context, u string) error {
	if b.navErr != nil {
		return b.navErr
	}
	b.current = u
	return nil
}

func (b *stubBrowser) Links(context.Context) ([]string, error) { return b.links[b.current], nil }

func (b *stubBrowser) Reset(context.Context) error {
	b.resets++
	return nil
}

func (b *stubBrowser) Close() error {
	b.closed = true
	return nil
}

type stubFactory struct {
	b        *stubBrowser
	acquired int
	auths    []*entity.BasicAuth
}

func (f *stubFactory) Acquire(_ context.Context, auth *entity.BasicAuth) (repository.Browser, error) {
	f.acquired++
	f.auths = append(f.auths, auth)
	return f.b, nil
}

func TestLinkExtractorReusesSession(t *testing.T) {
	b := &stubBrowser{links: map[string][]string{
		"https://example.com/":      {"https://example.com/a"},
		"https://example.com/about": {"https://example.com/"},
	}}
	f := &stubFactory{b: b}
	e := NewLinkExtractor(f)

	got, err := e.ExtractLinks(context.Background(), "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a"}, got)
	_, err = e.ExtractLinks(context.Background(), "https://example.com/about", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.acquired)

	require.NoError(t, e.Close())
	assert.True(t, b.closed)
}

func TestLinkExtractorResetsAfterFailure(t *testing.T) {
	b := &stubBrowser{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	e := NewLinkExtractor(&stubFactory{b: b})
	_, err := e.ExtractLinks(context.Background(), "https://nowhere.example/", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, b.resets)
}

func TestLinkExtractorSessionPerCredentials(t *testing.T) {
	b := &stubBrowser{links: map[string][]string{}}
	f := &stubFactory{b: b}
	e := NewLinkExtractor(f)
	auth := &entity.BasicAuth{Username: "u", Password: "p"}

	_, err := e.ExtractLinks(context.Background(), "https://staging.example.com/", auth)
	require.NoError(t, err)
	_, err = e.ExtractLinks(context.Background(), "https://staging.example.com/about", &entity.BasicAuth{Username: "u", Password: "p"})
	require.NoError(t, err)
	_, err = e.ExtractLinks(context.Background(), "https://example.com/", nil)
	require.NoError(t, err)

	require.Equal(t, 2, f.acquired)
	assert.Equal(t, auth, f.auths[0])
	assert.Nil(t, f.auths[1])
}
