package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/adapter/web"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/textmatch"
	"go.uber.org/zap"
)

const factPage = `<html><body>
<header><a href="/"><img class="logo" src="/logo.svg" alt="Acme Plumbing"></a></header>
<main>
  <p>Call 5550100 now</p>
  <address>123 Main Street<br>Springfield</address>
  <p>Mon-Fri 9:00 AM - 5:00 PM</p>
</main>
</body></html>`

func statuses(events []entity.ReportEvent) map[string][]entity.EventStatus {
	out := make(map[string][]entity.EventStatus)
	for _, e := range events {
		out[e.Target] = append(out[e.Target], e.Status)
	}
	return out
}

func TestFactCheckerAllFound(t *testing.T) {
	sink := &recordingSink{}
	c := NewFactChecker(textmatch.NewMatcher(0, 0), web.Parser{}, zap.NewNop())
	report, err := c.Check(context.Background(), "https://example.com/", factPage, entity.ExpectedFacts{
		CompanyName: "Acme Plumbing",
		Phones:      []string{"555-0100"},
		Addresses:   []string{"123 Main Street, Springfield"},
		Hours:       []string{"Mon-Fri 9:00-5:00"},
	}, sink)
	require.NoError(t, err)
	assert.False(t, report.Failed())
	require.NotNil(t, report.Name)
	assert.Equal(t, entity.MatchLogo, report.Name.Mode)
	assert.Equal(t, entity.MatchDigits, report.Phones[0].Mode)

	got := statuses(sink.byCheck(entity.CheckFact))
	for target, s := range got {
		assert.Equal(t, []entity.EventStatus{entity.StatusPass}, s, target)
	}
	assert.Len(t, got, 4)
}

func TestFactCheckerOutcomes(t *testing.T) {
	sink := &recordingSink{}
	c := NewFactChecker(nil, web.Parser{}, zap.NewNop())
	report, err := c.Check(context.Background(), "https://example.com/", factPage, entity.ExpectedFacts{
		CompanyName: "Zenith Roofing",
		Phones:      []string{"555-0100", "555-0199"},
		Addresses:   []string{"123 Main Street Springfield", "9 Elm Road Shelbyville"},
	}, sink)
	require.NoError(t, err)
	assert.True(t, report.Failed())

	got := statuses(sink.byCheck(entity.CheckFact))
	assert.Equal(t, []entity.EventStatus{entity.StatusFail}, got["company name"])
	assert.Equal(t, []entity.EventStatus{entity.StatusPass, entity.StatusFail}, got["phone"])
	// One address is enough to avoid the category failure.
	assert.Equal(t, []entity.EventStatus{entity.StatusPass, entity.StatusWarning}, got["address"])
	assert.Equal(t, []entity.EventStatus{entity.StatusInfo}, got["hours"])
}

func TestFactCheckerNoAddressFound(t *testing.T) {
	sink := &recordingSink{}
	c := NewFactChecker(nil, web.Parser{}, zap.NewNop())
	report, err := c.Check(context.Background(), "https://example.com/", factPage, entity.ExpectedFacts{
		Addresses: []string{"9 Elm Road Shelbyville"},
	}, sink)
	require.NoError(t, err)
	assert.True(t, report.Failed())
	got := statuses(sink.byCheck(entity.CheckFact))
	assert.Equal(t, []entity.EventStatus{entity.StatusWarning, entity.StatusFail}, got["address"])
	assert.Equal(t, []entity.EventStatus{entity.StatusInfo}, got["company name"])
}
