package usecase

import (
	"context"
	"fmt"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/textmatch"
	"go.uber.org/zap"
)

// FactReport lists the match outcome of every expected value on one page.
type FactReport struct {
	Page      string
	Name      *entity.MatchOutcome
	Phones    []entity.MatchOutcome
	Addresses []entity.MatchOutcome
	Hours     []entity.MatchOutcome
}

// Failed reports whether any fact check on the page failed.
func (r *FactReport) Failed() bool {
	if r.Name != nil && !r.Name.Found {
		return true
	}
	for _, group := range [][]entity.MatchOutcome{r.Phones, r.Hours} {
		for _, o := range group {
			if !o.Found {
				return true
			}
		}
	}
	return len(r.Addresses) > 0 && !anyFound(r.Addresses)
}

// FactChecker verifies that a page shows the business facts expected of it.
type FactChecker struct {
	matcher *textmatch.Matcher
	parser  repository.DocumentParser
	logger  *zap.Logger
}

// NewFactChecker creates a checker.
func NewFactChecker(matcher *textmatch.Matcher, parser repository.DocumentParser, logger *zap.Logger) *FactChecker {
	if matcher == nil {
		matcher = textmatch.NewMatcher(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FactChecker{matcher: matcher, parser: parser, logger: logger}
}

// Check matches facts against the rendered html of page and emits one event
// per expected value. A missing name, phone or hours entry fails; a missing
// address only warns unless no address is found at all.
func (c *FactChecker) Check(ctx context.Context, page, html string, facts entity.ExpectedFacts, sink repository.ReportSink) (*FactReport, error) {
	content, err := c.parser.Content(html)
	if err != nil {
		return nil, fmt.Errorf("extract content of %s: %w", page, err)
	}
	report := &FactReport{Page: page}
	out := func(status entity.EventStatus, target, msg string, mode entity.MatchMode) {
		ev := newEvent(page, entity.CheckFact, target, status, msg)
		ev.MatchedMode = mode
		emit(ctx, sink, c.logger, ev)
	}

	if facts.CompanyName == "" {
		out(entity.StatusInfo, "company name", "no company name expected", entity.MatchNone)
	} else {
		o := c.matcher.MatchName(content.Text, content.LogoAlts, facts.CompanyName)
		report.Name = &o
		if o.Found {
			out(entity.StatusPass, "company name", fmt.Sprintf("%q found (%s)", o.Expected, o.Mode), o.Mode)
		} else {
			out(entity.StatusFail, "company name", fmt.Sprintf("%q not found", o.Expected), o.Mode)
		}
	}

	if len(facts.Phones) == 0 {
		out(entity.StatusInfo, "phone", "no phone expected", entity.MatchNone)
	}
	for _, phone := range facts.Phones {
		o := c.matcher.MatchPhone(content.Text, phone)
		report.Phones = append(report.Phones, o)
		if o.Found {
			out(entity.StatusPass, "phone", fmt.Sprintf("%q found", phone), o.Mode)
		} else {
			out(entity.StatusFail, "phone", fmt.Sprintf("%q not found", phone), o.Mode)
		}
	}

	if len(facts.Addresses) == 0 {
		out(entity.StatusInfo, "address", "no address expected", entity.MatchNone)
	}
	for _, addr := range facts.Addresses {
		o := c.matcher.MatchAddress(content.Text, addr)
		report.Addresses = append(report.Addresses, o)
		if o.Found {
			out(entity.StatusPass, "address", fmt.Sprintf("%q found (%s)", addr, o.Mode), o.Mode)
		} else {
			out(entity.StatusWarning, "address", fmt.Sprintf("%q not found", addr), o.Mode)
		}
	}
	if len(report.Addresses) > 0 && !anyFound(report.Addresses) {
		out(entity.StatusFail, "address", "none of the expected addresses found", entity.MatchNone)
	}

	if len(facts.Hours) == 0 {
		out(entity.StatusInfo, "hours", "no hours expected", entity.MatchNone)
	}
	for _, hours := range facts.Hours {
		o := c.matcher.MatchHours(content.Text, hours)
		report.Hours = append(report.Hours, o)
		if o.Found {
			out(entity.StatusPass, "hours", fmt.Sprintf("%q found (%s)", hours, o.Mode), o.Mode)
		} else {
			out(entity.StatusFail, "hours", fmt.Sprintf("%q not found", hours), o.Mode)
		}
	}
	return report, nil
}

func anyFound(outcomes []entity.MatchOutcome) bool {
	for _, o := range outcomes {
		if o.Found {
			return true
		}
	}
	return false
}
