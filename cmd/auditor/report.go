package main

import (
	"io"
	"sort"

	"github.com/rodaine/table"
	"github.com/user/site-auditor/internal/entity"
)

// printSummaries writes one row per audited site.
func printSummaries(w io.Writer, summaries []*entity.SiteSummary) {
	tbl := table.New("Site", "Visited", "Skipped", "Broken", "Pass", "Fail", "Warning", "Interrupted").WithWriter(w)
	for _, s := range summaries {
		if s == nil {
			continue
		}
		tbl.AddRow(s.Site, s.Visited, s.Skipped, s.Broken,
			s.Totals[entity.StatusPass], s.Totals[entity.StatusFail], s.Totals[entity.StatusWarning], s.Interrupted)
	}
	tbl.Print()
}

// printFailures lists failed checks grouped by site, in emission order
// within a site.
func printFailures(w io.Writer, failures []entity.ReportEvent) {
	if len(failures) == 0 {
		return
	}
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Site < failures[j].Site })

	tbl := table.New("Site", "Check", "Page", "Target", "Message").WithWriter(w)
	prev := ""
	for _, e := range failures {
		site := e.Site
		if site == prev {
			site = ""
		}
		prev = e.Site
		tbl.AddRow(site, e.Check, e.Page, e.Target, e.Message)
	}
	tbl.Print()
}

func anyFailed(summaries []*entity.SiteSummary) bool {
	for _, s := range summaries {
		if s.HasFailures() {
			return true
		}
	}
	return false
}
