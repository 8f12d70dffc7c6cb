package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/user/site-auditor/internal/adapter/facts"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
)

var errNoTargets = errors.New("nothing to audit: pass --facts or --site")

// buildTargets resolves the sites to audit from the facts brief and the
// --site/--sitemap flags. With both a brief and a site, only the matching
// row is kept. Rejected brief rows are written to w.
func buildTargets(factsPath, site, sitemap string, w io.Writer) ([]entity.SiteTarget, error) {
	var targets []entity.SiteTarget
	if factsPath != "" {
		res, err := facts.Load(factsPath)
		if err != nil {
			return nil, fmt.Errorf("load facts: %w", err)
		}
		for _, rowErr := range res.Errors {
			fmt.Fprintf(w, "skipped %s\n", rowErr)
		}
		targets = res.Targets
	}

	if site != "" {
		if !strings.Contains(site, "://") {
			site = "https://" + site
		}
		if targets == nil {
			targets = []entity.SiteTarget{{Website: site}}
		} else {
			targets = filterSite(targets, site)
			if len(targets) == 0 {
				return nil, fmt.Errorf("site %s not found in %s", site, factsPath)
			}
		}
	}
	if len(targets) == 0 {
		return nil, errNoTargets
	}

	if sitemap != "" {
		if len(targets) > 1 {
			return nil, errors.New("--sitemap needs a single target")
		}
		targets[0].SitemapURL = sitemap
	}
	return targets, nil
}

func filterSite(targets []entity.SiteTarget, site string) []entity.SiteTarget {
	want, err := utils.Normalize(nil, site)
	if err != nil {
		return nil
	}
	var out []entity.SiteTarget
	for _, t := range targets {
		if got, err := utils.Normalize(nil, t.Website); err == nil && got == want {
			out = append(out, t)
		}
	}
	return out
}
