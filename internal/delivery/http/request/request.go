package request

import (
	"strings"

	"github.com/user/site-auditor/internal/entity"
)

type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type FactsRequest struct {
	CompanyName string   `json:"company_name"`
	Phones      []string `json:"phones"`
	Addresses   []string `json:"addresses"`
	Hours       []string `json:"hours"`
}

// SubmitAuditRequest is the body of POST /api/audits.
type SubmitAuditRequest struct {
	Website    string       `json:"website"`
	SitemapURL string       `json:"sitemap_url"`
	Facts      FactsRequest `json:"facts"`
	Auth       *AuthRequest `json:"auth"`
	MaxPages   int          `json:"max_pages"`
	Force      bool         `json:"force"`
}

// Target converts the request into the audit target it describes.
func (r SubmitAuditRequest) Target() entity.SiteTarget {
	t := entity.SiteTarget{
		Website:    strings.TrimSpace(r.Website),
		SitemapURL: strings.TrimSpace(r.SitemapURL),
		MaxPages:   r.MaxPages,
		Facts: entity.ExpectedFacts{
			CompanyName: strings.TrimSpace(r.Facts.CompanyName),
			Phones:      r.Facts.Phones,
			Addresses:   r.Facts.Addresses,
			Hours:       r.Facts.Hours,
		},
	}
	if r.Auth != nil && r.Auth.Username != "" {
		t.Auth = &entity.BasicAuth{Username: r.Auth.Username, Password: r.Auth.Password}
	}
	return t
}
