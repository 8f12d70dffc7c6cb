package entity

// ExpectedFacts are the business facts a site is expected to show.
type ExpectedFacts struct {
	CompanyName string   `json:"company_name"`
	Phones      []string `json:"phones"`
	Addresses   []string `json:"addresses"`
	Hours       []string `json:"hours"`
}

// BasicAuth holds credentials for protected sitemaps and staging sites.
type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// SiteTarget is one site to audit together with its expected facts.
type SiteTarget struct {
	Website    string        `json:"website"`
	SitemapURL string        `json:"sitemap_url,omitempty"`
	Auth       *BasicAuth    `json:"auth,omitempty"`
	Facts      ExpectedFacts `json:"facts"`
	MaxPages   int           `json:"max_pages,omitempty"`
}
