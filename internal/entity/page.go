package entity

// PageContent is the text of a rendered or fetched page that fact checks
// run against.
type PageContent struct {
	Text     string   `json:"text"`
	LogoAlts []string `json:"logo_alts,omitempty"`
}
