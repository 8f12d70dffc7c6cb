package entity

// CTAStyle is the computed style snapshot of a CTA element.
type CTAStyle struct {
	Color        string `json:"color"`
	FontSize     string `json:"font_size"`
	FontWeight   string `json:"font_weight"`
	Padding      string `json:"padding"`
	BorderRadius string `json:"border_radius"`
}

// CTASection is the page region an element belongs to.
type CTASection string

const (
	SectionHeader CTASection = "header"
	SectionBody   CTASection = "body"
	SectionFooter CTASection = "footer"
)

// CTAItem is an interactive element as seen on one page visit.
// The label fields feed the display name chain; Name holds the result.
type CTAItem struct {
	Index     int        `json:"index"`
	Tag       string     `json:"tag"`
	Name      string     `json:"name"`
	Href      string     `json:"href,omitempty"`
	OnClick   bool       `json:"onclick"`
	Text      string     `json:"text,omitempty"`
	AriaLabel string     `json:"aria_label,omitempty"`
	Alt       string     `json:"alt,omitempty"`
	Title     string     `json:"title,omitempty"`
	ImageAlt  string     `json:"image_alt,omitempty"`
	ClassName string     `json:"class_name,omitempty"`
	HasIcon   bool       `json:"has_icon"`
	Section   CTASection `json:"section"`
	Style     CTAStyle   `json:"style"`
}

// LookupState is the result of re-querying an element by index.
type LookupState int

const (
	LookupFound LookupState = iota
	LookupNotFound
	LookupStale
)

func (s LookupState) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupStale:
		return "stale"
	}
	return "unknown"
}

// CTALookup is returned by index lookups against the live element list.
type CTALookup struct {
	State LookupState
	Item  CTAItem
}

// CTAKind is the affordance a CTA was resolved as.
type CTAKind string

const (
	CTATelephone   CTAKind = "telephone"
	CTAEmail       CTAKind = "email"
	CTASMS         CTAKind = "sms"
	CTASocial      CTAKind = "social"
	CTAInteractive CTAKind = "interactive"
	CTAClickNav    CTAKind = "click_navigated"
	CTAJSHandled   CTAKind = "js_handled"
	CTAScript      CTAKind = "script"
	CTASamePage    CTAKind = "same_page"
	CTARedirect    CTAKind = "redirect"
	CTANoRedirect  CTAKind = "no_redirect"
	CTADecorative  CTAKind = "decorative"
	CTASkipped     CTAKind = "skipped"
	CTAUnresolved  CTAKind = "unresolved"
)

// CTAResult is the terminal outcome for one element.
type CTAResult struct {
	Item    CTAItem     `json:"item"`
	Kind    CTAKind     `json:"kind"`
	Status  EventStatus `json:"status"`
	Message string      `json:"message"`
}

// PageCTASummary holds the per-page counters produced by the CTA validator.
type PageCTASummary struct {
	Page     string             `json:"page"`
	Results  []CTAResult        `json:"results"`
	Pass     int                `json:"pass"`
	Fail     int                `json:"fail"`
	Warning  int                `json:"warning"`
	Skipped  int                `json:"skipped"`
	Sections map[CTASection]int `json:"sections"`
}
