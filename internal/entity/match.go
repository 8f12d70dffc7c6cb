package entity

// MatchMode names the matching strategy that found a fact.
type MatchMode string

const (
	MatchNone    MatchMode = ""
	MatchExact   MatchMode = "exact"
	MatchFuzzy   MatchMode = "fuzzy"
	MatchPartial MatchMode = "partial"
	MatchLogo    MatchMode = "logo"
	MatchDigits  MatchMode = "digits"
)

// MatchOutcome records whether an expected value was found and how.
type MatchOutcome struct {
	Expected string    `json:"expected"`
	Found    bool      `json:"found"`
	Mode     MatchMode `json:"mode,omitempty"`
	Score    float64   `json:"score,omitempty"`
}
