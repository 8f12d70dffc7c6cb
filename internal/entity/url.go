package entity

// LinkKind is the scheme classification of a discovered href.
type LinkKind string

const (
	KindPage      LinkKind = "page"
	KindTelephone LinkKind = "telephone"
	KindEmail     LinkKind = "email"
	KindSMS       LinkKind = "sms"
	KindScript    LinkKind = "script"
	KindAnchor    LinkKind = "anchor"
	KindExternal  LinkKind = "external"
	KindInvalid   LinkKind = "invalid"
)

// URL is a discovered link after normalization and classification.
// Values are never modified once classified.
type URL struct {
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized"`
	Kind       LinkKind `json:"kind"`
}

// IsContact reports whether the link is a tel:, mailto: or sms: target.
func (u URL) IsContact() bool {
	return u.Kind == KindTelephone || u.Kind == KindEmail || u.Kind == KindSMS
}

// IsNavigable reports whether the link can be fetched over HTTP.
func (u URL) IsNavigable() bool {
	return u.Kind == KindPage || u.Kind == KindExternal
}
