package repository

import "github.com/user/site-auditor/internal/entity"

// DocumentParser turns markup into links and checkable text.
type DocumentParser interface {
	// Anchors returns the absolute href of every anchor in body.
	Anchors(pageURL string, body []byte) ([]string, error)
	// Content returns the visible text and logo alt texts of html.
	Content(html string) (entity.PageContent, error)
}
