package web

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
)

// Parser implements repository.DocumentParser with goquery.
type Parser struct{}

// Anchors implements repository.DocumentParser.
func (Parser) Anchors(pageURL string, body []byte) ([]string, error) {
	return ExtractAnchors(pageURL, body)
}

// Content implements repository.DocumentParser.
func (Parser) Content(html string) (entity.PageContent, error) {
	return ExtractPageContent(html)
}

// ExtractAnchors parses body as HTML and returns the absolute href of every
// anchor, resolved against pageURL and honouring <base href>. Duplicates are
// removed; document order is kept.
func ExtractAnchors(pageURL string, body []byte) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		abs := href
		if !hasOpaqueScheme(href) {
			resolved, err := utils.ToAbsoluteURL(base, href)
			if err != nil {
				return
			}
			abs = resolved
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

// ExtractPageContent returns the visible body text and the alt texts of
// images that look like logos.
func ExtractPageContent(html string) (entity.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return entity.PageContent{}, fmt.Errorf("parse html: %w", err)
	}

	var content entity.PageContent
	doc.Find("img[alt]").Each(func(_ int, s *goquery.Selection) {
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		if alt == "" {
			return
		}
		hint := strings.ToLower(alt + " " + s.AttrOr("class", "") + " " + s.AttrOr("src", "") + " " + s.AttrOr("id", ""))
		inHeader := s.ParentsFiltered("header, .header, #header, nav").Length() > 0
		if strings.Contains(hint, "logo") || inHeader {
			content.LogoAlts = append(content.LogoAlts, alt)
		}
	})

	doc.Find("script, style, noscript, template").Remove()
	// Block elements run together in Text(); pad them so words stay apart.
	doc.Find("br, p, div, li, td, th, h1, h2, h3, h4, h5, h6, span, a").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	content.Text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return content, nil
}

func hasOpaqueScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range []string{"tel:", "mailto:", "sms:", "javascript"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
