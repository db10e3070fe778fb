// Package extraction pulls contact details (email, social profiles, WhatsApp
// number) out of arbitrary company web pages.
//
// Anchor-based rules run on the parsed document tree. Text rules run on the
// collected visible text and are only used when no structural signal exists.
package extraction

import (
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/lead-collector/internal/types"
)

// invisibleElements never contribute to visible text.
var invisibleElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// page is a parsed document plus the data shared by the field extractors.
type page struct {
	doc  *goquery.Document
	base *url.URL
	text string
}

// Extract returns the contact details found in htmlContent. baseURL is used
// to resolve relative profile links. Each field is extracted independently;
// a field that is not found is left empty. Extract never fails: unparsable
// input yields empty Contacts.
func Extract(htmlContent string, baseURL string) types.Contacts {
	p, err := parse(htmlContent, baseURL)
	if err != nil {
		return types.Contacts{}
	}

	return types.Contacts{
		Email:    p.email(),
		LinkedIn: p.linkedIn(),
		Facebook: p.facebook(),
		WhatsApp: p.whatsApp(),
	}
}

// FromResponse is Extract guarded by the response content type: anything
// that is not an HTML document yields empty Contacts without parsing.
func FromResponse(contentType string, htmlContent string, baseURL string) types.Contacts {
	if !IsHTMLContentType(contentType) {
		return types.Contacts{}
	}
	return Extract(htmlContent, baseURL)
}

// IsHTMLContentType reports whether a Content-Type header denotes an HTML document.
func IsHTMLContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// VisibleText returns the whitespace-collapsed text a browser would render
// for htmlContent.
func VisibleText(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return visibleText(doc)
}

func parse(htmlContent string, baseURL string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &ParseError{Message: "failed to parse HTML", Cause: err}
	}

	var base *url.URL
	if parsed, err := url.Parse(strings.TrimSpace(baseURL)); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		base = parsed
	}

	return &page{
		doc:  doc,
		base: base,
		text: visibleText(doc),
	}, nil
}

// visibleText collects text nodes outside invisible elements, separating
// adjacent nodes with a space so that "<p>WhatsApp</p><p>41 ...</p>" does
// not glue words and digits together.
func visibleText(doc *goquery.Document) string {
	var sb strings.Builder
	collectText(doc.Selection, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(s *goquery.Selection, sb *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			sb.WriteString(c.Text())
			sb.WriteByte(' ')
		case invisibleElements[name], name == "#comment":
			return
		default:
			collectText(c, sb)
		}
	})
}

// hrefs returns the trimmed href of every anchor, in document order.
func (p *page) hrefs() []string {
	var out []string
	p.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		if href != "" {
			out = append(out, href)
		}
	})
	return out
}

// resolve turns href into an absolute URL against the page base.
// It returns false when href cannot be parsed.
func (p *page) resolve(href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() || p.base == nil {
		return href, true
	}
	return p.base.ResolveReference(ref).String(), true
}
