package extraction

import (
	"strings"

	"github.com/jonathan/lead-collector/internal/types"
)

// linkedIn returns the first company page link, falling back to any
// LinkedIn link that mentions a company.
func (p *page) linkedIn() string {
	if link := p.firstLink(func(lower string) bool {
		return strings.Contains(lower, "linkedin.com/company/")
	}); link != "" {
		return link
	}
	return p.firstLink(func(lower string) bool {
		return strings.Contains(lower, "linkedin.com") && strings.Contains(lower, "company")
	})
}

// facebook returns the first anchor pointing at Facebook. Share dialogs are
// not pages and are skipped.
func (p *page) facebook() string {
	return p.firstLink(func(lower string) bool {
		return strings.Contains(lower, "facebook.com") && !strings.Contains(lower, "facebook.com/sharer")
	})
}

// firstLink returns the first href accepted by match, resolved to an
// absolute URL.
func (p *page) firstLink(match func(lower string) bool) string {
	for _, href := range p.hrefs() {
		if !match(strings.ToLower(href)) {
			continue
		}
		if resolved, ok := p.resolve(href); ok {
			return resolved
		}
	}
	return ""
}

// FromLink applies the link rules to a single URL, for businesses whose
// listed website is a social profile or a chat link.
func FromLink(link string) types.Contacts {
	link = strings.TrimSpace(link)
	lower := strings.ToLower(link)

	var c types.Contacts
	if strings.Contains(lower, "linkedin.com") && strings.Contains(lower, "company") {
		c.LinkedIn = link
	}
	if strings.Contains(lower, "facebook.com") && !strings.Contains(lower, "facebook.com/sharer") {
		c.Facebook = link
	}
	if number := numberFromMessagingLink(link); len(number) >= MinPhoneDigits {
		c.WhatsApp = number
	}
	return c
}
