package extraction

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailShape  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	emailInText = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// placeholderDomains appear in templates, docs and error trackers, never as
// a real contact address.
var placeholderDomains = []string{
	"example.com",
	"example.org",
	"test.com",
	"domain.com",
	"email.com",
	"yourdomain.com",
	"seudominio.com",
	"sentry.io",
	"sentry.wixpress.com",
	"wixpress.com",
}

// imageSuffixes catch retina asset names such as logo@2x.png matching the
// email shape.
var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// email prefers an explicit mailto link and falls back to the first
// plausible address in the visible text.
func (p *page) email() string {
	for _, href := range p.hrefs() {
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			continue
		}
		addr := href[len("mailto:"):]
		if i := strings.IndexAny(addr, "?#"); i >= 0 {
			addr = addr[:i]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		// mailto:a@b.com,c@d.com lists several recipients
		if i := strings.Index(addr, ","); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.TrimSpace(addr)
		if emailShape.MatchString(addr) {
			return addr
		}
	}

	for _, candidate := range emailInText.FindAllString(p.text, -1) {
		if !isPlaceholderEmail(candidate) {
			return candidate
		}
	}
	return ""
}

func isPlaceholderEmail(addr string) bool {
	lower := strings.ToLower(addr)
	at := strings.LastIndex(lower, "@")
	if at < 0 {
		return true
	}
	local, domain := lower[:at], lower[at+1:]

	for _, d := range placeholderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	if strings.Contains(local, "noreply") || strings.Contains(local, "no-reply") {
		return true
	}
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
