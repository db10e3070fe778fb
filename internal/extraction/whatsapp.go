package extraction

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MinPhoneDigits is the shortest digit string accepted as a WhatsApp number
// (area code plus subscriber number).
const MinPhoneDigits = 10

// keywordWindow is how many characters around the start of a phone match are
// searched for a WhatsApp keyword.
const keywordWindow = 50

var (
	phoneShape   = regexp.MustCompile(`\d{2,3}[-\s]?\d{4,5}[-\s]?\d{4}`)
	waClassShape = regexp.MustCompile(`(?i)whatsapp|wa|zap`)
	nonDigits    = regexp.MustCompile(`\D`)
)

var whatsAppKeywords = []string{"whatsapp", "whats", "wa", "zap", "zapzap"}

// whatsApp tries, in order: messaging deep links, phone numbers written next
// to a WhatsApp keyword, and phone numbers inside WhatsApp-styled elements.
// The result is digits only.
func (p *page) whatsApp() string {
	if number := p.whatsAppFromLinks(); number != "" {
		return number
	}
	if number := p.whatsAppFromText(); number != "" {
		return number
	}
	return p.whatsAppFromElements()
}

func (p *page) whatsAppFromLinks() string {
	for _, href := range p.hrefs() {
		if number := numberFromMessagingLink(href); len(number) >= MinPhoneDigits {
			return number
		}
	}
	return ""
}

// numberFromMessagingLink understands wa.me/<n>, api.whatsapp.com/send?phone=<n>,
// web.whatsapp.com/send?phone=<n> and whatsapp://send?phone=<n>.
func numberFromMessagingLink(href string) string {
	lower := strings.ToLower(href)

	if i := strings.Index(lower, "wa.me/"); i >= 0 {
		rest := href[i+len("wa.me/"):]
		if j := strings.IndexAny(rest, "?#/"); j >= 0 {
			rest = rest[:j]
		}
		return digitsOnly(rest)
	}

	if !strings.Contains(lower, "whatsapp") || !strings.Contains(lower, "phone=") {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if phone := u.Query().Get("phone"); phone != "" {
			return digitsOnly(phone)
		}
	}
	// Fall back to a raw scan for links url.Parse rejects.
	rest := href[strings.Index(lower, "phone=")+len("phone="):]
	if j := strings.IndexAny(rest, "&#"); j >= 0 {
		rest = rest[:j]
	}
	return digitsOnly(rest)
}

func (p *page) whatsAppFromText() string {
	for _, loc := range phoneShape.FindAllStringIndex(p.text, -1) {
		start, end := runeWindow(p.text, loc[0], keywordWindow)
		window := strings.ToLower(p.text[start:end])
		if !containsAny(window, whatsAppKeywords) {
			continue
		}
		if number := digitsOnly(p.text[loc[0]:loc[1]]); len(number) >= MinPhoneDigits {
			return number
		}
	}
	return ""
}

func (p *page) whatsAppFromElements() string {
	var found string
	p.doc.Find("div, span, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if class == "" || !waClassShape.MatchString(class) {
			return true
		}
		match := phoneShape.FindString(s.Text())
		if number := digitsOnly(match); len(number) >= MinPhoneDigits {
			found = number
			return false
		}
		return true
	})
	return found
}

// runeWindow returns the byte bounds of the n characters before and after the
// byte offset at.
func runeWindow(s string, at, n int) (start, end int) {
	start = at
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	end = at
	for i := 0; i < n && end < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return start, end
}

func digitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
