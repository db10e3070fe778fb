package fetch

import (
	"net/url"
	"strings"
)

// Platform is the kind of site a business lists as its website.
type Platform string

const (
	// PlatformWeb is an ordinary company website
	PlatformWeb Platform = "web"
	// PlatformFacebook is a Facebook page
	PlatformFacebook Platform = "facebook"
	// PlatformInstagram is an Instagram profile
	PlatformInstagram Platform = "instagram"
	// PlatformLinkedIn is a LinkedIn page
	PlatformLinkedIn Platform = "linkedin"
	// PlatformWhatsApp is a WhatsApp click-to-chat link
	PlatformWhatsApp Platform = "whatsapp"
	// PlatformUnknown is an unparsable URL
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the platform behind a listed website. Small
// businesses frequently register a social profile or a chat link instead of
// a site of their own; those pages require login or scripts and are not
// worth fetching.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(NormalizeURL(urlStr))
	if err != nil || parsed.Host == "" {
		return PlatformUnknown
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	switch {
	case host == "facebook.com" || strings.HasSuffix(host, ".facebook.com") || host == "fb.com":
		return PlatformFacebook
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com"):
		return PlatformInstagram
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return PlatformLinkedIn
	case host == "wa.me" || host == "api.whatsapp.com" || host == "web.whatsapp.com" || host == "wa.link":
		return PlatformWhatsApp
	}
	return PlatformWeb
}

// ShouldFetch reports whether a page on this platform is worth downloading.
func (p Platform) ShouldFetch() bool {
	return p == PlatformWeb
}
