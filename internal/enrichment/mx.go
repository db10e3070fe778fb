package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/miekg/dns"
)

// MXChecker reports whether a domain accepts mail.
type MXChecker interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// DefaultDNSServers are queried when none are configured.
var DefaultDNSServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// DNSChecker looks up MX records directly against a list of resolvers.
type DNSChecker struct {
	servers []string
	client  *dns.Client
}

// NewDNSChecker creates a DNSChecker. A non-positive timeout uses 3 seconds.
func NewDNSChecker(servers []string, timeout time.Duration) *DNSChecker {
	if len(servers) == 0 {
		servers = DefaultDNSServers
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DNSChecker{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
	}
}

// HasMX asks each server in turn. The first authoritative answer wins: MX
// answers mean true, an empty answer or NXDOMAIN means false. An error is
// returned only when no server could be reached.
func (c *DNSChecker) HasMX(ctx context.Context, domain string) (bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		resp, _, err := c.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			for _, rr := range resp.Answer {
				if _, ok := rr.(*dns.MX); ok {
					return true, nil
				}
			}
			return false, nil
		case dns.RcodeNameError:
			return false, nil
		default:
			lastErr = errors.Newf("server %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}
	return false, errors.Wrapf(lastErr, "MX lookup for %s failed", domain)
}

// EmailDomain returns the part of an address after the last @.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}
