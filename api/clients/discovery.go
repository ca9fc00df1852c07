package clients

import (
	"fmt"

	"github.com/miekg/dns"
)

// defaultResolver is the systemd-resolved stub listener.
const defaultResolver = "127.0.0.53:53"

// DiscoverServerAddr resolves an allowlist service address from a DNS SRV
// record. The first SRV answer wins; its target and port become the server
// address. Pass an empty resolver to use the local stub resolver.
func DiscoverServerAddr(srvName, resolver string) (string, error) {
	if resolver == "" {
		resolver = defaultResolver
	}

	m1 := new(dns.Msg)
	m1.Id = dns.Id()
	m1.RecursionDesired = true
	m1.Question = make([]dns.Question, 1)
	m1.Question[0] = dns.Question{Name: dns.Fqdn(srvName), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}

	c := new(dns.Client)
	in, _, err := c.Exchange(m1, resolver)
	if err != nil {
		return "", fmt.Errorf("SRV lookup for %s failed: %w", srvName, err)
	}

	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			target := srv.Target
			if len(target) > 0 && target[len(target)-1] == '.' {
				target = target[:len(target)-1]
			}
			return fmt.Sprintf("%s:%d", target, srv.Port), nil
		}
	}

	return "", fmt.Errorf("no SRV records for %s", srvName)
}
