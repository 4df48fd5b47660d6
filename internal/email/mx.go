package email

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DefaultDNSServers are queried in order when none are configured.
var DefaultDNSServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// MXVerifier checks that an address's domain accepts mail. Answers are cached per domain.
type MXVerifier struct {
	client  *dns.Client
	servers []string

	mu    sync.Mutex
	cache map[string]bool
}

// NewMXVerifier builds a verifier using the given resolvers (host:port).
func NewMXVerifier(servers []string, timeout time.Duration) *MXVerifier {
	if len(servers) == 0 {
		servers = DefaultDNSServers
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MXVerifier{
		client:  &dns.Client{Timeout: timeout},
		servers: append([]string(nil), servers...),
		cache:   make(map[string]bool),
	}
}

// HasMX reports whether domain publishes an MX record. An error means no resolver answered.
func (v *MXVerifier) HasMX(ctx context.Context, domain string) (bool, error) {
	v.mu.Lock()
	if ok, cached := v.cache[domain]; cached {
		v.mu.Unlock()
		return ok, nil
	}
	v.mu.Unlock()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	var errs []error
	for _, server := range v.servers {
		resp, _, err := v.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}
		ok := resp.Rcode == dns.RcodeSuccess && hasMXAnswer(resp)
		v.mu.Lock()
		v.cache[domain] = ok
		v.mu.Unlock()
		return ok, nil
	}
	return false, fmt.Errorf("mx lookup %s: %w", domain, errors.Join(errs...))
}

func hasMXAnswer(resp *dns.Msg) bool {
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.MX); ok {
			return true
		}
	}
	return false
}
