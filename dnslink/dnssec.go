package dnslink

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultUpstream is the validating recursive resolver used when none is
	// configured.
	DefaultUpstream = "1.1.1.1:53"

	defaultTimeout = 5 * time.Second
	edns0BufSize   = 4096
)

// DNSSECResolver queries a validating recursive resolver and accepts only
// answers carrying the AD flag.
type DNSSECResolver struct {
	Upstream string
	Timeout  time.Duration
}

var _ DNSResolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver returns a resolver for upstream, or DefaultUpstream when
// empty.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream, Timeout: defaultTimeout}
}

func (r *DNSSECResolver) exchange(name string, qtype uint16) (*dns.Msg, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(name), qtype)
	q.RecursionDesired = true
	q.SetEdns0(edns0BufSize, true)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(q, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrLookupFailed, dns.TypeToString[qtype], name, err)
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return resp, nil
	default:
		return nil, fmt.Errorf("%w: %s %s: rcode %s", ErrLookupFailed,
			dns.TypeToString[qtype], name, dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: %s %s", ErrDNSSECValidationFailed, dns.TypeToString[qtype], name)
	}
	return resp, nil
}

// LookupSRV implements DNSResolver. The canonical name is always empty.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	resp, err := r.exchange(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}
	var out []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			out = append(out, &net.SRV{
				Target:   srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	return "", out, nil
}

// LookupTXT implements DNSResolver. Character strings of one record are
// joined.
func (r *DNSSECResolver) LookupTXT(name string) ([]string, error) {
	resp, err := r.exchange(name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}
