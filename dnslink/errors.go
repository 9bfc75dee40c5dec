package dnslink

import "errors"

var (
	// ErrLookupFailed indicates the DNS query itself failed.
	ErrLookupFailed = errors.New("dnslink: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("dnslink: DNSSEC validation failed")

	// ErrNoRecord indicates no dnslink TXT record was published.
	ErrNoRecord = errors.New("dnslink: no dnslink record")

	// ErrUnsupportedPath indicates a dnslink path outside the /ipfs/ namespace.
	ErrUnsupportedPath = errors.New("dnslink: unsupported path")

	// ErrNoMirrors indicates no gateway SRV records were published.
	ErrNoMirrors = errors.New("dnslink: no mirror records")
)
