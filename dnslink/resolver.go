// Package dnslink maps human-readable domains to content ids and mirror
// gateways through DNS.
//
//	_dnslink.{domain}           TXT  "dnslink=/ipfs/<cid>"
//	_ipfs-gateway._tcp.{domain} SRV  mirror gateways
package dnslink

import (
	"net"
)

// DNSResolver is the subset of DNS lookups the package needs.
type DNSResolver interface {
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
	LookupTXT(name string) ([]string, error)
}

type netResolver struct{}

func (netResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

func (netResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultResolver uses the system resolver without DNSSEC checks.
var DefaultResolver DNSResolver = netResolver{}
