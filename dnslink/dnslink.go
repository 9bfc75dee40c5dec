package dnslink

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/bitfsorg/anchorgate-go/storage"
)

const (
	recordPrefix = "dnslink="
	ipfsPath     = "/ipfs/"

	// GatewayService is the SRV service name mirrors are published under.
	GatewayService = "ipfs-gateway"
)

// ResolveContentID reads _dnslink.{domain} and returns the content id it
// points at. A nil resolver means DefaultResolver.
func ResolveContentID(domain string, resolver DNSResolver) (storage.ContentID, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrLookupFailed)
	}
	if resolver == nil {
		resolver = DefaultResolver
	}

	name := "_dnslink." + domain
	txts, err := resolver.LookupTXT(name)
	if err != nil {
		return "", fmt.Errorf("%w: TXT %s: %w", ErrLookupFailed, name, err)
	}

	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if !strings.HasPrefix(txt, recordPrefix) {
			continue
		}
		return parsePath(strings.TrimSpace(strings.TrimPrefix(txt, recordPrefix)))
	}
	return "", fmt.Errorf("%w: %s", ErrNoRecord, name)
}

// parsePath accepts /ipfs/<cid>[/sub/path]; the sub path is ignored.
func parsePath(p string) (storage.ContentID, error) {
	if !strings.HasPrefix(p, ipfsPath) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPath, p)
	}
	rest := strings.TrimPrefix(p, ipfsPath)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	c, err := cid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", storage.ErrInvalidContentID, rest, err)
	}
	return storage.ContentID(c.String()), nil
}

// ResolveMirrors reads _ipfs-gateway._tcp.{domain} and returns gateway base
// URLs ordered by priority (ascending) then weight (descending). Port 443
// yields an https URL without a port; anything else keeps the port.
func ResolveMirrors(domain string, resolver DNSResolver) ([]string, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrLookupFailed)
	}
	if resolver == nil {
		resolver = DefaultResolver
	}

	_, srvs, err := resolver.LookupSRV(GatewayService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV _%s._tcp.%s: %w", ErrLookupFailed, GatewayService, domain, err)
	}
	if len(srvs) == 0 {
		return nil, fmt.Errorf("%w: _%s._tcp.%s", ErrNoMirrors, GatewayService, domain)
	}

	sorted := slices.Clone(srvs)
	slices.SortStableFunc(sorted, func(a, b *net.SRV) int {
		if a.Priority != b.Priority {
			return int(a.Priority) - int(b.Priority)
		}
		return int(b.Weight) - int(a.Weight)
	})

	urls := make([]string, 0, len(sorted))
	for _, srv := range sorted {
		host := strings.TrimSuffix(srv.Target, ".")
		if host == "" {
			continue
		}
		if srv.Port == 443 {
			urls = append(urls, "https://"+host)
			continue
		}
		urls = append(urls, "https://"+net.JoinHostPort(host, strconv.Itoa(int(srv.Port))))
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: _%s._tcp.%s", ErrNoMirrors, GatewayService, domain)
	}
	return urls, nil
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}
