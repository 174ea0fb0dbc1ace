package address

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/idna"
)

const defaultLookupTimeout = 5 * time.Second

// MXChecker implements DomainChecker with DNS MX lookups.
type MXChecker struct {
	// Resolver performs the lookups. net.DefaultResolver is used if nil.
	Resolver *net.Resolver
	// Bounds each lookup. Defaults to 5s.
	LookupTimeout time.Duration
}

// HasMX looks up MX records for domain. A domain that doesn't exist, or
// exists without MX records, returns (false, nil).
func (m *MXChecker) HasMX(ctx context.Context, domain string) (bool, error) {
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return false, fmt.Errorf("can't convert %q to an ASCII domain: %w", domain, err)
	}

	r := m.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	t := m.LookupTimeout
	if t == 0 {
		t = defaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, t)
	defer cancel()

	mxs, err := r.LookupMX(ctx, ascii)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, nil
		}
		return false, err
	}
	return len(mxs) > 0, nil
}
