package address

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ptgott/postman/mailerr"
	"github.com/rs/zerolog"
)

// addressPattern matches local-part@domain.tld shaped addresses: an ASCII
// dot-separated local part, a dot-separated domain and a 2-4 letter
// top-level label.
var addressPattern = regexp.MustCompile(
	`^[A-Za-z0-9_%+-]+(\.[A-Za-z0-9_%+-]+)*@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,4}$`,
)

// RecipientSet is an ordered list of validated addresses. Duplicates are
// kept.
type RecipientSet []string

// DomainChecker reports whether a domain has at least one MX record. A
// (false, nil) result means the domain definitely can't receive mail. An
// error means the check couldn't be completed.
type DomainChecker interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// Validator filters recipients. Checker is optional: when it's nil, domain
// verification is skipped entirely.
type Validator struct {
	Checker DomainChecker
	// Bounds the whole domain verification step. Zero means no bound.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewValidator returns a Validator that logs to l. Pass a nil checker to
// disable domain verification.
func NewValidator(checker DomainChecker, l zerolog.Logger) *Validator {
	return &Validator{
		Checker: checker,
		Logger:  l,
	}
}

// IsValid reports whether addr is syntactically acceptable.
func IsValid(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Validate returns the members of raw that pass syntax validation (and
// domain verification, if enabled), preserving their order.
func (v *Validator) Validate(raw []string) (RecipientSet, error) {
	if len(raw) == 0 {
		return nil, mailerr.NewInvalidInputError("no recipients were supplied", nil)
	}

	rs := make(RecipientSet, 0, len(raw))
	for _, r := range raw {
		a := strings.TrimSpace(r)
		if !IsValid(a) {
			v.Logger.Debug().Str("address", r).Msg("discarding invalid recipient address")
			continue
		}
		rs = append(rs, a)
	}

	if len(rs) == 0 {
		return nil, mailerr.NewNoValidRecipientsError(
			"none of the supplied recipient addresses is valid",
			nil,
		)
	}

	if v.Checker == nil {
		return rs, nil
	}

	return v.verifyDomains(rs)
}

// verifyDomains drops every address whose domain has no MX record. Each
// distinct domain is looked up once.
func (v *Validator) verifyDomains(rs RecipientSet) (RecipientSet, error) {
	ctx := context.Background()
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	accepted := make(map[string]bool)
	for _, a := range rs {
		d := domainOf(a)
		if _, ok := accepted[d]; ok {
			continue
		}
		ok, err := v.Checker.HasMX(ctx, d)
		if err != nil {
			// The lookup itself failed, so we don't know anything about
			// the domain. Keep it and let the relay decide.
			v.Logger.Warn().
				Err(err).
				Str("domain", d).
				Msg("could not verify recipient domain, keeping it")
			accepted[d] = true
			continue
		}
		if !ok {
			v.Logger.Error().Str("domain", d).Msg("rejecting recipient domain without an MX record")
		}
		accepted[d] = ok
	}

	kept := make(RecipientSet, 0, len(rs))
	for _, a := range rs {
		if accepted[domainOf(a)] {
			kept = append(kept, a)
		}
	}

	if len(kept) == 0 {
		return nil, mailerr.NewNoValidDomainsError(
			"no recipient domain has an MX record",
			nil,
		)
	}
	return kept, nil
}

// domainOf returns the lowercased domain of a validated address.
func domainOf(addr string) string {
	i := strings.LastIndex(addr, "@")
	return strings.ToLower(addr[i+1:])
}
