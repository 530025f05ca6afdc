// Package privacy implements the deterministic, privacy-preserving IP
// transform applied before any address is persisted.
package privacy

import "net"

// Anonymizer zeroes the host-identifying portion of an IP address. The
// transform is idempotent: anonymizing an already-anonymized address
// returns the same value.
type Anonymizer struct {
	enabled bool
}

// NewAnonymizer creates an anonymizer. When disabled, Anonymize is a
// passthrough.
func NewAnonymizer(enabled bool) *Anonymizer {
	return &Anonymizer{enabled: enabled}
}

// Anonymize transforms an IP address string:
//   - IPv4: the last octet is zeroed (203.0.113.42 -> 203.0.113.0)
//   - IPv6: the last 80 bits (5 of 8 groups) are zeroed, then the address
//     is recompressed to canonical form
//   - IPv4-mapped IPv6 addresses delegate to the IPv4 rule on the embedded
//     address
//
// Unparseable or empty input is returned unchanged.
func (a *Anonymizer) Anonymize(ip string) string {
	if !a.enabled || ip == "" {
		return ip
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}

	// To4 succeeds for both plain IPv4 and IPv4-mapped IPv6, which covers
	// the delegation rule.
	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	v6 := parsed.To16()
	if v6 == nil {
		return ip
	}

	// Keep the top 48 bits (3 groups), zero the remaining 80.
	masked := v6.Mask(net.CIDRMask(48, 128))
	return masked.String()
}

// Enabled reports whether anonymization is active.
func (a *Anonymizer) Enabled() bool {
	return a.enabled
}
