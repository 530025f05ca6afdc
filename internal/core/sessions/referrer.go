package sessions

import (
	"net/url"
	"strings"

	"github.com/openpulse/pulse-backend-go/internal/config"
)

// Referrer types
const (
	ReferrerDirect   = "direct"
	ReferrerOrganic  = "organic"
	ReferrerSocial   = "social"
	ReferrerPaid     = "paid"
	ReferrerEmail    = "email"
	ReferrerReferral = "referral"
)

// socialMediums and organicMediums are the UTM medium keywords that are
// not operator-configurable; the paid and email keyword lists come from
// configuration.
var (
	socialMediums  = []string{"social", "social-media", "social-network", "sm"}
	organicMediums = []string{"organic"}
)

// ReferrerClassifier classifies a session's inbound traffic source once at
// session creation time.
type ReferrerClassifier struct {
	searchEngines  []string
	socialNetworks []string
	paidMediums    []string
	emailMediums   []string
}

// NewReferrerClassifier creates a classifier from the curated signal lists.
func NewReferrerClassifier(lists config.SignalLists) *ReferrerClassifier {
	return &ReferrerClassifier{
		searchEngines:  lowerAll(lists.SearchEngines),
		socialNetworks: lowerAll(lists.SocialNetworks),
		paidMediums:    lowerAll(lists.PaidMediums),
		emailMediums:   lowerAll(lists.EmailMediums),
	}
}

// Classify applies the classification precedence:
//  1. UTM medium keyword match, checked in order paid, social, email,
//     organic; a UTM medium wins regardless of the referrer host
//  2. empty referrer means direct
//  3. referrer host substring match against the search-engine list: organic
//  4. referrer host substring match against the social-network list: social
//  5. anything else is a referral
func (c *ReferrerClassifier) Classify(referrer, utmMedium string) string {
	medium := strings.ToLower(strings.TrimSpace(utmMedium))
	if medium != "" {
		switch {
		case containsAny(medium, c.paidMediums):
			return ReferrerPaid
		case containsAny(medium, socialMediums):
			return ReferrerSocial
		case containsAny(medium, c.emailMediums):
			return ReferrerEmail
		case containsAny(medium, organicMediums):
			return ReferrerOrganic
		}
	}

	host := referrerHost(referrer)
	if host == "" {
		return ReferrerDirect
	}

	for _, engine := range c.searchEngines {
		if strings.Contains(host, engine) {
			return ReferrerOrganic
		}
	}

	for _, network := range c.socialNetworks {
		if strings.Contains(host, network) {
			return ReferrerSocial
		}
	}

	return ReferrerReferral
}

// referrerHost extracts the lowercase host from a referrer value. Bare
// hostnames without a scheme are accepted as-is.
func referrerHost(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}

	if u, err := url.Parse(referrer); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}

	return strings.ToLower(referrer)
}

func containsAny(value string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(value, kw) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
