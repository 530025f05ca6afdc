package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Signals carries the device signals extracted from one tracking request.
type Signals struct {
	VisitorID        string `json:"visitor_id"`
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	IP               string `json:"ip"`
	Country          string `json:"country"`
	Region           string `json:"region"`
	City             string `json:"city"`
}

// minFingerprintSignals is the fewest contributing signals that still give
// a usable fingerprint. Below this the hash would collide too broadly to
// recognize anyone.
const minFingerprintSignals = 2

// GenerateFingerprint derives a deterministic hash over the present subset
// of {user agent, screen resolution, timezone, language}. The contributing
// pairs are sorted before hashing, so the result is invariant to input
// field ordering but changes whenever any contributing value changes.
// Returns "" when too few signals are present.
func GenerateFingerprint(signals Signals) string {
	pairs := make([]string, 0, 4)
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, key+"="+value)
		}
	}

	add("ua", signals.UserAgent)
	add("screen", signals.ScreenResolution)
	add("tz", signals.Timezone)
	add("lang", signals.Language)

	if len(pairs) < minFingerprintSignals {
		return ""
	}

	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(sum[:])
}
