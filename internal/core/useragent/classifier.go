// Package useragent classifies raw user-agent strings into device, browser,
// OS and bot signals. Classification never fails: unparseable input yields
// an unknown result.
package useragent

import (
	"regexp"
	"strings"
)

// Device types
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceOther   = "other"
)

const unknown = "unknown"

// Classification is the parsed result for one user-agent string.
type Classification struct {
	DeviceType     string `json:"device_type"`
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	OSVersion      string `json:"os_version"`
	IsBot          bool   `json:"is_bot"`
}

// Classifier parses user-agent strings against curated signal lists.
type Classifier struct {
	botSignatures []string
}

// NewClassifier creates a classifier with the given bot signature list.
// Signatures are matched as lowercase substrings, first match wins; the
// list order carries no meaning.
func NewClassifier(botSignatures []string) *Classifier {
	lowered := make([]string, len(botSignatures))
	for i, s := range botSignatures {
		lowered[i] = strings.ToLower(s)
	}
	return &Classifier{botSignatures: lowered}
}

// browserRule pairs a detection token set with version regexes. Rules are
// strictly priority ordered because UA strings legally contain several
// overlapping browser tokens (Chrome UAs contain "safari", Edge UAs contain
// "chrome"): the first matching rule wins.
type browserRule struct {
	name     string
	tokens   []string
	versions []*regexp.Regexp
}

var browserRules = []browserRule{
	{"Edge", []string{"edg/", "edge/", "edga/", "edgios/"}, []*regexp.Regexp{
		regexp.MustCompile(`(?:edg|edge|edga|edgios)/([0-9][0-9.]*)`),
	}},
	{"Opera", []string{"opr/", "opera"}, []*regexp.Regexp{
		regexp.MustCompile(`opr/([0-9][0-9.]*)`),
		regexp.MustCompile(`opera[/ ]([0-9][0-9.]*)`),
		regexp.MustCompile(`version/([0-9][0-9.]*)`),
	}},
	{"Chrome", []string{"chrome/", "crios/", "chromium/"}, []*regexp.Regexp{
		regexp.MustCompile(`(?:chrome|crios|chromium)/([0-9][0-9.]*)`),
	}},
	{"Safari", []string{"safari"}, []*regexp.Regexp{
		regexp.MustCompile(`version/([0-9][0-9.]*)`),
	}},
	{"Firefox", []string{"firefox/", "fxios/"}, []*regexp.Regexp{
		regexp.MustCompile(`(?:firefox|fxios)/([0-9][0-9.]*)`),
	}},
	{"Internet Explorer", []string{"msie", "trident/"}, []*regexp.Regexp{
		regexp.MustCompile(`msie ([0-9][0-9.]*)`),
		regexp.MustCompile(`rv:([0-9][0-9.]*)`),
	}},
	{"Samsung Browser", []string{"samsungbrowser/"}, []*regexp.Regexp{
		regexp.MustCompile(`samsungbrowser/([0-9][0-9.]*)`),
	}},
}

type osRule struct {
	name     string
	tokens   []string
	versions []*regexp.Regexp
}

var osRules = []osRule{
	{"Windows Phone", []string{"windows phone"}, []*regexp.Regexp{
		regexp.MustCompile(`windows phone(?: os)? ([0-9][0-9.]*)`),
	}},
	{"iOS", []string{"iphone", "ipad", "ipod"}, []*regexp.Regexp{
		regexp.MustCompile(`os ([0-9]+[_.][0-9]+(?:[_.][0-9]+)?)`),
	}},
	{"Android", []string{"android"}, []*regexp.Regexp{
		regexp.MustCompile(`android ([0-9][0-9.]*)`),
	}},
	{"Windows", []string{"windows"}, []*regexp.Regexp{
		regexp.MustCompile(`windows nt ([0-9][0-9.]*)`),
	}},
	{"macOS", []string{"mac os x", "macintosh"}, []*regexp.Regexp{
		regexp.MustCompile(`mac os x ([0-9]+[_.][0-9]+(?:[_.][0-9]+)?)`),
	}},
	{"Chrome OS", []string{"cros"}, nil},
	{"Linux", []string{"linux", "x11"}, nil},
}

// windowsVersions maps NT kernel versions to marketing names.
var windowsVersions = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
	"5.1":  "XP",
}

var mobileTokens = []string{
	"mobile", "iphone", "ipod", "windows phone", "blackberry", "opera mini", "iemobile",
}

var tabletTokens = []string{"tablet", "ipad", "kindle", "silk", "playbook"}

// Classify parses a user-agent string. It never returns an error: an empty
// or unrecognizable UA produces an "other"/"unknown" classification.
func (c *Classifier) Classify(ua string) Classification {
	result := Classification{
		DeviceType: DeviceOther,
		Browser:    unknown,
		OS:         unknown,
	}

	lower := strings.ToLower(strings.TrimSpace(ua))
	if lower == "" {
		return result
	}

	result.IsBot = c.isBot(lower)
	result.DeviceType = detectDeviceType(lower)
	result.Browser, result.BrowserVersion = detectBrowser(lower)
	result.OS, result.OSVersion = detectOS(lower)

	return result
}

func (c *Classifier) isBot(lower string) bool {
	for _, sig := range c.botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// detectDeviceType is priority ordered: tablet signatures are checked
// before mobile ones so UAs carrying both ("tablet ... mobile") classify
// as tablet. An Android UA lacking the "mobile" token is a tablet.
func detectDeviceType(lower string) string {
	for _, token := range tabletTokens {
		if strings.Contains(lower, token) {
			return DeviceTablet
		}
	}

	if strings.Contains(lower, "android") && !strings.Contains(lower, "mobile") {
		return DeviceTablet
	}

	for _, token := range mobileTokens {
		if strings.Contains(lower, token) {
			return DeviceMobile
		}
	}

	if strings.Contains(lower, "windows") || strings.Contains(lower, "macintosh") ||
		strings.Contains(lower, "mac os x") || strings.Contains(lower, "linux") ||
		strings.Contains(lower, "cros") || strings.Contains(lower, "x11") {
		return DeviceDesktop
	}

	return DeviceOther
}

func detectBrowser(lower string) (string, string) {
	for _, rule := range browserRules {
		for _, token := range rule.tokens {
			if strings.Contains(lower, token) {
				return rule.name, extractVersion(lower, rule.versions)
			}
		}
	}
	return unknown, ""
}

func detectOS(lower string) (string, string) {
	for _, rule := range osRules {
		for _, token := range rule.tokens {
			if !strings.Contains(lower, token) {
				continue
			}
			version := extractVersion(lower, rule.versions)
			if rule.name == "Windows" {
				if name, ok := windowsVersions[version]; ok {
					version = name
				}
			}
			if rule.name == "iOS" || rule.name == "macOS" {
				version = strings.ReplaceAll(version, "_", ".")
			}
			return rule.name, version
		}
	}
	return unknown, ""
}

// extractVersion tries the ordered regex alternatives and returns the first
// capture that matches.
func extractVersion(lower string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(lower); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
