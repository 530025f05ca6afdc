package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testBotSignatures = []string{"bot", "crawler", "spider", "headlesschrome", "lighthouse"}

func TestClassifyBrowsers(t *testing.T) {
	c := NewClassifier(testBotSignatures)

	tests := []struct {
		name    string
		ua      string
		browser string
		version string
	}{
		{
			name:    "chrome on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			version: "120.0.0.0",
		},
		{
			name:    "edge takes priority over chrome token",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			browser: "Edge",
			version: "120.0.2210.91",
		},
		{
			name:    "safari versioned by version token",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			browser: "Safari",
			version: "17.1",
		},
		{
			name:    "firefox",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser: "Firefox",
			version: "121.0",
		},
		{
			name:    "opera via opr token",
			ua:      "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0",
			browser: "Opera",
			version: "105.0.0.0",
		},
		{
			name:    "internet explorer 11 via trident",
			ua:      "Mozilla/5.0 (Windows NT 6.1; Trident/7.0; rv:11.0) like Gecko",
			browser: "Internet Explorer",
			version: "11.0",
		},
		{
			name:    "empty UA",
			ua:      "",
			browser: unknown,
			version: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.ua)
			assert.Equal(t, tt.browser, result.Browser)
			assert.Equal(t, tt.version, result.BrowserVersion)
		})
	}
}

func TestClassifyOS(t *testing.T) {
	c := NewClassifier(testBotSignatures)

	tests := []struct {
		name      string
		ua        string
		os        string
		osVersion string
	}{
		{
			name:      "windows 10 from NT 10.0",
			ua:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0",
			os:        "Windows",
			osVersion: "10",
		},
		{
			name:      "windows 7 from NT 6.1",
			ua:        "Mozilla/5.0 (Windows NT 6.1; WOW64) Chrome/109.0.0.0",
			os:        "Windows",
			osVersion: "7",
		},
		{
			name:      "macOS underscores become dots",
			ua:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
			os:        "macOS",
			osVersion: "10.15.7",
		},
		{
			name:      "iOS underscores become dots",
			ua:        "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1_2 like Mac OS X) Version/17.1 Mobile/15E148 Safari/604.1",
			os:        "iOS",
			osVersion: "17.1.2",
		},
		{
			name:      "windows phone wins over windows and android",
			ua:        "Mozilla/5.0 (Windows Phone 10.0; Android 6.0.1; Microsoft; Lumia 950)",
			os:        "Windows Phone",
			osVersion: "10.0",
		},
		{
			name:      "android",
			ua:        "Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/120.0.0.0 Mobile Safari/537.36",
			os:        "Android",
			osVersion: "14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.ua)
			assert.Equal(t, tt.os, result.OS)
			assert.Equal(t, tt.osVersion, result.OSVersion)
		})
	}
}

func TestClassifyDeviceType(t *testing.T) {
	c := NewClassifier(testBotSignatures)

	tests := []struct {
		name   string
		ua     string
		device string
	}{
		{
			name:   "android with mobile token is mobile",
			ua:     "Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/120.0.0.0 Mobile Safari/537.36",
			device: DeviceMobile,
		},
		{
			name:   "android without mobile token is tablet",
			ua:     "Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
			device: DeviceTablet,
		},
		{
			name:   "ipad is tablet",
			ua:     "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) Version/17.1 Mobile/15E148 Safari/604.1",
			device: DeviceTablet,
		},
		{
			name:   "windows desktop",
			ua:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0",
			device: DeviceDesktop,
		},
		{
			name:   "unrecognizable is other",
			ua:     "curl/8.4.0",
			device: DeviceOther,
		},
		{
			name:   "empty is other",
			ua:     "",
			device: DeviceOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.device, c.Classify(tt.ua).DeviceType)
		})
	}
}

func TestClassifyBots(t *testing.T) {
	c := NewClassifier(testBotSignatures)

	assert.True(t, c.Classify("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)").IsBot)
	assert.True(t, c.Classify("Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko; compatible) HeadlessChrome/120.0.0.0").IsBot)
	assert.False(t, c.Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0").IsBot)
}
