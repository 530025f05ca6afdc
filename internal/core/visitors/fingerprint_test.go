package visitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateFingerprintDeterministic(t *testing.T) {
	signals := Signals{
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0.0.0",
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "de-DE",
	}

	first := GenerateFingerprint(signals)
	second := GenerateFingerprint(signals)

	assert.NotEmpty(t, first)
	assert.Len(t, first, 64)
	assert.Equal(t, first, second)
}

func TestGenerateFingerprintChangesWithAnySignal(t *testing.T) {
	base := Signals{
		UserAgent:        "Mozilla/5.0 Chrome/120.0.0.0",
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Berlin",
		Language:         "de-DE",
	}

	changed := base
	changed.ScreenResolution = "2560x1440"
	assert.NotEqual(t, GenerateFingerprint(base), GenerateFingerprint(changed))

	changed = base
	changed.Language = "en-US"
	assert.NotEqual(t, GenerateFingerprint(base), GenerateFingerprint(changed))
}

func TestGenerateFingerprintIgnoresNonContributingFields(t *testing.T) {
	base := Signals{
		UserAgent:        "Mozilla/5.0 Chrome/120.0.0.0",
		ScreenResolution: "1920x1080",
	}

	withIP := base
	withIP.IP = "203.0.113.42"
	withIP.VisitorID = "some-id"
	withIP.Country = "DE"

	assert.Equal(t, GenerateFingerprint(base), GenerateFingerprint(withIP))
}

func TestGenerateFingerprintInsufficientSignals(t *testing.T) {
	assert.Empty(t, GenerateFingerprint(Signals{}))
	assert.Empty(t, GenerateFingerprint(Signals{UserAgent: "Mozilla/5.0"}))
	assert.Empty(t, GenerateFingerprint(Signals{IP: "203.0.113.42", Country: "DE"}))

	// Exactly two contributing signals is enough
	assert.NotEmpty(t, GenerateFingerprint(Signals{UserAgent: "Mozilla/5.0", Timezone: "UTC"}))
}
