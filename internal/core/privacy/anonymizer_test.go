package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIPv4(t *testing.T) {
	a := NewAnonymizer(true)

	assert.Equal(t, "203.0.113.0", a.Anonymize("203.0.113.42"))
	assert.Equal(t, "10.1.2.0", a.Anonymize("10.1.2.3"))
	assert.Equal(t, "192.168.0.0", a.Anonymize("192.168.0.0"))
}

func TestAnonymizeIPv6(t *testing.T) {
	a := NewAnonymizer(true)

	assert.Equal(t, "2001:db8:85a3::", a.Anonymize("2001:db8:85a3:8d3:1319:8a2e:370:7348"))
	assert.Equal(t, "fe80::", a.Anonymize("fe80::1ff:fe23:4567:890a"))
}

func TestAnonymizeIPv4MappedIPv6(t *testing.T) {
	a := NewAnonymizer(true)

	// IPv4-mapped addresses follow the IPv4 rule on the embedded address
	assert.Equal(t, "203.0.113.0", a.Anonymize("::ffff:203.0.113.42"))
}

func TestAnonymizeIdempotent(t *testing.T) {
	a := NewAnonymizer(true)

	once := a.Anonymize("203.0.113.42")
	assert.Equal(t, once, a.Anonymize(once))

	v6 := a.Anonymize("2001:db8:85a3:8d3:1319:8a2e:370:7348")
	assert.Equal(t, v6, a.Anonymize(v6))
}

func TestAnonymizePassthrough(t *testing.T) {
	disabled := NewAnonymizer(false)
	assert.Equal(t, "203.0.113.42", disabled.Anonymize("203.0.113.42"))

	enabled := NewAnonymizer(true)
	assert.Equal(t, "", enabled.Anonymize(""))
	assert.Equal(t, "not-an-ip", enabled.Anonymize("not-an-ip"))
}
