package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaGooglebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassifyDeviceType(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"windows desktop", uaChromeWindows, "desktop"},
		{"iphone is mobile", uaSafariIPhone, "mobile"},
		{"ipad is tablet, not mobile", uaSafariIPad, "tablet"},
		{"linux desktop", uaFirefoxLinux, "desktop"},
		{"empty is unknown", "", "unknown"},
		{"garbage is unknown", "definitely not a browser", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDeviceType(tt.userAgent))
		})
	}
}

func TestClassifyUAFamily(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"edge wins over chrome token", uaEdgeWindows, "edge"},
		{"chrome", uaChromeWindows, "chrome"},
		{"firefox", uaFirefoxLinux, "firefox"},
		{"safari last", uaSafariIPhone, "safari"},
		{"opera token before chrome", "Mozilla/5.0 Chrome/120.0 Safari/537.36 OPR/106.0", "opera"},
		{"bot fallback when no browser token", uaGooglebot, "bot"},
		{"empty is unknown", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyUAFamily(tt.userAgent))
		})
	}
}

func TestClassifyOSFamily(t *testing.T) {
	assert.Equal(t, "windows", ClassifyOSFamily(uaChromeWindows))
	assert.Equal(t, "ios", ClassifyOSFamily(uaSafariIPhone))
	assert.Equal(t, "ios", ClassifyOSFamily(uaSafariIPad))
	assert.Equal(t, "linux", ClassifyOSFamily(uaFirefoxLinux))
	assert.Equal(t, "macos", ClassifyOSFamily("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15"))
	assert.Equal(t, "android", ClassifyOSFamily("Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/120.0 Mobile Safari/537.36"))
	assert.Equal(t, "unknown", ClassifyOSFamily(""))
}

func TestIsLikelyBotUserAgent(t *testing.T) {
	assert.True(t, IsLikelyBotUserAgent(uaGooglebot))
	assert.True(t, IsLikelyBotUserAgent("curl/8.4.0"))
	assert.True(t, IsLikelyBotUserAgent("Slackbot-LinkExpanding 1.0"))
	assert.True(t, IsLikelyBotUserAgent("facebookexternalhit/1.1"))
	assert.False(t, IsLikelyBotUserAgent(uaChromeWindows))
	// Empty user agent is not automatically a bot.
	assert.False(t, IsLikelyBotUserAgent(""))
}

func TestReferrerHost(t *testing.T) {
	assert.Equal(t, "mail.example.com", ReferrerHost("https://mail.example.com/inbox"))
	assert.Equal(t, "example.com", ReferrerHost("http://example.com"))
	assert.Equal(t, "", ReferrerHost(""))
	assert.Equal(t, "", ReferrerHost("not a url at all"))
	assert.Equal(t, "", ReferrerHost("%%%://wat"))
}

func TestNormalizeIPPrefix(t *testing.T) {
	t.Run("ipv4 is coarsened to /24", func(t *testing.T) {
		got := NormalizeIPPrefix("203.0.113.42")
		assert.Equal(t, "203.0.113.0/24", got)
		assert.True(t, strings.HasSuffix(got, ".0/24"))
		assert.NotContains(t, got, "113.42")
	})

	t.Run("ipv4-mapped ipv6 is treated as ipv4", func(t *testing.T) {
		assert.Equal(t, "203.0.113.0/24", NormalizeIPPrefix("::ffff:203.0.113.42"))
	})

	t.Run("ipv6 keeps the first four groups", func(t *testing.T) {
		assert.Equal(t, "2001:db8:85a3:8d3::/64", NormalizeIPPrefix("2001:db8:85a3:8d3:1319:8a2e:370:7348"))
	})

	t.Run("unrecognized input yields empty", func(t *testing.T) {
		assert.Equal(t, "", NormalizeIPPrefix(""))
		assert.Equal(t, "", NormalizeIPPrefix("localhost"))
		assert.Equal(t, "", NormalizeIPPrefix("999.1.2.3"))
	})
}

func TestDayBucketFromUnixSeconds(t *testing.T) {
	// 2024-03-01T12:00:00Z
	assert.Equal(t, "2024-03-01", DayBucketFromUnixSeconds(1709294400))
	// One second before midnight UTC stays on the previous day.
	assert.Equal(t, "2024-03-01", DayBucketFromUnixSeconds(1709337599))
	assert.Equal(t, "2024-03-02", DayBucketFromUnixSeconds(1709337600))
}

func TestUniqueFingerprintHash(t *testing.T) {
	prefix := NormalizeIPPrefix("203.0.113.42")

	t.Run("same signals and day produce the same hash", func(t *testing.T) {
		first := UniqueFingerprintHash(prefix, uaChromeWindows, "2024-03-01")
		second := UniqueFingerprintHash(prefix, uaChromeWindows, "2024-03-01")
		assert.Equal(t, first, second)
	})

	t.Run("different day bucket rolls the fingerprint over", func(t *testing.T) {
		first := UniqueFingerprintHash(prefix, uaChromeWindows, "2024-03-01")
		second := UniqueFingerprintHash(prefix, uaChromeWindows, "2024-03-02")
		assert.NotEqual(t, first, second)
	})

	t.Run("user agent casing does not split fingerprints", func(t *testing.T) {
		first := UniqueFingerprintHash(prefix, strings.ToUpper(uaChromeWindows), "2024-03-01")
		second := UniqueFingerprintHash(prefix, strings.ToLower(uaChromeWindows), "2024-03-01")
		assert.Equal(t, first, second)
	})

	t.Run("no signals yields empty", func(t *testing.T) {
		assert.Equal(t, "", UniqueFingerprintHash("", "", "2024-03-01"))
	})

	t.Run("one missing signal falls back to na", func(t *testing.T) {
		assert.Equal(t, HashText("na|"+strings.ToLower(uaChromeWindows)+"|2024-03-01"),
			UniqueFingerprintHash("", uaChromeWindows, "2024-03-01"))
	})
}

func TestHashText(t *testing.T) {
	assert.Len(t, HashText("https://example.com"), 64)
	assert.Equal(t, HashText("a"), HashText("a"))
	assert.NotEqual(t, HashText("a"), HashText("b"))
}
