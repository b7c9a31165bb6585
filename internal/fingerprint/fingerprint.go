// Package fingerprint turns raw request metadata (IP address, User-Agent,
// referrer) into privacy-safe, classified signals for click analytics.
//
// Every function here is total: malformed input degrades to "unknown" or an
// empty result instead of returning an error, so classification can never
// take down the redirect path.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Classification values shared with the click-event schema.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
	OSAndroid = "android"
	OSIOS     = "ios"

	UABot   = "bot"
	Unknown = "unknown"
)

var botPattern = regexp.MustCompile(`(?i)(bot|crawler|spider|crawling|preview|scanner|security|headless|curl|wget|python-requests|go-http-client|facebookexternalhit|slackbot|twitterbot|telegrambot|whatsapp|discordbot|linkedinbot|embedly|pingdom|lighthouse)`)

var (
	tabletTokens = []string{"ipad", "tablet", "kindle", "silk", "playbook"}
	mobileTokens = []string{"mobile", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini", "webos"}
	desktopTokens = []string{"windows nt", "macintosh", "mac os x", "x11", "cros", "linux"}
)

// ClassifyDeviceType maps a User-Agent to desktop/mobile/tablet/unknown.
// Tablet tokens are checked before mobile ones because tablet UAs usually
// also match the generic mobile heuristics.
func ClassifyDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return Unknown
	}
	for _, token := range tabletTokens {
		if strings.Contains(ua, token) {
			return DeviceTablet
		}
	}
	for _, token := range mobileTokens {
		if strings.Contains(ua, token) {
			return DeviceMobile
		}
	}
	for _, token := range desktopTokens {
		if strings.Contains(ua, token) {
			return DeviceDesktop
		}
	}
	return Unknown
}

// ClassifyUAFamily maps a User-Agent to a browser family. Precedence matters:
// Edge and Opera UAs both carry a "chrome" token, so their own tokens are
// checked first; Chrome UAs carry "safari", so Safari is checked last.
func ClassifyUAFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return Unknown
	}
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge"):
		return "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "chrome"), strings.Contains(ua, "crios"):
		return "chrome"
	case strings.Contains(ua, "firefox"), strings.Contains(ua, "fxios"):
		return "firefox"
	case strings.Contains(ua, "safari"):
		return "safari"
	}
	if botPattern.MatchString(userAgent) {
		return UABot
	}
	return Unknown
}

// ClassifyOSFamily maps a User-Agent to an OS family. iPhone/iPad/iOS is one
// branch and comes before the mac check; Android comes before Linux because
// Android UAs also contain "linux".
func ClassifyOSFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return Unknown
	}
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return OSIOS
	case strings.Contains(ua, "android"):
		return OSAndroid
	case strings.Contains(ua, "windows"):
		return OSWindows
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return OSMacOS
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return OSLinux
	}
	return Unknown
}

// IsLikelyBotUserAgent reports whether the User-Agent matches a known
// bot/crawler/preview-fetcher token. An empty User-Agent is not automatically
// a bot: the pattern requires one of the listed tokens.
func IsLikelyBotUserAgent(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return botPattern.MatchString(userAgent)
}

// ReferrerHost parses the referrer as a URL and returns its host, or "" when
// the referrer is empty or unparseable. Never returns an error.
func ReferrerHost(referrer string) string {
	if referrer == "" {
		return ""
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Host
}

// NormalizeIPPrefix coarsens an IP address to a /24 (IPv4) or /64 (IPv6)
// prefix string, or "" for unrecognized input. This is the privacy boundary:
// callers must hash and store only the prefix, never the raw address.
// IPv4-mapped IPv6 input is treated as IPv4.
func NormalizeIPPrefix(ip string) string {
	trimmed := strings.TrimSpace(ip)
	if trimmed == "" {
		return ""
	}
	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
	}
	v6 := parsed.To16()
	return fmt.Sprintf("%x:%x:%x:%x::/64",
		uint16(v6[0])<<8|uint16(v6[1]),
		uint16(v6[2])<<8|uint16(v6[3]),
		uint16(v6[4])<<8|uint16(v6[5]),
		uint16(v6[6])<<8|uint16(v6[7]))
}

// HashText returns the hex-encoded SHA-256 digest of a UTF-8 string.
func HashText(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// DayBucketFromUnixSeconds returns the UTC calendar day ("YYYY-MM-DD") a unix
// timestamp falls into. Fingerprints incorporate the bucket so they roll over
// daily instead of forming a persistent cross-day identity.
func DayBucketFromUnixSeconds(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format("2006-01-02")
}

// UniqueFingerprintHash combines a coarsened IP prefix, the lowercased
// User-Agent and a day bucket into the daily "unique open" fingerprint.
// Returns "" when neither an IP prefix nor a User-Agent is available.
func UniqueFingerprintHash(ipPrefix, userAgent, dayBucket string) string {
	if ipPrefix == "" && userAgent == "" {
		return ""
	}
	prefixPart := ipPrefix
	if prefixPart == "" {
		prefixPart = "na"
	}
	uaPart := strings.ToLower(userAgent)
	if uaPart == "" {
		uaPart = "na"
	}
	return HashText(prefixPart + "|" + uaPart + "|" + dayBucket)
}
