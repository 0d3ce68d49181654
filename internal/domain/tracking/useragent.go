package tracking

import "strings"

// ParseUserAgent derives coarse device information from a user-agent
// string. This is intentionally a small keyword scan, not a full UA parser:
// the summary row only needs device_type/browser/platform buckets for
// reporting filters.
func ParseUserAgent(ua string) DeviceInfo {
	info := DeviceInfo{DeviceType: "desktop", Browser: "other", Platform: "other"}
	if ua == "" {
		info.DeviceType = "unknown"
		return info
	}

	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		info.DeviceType = "tablet"
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "android"):
		info.DeviceType = "mobile"
	case strings.Contains(lower, "bot") || strings.Contains(lower, "curl") ||
		strings.Contains(lower, "spider"):
		info.DeviceType = "bot"
	}

	switch {
	case strings.Contains(lower, "edg/") || strings.Contains(lower, "edge"):
		info.Browser = "edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		info.Browser = "opera"
	case strings.Contains(lower, "chrome"):
		info.Browser = "chrome"
	case strings.Contains(lower, "firefox"):
		info.Browser = "firefox"
	case strings.Contains(lower, "safari"):
		info.Browser = "safari"
	}

	switch {
	case strings.Contains(lower, "android"):
		info.Platform = "android"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") ||
		strings.Contains(lower, "ios"):
		info.Platform = "ios"
	case strings.Contains(lower, "windows"):
		info.Platform = "windows"
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macintosh"):
		info.Platform = "macos"
	case strings.Contains(lower, "linux"):
		info.Platform = "linux"
	}

	return info
}
