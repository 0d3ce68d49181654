package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		expected DeviceInfo
	}{
		{
			name:     "empty",
			ua:       "",
			expected: DeviceInfo{DeviceType: "unknown", Browser: "other", Platform: "other"},
		},
		{
			name:     "windows chrome",
			ua:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			expected: DeviceInfo{DeviceType: "desktop", Browser: "chrome", Platform: "windows"},
		},
		{
			name:     "iphone safari",
			ua:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			expected: DeviceInfo{DeviceType: "mobile", Browser: "safari", Platform: "ios"},
		},
		{
			name:     "android firefox",
			ua:       "Mozilla/5.0 (Android 14; Mobile; rv:120.0) Gecko/120.0 Firefox/120.0",
			expected: DeviceInfo{DeviceType: "mobile", Browser: "firefox", Platform: "android"},
		},
		{
			name:     "ipad",
			ua:       "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Safari/604.1",
			expected: DeviceInfo{DeviceType: "tablet", Browser: "safari", Platform: "ios"},
		},
		{
			name:     "curl",
			ua:       "curl/8.4.0",
			expected: DeviceInfo{DeviceType: "bot", Browser: "other", Platform: "other"},
		},
		{
			name:     "edge on mac",
			ua:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0",
			expected: DeviceInfo{DeviceType: "desktop", Browser: "edge", Platform: "macos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseUserAgent(tt.ua))
		})
	}
}
