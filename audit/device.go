package audit

import (
	"strings"

	ua "github.com/mileusna/useragent"
)

// parseUserAgent extracts browser, OS and device class for display in login history.
func parseUserAgent(userAgent string) (browser, osName, device string) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return "", "", ""
	}
	parsed := ua.Parse(userAgent)
	browser = strings.TrimSpace(parsed.Name)
	osName = strings.TrimSpace(parsed.OS)

	switch {
	case parsed.Bot:
		device = "Bot"
	case parsed.Tablet:
		device = "Tablet"
	case parsed.Mobile:
		device = "Mobile"
	case parsed.Desktop:
		device = "Desktop"
	default:
		device = "Unknown"
	}
	return browser, osName, device
}
