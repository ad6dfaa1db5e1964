package utils

import ua "github.com/mileusna/useragent"

// DeviceInfo is the parsed classification of a User-Agent header. It
// is persisted on sessions and login history rows so that members can
// recognize their own devices in the session list.
type DeviceInfo struct {
    DeviceType     string // PC, Mobile or Tablet
    Browser        string
    BrowserVersion string
    OS             string
    OSVersion      string
    UserAgent      string // the raw header value
}

// ParseUserAgent classifies a raw User-Agent string. Unknown agents
// fall back to PC/Unknown rather than failing.
func ParseUserAgent(raw string) DeviceInfo {
    parsed := ua.Parse(raw)

    deviceType := "PC"
    if parsed.Mobile {
        deviceType = "Mobile"
    } else if parsed.Tablet {
        deviceType = "Tablet"
    }

    browser := parsed.Name
    if browser == "" {
        browser = "Unknown"
    }
    os := parsed.OS
    if os == "" {
        os = "Unknown"
    }

    return DeviceInfo{
        DeviceType:     deviceType,
        Browser:        browser,
        BrowserVersion: parsed.Version,
        OS:             os,
        OSVersion:      parsed.OSVersion,
        UserAgent:      raw,
    }
}
