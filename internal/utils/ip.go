package utils

import (
    "net/http"
    "strings"
)

// ClientIP extracts the request origin from proxy headers: the first
// entry of X-Forwarded-For, then X-Real-Ip, then "unknown". The raw
// value is stored for anomaly comparison but must never be returned
// to a caller unmasked.
func ClientIP(r *http.Request) string {
    if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
        return strings.TrimSpace(strings.Split(fwd, ",")[0])
    }
    if real := r.Header.Get("X-Real-Ip"); real != "" {
        return real
    }
    return "unknown"
}

// MaskIP hides the host part of an address before it leaves the API.
// IPv4 keeps the first two octets: "203.0.113.7" -> "203.0.***.***".
// Other formats keep at most the first half, capped at ten chars.
func MaskIP(ip string) string {
    if ip == "" || ip == "unknown" {
        return ip
    }
    parts := strings.Split(ip, ".")
    if len(parts) == 4 {
        return parts[0] + "." + parts[1] + ".***.***"
    }
    n := len(ip) / 2
    if n > 10 {
        n = 10
    }
    return ip[:n] + "***"
}
