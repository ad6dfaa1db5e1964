package utils

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP = %q, want 203.0.113.7", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-Ip", "198.51.100.9")
	if got := ClientIP(r); got != "198.51.100.9" {
		t.Errorf("ClientIP = %q, want 198.51.100.9", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	if got := ClientIP(r); got != "unknown" {
		t.Errorf("ClientIP = %q, want unknown", got)
	}
}

func TestMaskIP(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"203.0.113.7", "203.0.***.***"},
		{"10.20.30.40", "10.20.***.***"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskIP(tc.in); got != tc.want {
			t.Errorf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	masked := MaskIP("2001:db8::1234:5678")
	if masked == "2001:db8::1234:5678" {
		t.Error("IPv6 address was not masked")
	}
	if len(masked) == 0 || masked[len(masked)-3:] != "***" {
		t.Errorf("masked form %q does not end in ***", masked)
	}
}
