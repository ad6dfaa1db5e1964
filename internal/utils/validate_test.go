package utils

import "testing"

func TestValidUserID(t *testing.T) {
	valid := []string{"abcd", "user1234", "A1b2C3d4"}
	for _, v := range valid {
		if !ValidUserID(v) {
			t.Errorf("ValidUserID(%q) = false, want true", v)
		}
	}
	invalid := []string{"", "abc", "has space", "under_score", "hyphen-id"}
	for _, v := range invalid {
		if ValidUserID(v) {
			t.Errorf("ValidUserID(%q) = true, want false", v)
		}
	}
}

func TestValidPassword(t *testing.T) {
	valid := []string{"abc123!x", "P@ssw0rd", "longer-pass-9"}
	for _, v := range valid {
		if !ValidPassword(v) {
			t.Errorf("ValidPassword(%q) = false, want true", v)
		}
	}
	invalid := []string{"", "short1!", "alllowercase!", "12345678!", "abcdefg1"}
	for _, v := range invalid {
		if ValidPassword(v) {
			t.Errorf("ValidPassword(%q) = true, want false", v)
		}
	}
}

func TestValidName(t *testing.T) {
	if !ValidName("Jo") {
		t.Error("two-char name rejected")
	}
	if ValidName("J") {
		t.Error("one-char name accepted")
	}
}
