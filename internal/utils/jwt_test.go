package utils

import "testing"

func TestBearerTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	bt, err := NewBearerToken(secret, 42, "alice123", 3, "sessiontoken", 24)
	if err != nil {
		t.Fatalf("NewBearerToken: %v", err)
	}
	if bt.Token == "" {
		t.Fatal("empty token")
	}

	claims, err := ParseBearerToken(secret, bt.Token)
	if err != nil {
		t.Fatalf("ParseBearerToken: %v", err)
	}
	if claims.MemberID != 42 {
		t.Errorf("MemberID = %d, want 42", claims.MemberID)
	}
	if claims.UserID != "alice123" {
		t.Errorf("UserID = %q, want alice123", claims.UserID)
	}
	if claims.MembershipLevel != 3 {
		t.Errorf("MembershipLevel = %d, want 3", claims.MembershipLevel)
	}
	if claims.SessionToken != "sessiontoken" {
		t.Errorf("SessionToken = %q", claims.SessionToken)
	}
}

func TestParseBearerTokenRejectsWrongSecret(t *testing.T) {
	bt, err := NewBearerToken("secret-a", 1, "bob12345", 0, "tok", 1)
	if err != nil {
		t.Fatalf("NewBearerToken: %v", err)
	}
	if _, err := ParseBearerToken("secret-b", bt.Token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseBearerTokenRejectsExpired(t *testing.T) {
	bt, err := NewBearerToken("secret", 1, "bob12345", 0, "tok", -1)
	if err != nil {
		t.Fatalf("NewBearerToken: %v", err)
	}
	if _, err := ParseBearerToken("secret", bt.Token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseBearerTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseBearerToken("secret", "not.a.jwt"); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestNewSessionToken(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	b, _ := NewSessionToken()
	if a == b {
		t.Error("two tokens are identical")
	}
}
