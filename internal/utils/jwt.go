package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand" // secure random number generation
    "encoding/hex"
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// BearerToken represents a signed JWT bearer credential along with its
// expiry. The Token field contains the JWT string. Exp stores the
// expiration timestamp as a time.Time. Bearer tokens are fixed-life
// (24h by default) and carry the opaque session token so that a
// revoked session invalidates the credential even while the signature
// itself is still valid.
type BearerToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenClaims is the decoded payload of a bearer token.
type TokenClaims struct {
    MemberID        uint64 // numeric member id (sub claim)
    UserID          string // login identifier
    MembershipLevel int    // paid tier at issue time
    SessionToken    string // opaque token referencing the active_sessions row
}

var ErrInvalidToken = errors.New("invalid token")

// NewBearerToken builds and signs an HS256 JWT for a member. It takes
// the signing secret, the identity claims, the opaque session token
// and a TTL in hours. The JWT includes sub, user_id, membership_level,
// session_token, exp and iat claims.
func NewBearerToken(secret string, memberID uint64, userID string, level int, sessionToken string, ttlHours int) (BearerToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlHours) * time.Hour)
    claims := jwt.MapClaims{
        "sub":              memberID,
        "user_id":          userID,
        "membership_level": level,
        "session_token":    sessionToken,
        "exp":              exp.Unix(),
        "iat":              time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return BearerToken{}, err
    }
    return BearerToken{Token: signed, Exp: exp}, nil
}

// ParseBearerToken validates the signature and expiry of a bearer
// token and extracts its claims. Any structural problem is reported
// as ErrInvalidToken; callers translate it to a 401.
func ParseBearerToken(secret, raw string) (TokenClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return TokenClaims{}, ErrInvalidToken
    }
    cl, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return TokenClaims{}, ErrInvalidToken
    }
    out := TokenClaims{}
    // Numeric claims come back as float64 after JSON decoding.
    if v, ok := cl["sub"].(float64); ok {
        out.MemberID = uint64(v)
    }
    if v, ok := cl["user_id"].(string); ok {
        out.UserID = v
    }
    if v, ok := cl["membership_level"].(float64); ok {
        out.MembershipLevel = int(v)
    }
    if v, ok := cl["session_token"].(string); ok {
        out.SessionToken = v
    }
    if out.MemberID == 0 || out.SessionToken == "" {
        return TokenClaims{}, ErrInvalidToken
    }
    return out, nil
}

// NewSessionToken returns the opaque random token stored on the
// active_sessions row: 32 bytes of entropy encoded as 64 hex chars.
func NewSessionToken() (string, error) {
    return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
