package utils

import "regexp"

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{4,50}$`)

// ValidUserID accepts 4-50 alphanumeric characters.
func ValidUserID(v string) bool { return userIDPattern.MatchString(v) }

// ValidPassword requires at least 8 characters containing a letter, a
// digit and a symbol.
func ValidPassword(v string) bool {
    if len(v) < 8 {
        return false
    }
    var letter, digit, symbol bool
    for _, r := range v {
        switch {
        case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
            letter = true
        case r >= '0' && r <= '9':
            digit = true
        default:
            symbol = true
        }
    }
    return letter && digit && symbol
}

// ValidName accepts 2-50 characters.
func ValidName(v string) bool {
    n := len([]rune(v))
    return n >= 2 && n <= 50
}
