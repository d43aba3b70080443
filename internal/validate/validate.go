package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)
	rePhone    = regexp.MustCompile(`^[0-9 +()-]{0,20}$`)
	reKey      = regexp.MustCompile(`^[a-z][a-z0-9_]{0,39}$`)
	reDate     = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
)

// Email validates an address. An empty string is allowed: contact email is optional.
func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	if len(s) > 120 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// EmailList validates a comma separated list of addresses and returns it normalized.
func EmailList(s string) (string, bool) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		e, ok := Email(part)
		if !ok {
			return "", false
		}
		if e != "" {
			out = append(out, e)
		}
	}
	return strings.Join(out, ","), true
}

func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reUsername.MatchString(s)
}

// Name validates a displayable name (family, product, person).
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 80 {
		return "", false
	}
	return s, true
}

func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePhone.MatchString(s)
}

// SettingKey accepts snake_case keys.
func SettingKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reKey.MatchString(s)
}

// Date accepts YYYY-MM-DD or empty.
func Date(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || reDate.MatchString(s)
}

// ID parses a positive numeric identifier.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Limit parses a list size, clamped to [1, 500]. Anything unparsable gives def.
func Limit(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	if n > 500 {
		return 500
	} // clamp to avoid abuse
	return n
}

// Password enforces a length window and mixed character classes.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		}
	}
	return hasLower && hasUpper && hasDigit
}
