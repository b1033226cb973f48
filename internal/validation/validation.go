package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 50
	PasswordMinLength = 6
)

// ErrUsernameRequired is returned when username is absent or empty.
var ErrUsernameRequired = errors.New("username is required")

// ErrUsernameTooShort is returned when the trimmed username has fewer than UsernameMinLen characters.
var ErrUsernameTooShort = errors.New("username must be at least 3 characters")

// ErrUsernameTooLong is returned when the username exceeds UsernameMaxLen characters.
var ErrUsernameTooLong = errors.New("username cannot exceed 50 characters")

// ErrPasswordTooShort is returned when a password is given but shorter than PasswordMinLength.
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// ErrBodyRequired is returned when a JSON body is missing or an empty object.
var ErrBodyRequired = errors.New("request body must be a non-empty JSON object")

// ValidateCredentials checks a token request. username and password are nil
// when absent from the body. All violations are reported together (joined);
// on success the username is returned trimmed and lower-cased.
func ValidateCredentials(username, password *string) (string, error) {
	var errs []error

	var name string
	switch {
	case username == nil || *username == "":
		errs = append(errs, ErrUsernameRequired)
	default:
		name = strings.TrimSpace(*username)
		if utf8.RuneCountInString(name) < UsernameMinLen {
			errs = append(errs, ErrUsernameTooShort)
		} else if utf8.RuneCountInString(*username) > UsernameMaxLen {
			// the upper bound counts the raw input, padding included
			errs = append(errs, ErrUsernameTooLong)
		}
	}

	if password != nil && utf8.RuneCountInString(*password) < PasswordMinLength {
		errs = append(errs, ErrPasswordTooShort)
	}

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.ToLower(name), nil
}

// Messages flattens a (possibly joined) validation error into its messages.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, Messages(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

// IntOrDefault parses s as a positive integer. Empty, malformed or
// non-positive input yields def.
func IntOrDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
