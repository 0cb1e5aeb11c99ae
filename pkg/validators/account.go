package validators

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrPhoneEmpty    = errors.New("no phone number provided")
	ErrPhoneInvalid  = errors.New("invalid phone number provided")
	ErrUsernameEmpty = errors.New("no username provided")
	ErrUsernameBad   = errors.New("username must be 3-32 letters, digits, dots or underscores")
	ErrNameTooLong   = errors.New("name is too long")
	ErrTitleEmpty    = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title is too long")
)

var (
	phoneRe    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.]{3,32}$`)
)

// NormalizePhone strips the separators people like to type and validates what's left
func NormalizePhone(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrPhoneEmpty
	}

	p = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(p)
	if !phoneRe.MatchString(p) {
		return "", ErrPhoneInvalid
	}

	return p, nil
}

func UsernameValidator(u string) error {
	if u == "" {
		return ErrUsernameEmpty
	}

	if !usernameRe.MatchString(u) {
		return ErrUsernameBad
	}

	return nil
}

func DisplayNameValidator(n string) error {
	if utf8.RuneCountInString(n) > 100 {
		return ErrNameTooLong
	}

	return nil
}

// NormalizeTitle trims a drop title and checks it isn't empty
func NormalizeTitle(t string) (string, error) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", ErrTitleEmpty
	}

	if utf8.RuneCountInString(t) > 200 {
		return "", ErrTitleTooLong
	}

	return t, nil
}
