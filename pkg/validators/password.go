// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import "errors"

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordEmpty    = errors.New("no password provided")

	ErrPasscodeEmpty   = errors.New("no passcode provided")
	ErrPasscodeTooLong = errors.New("passcode is too long")
)

func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) < 8 {
		return ErrPasswordTooShort
	}

	if len(p) > 255 {
		return ErrPasswordTooLong
	}

	return nil
}

// PasscodeValidator checks drop passcodes. They're shared out of band so
// there's no minimum beyond being present.
func PasscodeValidator(p string) error {
	if p == "" {
		return ErrPasscodeEmpty
	}

	if len(p) > 128 {
		return ErrPasscodeTooLong
	}

	return nil
}
