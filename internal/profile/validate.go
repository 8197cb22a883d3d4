package profile

import (
	"errors"
	"fmt"
	"strings"
)

const maxNameLen = 64

// ErrInvalidName wraps every rejection from ValidateName.
var ErrInvalidName = errors.New("invalid user name")

// ValidateName accepts names that are safe both as a directory under
// users/ and as the username query parameter of the socket URL.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w %q: longer than %d bytes", ErrInvalidName, name, maxNameLen)
	case strings.Trim(name, ".") == "":
		return fmt.Errorf("%w %q: dot names are reserved", ErrInvalidName, name)
	}
	for _, r := range name {
		if !nameRune(r) {
			return fmt.Errorf("%w %q: character %q not allowed (letters, digits, '.', '_', '-')", ErrInvalidName, name, r)
		}
	}
	return nil
}

func nameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return r == '.' || r == '_' || r == '-'
}
