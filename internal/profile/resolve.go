package profile

import (
	"errors"

	"github.com/matheus3301/hangouts/internal/config"
)

// ErrNoUser is returned when neither the flag nor config.toml names a user.
var ErrNoUser = errors.New("no user: pass --user or set default_user in config.toml")

// Resolve determines the active user using precedence:
// 1. flagOverride (--user flag)
// 2. config.toml default_user
func Resolve(flagOverride string, cfg *config.Config) (string, error) {
	name := flagOverride
	if name == "" && cfg != nil {
		name = cfg.DefaultUser
	}
	if name == "" {
		return "", ErrNoUser
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
