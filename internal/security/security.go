package security

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"shreddy/internal/config"
)

// ErrNotRoot is returned when raw block devices would be inaccessible.
var ErrNotRoot = errors.New("требуются права root")

var geteuid = unix.Geteuid

func SecurityChecks(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	if cfg.Security.RequireRoot {
		if !IsRoot() {
			return fmt.Errorf("%w (euid %d)", ErrNotRoot, geteuid())
		}
	}

	return nil
}

// Проверка прав root
func IsRoot() bool {
	return geteuid() == 0
}
