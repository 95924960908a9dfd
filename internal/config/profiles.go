package config

import (
	"fmt"
)

// ApplyProfile применяет профиль шаблонов перезаписи к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "classic":
		cfg.Wipe.Patterns = []string{"0", "255"}
	case "alternating":
		cfg.Wipe.Patterns = []string{"170", "85"} // 0xaa, 0x55
	case "checker":
		cfg.Wipe.Patterns = []string{"85", "170"}
	default:
		return fmt.Errorf("неизвестный профиль: %s", profile)
	}
	cfg.Wipe.Profile = profile
	return nil
}

// Profiles returns the supported profile names.
func Profiles() []string {
	return []string{"classic", "alternating", "checker"}
}
