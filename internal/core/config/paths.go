package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveHistoryPath returns the absolute sqlite path. A relative
// history.path is taken relative to the directory of the config file, or to
// cwd when no file was loaded.
func ResolveHistoryPath(cfg *Config, configPath, cwd string) (string, error) {
	base := strings.TrimSpace(cwd)
	if strings.TrimSpace(configPath) != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		base = filepath.Dir(abs)
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return ResolveRelative(base, cfg.History.Path), nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
