// Package config resolves file locations for settings, templates and the
// audit trail under the user's config directory.
package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir     = ".insightgate"
	DefaultSettingsFile  = "settings.yaml"
	DefaultTemplatesFile = "templates.yaml"
	DefaultAuditFile     = "audit.jsonl"
)

type Config struct {
	ConfigDir     string
	SettingsPath  string
	TemplatesPath string
	AuditPath     string
}

// Load resolves paths, creating the config directory when absent. Empty
// arguments fall back to the defaults under ~/.insightgate.
func Load(settingsPath, templatesPath, auditPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{ConfigDir: configDir}

	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	} else {
		cfg.SettingsPath = filepath.Join(configDir, DefaultSettingsFile)
	}

	if templatesPath != "" {
		cfg.TemplatesPath = templatesPath
	} else {
		cfg.TemplatesPath = filepath.Join(configDir, DefaultTemplatesFile)
	}

	if auditPath != "" {
		cfg.AuditPath = auditPath
	} else {
		cfg.AuditPath = filepath.Join(configDir, DefaultAuditFile)
	}

	return cfg, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
