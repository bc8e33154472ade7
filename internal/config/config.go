package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	Dir        = ".sandshell"
	ConfigFile = "config.yaml"
	AuditFile  = "audit.log"

	// NullDeviceEnv overrides IO.NullDevice when set.
	NullDeviceEnv = "SANDSH_NULL_DEVICE"
)

type Config struct {
	Version string  `yaml:"version"`
	Prompt  string  `yaml:"prompt"`
	Sandbox Sandbox `yaml:"sandbox"`
	IO      IO      `yaml:"io"`
	Audit   Audit   `yaml:"audit"`
	ACL     ACL     `yaml:"acl"`
}

type Sandbox struct {
	Root          string `yaml:"root"`
	Isolation     string `yaml:"isolation"` // namespace | none
	UserNamespace bool   `yaml:"user_namespace,omitempty"`
}

type IO struct {
	NullDevice string `yaml:"null_device"`
}

type Audit struct {
	File     string `yaml:"file"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type ACL struct {
	Admins  []string `yaml:"admins,omitempty"`
	Default string   `yaml:"default,omitempty"` // allow | deny
	Rules   []Rule   `yaml:"rules,omitempty"`
}

type Rule struct {
	User    string `yaml:"user"`
	Command string `yaml:"command"`
	Allow   bool   `yaml:"allow"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version: "1",
		Prompt:  "sandsh> ",
		Sandbox: Sandbox{
			Root:      "/tmp/sandshell_sandbox",
			Isolation: "namespace",
		},
		IO:    IO{NullDevice: os.DevNull},
		Audit: Audit{File: filepath.Join(Dir, AuditFile)},
		ACL:   ACL{Default: "deny"},
	}
}

// Load reads config from .sandshell/config.yaml relative to projectDir.
// Fields missing from the file keep their defaults.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, Dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault loads the config if one exists, otherwise returns defaults.
func LoadOrDefault(projectDir string) (*Config, error) {
	if !Exists(projectDir) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(projectDir)
}

// Save writes config to .sandshell/config.yaml relative to projectDir.
func Save(projectDir string, cfg *Config) error {
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dir, ConfigFile)
	return os.WriteFile(path, data, 0o644)
}

// ConfigPath returns the path to the config directory.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, Dir)
}

// Exists returns true if .sandshell/config.yaml exists.
func Exists(projectDir string) bool {
	path := filepath.Join(projectDir, Dir, ConfigFile)
	_, err := os.Stat(path)
	return err == nil
}

// AuditPath resolves the audit log location against projectDir.
func (c *Config) AuditPath(projectDir string) string {
	if filepath.IsAbs(c.Audit.File) {
		return c.Audit.File
	}
	return filepath.Join(projectDir, c.Audit.File)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(NullDeviceEnv); v != "" {
		c.IO.NullDevice = v
	}
}
