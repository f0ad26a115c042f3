// Package config loads vex settings from <root>/config.yaml and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vex/internal/model"
)

// FileName is the config file name inside the state root.
const FileName = "config.yaml"

// Selector modes.
const (
	SelectorAuto    = "auto"
	SelectorFzf     = "fzf"
	SelectorBuiltin = "builtin"
	SelectorNone    = "none"
)

// Config holds all vex configuration.
type Config struct {
	// State root holding the registry files (default ~/.vex)
	Root string `yaml:"root"`

	// Where `create` puts new environments (default <root>/venvs)
	VenvsDir string `yaml:"venvs_dir"`

	// Environment creation tools in preference order: uv, python-version, python3, python
	Creators []string `yaml:"creators"`

	// Package installers in preference order: uv, pip
	Installers []string `yaml:"installers"`

	// Interactive selector: auto, fzf, builtin, none
	Selector string `yaml:"selector"`

	// Packages installed into every new environment
	BaseRequirements     []string `yaml:"base_requirements"`
	BaseRequirementsFile string   `yaml:"base_requirements_file"`

	// Drop registry records whose activation script is gone when listing
	PruneMissing bool `yaml:"prune_missing"`

	LogLevel string `yaml:"log_level"`

	// GitHub repository checked by --update, as owner/name
	UpdateRepo string `yaml:"update_repo"`
}

// DefaultConfig returns the built-in configuration rooted at ~/.vex.
func DefaultConfig() *Config {
	return &Config{
		Root:         model.ExpandTilde("~/.vex"),
		Creators:     []string{"uv", "python-version", "python3", "python"},
		Installers:   []string{"uv", "pip"},
		Selector:     SelectorAuto,
		PruneMissing: true,
		LogLevel:     "warn",
		UpdateRepo:   "vex-cli/vex",
	}
}

// Load reads the config file at path on top of the defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// LoadDefault resolves the state root (VEX_HOME or ~/.vex) and loads the
// config file inside it.
func LoadDefault() (*Config, error) {
	root := model.ExpandTilde("~/.vex")
	if v := os.Getenv("VEX_HOME"); v != "" {
		root = model.ExpandTilde(v)
	}
	return Load(filepath.Join(root, FileName))
}

// Path is the config file inside the state root.
func (c *Config) Path() string {
	return filepath.Join(c.Root, FileName)
}

// Encode renders the config as YAML.
func (c *Config) Encode() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VEX_HOME"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("VEX_VENVS_DIR"); v != "" {
		c.VenvsDir = v
	}
	if v := os.Getenv("VEX_SELECTOR"); v != "" {
		c.Selector = v
	}
	if v := os.Getenv("VEX_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) normalize() {
	c.Root = model.ExpandTilde(c.Root)
	if c.VenvsDir == "" {
		c.VenvsDir = filepath.Join(c.Root, "venvs")
	}
	c.VenvsDir = model.ExpandTilde(c.VenvsDir)
	c.BaseRequirementsFile = model.ExpandTilde(c.BaseRequirementsFile)
	switch c.Selector {
	case SelectorAuto, SelectorFzf, SelectorBuiltin, SelectorNone:
	default:
		c.Selector = SelectorAuto
	}
}

// EnsureDirs creates the state root and the environments directory.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Root, c.VenvsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// BaseRequirementList merges the inline list with the requirements file.
func (c *Config) BaseRequirementList() ([]string, error) {
	reqs := append([]string(nil), c.BaseRequirements...)
	if c.BaseRequirementsFile == "" {
		return reqs, nil
	}
	lines, err := model.ReadLines(c.BaseRequirementsFile)
	if err != nil {
		return nil, fmt.Errorf("reading base requirements: %w", err)
	}
	return append(reqs, lines...), nil
}
