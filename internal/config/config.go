// Package config decodes remfs's optional HCL configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Backend selects the mount transport.
type Backend string

const (
	BackendFUSE Backend = "fuse"
	BackendNFS  Backend = "nfs"
)

// Config is the decoded shape of remfs.hcl. CLI flags always override
// values loaded from a config file. Backend is left empty unless a
// config file sets it, so the CLI's platform-dependent flag default can
// apply.
type Config struct {
	SourceDir   string
	TemplateDir string
	Backend     string
	ReadOnly    bool
}

// fileConfig is the HCL decoding target. Pointer/optional fields keep an
// attribute that is absent from the file from clobbering a default with
// its zero value.
type fileConfig struct {
	SourceDir   string `hcl:"source_dir,optional"`
	TemplateDir string `hcl:"template_dir,optional"`
	Backend     string `hcl:"backend,optional"`
	ReadOnly    *bool  `hcl:"read_only,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{ReadOnly: true}
}

// DefaultPath returns $HOME/.config/remfs/remfs.hcl.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "remfs", "remfs.hcl"), nil
}

// Load decodes an HCL config file at path. A missing file at the default
// path is not an error — Load returns Default() silently; a missing file
// at an explicitly requested path is.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if fc.SourceDir != "" {
		cfg.SourceDir = fc.SourceDir
	}
	if fc.TemplateDir != "" {
		cfg.TemplateDir = fc.TemplateDir
	}
	if fc.Backend != "" {
		cfg.Backend = fc.Backend
	}
	if fc.ReadOnly != nil {
		cfg.ReadOnly = *fc.ReadOnly
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations remfs cannot honor: a config file that
// asks for write support is a validation error, not a feature.
func (c *Config) Validate() error {
	if !c.ReadOnly {
		return fmt.Errorf("config: read_only = false is not supported; remfs is read-only")
	}
	switch Backend(c.Backend) {
	case BackendFUSE, BackendNFS, "":
	default:
		return fmt.Errorf("config: unknown backend %q (use \"fuse\" or \"nfs\")", c.Backend)
	}
	return nil
}
