// Package config handles fwrap.toml project configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/migueldvb/fwrap/tracking"
)

// FileName is the configuration file looked up in the project root.
const FileName = "fwrap.toml"

// Config represents an fwrap.toml file.
type Config struct {
	Project Project `toml:"project"`
	Output  Output  `toml:"output"`
	VCS     VCS     `toml:"vcs"`

	// Dir is the project root: the directory holding fwrap.toml, or the
	// start directory when there is none (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	// Name is the default artifact name.
	Name string `toml:"name"`
	// Sources are the default files to wrap, relative to Dir.
	Sources []string `toml:"sources"`
}

// Output configures where artifacts go.
type Output struct {
	Dir string `toml:"dir"`
}

// VCS configures version control.
type VCS struct {
	// Enabled turns commits and update branches on or off. When unset,
	// version control is used if Dir is a git working tree.
	Enabled      *bool  `toml:"enabled"`
	Author       string `toml:"author"`
	Email        string `toml:"email"`
	BranchPrefix string `toml:"branch_prefix"`
}

// Load reads dir/fwrap.toml. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", dir)
	}
	c := &Config{Dir: abs}

	path := filepath.Join(abs, FileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrapf(err, "cannot read %s", path)
	default:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrapf(err, "parse error in %s", path)
		}
		c.Dir = abs
	}

	// Defaults
	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(abs)
	}
	if c.VCS.BranchPrefix == "" {
		c.VCS.BranchPrefix = tracking.DefaultBranchPrefix
	}
	return c, nil
}

// FindAndLoad walks up from startDir to the first directory holding
// fwrap.toml and loads it. Without one, the defaults rooted at startDir
// are returned.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, FileName)); err == nil {
			return Load(d)
		}
		parent := filepath.Dir(d)
		if parent == d {
			return Load(dir)
		}
		d = parent
	}
}

// Versioned reports whether version control is in use.
func (c *Config) Versioned() bool {
	if c.VCS.Enabled != nil {
		return *c.VCS.Enabled
	}
	fi, err := os.Stat(filepath.Join(c.Dir, ".git"))
	return err == nil && fi.IsDir()
}

// Tracking returns the orchestrator options for this project.
func (c *Config) Tracking() tracking.Options {
	return tracking.Options{
		Root:         c.Dir,
		OutputDir:    c.Output.Dir,
		Versioned:    c.Versioned(),
		BranchPrefix: c.VCS.BranchPrefix,
	}
}
