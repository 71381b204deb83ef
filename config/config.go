// Package config handles virtualmethods.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/virtualmethods/vm"
	"github.com/tliron/commonlog"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "virtualmethods.toml"

// ErrInvalidConfig is returned for configuration that parses but does not
// match the schema.
var ErrInvalidConfig = errors.New("invalid configuration")

var log = commonlog.GetLogger("virtualmethods.config")

// Config represents a virtualmethods.toml file.
type Config struct {
	Dispatch Dispatch `toml:"dispatch"`
	Log      Log      `toml:"log"`
	Trace    Trace    `toml:"trace"`
	Snapshot Snapshot `toml:"snapshot"`

	// Dir is the directory containing the configuration file (set at load
	// time). Relative paths in the file are resolved against it.
	Dir string `toml:"-"`
}

// Dispatch configures the runtime.
type Dispatch struct {
	DefaultPolicy string `toml:"default-policy"`
	MaxDepth      int    `toml:"max-depth"`
	Cache         bool   `toml:"cache"`
}

// Log configures the commonlog backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Trace configures dispatch event recording.
type Trace struct {
	Enabled  bool   `toml:"enabled"`
	Database string `toml:"database"`
	Buffer   int    `toml:"buffer"`
}

// Snapshot configures dispatch metadata export.
type Snapshot struct {
	Output string `toml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Dispatch: Dispatch{
			DefaultPolicy: vm.PolicyVirtual.String(),
			MaxDepth:      vm.DefaultMaxDepth,
			Cache:         true,
		},
		Log: Log{Verbosity: 0},
		Trace: Trace{
			Database: "trace.db",
			Buffer:   4096,
		},
		Snapshot: Snapshot{Output: "dispatch.cbor"},
	}
}

// Parse decodes and validates configuration text. source names the text in
// error messages.
func Parse(data []byte, source string) (*Config, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", source, err)
	}
	if err := Validate(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", source, err)
	}
	return c, nil
}

// Load parses the virtualmethods.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	log.Debugf("loaded %s", path)
	return c, nil
}

// FindAndLoad walks up from startDir to find a virtualmethods.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Options turns the dispatch section into VM options.
func (c *Config) Options() ([]vm.Option, error) {
	policy, err := vm.ParsePolicy(c.Dispatch.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return []vm.Option{
		vm.WithDefaultPolicy(policy),
		vm.WithMaxDepth(c.Dispatch.MaxDepth),
		vm.WithCache(c.Dispatch.Cache),
	}, nil
}

// Path resolves p against the configuration directory. Absolute paths and
// configurations without a directory return p unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// TraceDatabasePath returns the resolved trace database path.
func (c *Config) TraceDatabasePath() string {
	return c.Path(c.Trace.Database)
}

// SnapshotPath returns the resolved snapshot output path.
func (c *Config) SnapshotPath() string {
	return c.Path(c.Snapshot.Output)
}

// LogPath returns the resolved log file path, or nil to log to stderr.
func (c *Config) LogPath() *string {
	if c.Log.Path == "" {
		return nil
	}
	p := c.Path(c.Log.Path)
	return &p
}
