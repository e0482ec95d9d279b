// Package config handles the library's runtime configuration: where
// to find fstab/mtab-equivalent files, which debug categories to log,
// and how long to wait on a contended lock. You can view the default
// configuration with DefaultConfig and override individual fields via
// LoadConfig's environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/imdario/mergo"
	yaml "github.com/jesseduffield/yaml"
)

// Debug category bits, mirroring the classic MNT_DEBUG_* mask (init is
// 1<<1, tab is 1<<5 = 0x20) so a single numeric or named value selects
// the same category bits a C implementation would.
const (
	DebugInit Bit = 1 << (iota + 1)
	DebugCache
	DebugOptions
	DebugLocks
	DebugTab
	DebugFS
	DebugOpts
	DebugUpdate
	DebugUtils
	DebugCxt

	DebugAll Bit = 0xFFFF
)

// Bit is one or more OR'd debug category flags.
type Bit uint

var debugNames = map[string]Bit{
	"init":    DebugInit,
	"cache":   DebugCache,
	"options": DebugOptions,
	"locks":   DebugLocks,
	"tab":     DebugTab,
	"fs":      DebugFS,
	"opts":    DebugOpts,
	"update":  DebugUpdate,
	"utils":   DebugUtils,
	"cxt":     DebugCxt,
	"all":     DebugAll,
}

// Config is the library's runtime configuration.
type Config struct {
	// FstabPath is the classic-format fstab file to read. Defaults to
	// /etc/fstab.
	FstabPath string `yaml:"fstabPath,omitempty"`

	// MtabPath is the first link in the mtab-resolution fallback chain
	// (configured path -> /proc/self/mountinfo -> /proc/mounts).
	// Defaults to /etc/mtab.
	MtabPath string `yaml:"mtabPath,omitempty"`

	// RuntimeDir holds the library's private update file and its
	// simple lock, analogous to /run/mount.
	RuntimeDir string `yaml:"runtimeDir,omitempty"`

	// DebugMask gates which log categories are emitted.
	DebugMask Bit `yaml:"debugMask,omitempty"`

	// LockTimeout bounds how long the hard-link lock protocol waits on
	// a contended lock before failing stale. Default 30s.
	LockTimeout time.Duration `yaml:"lockTimeout,omitempty"`

	// LockRetryInterval is the pause between hard-link lock attempts.
	// Default 5ms.
	LockRetryInterval time.Duration `yaml:"lockRetryInterval,omitempty"`
}

// DefaultConfig returns the library's baseline configuration, the
// zero-value fallback used whenever the environment specifies
// nothing.
func DefaultConfig() Config {
	return Config{
		FstabPath:         "/etc/fstab",
		MtabPath:          "/etc/mtab",
		RuntimeDir:        runtimeDir(),
		DebugMask:         0,
		LockTimeout:       30 * time.Second,
		LockRetryInterval: 5 * time.Millisecond,
	}
}

func runtimeDir() string {
	dirs := xdg.New("", "libmnt")
	return filepath.Join(dirs.CacheHome(), "run")
}

func configDir() string {
	if d := os.Getenv("LIBMNT_CONFIG_DIR"); d != "" {
		return d
	}
	return xdg.New("", "libmnt").ConfigHome()
}

// LoadConfig builds a Config layering, from lowest to highest
// precedence: DefaultConfig, an optional YAML file at
// $XDG_CONFIG_HOME/libmnt/config.yml (or $LIBMNT_CONFIG_DIR), and
// finally LIBMNT_FSTAB/LIBMNT_MTAB/LIBMNT_DEBUG.
func LoadConfig() (Config, error) {
	cfg, err := loadConfigFile(configDir())
	if err != nil {
		return Config{}, err
	}

	if v := os.Getenv("LIBMNT_FSTAB"); v != "" {
		cfg.FstabPath = v
	}
	if v := os.Getenv("LIBMNT_MTAB"); v != "" {
		cfg.MtabPath = v
	}
	if v := os.Getenv("LIBMNT_DEBUG"); v != "" {
		mask, err := parseDebugMask(v)
		if err != nil {
			return Config{}, err
		}
		cfg.DebugMask = mask
	}

	defaults := DefaultConfig()
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadConfigFile reads dir/config.yml if present, creating an empty
// one the first time a caller asks so a user can discover and
// hand-edit it afterward.
func loadConfigFile(dir string) (Config, error) {
	var cfg Config

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cfg, err
	}

	path := filepath.Join(dir, "config.yml")
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
		if f, createErr := os.Create(path); createErr == nil {
			f.Close()
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseDebugMask accepts either a raw numeric mask or a
// comma-separated list of category names (e.g. "options,tab,locks"
// or "all").
func parseDebugMask(v string) (Bit, error) {
	if n, err := strconv.ParseUint(v, 0, 64); err == nil {
		return Bit(n), nil
	}

	var mask Bit
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		bit, ok := debugNames[name]
		if !ok {
			return 0, &ErrUnknownDebugCategory{Name: name}
		}
		mask |= bit
	}
	return mask, nil
}

// ErrUnknownDebugCategory is returned when LIBMNT_DEBUG names a
// category this library doesn't recognize.
type ErrUnknownDebugCategory struct {
	Name string
}

func (e *ErrUnknownDebugCategory) Error() string {
	return "config: unknown debug category " + strconv.Quote(e.Name)
}
