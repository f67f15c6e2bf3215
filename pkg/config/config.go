// Package config loads dotup's layered configuration: embedded defaults,
// then the user's config file, then DOTUP_* environment variables.
// The resulting Settings value is constructed once at startup and passed
// into each component; nothing reads configuration mid-run.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	tomlenc "github.com/pelletier/go-toml/v2"

	"github.com/dotup-sh/dotup/pkg/errors"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. DOTUP_REPO_BRANCH=develop.
const EnvPrefix = "DOTUP_"

// UserConfigFile is the name of the optional user configuration file
// under $XDG_CONFIG_HOME/dotup/.
const UserConfigFile = "dotup.toml"

// Repo identifies the remote source tree.
type Repo struct {
	Owner  string `koanf:"owner" toml:"owner"`
	Name   string `koanf:"name" toml:"name"`
	Branch string `koanf:"branch" toml:"branch"`
}

// Paths holds filesystem locations.
type Paths struct {
	// WorkingCopy is the working copy location, relative to the user's
	// home directory unless absolute.
	WorkingCopy string `koanf:"working_copy" toml:"working_copy"`
}

// Snapshot configures snapshot acquisition.
type Snapshot struct {
	URLTemplate string `koanf:"url_template" toml:"url_template"`
}

// Settings is the fully resolved configuration for one run.
type Settings struct {
	Repo        Repo              `koanf:"repo" toml:"repo"`
	Paths       Paths             `koanf:"paths" toml:"paths"`
	Snapshot    Snapshot          `koanf:"snapshot" toml:"snapshot"`
	EntryPoints map[string]string `koanf:"entry_points" toml:"entry_points"`

	// HomeDir is resolved at load time, not configurable.
	HomeDir string `koanf:"-" toml:"-"`
}

// WorkingCopyPath returns the absolute working copy location.
func (s Settings) WorkingCopyPath() string {
	if filepath.IsAbs(s.Paths.WorkingCopy) {
		return s.Paths.WorkingCopy
	}
	return filepath.Join(s.HomeDir, s.Paths.WorkingCopy)
}

// SnapshotURL returns the archive URL for the configured repo and branch.
func (s Settings) SnapshotURL() string {
	r := strings.NewReplacer(
		"{owner}", s.Repo.Owner,
		"{repo}", s.Repo.Name,
		"{branch}", s.Repo.Branch,
	)
	return r.Replace(s.Snapshot.URLTemplate)
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrInternal, "not implemented")
}

// Load builds Settings from defaults, the optional user config file,
// and environment overrides, in that order.
func Load() (Settings, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigParse, "failed to load built-in defaults")
	}

	// 2. User config file if present
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = xdg.ConfigHome
	}
	userConfig := filepath.Join(configHome, "dotup", UserConfigFile)
	if _, err := os.Stat(userConfig); err == nil {
		if err := k.Load(file.Provider(userConfig), toml.Parser()); err != nil {
			return Settings{}, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", userConfig)
		}
	}

	// 3. Environment overrides: DOTUP_REPO_BRANCH -> repo.branch
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfigLoad, "cannot determine home directory")
	}
	settings.HomeDir = home

	return settings, nil
}

// WriteDefault writes the default configuration to the given path,
// creating parent directories as needed. Used by `dotup config init`.
func WriteDefault(path string) error {
	settings, err := Load()
	if err != nil {
		return err
	}

	data, err := tomlenc.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigParse, "failed to encode configuration")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrConfigLoad, "failed to create config directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrConfigLoad, "failed to write %s", path)
	}
	return nil
}
