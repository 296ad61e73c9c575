package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Timeouts bounds every external process the pipeline starts.
type Timeouts struct {
	Fetch time.Duration `mapstructure:"fetch" json:"fetch" validate:"gt=0"`
	Build time.Duration `mapstructure:"build" json:"build" validate:"gt=0"`
	Test  time.Duration `mapstructure:"test" json:"test" validate:"gt=0"`
}

// Settings is the resolved tool configuration. An empty BuildType leaves
// the formula's own build type in force.
type Settings struct {
	Prefix       string   `mapstructure:"prefix" json:"prefix" validate:"required"`
	Formula      string   `mapstructure:"formula" json:"formula"`
	BuildType    string   `mapstructure:"build_type" json:"build_type" validate:"omitempty,oneof=Debug Release"`
	ExtraFlags   []string `mapstructure:"-" json:"extra_flags"`
	RegistryPath string   `mapstructure:"registry_path" json:"registry_path" validate:"required"`
	CacheDir     string   `mapstructure:"cache_dir" json:"cache_dir" validate:"required"`
	LogLevel     string   `mapstructure:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	Timeouts     Timeouts `mapstructure:"timeouts" json:"timeouts"`
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFile forces loading from a specific file when set.
	ConfigFile string
	// ConfigDir overrides the default config directory lookup when set.
	ConfigDir string
	// Flags are bound on top of file and environment values.
	Flags *pflag.FlagSet
}

// SettingsError reports an invalid setting.
type SettingsError struct {
	Field   string
	Message string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Message)
}

// flagKeys maps CLI flag names to setting keys.
var flagKeys = map[string]string{
	"prefix":        KeyPrefix,
	"formula":       KeyFormula,
	"build-type":    KeyBuildType,
	"registry-path": KeyRegistryPath,
	"cache-dir":     KeyCacheDir,
	"log-level":     KeyLogLevel,
	"build-timeout": KeyTimeoutBuild,
	"test-timeout":  KeyTimeoutTest,
	"fetch-timeout": KeyTimeoutFetch,
}

// Load resolves settings from defaults, the config file, LEIZI_FORMULA_*
// environment variables and flags, in increasing precedence.
func Load(opts LoadOptions) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		dir := opts.ConfigDir
		if dir == "" {
			dir = DefaultConfigDir()
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for flagName, key := range flagKeys {
			if f := opts.Flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.ConfigFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	flags, err := SplitFlags(v.GetString(KeyExtraFlags))
	if err != nil {
		return nil, &SettingsError{Field: KeyExtraFlags, Message: err.Error()}
	}
	s.ExtraFlags = flags

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// SplitFlags splits a shell-quoted flag string into individual arguments.
func SplitFlags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts, err := shlex.Split(raw, true)
	if err != nil {
		return nil, fmt.Errorf("split flags %q: %w", raw, err)
	}
	return parts, nil
}

// Validate checks the settings for semantic errors.
func (s *Settings) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &SettingsError{
				Field:   verrs[0].Namespace(),
				Message: fmt.Sprintf("failed %q check (value %v)", verrs[0].Tag(), verrs[0].Value()),
			}
		}
		return fmt.Errorf("validate settings: %w", err)
	}

	if !filepath.IsAbs(s.Prefix) {
		return &SettingsError{Field: KeyPrefix, Message: fmt.Sprintf("must be absolute, got %q", s.Prefix)}
	}
	if !filepath.IsAbs(s.RegistryPath) {
		return &SettingsError{Field: KeyRegistryPath, Message: fmt.Sprintf("must be absolute, got %q", s.RegistryPath)}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPrefix, DefaultPrefix)
	v.SetDefault(KeyFormula, "")
	v.SetDefault(KeyBuildType, "")
	v.SetDefault(KeyExtraFlags, "")
	v.SetDefault(KeyRegistryPath, DefaultRegistryPath)
	v.SetDefault(KeyCacheDir, DefaultCacheDir())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTimeoutFetch, DefaultFetchTimeout)
	v.SetDefault(KeyTimeoutBuild, DefaultBuildTimeout)
	v.SetDefault(KeyTimeoutTest, DefaultTestTimeout)
}

// DefaultConfigDir returns ~/.config/leizi-formula.
func DefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultCacheDir returns the per-user download cache directory.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName, "cache")
}
