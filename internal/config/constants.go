package config

import "time"

// AppName names the config and cache directories.
const AppName = "leizi-formula"

// EnvPrefix is the prefix for environment overrides (LEIZI_FORMULA_PREFIX, ...).
const EnvPrefix = "LEIZI_FORMULA"

// Setting keys
const (
	KeyPrefix       = "prefix"
	KeyFormula      = "formula"
	KeyBuildType    = "build_type"
	KeyExtraFlags   = "extra_flags"
	KeyRegistryPath = "registry_path"
	KeyCacheDir     = "cache_dir"
	KeyLogLevel     = "log_level"
	KeyTimeoutFetch = "timeouts.fetch"
	KeyTimeoutBuild = "timeouts.build"
	KeyTimeoutTest  = "timeouts.test"
)

// Defaults
const (
	DefaultPrefix       = "/usr/local"
	DefaultRegistryPath = "/etc/shells"

	DefaultFetchTimeout = 5 * time.Minute
	DefaultBuildTimeout = 30 * time.Minute
	DefaultTestTimeout  = 30 * time.Second
)
