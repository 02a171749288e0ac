/*
Package config loads pathfinder defaults from environment variables and an
optional YAML config file.

Usage:

	cfg, err := config.Load("")
	if err != nil {
	    log.Fatal(err)
	}
	finder, err := pathfinder.NewFinder(cfg, afero.NewOsFs(), nil)

Environment Variables:

	PATHFINDER_MAX_WORKERS         Checksum worker cap
	PATHFINDER_CACHE_ENABLED       Enable the checksum cache
	PATHFINDER_CACHE_TTL           Checksum cache TTL (duration string)
	PATHFINDER_CONSTRAINT_ROOT     Constraint root directory
	PATHFINDER_CONSTRAINT_TYPE     Constraint label
	PATHFINDER_ENFORCEMENT         STRICT, WARN, or PERMISSIVE
	PATHFINDER_LOADER_TYPE         Loader label stamped onto results
	PATHFINDER_CHECKSUMS           Attach checksums during discovery
	PATHFINDER_CHECKSUM_ALGORITHM  xxh3-128 or sha256
	PATHFINDER_CHECKSUM_ENCODING   hex or base64
	PATHFINDER_HONOR_IGNORE_FILES  Apply per-directory ignore files
	PATHFINDER_IGNORE_FILE         Ignore file name
	PATHFINDER_RATE_LIMIT          Checksum ops per second (0 unlimited)
	PATHFINDER_CORRELATION_ID      Correlation id (generated when empty)

Default Values:

	MaxWorkers:        Number of CPU cores
	ChecksumAlgorithm: xxh3-128
	ChecksumEncoding:  hex
	IgnoreFile:        .gitignore
*/
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
	"github.com/fulmenhq/pathfinder/pkg/pathfinder"
)

// Load reads configuration from the environment and, when configFile is
// non-empty, from a YAML config file (environment wins). The result is
// validated the same way pathfinder.NewFinder validates it.
func Load(configFile string) (pathfinder.Config, error) {
	v := viper.New()

	v.SetDefault("max_workers", 0) // 0 lets NewFinder pick NumCPU
	v.SetDefault("cache_enabled", false)
	v.SetDefault("cache_ttl", "0s")
	v.SetDefault("checksums", false)
	v.SetDefault("checksum_algorithm", string(checksum.XXH3128))
	v.SetDefault("checksum_encoding", string(checksum.EncodingHex))
	v.SetDefault("honor_ignore_files", false)
	v.SetDefault("ignore_file", ".gitignore")
	v.SetDefault("rate_limit", 0)

	v.SetEnvPrefix("PATHFINDER")
	v.AutomaticEnv()

	v.BindEnv("max_workers")
	v.BindEnv("cache_enabled")
	v.BindEnv("cache_ttl")
	v.BindEnv("constraint_root")
	v.BindEnv("constraint_type")
	v.BindEnv("enforcement")
	v.BindEnv("loader_type")
	v.BindEnv("checksums")
	v.BindEnv("checksum_algorithm")
	v.BindEnv("checksum_encoding")
	v.BindEnv("honor_ignore_files")
	v.BindEnv("ignore_file")
	v.BindEnv("rate_limit")
	v.BindEnv("correlation_id")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return pathfinder.Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := pathfinder.Config{
		MaxWorkers:         v.GetInt("max_workers"),
		CacheEnabled:       v.GetBool("cache_enabled"),
		CacheTTL:           v.GetDuration("cache_ttl"),
		LoaderType:         v.GetString("loader_type"),
		CalculateChecksums: v.GetBool("checksums"),
		ChecksumAlgorithm:  checksum.Algorithm(v.GetString("checksum_algorithm")),
		ChecksumEncoding:   checksum.Encoding(v.GetString("checksum_encoding")),
		HonorIgnoreFiles:   v.GetBool("honor_ignore_files"),
		IgnoreFileName:     v.GetString("ignore_file"),
		RateLimit:          v.GetInt("rate_limit"),
		CorrelationID:      v.GetString("correlation_id"),
	}

	if root := v.GetString("constraint_root"); root != "" {
		cfg.Constraint = &pathfinder.Constraint{
			Root:             root,
			Type:             v.GetString("constraint_type"),
			EnforcementLevel: pathfinder.EnforcementLevel(strings.ToUpper(v.GetString("enforcement"))),
		}
	}

	if err := Validate(cfg); err != nil {
		return pathfinder.Config{}, err
	}

	return cfg, nil
}

// Validate checks a Config before a Finder is built from it.
func Validate(cfg pathfinder.Config) error {
	if cfg.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be non-negative")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative")
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must be non-negative")
	}

	switch cfg.ChecksumAlgorithm {
	case "", checksum.XXH3128, checksum.SHA256:
	default:
		return fmt.Errorf("invalid checksum algorithm: must be one of [%s %s]", checksum.XXH3128, checksum.SHA256)
	}

	switch cfg.ChecksumEncoding {
	case "", checksum.EncodingHex, checksum.EncodingBase64:
	default:
		return fmt.Errorf("invalid checksum encoding: must be one of [%s %s]", checksum.EncodingHex, checksum.EncodingBase64)
	}

	if c := cfg.Constraint; c != nil {
		if c.Root == "" {
			return fmt.Errorf("constraint root must not be empty")
		}
		switch c.EnforcementLevel {
		case "", pathfinder.EnforcementStrict, pathfinder.EnforcementWarn, pathfinder.EnforcementPermissive:
		default:
			return fmt.Errorf("invalid enforcement level: %s", c.EnforcementLevel)
		}
	}

	return nil
}
