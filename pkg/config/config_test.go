package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
	"github.com/fulmenhq/pathfinder/pkg/pathfinder"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxWorkers)
	assert.False(t, cfg.CacheEnabled)
	assert.False(t, cfg.CalculateChecksums)
	assert.Equal(t, checksum.XXH3128, cfg.ChecksumAlgorithm)
	assert.Equal(t, checksum.EncodingHex, cfg.ChecksumEncoding)
	assert.Equal(t, ".gitignore", cfg.IgnoreFileName)
	assert.Nil(t, cfg.Constraint)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PATHFINDER_MAX_WORKERS", "8")
	t.Setenv("PATHFINDER_CACHE_ENABLED", "true")
	t.Setenv("PATHFINDER_CACHE_TTL", "5m")
	t.Setenv("PATHFINDER_CHECKSUMS", "true")
	t.Setenv("PATHFINDER_CHECKSUM_ALGORITHM", "sha256")
	t.Setenv("PATHFINDER_CONSTRAINT_ROOT", "/workspace")
	t.Setenv("PATHFINDER_ENFORCEMENT", "warn")
	t.Setenv("PATHFINDER_LOADER_TYPE", "schema")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.CalculateChecksums)
	assert.Equal(t, checksum.SHA256, cfg.ChecksumAlgorithm)
	assert.Equal(t, "schema", cfg.LoaderType)

	require.NotNil(t, cfg.Constraint)
	assert.Equal(t, "/workspace", cfg.Constraint.Root)
	assert.Equal(t, pathfinder.EnforcementWarn, cfg.Constraint.EnforcementLevel)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pathfinder.yaml")
	body := []byte("max_workers: 4\nchecksums: true\nchecksum_algorithm: sha256\nignore_file: .discoveryignore\n")
	require.NoError(t, os.WriteFile(path, body, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.True(t, cfg.CalculateChecksums)
	assert.Equal(t, checksum.SHA256, cfg.ChecksumAlgorithm)
	assert.Equal(t, ".discoveryignore", cfg.IgnoreFileName)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/pathfinder.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("PATHFINDER_CHECKSUM_ALGORITHM", "md5")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid checksum algorithm")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     pathfinder.Config
		wantErr string
	}{
		{
			name: "zero value is valid",
			cfg:  pathfinder.Config{},
		},
		{
			name:    "negative workers",
			cfg:     pathfinder.Config{MaxWorkers: -1},
			wantErr: "max workers",
		},
		{
			name:    "negative rate limit",
			cfg:     pathfinder.Config{RateLimit: -1},
			wantErr: "rate limit",
		},
		{
			name:    "negative cache ttl",
			cfg:     pathfinder.Config{CacheTTL: -time.Second},
			wantErr: "cache TTL",
		},
		{
			name:    "bad enforcement level",
			cfg:     pathfinder.Config{Constraint: &pathfinder.Constraint{Root: "/x", EnforcementLevel: "LOOSE"}},
			wantErr: "enforcement level",
		},
		{
			name:    "constraint without root",
			cfg:     pathfinder.Config{Constraint: &pathfinder.Constraint{EnforcementLevel: pathfinder.EnforcementStrict}},
			wantErr: "constraint root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
