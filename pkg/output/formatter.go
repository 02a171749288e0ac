/*
Package output serializes discovery results into portable manifests in JSON
or YAML, optionally with aggregate statistics.

Basic usage:

	formatter := output.NewFormatter(output.Config{
		Format:    output.FormatJSON,
		WithStats: true,
	}, log)

	manifest, err := formatter.Format(results)
*/
package output

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/pathfinder/pkg/logger"
	"github.com/fulmenhq/pathfinder/pkg/pathfinder"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Config holds formatter configuration
type Config struct {
	Format    Format
	WithStats bool
}

// Formatter renders discovery results into a manifest string.
type Formatter interface {
	Format(results []pathfinder.PathResult) (string, error)
}

// manifest is the serialized envelope around the results.
type manifest struct {
	Results    []pathfinder.PathResult `json:"results" yaml:"results"`
	Statistics *stats                  `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Generated  time.Time               `json:"generated" yaml:"generated"`
}

// stats aggregates the result set.
type stats struct {
	TotalEntries  int   `json:"totalEntries" yaml:"totalEntries"`
	TotalSize     int64 `json:"totalSize" yaml:"totalSize"`
	Symlinks      int   `json:"symlinks" yaml:"symlinks"`
	WithChecksum  int   `json:"withChecksum" yaml:"withChecksum"`
	ChecksumFails int   `json:"checksumFails" yaml:"checksumFails"`
}

type formatter struct {
	config Config
	log    logger.Logger
}

// NewFormatter creates a new formatter instance. A nil log discards output.
func NewFormatter(config Config, log logger.Logger) Formatter {
	if log == nil {
		log = logger.Nop()
	}
	return &formatter{
		config: config,
		log:    log,
	}
}

// Format renders results according to the configured format.
func (f *formatter) Format(results []pathfinder.PathResult) (string, error) {
	f.log.WithFields(logger.Fields{
		"format":    f.config.Format,
		"withStats": f.config.WithStats,
		"results":   len(results),
	}).Debug("Formatting manifest")

	m := &manifest{
		Results:   results,
		Generated: time.Now().UTC(),
	}
	if f.config.WithStats {
		m.Statistics = calculateStats(results)
	}

	switch f.config.Format {
	case FormatJSON:
		bytes, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			f.log.WithFields(logger.Fields{"error": err}).Error("Failed to marshal JSON")
			return "", err
		}
		return string(bytes), nil

	case FormatYAML:
		bytes, err := yaml.Marshal(m)
		if err != nil {
			f.log.WithFields(logger.Fields{"error": err}).Error("Failed to marshal YAML")
			return "", err
		}
		return string(bytes), nil

	default:
		msg := fmt.Sprintf("unsupported format: %s", f.config.Format)
		f.log.Error(msg)
		return "", fmt.Errorf("%s", msg)
	}
}

func calculateStats(results []pathfinder.PathResult) *stats {
	s := &stats{TotalEntries: len(results)}
	for _, result := range results {
		s.TotalSize += result.Metadata.Size
		if result.Metadata.IsSymlink {
			s.Symlinks++
		}
		if result.Metadata.Checksum != "" {
			s.WithChecksum++
		}
		if result.Metadata.ChecksumError != "" {
			s.ChecksumFails++
		}
	}
	return s
}
