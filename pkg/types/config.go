package types

import (
	"errors"
	"strings"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultBatchSize     = 25000
	DefaultJournalMode   = "WAL"
	DefaultSynchronous   = "NORMAL"
	DefaultRetentionDays = 14
	DefaultLogLevel      = "info"
)

// Config holds the tunables of an import run and of the surrounding tool.
type Config struct {
	// BatchSize is the number of finalized nodes after which the open
	// transaction is committed and a new one begun.
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// JournalMode and Synchronous are applied as PRAGMAs before a document
	// is imported.
	JournalMode string `json:"journal_mode" yaml:"journal_mode" mapstructure:"journal_mode"`
	Synchronous string `json:"synchronous" yaml:"synchronous" mapstructure:"synchronous"`

	// FoldDiacritics strips combining marks from names before they are
	// turned into identifiers, so "Naäm" becomes "Naam" instead of "Na_m".
	FoldDiacritics bool `json:"fold_diacritics" yaml:"fold_diacritics" mapstructure:"fold_diacritics"`

	DataDir       string `json:"data_dir" yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days" mapstructure:"retention_days"`
	LogLevel      string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFile       string `json:"log_file" yaml:"log_file,omitempty" mapstructure:"log_file"`
}

// Config validation errors.
var (
	ErrBatchSizeInvalid   = errors.New("batch size must be positive")
	ErrJournalModeUnknown = errors.New("unknown journal mode")
	ErrSynchronousUnknown = errors.New("unknown synchronous mode")
	ErrLogLevelUnknown    = errors.New("unknown log level")
)

var knownJournalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true,
	"MEMORY": true, "WAL": true, "OFF": true,
}

var knownSynchronous = map[string]bool{
	"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true,
}

var knownLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// defaults. A negative RetentionDays is coerced to 1.
func (c Config) WithDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.JournalMode == "" {
		c.JournalMode = DefaultJournalMode
	}
	if c.Synchronous == "" {
		c.Synchronous = DefaultSynchronous
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.RetentionDays < 0 {
		c.RetentionDays = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return ErrBatchSizeInvalid
	}
	if !knownJournalModes[strings.ToUpper(c.JournalMode)] {
		return ErrJournalModeUnknown
	}
	if !knownSynchronous[strings.ToUpper(c.Synchronous)] {
		return ErrSynchronousUnknown
	}
	if c.LogLevel != "" && !knownLogLevels[strings.ToLower(c.LogLevel)] {
		return ErrLogLevelUnknown
	}
	return nil
}
