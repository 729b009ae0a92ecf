package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "XMLSHRED"
)

// Config keys, matching the mapstructure tags of types.Config.
const (
	cfgKeyBatchSize      = "batch_size"
	cfgKeyJournalMode    = "journal_mode"
	cfgKeySynchronous    = "synchronous"
	cfgKeyFoldDiacritics = "fold_diacritics"
	cfgKeyDataDir        = "data_dir"
	cfgKeyRetentionDays  = "retention_days"
	cfgKeyLogLevel       = "log_level"
	cfgKeyLogFile        = "log_file"
)

// flagKeys maps config keys to the flags that override them. A command
// that does not define a flag simply does not bind it.
var flagKeys = map[string]string{
	cfgKeyBatchSize:      "batch-size",
	cfgKeyJournalMode:    "journal-mode",
	cfgKeySynchronous:    "synchronous",
	cfgKeyFoldDiacritics: "fold-diacritics",
	cfgKeyRetentionDays:  "retention-days",
	cfgKeyLogLevel:       "log-level",
	cfgKeyLogFile:        "log-file",
}

// loadConfig resolves the effective configuration with the precedence
// flag > XMLSHRED_* environment > config.yaml > defaults. A missing
// config.yaml is not an error.
func loadConfig(configDir string, cmd *cobra.Command) (types.Config, error) {
	d := types.DefaultConfig()

	v := viper.New()
	v.SetDefault(cfgKeyBatchSize, d.BatchSize)
	v.SetDefault(cfgKeyJournalMode, d.JournalMode)
	v.SetDefault(cfgKeySynchronous, d.Synchronous)
	v.SetDefault(cfgKeyFoldDiacritics, d.FoldDiacritics)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyRetentionDays, d.RetentionDays)
	v.SetDefault(cfgKeyLogLevel, d.LogLevel)
	v.SetDefault(cfgKeyLogFile, "")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return types.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
