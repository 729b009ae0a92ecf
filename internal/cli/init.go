package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and database directories",
		Long:  "Create the configuration directory with a default config.yaml, and the directory imported databases are written to.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(app.configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	configPath := filepath.Join(app.configDir, configFileExt)
	written, err := writeConfigIfMissing(configPath, app.dataDir)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.MkdirAll(app.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	out := cmd.OutOrStdout()
	if written {
		fmt.Fprintf(out, "wrote %s\n", configPath)
	} else {
		fmt.Fprintf(out, "kept existing %s\n", configPath)
	}
	fmt.Fprintf(out, "databases go to %s\n", app.dataDir)
	return nil
}

// writeConfigIfMissing creates config.yaml with default values unless the
// file already exists. It reports whether it wrote the file.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	cfg := types.DefaultConfig()
	cfg.DataDir = dataDir

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# xmlshred configuration. XMLSHRED_<KEY> environment variables and flags override these values.\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}
