package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xmlshred/internal/dbfiles"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove imported databases that have not been used recently",
		Long: "Remove xmlshred_*.sqlite databases in the data directory whose last\n" +
			"modification, journal files included, is older than the retention period.",
		Args: cobra.NoArgs,
		RunE: runClean,
	}
	cmd.Flags().Int("retention-days", 0, "days to keep databases (negative values mean 1)")
	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	removed, err := dbfiles.CleanOld(app.dataDir, app.cfg.RetentionDays, time.Now(), app.log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		if removed == nil {
			removed = []string{}
		}
		return json.NewEncoder(out).Encode(map[string][]string{"removed": removed})
	}
	for _, p := range removed {
		fmt.Fprintf(out, "removed %s\n", p)
	}
	fmt.Fprintf(out, "%d database(s) removed from %s\n", len(removed), app.dataDir)
	return nil
}
