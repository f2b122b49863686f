package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
)

func checkCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the project configuration",
		Long: `Load strata.json from the project directory and report any
configuration problems.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.Exists(dir) {
				return fmt.Errorf("no %s found in %s", config.ConfigFileName, dir)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			success("%s is valid", cfg.Path())
			info("listen address: %s", cfg.ListenAddress())
			info("revalidate window: %s", cfg.RevalidateWindow())
			info("bundle backend: %s", cfg.Bundles.Backend)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Project directory")

	return cmd
}
