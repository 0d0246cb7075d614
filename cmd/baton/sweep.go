package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"baton/internal/store"
)

func newSweepCmd(cfgPath *string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Garbage-collect preserved context files past the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cfg.Retention()
			}

			s, err := store.New(cfg.StoreDir)
			if err != nil {
				return err
			}
			removed, err := s.Sweep(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d context file(s) older than %s from %s\n",
				green("reclaimed"), removed, olderThan, s.Dir())
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention threshold, e.g. 1h (defaults from config)")
	return cmd
}
