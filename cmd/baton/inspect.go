package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"baton/internal/codec"
	"baton/internal/security/redaction"
	"baton/internal/store"
	"baton/pkg/types"
)

func newInspectCmd(cfgPath *string) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "inspect <context-file>",
		Short: "Verify and dump a persisted context file",
		Long: `Loads a context payload through the same checksum verification the
next persona stage would use, then prints it as YAML. This is the
postmortem path for files preserved by a failed handover.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			s, err := store.New(cfg.StoreDir)
			if err != nil {
				return err
			}
			c, err := codec.New()
			if err != nil {
				return err
			}

			data, format, err := s.Get(args[0])
			if err != nil {
				return err
			}
			pc, err := c.Decode(data, format)
			if err != nil {
				return err
			}

			if !showSecrets {
				pc.Environment.Variables = redaction.RedactStringMap(pc.Environment.Variables)
			}

			integrity := "checksum verified"
			if format != types.EncodingBinary {
				integrity = "no checksum (fallback format)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s, %d bytes, %s)\n",
				bold("context"), pc.Metadata.ContextID, format, len(data), integrity)
			fmt.Fprintf(out, "%s %s -> %s, created %s\n", gray("route"),
				pc.Metadata.SourcePersona, pc.Metadata.TargetPersona,
				pc.Metadata.CreatedAt.Format(time.RFC3339))

			dump, err := yaml.Marshal(pc)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(dump))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print environment values without redaction")
	return cmd
}
