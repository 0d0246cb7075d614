package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	batonerrors "baton/internal/errors"
	"baton/internal/handover"
	"baton/pkg/types"
)

func newHandoverCmd(cfgPath *string) *cobra.Command {
	var (
		source      string
		target      string
		task        string
		workDir     string
		command     string
		timeout     time.Duration
		interactive bool
		fromFile    string
		envPairs    []string
		artifacts   []string
		extraArgs   []string
		callback    string
		policy      string
		maxRetries  int
	)

	cmd := &cobra.Command{
		Use:   "handover",
		Short: "Run one context handover to the target persona",
		Long: `Builds a persona context from flags (or loads one from --from),
persists it to the context store, spawns the target persona with the
context file path on its command line, and reports the task result.

On timeout or spawn failure the context file is preserved on disk and
its path is printed so the failed hand-off can be inspected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			var pc *types.PersonaContext
			if fromFile != "" {
				pc, err = readContextFile(fromFile)
				if err != nil {
					return err
				}
			} else {
				if target == "" {
					return fmt.Errorf("either --target or --from is required")
				}
				if workDir == "" {
					workDir = cfg.WorkingDir
				}
				pc = handover.NewContext(source, target, task, workDir)
			}

			vars, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			for k, v := range vars {
				if pc.Environment.Variables == nil {
					pc.Environment.Variables = map[string]string{}
				}
				pc.Environment.Variables[k] = v
			}
			for _, a := range artifacts {
				pc.Artifacts.Files = append(pc.Artifacts.Files, parseArtifact(a))
			}
			if callback != "" {
				pc.Communication.Mode = types.ModeAsynchronous
				pc.Communication.Callback = callback
			}
			if policy != "" {
				pc.Communication.ErrorHandling = types.ErrorPolicy(policy)
			}
			if maxRetries > 0 {
				pc.Communication.MaxRetries = maxRetries
			}

			coord, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}

			opts := handover.Options{
				Command:     command,
				Interactive: interactive || (cfg.Interactive && isTTY()),
				Timeout:     timeout,
				ExtraArgs:   extraArgs,
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (%s)\n",
				bold("handover"), pc.Metadata.SourcePersona, pc.Metadata.TargetPersona, gray(pc.Metadata.ContextID))

			result, err := handover.Retry(cmd.Context(), coord, pc, opts)
			if err != nil {
				if path := batonerrors.PreservedPath(err); path != "" {
					fmt.Fprintln(cmd.OutOrStdout(), yellow("context preserved at ")+path)
				}
				return err
			}

			printResult(cmd, result)
			if result.Status == types.StatusFailed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "persona handing the task over")
	cmd.Flags().StringVar(&target, "target", "", "persona to spawn")
	cmd.Flags().StringVar(&task, "task", "", "task description passed to the child")
	cmd.Flags().StringVar(&workDir, "workdir", "", "working tree the artifacts must live in")
	cmd.Flags().StringVar(&command, "command", "", "persona executable (defaults from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for the child, e.g. 5m")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "hand the terminal to the child")
	cmd.Flags().StringVar(&fromFile, "from", "", "load the context from a JSON or YAML file instead of flags")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "environment variable to propagate, KEY=VALUE")
	cmd.Flags().StringArrayVar(&artifacts, "artifact", nil, "artifact reference, PATH[:ROLE]")
	cmd.Flags().StringArrayVar(&extraArgs, "extra-arg", nil, "extra argument appended to the child argv")
	cmd.Flags().StringVar(&callback, "callback", "", "URL to POST the task result to (async mode)")
	cmd.Flags().StringVar(&policy, "on-error", "", "error policy: retry, fail, or fallback")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry budget when --on-error=retry")
	return cmd
}

func printResult(cmd *cobra.Command, result *types.TaskResult) {
	out := cmd.OutOrStdout()
	switch result.Status {
	case types.StatusCompleted:
		fmt.Fprintf(out, "%s in %s\n", green("completed"), result.ExecutionTime.Round(time.Millisecond))
	default:
		fmt.Fprintf(out, "%s in %s: %s\n", red(string(result.Status)), result.ExecutionTime.Round(time.Millisecond), result.Error)
	}
	for _, artifact := range result.Artifacts {
		fmt.Fprintf(out, "  %s %s\n", gray("artifact"), artifact)
	}
}

// readContextFile loads a caller-authored context description. A context
// loaded this way still gets a fresh ID if the file left it blank.
func readContextFile(path string) (*types.PersonaContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context %s: %w", path, err)
	}
	var pc types.PersonaContext
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &pc); err != nil {
			return nil, fmt.Errorf("parse context %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &pc); err != nil {
			return nil, fmt.Errorf("parse context %s: %w", path, err)
		}
	}
	if pc.Metadata.ContextID == "" {
		fresh := handover.NewContext(pc.Metadata.SourcePersona, pc.Metadata.TargetPersona,
			pc.Metadata.TaskDescription, pc.Metadata.WorkingDirectory)
		pc.Metadata = fresh.Metadata
	}
	return &pc, nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, want KEY=VALUE", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func parseArtifact(raw string) types.FileReference {
	path, role, ok := strings.Cut(raw, ":")
	ref := types.FileReference{Path: path, Role: types.RoleInput}
	if ok && role != "" {
		ref.Role = types.FileRole(role)
	}
	if info, err := os.Stat(path); err == nil {
		ref.SizeBytes = info.Size()
	}
	return ref
}
