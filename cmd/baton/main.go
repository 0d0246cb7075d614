// Command baton hands task context from one persona process to the next:
// it validates, encodes, and persists a context file, spawns the target
// persona with a bounded wall clock, and cleans up or preserves the file
// depending on how the child ended.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"baton/internal/codec"
	"baton/internal/config"
	"baton/internal/handover"
	"baton/internal/logging"
	"baton/internal/security"
	"baton/internal/spawn"
	"baton/internal/store"
)

var version = "0.3.0"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY reports whether both ends of the terminal are interactive; used as
// the default for handing the terminal to a spawned persona.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "baton",
		Short:         "Context handover between persona pipeline stages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (JSON or YAML)")
	root.PersistentFlags().String("store-dir", "", "directory for persisted context files")
	root.PersistentFlags().Bool("verbose", false, "echo debug logging to stderr")

	viper.SetEnvPrefix("BATON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("store-dir", root.PersistentFlags().Lookup("store-dir"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		newHandoverCmd(&cfgPath),
		newSweepCmd(&cfgPath),
		newInspectCmd(&cfgPath),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers the config file under flag/environment overrides.
func loadConfig(cfgPath string) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString("store-dir"); dir != "" {
		cfg.StoreDir = dir
	}
	if viper.GetBool("verbose") {
		cfg.Verbose = true
		logging.GetLogger().SetLevel(logging.DEBUG)
		logging.GetLogger().SetEcho(os.Stderr)
	}
	return cfg, nil
}

// buildCoordinator wires the real components together. Everything is an
// explicit instance; nothing global beyond the shared debug log.
func buildCoordinator(cfg *config.Config) (*handover.Coordinator, error) {
	c, err := codec.New()
	if err != nil {
		return nil, err
	}
	s, err := store.New(cfg.StoreDir)
	if err != nil {
		return nil, err
	}
	v := security.NewValidator(cfg.MaxFileSizeBytes)
	coord := handover.New(c, s, v, spawn.NewRunner(),
		handover.WithDefaultCommand(cfg.PersonaCommand),
		handover.WithDefaultTimeout(cfg.Timeout()),
	)
	return coord, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the baton version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baton %s\n", version)
		},
	}
}
