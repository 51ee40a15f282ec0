package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// rootOpts holds persistent flags shared by the daemon-client subcommands.
type rootOpts struct {
	Addr     string
	LogLevel string
}

// buildRootCmd constructs the Cobra command tree: `serve` runs the daemon,
// the remaining commands talk to a running daemon over HTTP.
func buildRootCmd() *cobra.Command {
	opts := &rootOpts{Addr: defaultAddrFromEnv(), LogLevel: "info"}

	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Local model cache and batched inference daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.Addr, "addr", opts.Addr, "Daemon address (defaults INFERD_ADDR or :8080)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug|info|warn|error")

	root.AddCommand(buildServeCmd(opts))

	// models group
	modelsCmd := &cobra.Command{Use: "models", Short: "Manage stored model artifacts", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("models requires a subcommand: list|add|rm")
	}}
	modelsList := &cobra.Command{Use: "list", Short: "List stored models", Example: "  inferd models list", RunE: func(cmd *cobra.Command, args []string) error {
		return runModelsList(opts)
	}}
	modelsAdd := &cobra.Command{Use: "add <id> <file>", Short: "Upload a model artifact from a local file", Example: "  inferd models add tiny-7b ./tiny-7b.bin", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("display-name")
		caps, _ := cmd.Flags().GetString("capabilities")
		return runModelsAdd(opts, args[0], args[1], name, splitCSV(caps))
	}}
	modelsAdd.Flags().String("display-name", "", "Human-readable model name")
	modelsAdd.Flags().String("capabilities", "", "Comma-separated capability tags, e.g. chat,embed")
	modelsRm := &cobra.Command{Use: "rm <id>", Short: "Delete a stored model", Example: "  inferd models rm tiny-7b", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return runModelsRm(opts, args[0])
	}}
	modelsCmd.AddCommand(modelsList, modelsAdd, modelsRm)
	root.AddCommand(modelsCmd)

	statusCmd := &cobra.Command{Use: "status", Short: "Show daemon status", RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(opts)
	}}
	root.AddCommand(statusCmd)

	inferCmd := &cobra.Command{Use: "infer <input>", Short: "Run one inference request", Example: "  inferd infer --model tiny-7b \"hello\"", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		return runInfer(opts, model, args[0])
	}}
	inferCmd.Flags().String("model", "", "Model id (daemon default when omitted)")
	root.AddCommand(inferCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}

func defaultAddrFromEnv() string {
	if v := os.Getenv("INFERD_ADDR"); v != "" {
		return v
	}
	return ":8080"
}

// splitCSV splits a comma-separated flag value, trimming spaces and
// dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
