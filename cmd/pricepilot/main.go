package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "pricepilot",
		Short:         "Price optimization, elasticity estimation and A/B price testing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled repricing cycle",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	optimizeCmd = &cobra.Command{
		Use:   "optimize",
		Short: "Run one repricing cycle and print its report",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate <experiment-id>",
		Short: "Evaluate an A/B price experiment",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")
	optimizeCmd.Flags().Bool("apply", false, "Apply approved prices regardless of guardrails.auto_apply")
	evaluateCmd.Flags().Bool("end", false, "Complete the experiment after evaluating it")
	evaluateCmd.Flags().Bool("adopt", false, "With --end, adopt the variant prices")
	rootCmd.AddCommand(serveCmd, optimizeCmd, evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
