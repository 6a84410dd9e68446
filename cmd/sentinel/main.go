package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	outputFile string
	logLevel   string

	// written is set once a result payload has been written.
	written bool
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Contributor lifecycle automation",
		Long:          `Onboards first-time contributors, tracks their pull requests, promotes Apprentices to Sentinels and enforces assignment deadlines.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "thresholds YAML file (default config/thresholds.yaml)")
	root.PersistentFlags().StringVar(&opts.outputFile, "output-file", "output.json", `where to write the JSON result ("-" for stdout)`)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newCheckExistsCmd(opts),
		newCreateCmd(opts),
		newUpdatePRCmd(opts),
		newValidatePRCmd(opts),
		newValidateRecordCmd(opts),
		newSetBlockedCmd(opts),
		newExportCmd(opts),
		newAskInfoCmd(opts),
		newCheckResponseCmd(opts),
		newOnboardCmd(opts),
		newCheckPromotionCmd(opts),
		newPromoteCmd(opts),
		newFindSentinelCmd(opts),
		newAssignCmd(opts),
		newAssignManualCmd(opts),
		newRouteIssueCmd(opts),
		newEscalateCmd(opts),
		newHealthCheckCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// exitCode is 0 for success and for outcomes callers branch on.
func exitCode(err error) int {
	if err == nil || models.IsExpected(err) {
		return 0
	}
	return 1
}

func execute(ctx context.Context, args []string) int {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil && !opts.written {
		// Flag parsing and unknown commands fail before any subcommand runs.
		_ = opts.write(newResult(root.Name(), nil, err))
		return 2
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
