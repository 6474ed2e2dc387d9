package cli

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/catalog"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/config"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/runner"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Region      string
	EndpointURL string
	Profile     string
	DryRun      bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RunnerFactory builds the runner an operation command dispatches through.
type RunnerFactory func(ctx context.Context, opts *RootOptions, confirmer dispatch.Confirmer) (*runner.Runner, error)

// DefaultRunnerFactory loads the environment configuration, applies the
// global flags on top and builds a runner around confirmer.
func DefaultRunnerFactory(ctx context.Context, opts *RootOptions, confirmer dispatch.Confirmer) (*runner.Runner, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.New(loadOpts...)
	if err != nil {
		return nil, usageError("failed to load config", err)
	}
	if opts.EndpointURL != "" {
		cfg.AppPinpointEndpoint = opts.EndpointURL
	}
	if opts.DryRun {
		cfg.AppCallEnabled = false
	}

	r, err := runner.NewRunner(ctx, cfg, runner.WithConfirmer(confirmer))
	if err != nil {
		return nil, usageError("failed to init runner", err)
	}
	return r, nil
}

// NewRootCommand creates the root command with one subcommand per catalog
// operation. A nil factory uses DefaultRunnerFactory.
func NewRootCommand(factory RunnerFactory) *cobra.Command {
	if factory == nil {
		factory = DefaultRunnerFactory
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pinpoint",
		Short:         "Run Amazon Pinpoint operations",
		Long:          "Run Amazon Pinpoint operations with named or positional parameters, confirming mutating calls before they are sent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return usageError(fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			level := log.WarnLevel
			if opts.Verbose {
				level = log.DebugLevel
			}
			logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Level: level})
			slog.SetDefault(slog.New(logger))
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError("invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Region, "region", "", "AWS region, overrides the environment")
	cmd.PersistentFlags().StringVar(&opts.EndpointURL, "endpoint-url", "", "Pinpoint endpoint URL, overrides APP_PINPOINT_ENDPOINT_URL")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "shared config profile")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "log requests instead of sending them")

	descs, err := catalog.Descriptors()
	if err != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return usageError("failed to load operation catalog", err)
		}
		return cmd
	}

	cmd.AddCommand(NewOperationsCommand(opts, descs))
	for _, desc := range descs {
		cmd.AddCommand(NewOperationCommand(opts, desc, factory))
	}

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
