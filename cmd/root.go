package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnolang/tsbump/bump"
	"github.com/gnolang/tsbump/formatter"
	"github.com/gnolang/tsbump/internal/engine"
)

const defaultTimeout = 10 * time.Minute

// options holds the flags shared by every command plus the per-run logger.
type options struct {
	cfgFile string
	timeout time.Duration
	verbose bool
	silent  bool
	tags    string
	pm      string

	from               string
	to                 string
	update             bool
	tag                bool
	write              bool
	errorOnDirty       bool
	errorOnUnreachable bool
	progress           bool

	logger   *zap.Logger
	bumpOpts []bump.Option
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd(bumpOpts ...bump.Option) *cobra.Command {
	o := &options{bumpOpts: bumpOpts}

	rootCmd := &cobra.Command{
		Use:   "tsbump [dir]",
		Short: "tsbump - compute the next semantic version of a TypeScript package",
		Long: `tsbump compares the public type surface of the checked-out branch with the
latest version tag, using the TypeScript compiler as the judge, and prints
the semantic version the package should be released as.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		TraverseChildren:  true, // Prioritize subcommands
		PersistentPreRunE: o.setup,
		RunE:              o.runBump,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&o.cfgFile, "config", "c", bump.DefaultConfigFile, "Path to the configuration file")
	pf.DurationVar(&o.timeout, "timeout", defaultTimeout, "Abort the run after this duration")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Log every step and explain the decision")
	pf.BoolVarP(&o.silent, "silent", "s", false, "Print nothing but the version")
	pf.StringVar(&o.tags, "tags", "", `Tag policy: "reachable" or "all" (overrides the configuration)`)
	pf.StringVar(&o.pm, "package-manager", "", `Force "npm", "yarn" or "pnpm" instead of detecting it from the lock file`)

	f := rootCmd.Flags()
	o.refFlags(rootCmd)
	f.BoolVar(&o.update, "update", false, "Write the computed version into package.json")
	f.BoolVar(&o.tag, "tag", false, "Create a git tag for the computed version")
	f.BoolVarP(&o.write, "write", "w", false, "Shorthand for --update --tag")
	f.BoolVar(&o.errorOnDirty, "error-on-dirty", false, "Fail if the working tree has uncommitted changes")
	f.BoolVar(&o.errorOnUnreachable, "error-on-unreachable", false, "Fail if --from is not an ancestor of --to")
	f.BoolVar(&o.progress, "progress", false, "Show a progress bar on stderr")

	rootCmd.AddCommand(newInitCmd(o))
	rootCmd.AddCommand(newTagsCmd(o))
	rootCmd.AddCommand(newWitnessCmd(o))
	return rootCmd
}

func (o *options) refFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.from, "from", "", "Previous reference (default: highest version tag)")
	cmd.Flags().StringVar(&o.to, "to", "", "Current reference (default: checked-out branch)")
}

func (o *options) setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	logger, err := newLogger(o.verbose, o.silent)
	if err != nil {
		return err
	}
	o.logger = logger.With(zap.String("run", uuid.NewString()))
	return nil
}

// newLogger writes console-encoded logs to stderr: warnings by default,
// everything when verbose, nothing when silent.
func newLogger(verbose, silent bool) (*zap.Logger, error) {
	if silent {
		return zap.NewNop(), nil
	}

	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.Encoding = "console"
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	config.DisableCaller = !verbose
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

// config loads the configuration file and applies the flags that override it.
func (o *options) config(cmd *cobra.Command) (bump.Config, error) {
	config, err := bump.LoadConfig(o.cfgFile)
	if err != nil {
		return config, fmt.Errorf("loading %s: %w", o.cfgFile, err)
	}
	if o.tags != "" {
		config.Tags = o.tags
	}
	if o.pm != "" {
		config.PackageManager = o.pm
	}
	if f := cmd.Flags().Lookup("error-on-dirty"); f != nil && f.Changed {
		config.ErrorOnDirty = o.errorOnDirty
	}
	if f := cmd.Flags().Lookup("error-on-unreachable"); f != nil && f.Changed {
		config.ErrorOnUnreachable = o.errorOnUnreachable
	}
	return config, nil
}

func (o *options) bumper(cmd *cobra.Command) (*bump.Bumper, error) {
	config, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	return bump.New(config, o.logger, o.bumpOpts...)
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func (o *options) runBump(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	b, err := o.bumper(cmd)
	if err != nil {
		return err
	}

	req := bump.Request{
		Dir:    dirArg(args),
		From:   o.from,
		To:     o.to,
		Update: o.update || o.write,
		Tag:    o.tag || o.write,
	}
	if o.progress && !o.silent {
		bar := newProgressBar(cmd.ErrOrStderr())
		req.OnStage = func(stage string) {
			bar.Describe(stage)
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}

	res, err := b.Run(ctx, req)
	if err != nil {
		return err
	}

	if o.verbose && !o.silent {
		fmt.Fprint(cmd.ErrOrStderr(), formatter.FormatResult(res))
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Version)
	return nil
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(len(engine.Stages),
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
