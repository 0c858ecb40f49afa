package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/autodetect"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/badge"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/comment"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/config"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/logging"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/parsers"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/report"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/resolver"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/watcher"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/wizard"
)

type Service interface {
	Publish(ctx context.Context, cfg application.Config) (application.PublishResult, error)
	Evaluate(ctx context.Context, cfg application.Config) (domain.Report, error)
	Report(ctx context.Context, cfg application.Config, output application.OutputFormat) (domain.Report, error)
	Check(ctx context.Context, cfg application.Config, output application.OutputFormat) error
	RenderComment(ctx context.Context, cfg application.Config) (string, error)
	Watch(ctx context.Context, cfg application.Config, output application.OutputFormat, watcher application.FileWatcher, callback application.WatchCallback) error
}

// ServiceFactory builds the service once the configuration is known.
type ServiceFactory func(cfg application.Config, stdout, stderr io.Writer) Service

var initWizard = wizard.Run

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	newService ServiceFactory
	actions    bool
}

func Run(args []string, stdout, stderr io.Writer, newService ServiceFactory) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	a := &app{
		stdout:     stdout,
		stderr:     stderr,
		newService: newService,
		actions:    os.Getenv("GITHUB_ACTIONS") == "true",
	}
	root := a.rootCommand()
	root.SetArgs(args[1:])

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return a.exitCode(ee.err, ee.code)
	}
	fmt.Fprintln(stderr, err)
	usage(stderr)
	return 2
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "coverstatus",
		Short:         "Publish coverage reports as commit statuses and pull-request comments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().String("config", "", "Config file path (default <working-dir>/"+config.DefaultFile+")")

	root.AddCommand(
		a.publishCommand(),
		a.checkCommand(),
		a.reportCommand(),
		a.commentCommand(),
		a.badgeCommand(),
		a.initCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) publishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Post the commit status and pull-request comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			res, err := a.newService(cfg, a.stdout, a.stderr).Publish(cmd.Context(), cfg)
			if err != nil {
				return fail(1, err)
			}
			if cfg.DryRun && res.CommentBody != "" {
				fmt.Fprintln(a.stdout)
				fmt.Fprintln(a.stdout, res.CommentBody)
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) checkCommand() *cobra.Command {
	output := application.OutputText
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the coverage summary and fail below the alert threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			err = a.newService(cfg, a.stdout, a.stderr).Check(cmd.Context(), cfg, output)
			if errors.Is(err, application.ErrCoverageTooLow) {
				return fail(1, err)
			}
			return fail(3, err)
		},
	}
	config.RegisterFlags(cmd.Flags())
	outputFlags(cmd.Flags(), &output)
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	output := application.OutputText
	var watch bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the coverage summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			svc := a.newService(cfg, a.stdout, a.stderr)
			if watch {
				return a.runWatch(cmd.Context(), svc, cfg, output)
			}
			_, err = svc.Report(cmd.Context(), cfg, output)
			return fail(3, err)
		},
	}
	config.RegisterFlags(cmd.Flags())
	outputFlags(cmd.Flags(), &output)
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-render the summary whenever the coverage file changes")
	return cmd
}

func (a *app) commentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Print the rendered pull-request comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			body, err := a.newService(cfg, a.stdout, a.stderr).RenderComment(cmd.Context(), cfg)
			if err != nil {
				return fail(3, err)
			}
			fmt.Fprintln(a.stdout, body)
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) badgeCommand() *cobra.Command {
	var output, label, style string
	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Write an SVG coverage badge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			rep, err := a.newService(cfg, a.stdout, a.stderr).Evaluate(cmd.Context(), cfg)
			if err != nil {
				return fail(3, err)
			}
			result := rep.Result()
			if err := writeBadgeFile(output, result, label, style); err != nil {
				return fail(3, err)
			}
			fmt.Fprintf(a.stdout, "Badge written to %s (%s)\n", output, domain.FormatPercent(result.Rate))
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&output, "output", "coverage.svg", "Output file path")
	cmd.Flags().StringVar(&label, "label", "coverage", "Badge label text")
	cmd.Flags().StringVar(&style, "style", "flat", "Badge style: flat|flat-square")
	return cmd
}

func (a *app) initCommand() *cobra.Command {
	var force, noInteractive bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Choose thresholds and write " + config.DefaultFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The target file of init may not exist yet.
			configFile, _ := cmd.Flags().GetString("config")
			if ok, _ := (config.Loader{}).Exists(configFile); !ok {
				configFile = ""
			}
			cfg, err := a.load(cmd, configFile)
			if err != nil {
				return fail(2, err)
			}
			if cfg.CoveragePath == "" {
				a.detectReport(&cfg)
			}
			if !noInteractive {
				var confirmed bool
				cfg, confirmed, err = initWizard(cfg, a.stdout, os.Stdin)
				if err != nil {
					return fail(5, err)
				}
				if !confirmed {
					fmt.Fprintln(a.stdout, "Init cancelled; no configuration written.")
					return nil
				}
			}
			path := configPath(cmd, cfg)
			if err := writeConfigFile(path, cfg, a.stdout, force); err != nil {
				return fail(2, err)
			}
			fmt.Fprintf(a.stdout, "Config written to %s\n", path)
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Skip the interactive init wizard")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return fail(2, err)
			}
			return fail(2, writeConfigFile("-", cfg, a.stdout, true))
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "coverstatus %s (commit %s, built %s)\n", Version, Commit, Date)
		},
	}
}

// detectReport fills in the coverage path from the project layout.
func (a *app) detectReport(cfg *application.Config) {
	root := cfg.WorkingDir
	if root == "" {
		root = "."
	}
	path, format, err := autodetect.Detector{}.Detect(root)
	if err != nil {
		fmt.Fprintln(a.stdout, "No coverage report found; set coverage_path in the config file.")
		return
	}
	cfg.CoveragePath = path
	fmt.Fprintf(a.stdout, "Detected %s report %s\n", format, path)
}

// loadConfig reads .env from the working directory and resolves the
// configuration against the command's flags.
func (a *app) loadConfig(cmd *cobra.Command) (application.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return a.load(cmd, configFile)
}

func (a *app) load(cmd *cobra.Command, configFile string) (application.Config, error) {
	flags := cmd.Flags()
	dir, _ := flags.GetString("working-dir")
	if dir == "" {
		dir = os.Getenv("INPUT_WORKING_DIR")
	}
	if err := config.LoadDotEnv(dir); err != nil {
		return application.Config{}, err
	}

	loader := config.Loader{Logger: logging.New(a.stderr, "warn", a.actions)}
	return loader.Load(config.Options{ConfigFile: configFile, Flags: flags})
}

func (a *app) exitCode(err error, code int) int {
	if err != nil && a.actions {
		logging.New(a.stderr, "error", true).Error(err.Error())
		return code
	}
	return exitCode(err, code, a.stderr)
}

// BuildService wires the production adapters.
func BuildService(cfg application.Config, stdout, stderr io.Writer) Service {
	return &application.Service{
		Parser:   parsers.NewRegistry(),
		Paths:    resolver.NewGlobResolver(),
		Renderer: comment.NewRenderer(),
		Reporter: report.Writer{},
		Hosts:    newHostFactory(os.Getenv),
		Getenv:   os.Getenv,
		Logger:   logging.New(stderr, cfg.LogLevel, os.Getenv("GITHUB_ACTIONS") == "true"),
		Out:      stdout,
	}
}

func outputFlags(fs *pflag.FlagSet, output *application.OutputFormat) {
	fs.VarP((*outputValue)(output), "output", "o", "Output format: text|json|brief")
}

type outputValue application.OutputFormat

func (o *outputValue) String() string { return string(*o) }

func (o *outputValue) Type() string { return "format" }

func (o *outputValue) Set(value string) error {
	switch value {
	case string(application.OutputText), string(application.OutputJSON), string(application.OutputBrief):
		*o = outputValue(value)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", value)
	}
}

func configPath(cmd *cobra.Command, cfg application.Config) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return filepath.Join(cfg.WorkingDir, config.DefaultFile)
}

func writeConfigFile(path string, cfg application.Config, stdout io.Writer, force bool) error {
	if path == "-" {
		return config.Write(stdout, cfg)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return config.Write(file, cfg)
}

func writeBadgeFile(path string, result domain.Result, label, style string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	badgeStyle := badge.StyleFlat
	if style == "flat-square" {
		badgeStyle = badge.StyleFlatSquare
	}

	return badge.Generate(file, badge.Options{
		Label: label,
		Rate:  result.Rate,
		Level: result.Level,
		Style: badgeStyle,
	})
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `coverstatus <command>

Commands:
  publish  Post the commit status and pull-request comment (CI mode)
  check    Print the summary and fail below the alert threshold
  report   Print the summary (use --watch to follow the file)
  comment  Print the rendered pull-request comment
  badge    Write an SVG coverage badge
  init     Choose thresholds and write .coverstatus.yaml
  config   Print the resolved configuration
  version  Print build information`)
}

func exitCode(err error, code int, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err)
	return code
}

func (a *app) runWatch(ctx context.Context, svc Service, cfg application.Config, output application.OutputFormat) error {
	w, err := watcher.New(watcher.WithDebounce(500 * time.Millisecond))
	if err != nil {
		return fail(3, fmt.Errorf("failed to create watcher: %w", err))
	}
	defer w.Close()

	// Handle Ctrl+C gracefully
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(a.stdout, "\nStopping watch mode...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(a.stdout, "Watching the coverage file for changes... (Ctrl+C to stop)")

	callback := func(runNumber int, runErr error) {
		fmt.Fprintf(a.stdout, "\n--- Run #%d at %s ---\n", runNumber, time.Now().Format("15:04:05"))
		if runErr != nil {
			fmt.Fprintf(a.stderr, "Coverage report failed: %v\n", runErr)
		}
	}

	if err := svc.Watch(ctx, cfg, output, w, callback); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fail(3, fmt.Errorf("watch error: %w", err))
	}
	return nil
}
