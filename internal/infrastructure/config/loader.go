// Package config resolves coverstatus configuration from flags, CI inputs,
// environment variables and the .coverstatus.yaml file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".coverstatus.yaml"

// Configuration keys. CI inputs are read from INPUT_<KEY>.
const (
	KeyGitHubToken          = "github_token"
	KeyGitLabToken          = "gitlab_token"
	KeyBitbucketUsername    = "bitbucket_username"
	KeyBitbucketAppPassword = "bitbucket_app_password"
	KeyCoveragePath         = "coverage_path"
	KeyCloverFile           = "clover_file"
	KeyCoverageFormat       = "coverage_format"
	KeyWorkingDir           = "working_dir"
	KeyThresholdAlert       = "threshold_alert"
	KeyThresholdWarning     = "threshold_warning"
	KeyThresholdMetric      = "threshold_metric"
	KeyCheck                = "check"
	KeyStatusContext        = "status_context"
	KeyComment              = "comment"
	KeyCommentContext       = "comment_context"
	KeyCommentMode          = "comment_mode"
	KeyProvider             = "provider"
	KeyAPIURL               = "api_url"
	KeyDryRun               = "dry_run"
	KeyLogLevel             = "log_level"
)

const (
	DefaultAlert         = 50.0
	DefaultWarning       = 90.0
	DefaultStatusContext = "Coverage Report"
	DefaultCommentLabel  = "Coverage Report"
)

var (
	// ErrInvalidOption is returned for values that cannot be parsed or are out of range.
	ErrInvalidOption = errors.New("invalid option")

	logLevels = []string{"debug", "info", "warn", "error"}
)

// Loader builds an application.Config.
type Loader struct {
	Logger *slog.Logger
}

// Options selects the inputs of a Load call.
type Options struct {
	// ConfigFile is an explicit config file. It must exist when set.
	ConfigFile string
	// Flags are bound by name with dashes mapped to underscores.
	Flags *pflag.FlagSet
}

type fileConfig struct {
	CoveragePath     string  `yaml:"coverage_path,omitempty"`
	CoverageFormat   string  `yaml:"coverage_format,omitempty"`
	WorkingDir       string  `yaml:"working_dir,omitempty"`
	ThresholdMetric  string  `yaml:"threshold_metric"`
	ThresholdAlert   float64 `yaml:"threshold_alert"`
	ThresholdWarning float64 `yaml:"threshold_warning"`
	Check            bool    `yaml:"check"`
	StatusContext    string  `yaml:"status_context"`
	Comment          bool    `yaml:"comment"`
	CommentContext   string  `yaml:"comment_context"`
	CommentMode      string  `yaml:"comment_mode"`
	Provider         string  `yaml:"provider,omitempty"`
	APIURL           string  `yaml:"api_url,omitempty"`
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("coverage-path", "", "Coverage report path or glob matching one file")
	fs.String("coverage-format", "", "Coverage format: auto, clover, json-summary")
	fs.String("working-dir", "", "Base directory for relative paths")
	fs.Float64("threshold-alert", DefaultAlert, "Percent below which coverage fails")
	fs.Float64("threshold-warning", DefaultWarning, "Percent below which coverage warns")
	fs.String("threshold-metric", "", "Metric compared against thresholds: statements, methods, lines, branches")
	fs.Bool("check", true, "Post a commit status")
	fs.String("status-context", "", "Commit status context")
	fs.Bool("comment", true, "Post a pull-request comment")
	fs.String("comment-context", "", "Comment header and heading label")
	fs.String("comment-mode", "", "Comment mode: replace, update, insert")
	fs.String("provider", "", "Git host: auto, github, gitlab, bitbucket")
	fs.String("api-url", "", "Host API base URL")
	fs.Bool("dry-run", false, "Render status and comment without posting")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
}

// LoadDotEnv loads dir/.env into the process environment. Variables that are
// already set win. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a config file exists at path.
func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Load resolves and validates the configuration.
// Precedence: changed flags, INPUT_* environment, config file, defaults.
func (l Loader) Load(opts Options) (application.Config, error) {
	v := newViper()

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return application.Config{}, bindErr
		}
	}

	if err := l.readConfigFile(v, opts.ConfigFile); err != nil {
		return application.Config{}, err
	}

	return l.build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault(KeyCoverageFormat, string(application.FormatAuto))
	v.SetDefault(KeyThresholdAlert, DefaultAlert)
	v.SetDefault(KeyThresholdWarning, DefaultWarning)
	v.SetDefault(KeyThresholdMetric, string(domain.MetricLines))
	v.SetDefault(KeyCheck, true)
	v.SetDefault(KeyStatusContext, DefaultStatusContext)
	v.SetDefault(KeyComment, true)
	v.SetDefault(KeyCommentContext, DefaultCommentLabel)
	v.SetDefault(KeyCommentMode, string(application.CommentReplace))
	v.SetDefault(KeyProvider, string(application.ProviderAuto))
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix("INPUT")
	v.AutomaticEnv()

	_ = v.BindEnv(KeyGitHubToken, "INPUT_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv(KeyGitLabToken, "INPUT_GITLAB_TOKEN", "GITLAB_TOKEN")
	_ = v.BindEnv(KeyBitbucketUsername, "INPUT_BITBUCKET_USERNAME", "BITBUCKET_USERNAME")
	_ = v.BindEnv(KeyBitbucketAppPassword, "INPUT_BITBUCKET_APP_PASSWORD", "BITBUCKET_APP_PASSWORD")
	return v
}

func (l Loader) readConfigFile(v *viper.Viper, explicit string) error {
	path := explicit
	if path == "" {
		path = filepath.Join(v.GetString(KeyWorkingDir), DefaultFile)
		ok, err := l.Exists(path)
		if err != nil {
			return fmt.Errorf("stat config file: %w", err)
		}
		if !ok {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	l.logger().Debug("loaded config file", "path", path)
	return nil
}

func (l Loader) build(v *viper.Viper) (application.Config, error) {
	var cfg application.Config

	cfg.CoveragePath = strings.TrimSpace(v.GetString(KeyCoveragePath))
	if cfg.CoveragePath == "" {
		if legacy := strings.TrimSpace(v.GetString(KeyCloverFile)); legacy != "" {
			l.logger().Warn("clover_file is deprecated, use coverage_path")
			cfg.CoveragePath = legacy
		}
	}

	var err error
	if cfg.Format, err = application.ParseFormat(v.GetString(KeyCoverageFormat)); err != nil {
		return cfg, err
	}
	if cfg.CommentMode, err = application.ParseCommentMode(v.GetString(KeyCommentMode)); err != nil {
		return cfg, err
	}
	if cfg.Provider, err = application.ParseProvider(v.GetString(KeyProvider)); err != nil {
		return cfg, err
	}

	metric, err := domain.ParseMetricType(v.GetString(KeyThresholdMetric))
	if err != nil {
		return cfg, err
	}
	alert, err := percentOption(v, KeyThresholdAlert, DefaultAlert)
	if err != nil {
		return cfg, err
	}
	warning, err := percentOption(v, KeyThresholdWarning, DefaultWarning)
	if err != nil {
		return cfg, err
	}
	cfg.Threshold = domain.NewThreshold(metric, domain.PercentToBips(alert), domain.PercentToBips(warning))
	if !cfg.Threshold.IsOrdered() {
		l.logger().Warn("threshold_alert is above threshold_warning", "threshold", cfg.Threshold.String())
	}

	cfg.WorkingDir = v.GetString(KeyWorkingDir)
	cfg.Check = application.ParseBool(v.GetString(KeyCheck), true)
	cfg.Comment = application.ParseBool(v.GetString(KeyComment), true)
	cfg.DryRun = application.ParseBool(v.GetString(KeyDryRun), false)
	cfg.StatusContext = stringOption(v, KeyStatusContext, DefaultStatusContext)
	cfg.CommentContext = stringOption(v, KeyCommentContext, DefaultCommentLabel)
	cfg.APIURL = strings.TrimSpace(v.GetString(KeyAPIURL))

	cfg.LogLevel = strings.ToLower(stringOption(v, KeyLogLevel, "info"))
	if !contains(logLevels, cfg.LogLevel) {
		return cfg, fmt.Errorf("%w log_level %q: supported values are %s", ErrInvalidOption, cfg.LogLevel, strings.Join(logLevels, ", "))
	}

	cfg.Credentials = application.Credentials{
		GitHubToken:          v.GetString(KeyGitHubToken),
		GitLabToken:          v.GetString(KeyGitLabToken),
		BitbucketUsername:    v.GetString(KeyBitbucketUsername),
		BitbucketAppPassword: v.GetString(KeyBitbucketAppPassword),
	}
	return cfg, nil
}

func percentOption(v *viper.Viper, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def, nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %s %q: not a number", ErrInvalidOption, key, raw)
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("%w %s %q: must be between 0 and 100", ErrInvalidOption, key, raw)
	}
	return p, nil
}

func stringOption(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

func isKey(key string) bool {
	switch key {
	case KeyGitHubToken, KeyGitLabToken, KeyBitbucketUsername, KeyBitbucketAppPassword,
		KeyCoveragePath, KeyCloverFile, KeyCoverageFormat, KeyWorkingDir,
		KeyThresholdAlert, KeyThresholdWarning, KeyThresholdMetric,
		KeyCheck, KeyStatusContext, KeyComment, KeyCommentContext, KeyCommentMode,
		KeyProvider, KeyAPIURL, KeyDryRun, KeyLogLevel:
		return true
	}
	return false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func (l Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

// Write encodes cfg as a .coverstatus.yaml document. Credentials are never written.
func Write(w io.Writer, cfg application.Config) error {
	out := fileConfig{
		CoveragePath:     cfg.CoveragePath,
		CoverageFormat:   string(cfg.Format),
		WorkingDir:       cfg.WorkingDir,
		ThresholdMetric:  string(cfg.Threshold.Metric),
		ThresholdAlert:   domain.BipsToPercent(cfg.Threshold.Alert),
		ThresholdWarning: domain.BipsToPercent(cfg.Threshold.Warning),
		Check:            cfg.Check,
		StatusContext:    cfg.StatusContext,
		Comment:          cfg.Comment,
		CommentContext:   cfg.CommentContext,
		CommentMode:      string(cfg.CommentMode),
		Provider:         string(cfg.Provider),
		APIURL:           cfg.APIURL,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(out)
}

// Default returns the configuration used when nothing is set.
func Default() application.Config {
	return application.Config{
		Format:         application.FormatAuto,
		Threshold:      domain.DefaultThreshold(),
		Check:          true,
		StatusContext:  DefaultStatusContext,
		Comment:        true,
		CommentContext: DefaultCommentLabel,
		CommentMode:    application.CommentReplace,
		Provider:       application.ProviderAuto,
		LogLevel:       "info",
	}
}
