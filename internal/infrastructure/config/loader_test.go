package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

func newFlags(t *testing.T, dir string, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"--working-dir", dir}, args...)))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, dir)})

	require.NoError(t, err)
	assert.Equal(t, dir, cfg.WorkingDir)
	assert.Equal(t, application.FormatAuto, cfg.Format)
	assert.Equal(t, domain.NewThreshold(domain.MetricLines, 5000, 9000), cfg.Threshold)
	assert.True(t, cfg.Check)
	assert.True(t, cfg.Comment)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, "Coverage Report", cfg.StatusContext)
	assert.Equal(t, "Coverage Report", cfg.CommentContext)
	assert.Equal(t, application.CommentReplace, cfg.CommentMode)
	assert.Equal(t, application.ProviderAuto, cfg.Provider)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_ActionInputs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("INPUT_COVERAGE_PATH", "coverage/clover.xml")
	t.Setenv("INPUT_THRESHOLD_ALERT", "60")
	t.Setenv("INPUT_THRESHOLD_WARNING", "80.5")
	t.Setenv("INPUT_THRESHOLD_METRIC", "Branches")
	t.Setenv("INPUT_CHECK", "off")
	t.Setenv("INPUT_COMMENT", "sometimes")
	t.Setenv("INPUT_DRY_RUN", "yes")
	t.Setenv("INPUT_COMMENT_MODE", "update")
	t.Setenv("INPUT_GITHUB_TOKEN", "input-token")

	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, dir)})

	require.NoError(t, err)
	assert.Equal(t, "coverage/clover.xml", cfg.CoveragePath)
	assert.Equal(t, domain.NewThreshold(domain.MetricBranches, 6000, 8050), cfg.Threshold)
	assert.False(t, cfg.Check)
	assert.True(t, cfg.Comment, "unknown boolean keeps the default")
	assert.True(t, cfg.DryRun)
	assert.Equal(t, application.CommentUpdate, cfg.CommentMode)
	assert.Equal(t, "input-token", cfg.Credentials.GitHubToken)
}

func TestLoad_TokenFallsBackToEnvironment(t *testing.T) {
	t.Setenv("INPUT_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("BITBUCKET_USERNAME", "bb-user")

	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, t.TempDir())})

	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Credentials.GitHubToken)
	assert.Equal(t, "bb-user", cfg.Credentials.BitbucketUsername)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	content := "coverage_path: from-file.xml\nthreshold_alert: 70\nthreshold_warning: 85\ncomment_mode: insert\ncheck: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(content), 0o644))
	t.Setenv("INPUT_COMMENT_MODE", "update")

	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, dir, "--threshold-alert", "75")})

	require.NoError(t, err)
	assert.Equal(t, "from-file.xml", cfg.CoveragePath)
	assert.Equal(t, 7500, cfg.Threshold.Alert, "flag beats file")
	assert.Equal(t, 8500, cfg.Threshold.Warning, "file beats default")
	assert.Equal(t, application.CommentUpdate, cfg.CommentMode, "env beats file")
	assert.False(t, cfg.Check)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coverage_format: json-summary\n"), 0o644))

	cfg, err := Loader{}.Load(Options{ConfigFile: path, Flags: newFlags(t, t.TempDir())})

	require.NoError(t, err)
	assert.Equal(t, application.FormatJSONSummary, cfg.Format)

	_, err = Loader{}.Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_DeprecatedCloverFile(t *testing.T) {
	t.Setenv("INPUT_CLOVER_FILE", "coverage/clover.xml")

	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, t.TempDir())})

	require.NoError(t, err)
	assert.Equal(t, "coverage/clover.xml", cfg.CoveragePath)

	t.Setenv("INPUT_COVERAGE_PATH", "coverage/coverage-summary.json")
	cfg, err = Loader{}.Load(Options{Flags: newFlags(t, t.TempDir())})
	require.NoError(t, err)
	assert.Equal(t, "coverage/coverage-summary.json", cfg.CoveragePath)
}

func TestLoad_UnorderedThresholdIsKept(t *testing.T) {
	cfg, err := Loader{}.Load(Options{Flags: newFlags(t, t.TempDir(), "--threshold-alert", "90", "--threshold-warning", "50")})

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Threshold.Alert)
	assert.Equal(t, 5000, cfg.Threshold.Warning)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
		wantMsg string
	}{
		{"alert not a number", map[string]string{"INPUT_THRESHOLD_ALERT": "high"}, ErrInvalidOption, "threshold_alert"},
		{"warning out of range", map[string]string{"INPUT_THRESHOLD_WARNING": "101"}, ErrInvalidOption, "between 0 and 100"},
		{"alert negative", map[string]string{"INPUT_THRESHOLD_ALERT": "-1"}, ErrInvalidOption, "between 0 and 100"},
		{"metric", map[string]string{"INPUT_THRESHOLD_METRIC": "functions"}, domain.ErrInvalidMetricType, "statements, methods, lines, branches"},
		{"format", map[string]string{"INPUT_COVERAGE_FORMAT": "lcov"}, application.ErrInvalidFormat, "auto, clover, json-summary"},
		{"comment mode", map[string]string{"INPUT_COMMENT_MODE": "append"}, application.ErrInvalidCommentMode, "replace, update, insert"},
		{"provider", map[string]string{"INPUT_PROVIDER": "gitea"}, application.ErrInvalidProvider, "github"},
		{"log level", map[string]string{"INPUT_LOG_LEVEL": "trace"}, ErrInvalidOption, "debug, info, warn, error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Loader{}.Load(Options{Flags: newFlags(t, t.TempDir())})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := Default()
	cfg.CoveragePath = "coverage/clover.xml"
	cfg.Threshold = domain.NewThreshold(domain.MetricStatements, 6050, 8000)
	cfg.Credentials.GitHubToken = "secret"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cfg))

	out := buf.String()
	assert.Contains(t, out, "coverage_path: coverage/clover.xml")
	assert.Contains(t, out, "threshold_metric: statements")
	assert.Contains(t, out, "threshold_alert: 60.5")
	assert.NotContains(t, out, "secret")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), buf.Bytes(), 0o644))
	loaded, err := Loader{}.Load(Options{Flags: newFlags(t, dir)})
	require.NoError(t, err)
	assert.Equal(t, cfg.Threshold, loaded.Threshold)
	assert.Equal(t, cfg.CoveragePath, loaded.CoveragePath)
	assert.Equal(t, cfg.CommentMode, loaded.CommentMode)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)

	ok, err := Loader{}.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("check: true\n"), 0o644))
	ok, err = Loader{}.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COVERSTATUS_TEST_NEW=from-file\nCOVERSTATUS_TEST_SET=from-file\n"), 0o600))
	t.Setenv("COVERSTATUS_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("COVERSTATUS_TEST_NEW"))
	t.Setenv("COVERSTATUS_TEST_SET", "from-env")

	require.NoError(t, LoadDotEnv(dir))

	assert.Equal(t, "from-file", os.Getenv("COVERSTATUS_TEST_NEW"))
	assert.Equal(t, "from-env", os.Getenv("COVERSTATUS_TEST_SET"))
	assert.NoError(t, LoadDotEnv(t.TempDir()), "missing .env is ignored")
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)

	fs.VisitAll(func(f *pflag.Flag) {
		assert.True(t, isKey(strings.ReplaceAll(f.Name, "-", "_")), "flag %s has no config key", f.Name)
	})
}
