package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range ReleaseOptions {
		v.SetDefault(o.Key, o.Default)
	}

	for _, o := range ApplyOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fluxstrap/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("FLUXSTRAP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers one flag per option on fs and binds it to the
// option's viper key. Each option must be bound exactly once; options
// shared by several commands belong on a persistent flag set.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) FluxVersion() string {
	return strings.TrimSpace(c.v.GetString(keyFluxVersion)) // FLUXSTRAP_FLUX_VERSION
}

func (c *Config) FluxReleaseAPIURL() string {
	return c.v.GetString(keyFluxReleaseAPIURL) // FLUXSTRAP_FLUX_RELEASE_API_URL
}

func (c *Config) FluxDownloadURL() string {
	return c.v.GetString(keyFluxDownloadURL) // FLUXSTRAP_FLUX_DOWNLOAD_URL
}

func (c *Config) FluxArtifact() string {
	return c.v.GetString(keyFluxArtifact) // FLUXSTRAP_FLUX_ARTIFACT
}

func (c *Config) FluxUserAgent() string {
	return c.v.GetString(keyFluxUserAgent) // FLUXSTRAP_FLUX_USER_AGENT
}

func (c *Config) RepoURL() string {
	return c.v.GetString(keyRepoURL) // FLUXSTRAP_REPO_URL
}

func (c *Config) RepoBranch() string {
	return c.v.GetString(keyRepoBranch) // FLUXSTRAP_REPO_BRANCH
}

func (c *Config) RepoPath() string {
	return c.v.GetString(keyRepoPath) // FLUXSTRAP_REPO_PATH
}

func (c *Config) RepoSecret() string {
	return c.v.GetString(keyRepoSecret) // FLUXSTRAP_REPO_SECRET
}

func (c *Config) RepoInterval() time.Duration {
	return c.v.GetDuration(keyRepoInterval) // FLUXSTRAP_REPO_INTERVAL
}

func (c *Config) SyncName() string {
	return c.v.GetString(keySyncName) // FLUXSTRAP_SYNC_NAME
}

func (c *Config) SyncNamespace() string {
	return c.v.GetString(keySyncNamespace) // FLUXSTRAP_SYNC_NAMESPACE
}

func (c *Config) CompanionEnabled() bool {
	return c.v.GetBool(keyCompanionEnabled) // FLUXSTRAP_COMPANION_ENABLED
}

func (c *Config) CompanionCRDsURL() string {
	return c.v.GetString(keyCompanionCRDsURL) // FLUXSTRAP_COMPANION_CRDS_URL
}

func (c *Config) CompanionNamespace() string {
	return c.v.GetString(keyCompanionNamespace) // FLUXSTRAP_COMPANION_NAMESPACE
}

func (c *Config) KubeConfig() string {
	return c.v.GetString(keyKubeConfig) // FLUXSTRAP_KUBE_CONFIG
}

func (c *Config) ApplyFieldManager() string {
	return c.v.GetString(keyApplyFieldManager) // FLUXSTRAP_APPLY_FIELD_MANAGER
}

func (c *Config) ApplyMaxRequestBytes() int {
	return c.v.GetInt(keyApplyMaxRequestSize) // FLUXSTRAP_APPLY_MAX_REQUEST_BYTES
}

func (c *Config) ApplyCRDTimeout() time.Duration {
	return c.v.GetDuration(keyApplyCRDTimeout) // FLUXSTRAP_APPLY_CRD_TIMEOUT
}

func (c *Config) MetricsAddress() string {
	return c.v.GetString(keyMetricsAddress) // FLUXSTRAP_METRICS_ADDRESS
}

// LogLevel parses the configured level, falling back to info for
// unknown values.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.v.GetString(keyLogLevel))); err != nil { // FLUXSTRAP_LOG_LEVEL
		return slog.LevelInfo
	}
	return level
}
