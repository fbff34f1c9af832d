// Package config loads process configuration from environment variables,
// after loading an optional local .env file. It does not read a YAML
// settings file from $IIP_CONFIG_DIR or $CTRL_IIP_DIR/etc/config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Environment name constants used in ENVIRONMENT config field.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config holds all configuration for the DMCS supervisor and its ops HTTP surface.
type Config struct {
	// Message bus
	BaseBrokerAddr string `conf:"default:localhost:5672,env:BASE_BROKER_ADDR"`
	BrokerVHost    string `conf:"default:/,env:BROKER_VHOST"`

	// Credentials — loaded from $HOME/.lsst/iip_cred.yaml, see LoadCredentials.
	CredentialFile string `conf:"default:iip_cred.yaml,env:CREDENTIAL_FILE"`
	ServiceUser    string `conf:"default:service_user,env:SERVICE_USER_ALIAS"`
	ServicePasswd  string `conf:"default:service_passwd,env:SERVICE_PASSWD_ALIAS"`

	// Redis-backed scoreboards
	RedisURL string `conf:"default:redis://localhost:6379,env:REDIS_URL"`

	// Device topology
	ArchiverForemanQueue string `conf:"default:ar_foreman_consume,env:AR_FOREMAN_QUEUE"`
	AuxtelForemanQueue   string `conf:"default:at_foreman_consume,env:AT_FOREMAN_QUEUE"`

	// Archive controller fallback
	ArchiveName     string `conf:"default:NCSA,env:ARCHIVE_NAME"`
	ArchiveLogin    string `conf:"default:lsstuser,env:ARCHIVE_LOGIN"`
	ArchiveIP       string `conf:"default:139.229.170.1,env:ARCHIVE_IP"`
	ArchiveXferRoot string `conf:"default:/archive/staging,env:ARCHIVE_XFER_ROOT"`
	UseArchiveCtrl  bool   `conf:"default:true,env:USE_ARCHIVE_CTRL"`

	// Application
	LogLevel    string `conf:"default:info,env:LOG_LEVEL"`
	Environment string `conf:"default:development,enum:development|testing|production,env:ENVIRONMENT"`

	// CORS for the ops HTTP surface — comma-separated list of allowed origins.
	CORSAllowedOrigins string `conf:"default:*,env:CORS_ALLOWED_ORIGINS"`

	// Observability
	ServiceName    string `conf:"default:dmcs,env:SERVICE_NAME"`
	ServiceVersion string `conf:"default:dev,env:SERVICE_VERSION"`
	OtelEndpoint   string `conf:"default:,env:OTEL_ENDPOINT"`
	SentryDSN      string `conf:"default:,env:SENTRY_DSN,noprint"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	_ = godotenv.Load()
	if _, err := conf.Parse("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// ValidateForProduction enforces security requirements when ENVIRONMENT=production.
// No-ops for non-production environments.
func ValidateForProduction(cfg *Config) error {
	if cfg.Environment != EnvProduction {
		return nil
	}

	var errs []string

	if cfg.ServiceUser == "" || cfg.ServicePasswd == "" {
		errs = append(errs, "SERVICE_USER_ALIAS and SERVICE_PASSWD_ALIAS must both be set")
	}

	if cfg.LogLevel == "debug" {
		errs = append(errs, "LOG_LEVEL must not be 'debug' in production (may leak sensitive data)")
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("production config validation failed: %s", strings.Join(errs, "; "))
}

// Credentials holds the rabbitmq_users alias → secret mapping loaded from the
// secure credential file.
type Credentials struct {
	Users map[string]string `yaml:"rabbitmq_users"`
}

// LoadCredentials enforces the directory/file permission contract before
// reading the YAML credential file: $HOME/.lsst must be mode 0700 and the
// credential file inside it must be mode 0600. Either violation is fatal —
// the process refuses to start rather than load an insecure credential file.
func LoadCredentials(filename string) (*Credentials, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("config: cannot determine home directory: %w", err)
	}

	dir := filepath.Join(home, ".lsst")
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config: credential directory %s: %w", dir, err)
	}
	if dirInfo.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("config: directory %s is unsecure; run chmod 700 %s", dir, dir)
	}

	path := filepath.Join(dir, filename)
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot find credentials file %s: %w", path, err)
	}
	if fileInfo.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("config: file %s is unsecure; run chmod 600 %s", path, path)
	}

	return readCredentials(path)
}

// BrokerURL builds an amqp:// connection string from the loaded credentials.
func (c *Credentials) BrokerURL(addr, userAlias, passAlias string) (string, error) {
	user, ok := c.Users[userAlias]
	if !ok {
		return "", fmt.Errorf("config: no credential alias %q", userAlias)
	}
	pass, ok := c.Users[passAlias]
	if !ok {
		return "", fmt.Errorf("config: no credential alias %q", passAlias)
	}
	return fmt.Sprintf("amqp://%s:%s@%s/", user, pass, addr), nil
}
