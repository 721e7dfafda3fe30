package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/adapters/kraken"
	"github.com/bnema/octoflex/internal/adapters/logging"
	tomlrepo "github.com/bnema/octoflex/internal/adapters/repo/toml"
	filestore "github.com/bnema/octoflex/internal/adapters/secrets/file"
	"github.com/bnema/octoflex/internal/application"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "OCTOFLEX"
	configFileEnv  = "OCTOFLEX_CONFIG"
	emailEnv       = "OCTOFLEX_EMAIL"
	passwordEnv    = "OCTOFLEX_PASSWORD"
	configFileName = "config.toml"
)

const (
	keySecretsDir        = "secrets.dir"
	keySecretsBackend    = "secrets.backend"
	keyAPIEndpoint       = "api.endpoint"
	keyAPITimeout        = "api.timeout"
	keyAPIRequestsHour   = "api.requests_per_hour"
	keyAPIRequestsBurst  = "api.requests_burst"
	keyPollInterval      = "poll.interval"
	keyPollReadings      = "poll.meter_readings"
	keyPollReadingsEvery = "poll.meter_readings_every"
	keyPollDispatches    = "poll.planned_dispatches"
	keyAuthMaxAttempts   = "auth.max_attempts"
	keyAuthBaseDelay     = "auth.base_delay"
	keyAuthMaxDelay      = "auth.max_delay"
	keyAuthRefreshEvery  = "auth.refresh_every"
	keyLogLevel          = "log.level"
	keyLogFormat         = "log.format"
	keyServeAddr         = "serve.addr"
	keyStatusStaleAfter  = "status.stale_after"
	defaultServeAddr     = "127.0.0.1:9184"
	defaultRefreshEvery  = 50 * time.Minute
	defaultStaleAfter    = 10 * time.Minute
	minimumPollInterval  = 30 * time.Second
	maximumLoginAttempts = 10
)

// Secret backends selectable with secrets.backend.
const (
	secretsBackendAuto = "auto"
	secretsBackendPass = "pass"
	secretsBackendFile = "file"
)

type config struct {
	SecretsDir     string
	SecretsBackend string

	Endpoint        string
	RequestTimeout  time.Duration
	RequestsPerHour int
	RequestsBurst   int

	PollInterval      time.Duration
	MeterReadings     bool
	ReadingsEvery     time.Duration
	PlannedDispatches bool

	LoginRetry   application.RetryPolicy
	RefreshEvery time.Duration

	Log        logging.Config
	ServeAddr  string
	StaleAfter time.Duration
}

// newViper reads ~/.config/octoflex/config.toml (or $OCTOFLEX_CONFIG) and
// OCTOFLEX_* overrides such as OCTOFLEX_POLL_INTERVAL.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := strings.TrimSpace(os.Getenv(configFileEnv))
	explicit := path != ""
	if !explicit {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".config", "octoflex", configFileName)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	defaultLogin := application.DefaultLoginRetryPolicy()

	v.SetDefault(tomlrepo.AccountsPathKey, "")
	v.SetDefault(keySecretsDir, "")
	v.SetDefault(keySecretsBackend, secretsBackendAuto)
	v.SetDefault(keyAPIEndpoint, kraken.DefaultEndpoint)
	v.SetDefault(keyAPITimeout, kraken.DefaultRequestTimeout)
	v.SetDefault(keyAPIRequestsHour, kraken.DefaultRequestsPerHour)
	v.SetDefault(keyAPIRequestsBurst, kraken.DefaultBurst)
	v.SetDefault(keyPollInterval, application.DefaultPollInterval)
	v.SetDefault(keyPollReadings, true)
	v.SetDefault(keyPollReadingsEvery, kraken.DefaultReadingsInterval)
	v.SetDefault(keyPollDispatches, true)
	v.SetDefault(keyAuthMaxAttempts, defaultLogin.MaxAttempts)
	v.SetDefault(keyAuthBaseDelay, defaultLogin.BaseDelay)
	v.SetDefault(keyAuthMaxDelay, defaultLogin.MaxDelay)
	v.SetDefault(keyAuthRefreshEvery, defaultRefreshEvery)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, logging.FormatConsole)
	v.SetDefault(keyServeAddr, defaultServeAddr)
	v.SetDefault(keyStatusStaleAfter, defaultStaleAfter)
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		SecretsDir:        strings.TrimSpace(v.GetString(keySecretsDir)),
		SecretsBackend:    strings.ToLower(strings.TrimSpace(v.GetString(keySecretsBackend))),
		Endpoint:          strings.TrimSpace(v.GetString(keyAPIEndpoint)),
		RequestTimeout:    v.GetDuration(keyAPITimeout),
		RequestsPerHour:   v.GetInt(keyAPIRequestsHour),
		RequestsBurst:     v.GetInt(keyAPIRequestsBurst),
		PollInterval:      v.GetDuration(keyPollInterval),
		MeterReadings:     v.GetBool(keyPollReadings),
		ReadingsEvery:     v.GetDuration(keyPollReadingsEvery),
		PlannedDispatches: v.GetBool(keyPollDispatches),
		LoginRetry: application.RetryPolicy{
			MaxAttempts: v.GetInt(keyAuthMaxAttempts),
			BaseDelay:   v.GetDuration(keyAuthBaseDelay),
			MaxDelay:    v.GetDuration(keyAuthMaxDelay),
		},
		RefreshEvery: v.GetDuration(keyAuthRefreshEvery),
		Log: logging.Config{
			Level:  v.GetString(keyLogLevel),
			Format: v.GetString(keyLogFormat),
		},
		ServeAddr:  strings.TrimSpace(v.GetString(keyServeAddr)),
		StaleAfter: v.GetDuration(keyStatusStaleAfter),
	}

	if cfg.SecretsDir == "" {
		root, err := filestore.DefaultRoot()
		if err != nil {
			return config{}, err
		}
		cfg.SecretsDir = root
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

// validate reports every invalid key at once.
func (c config) validate() error {
	var problems []error
	add := func(key, format string, args ...any) {
		problems = append(problems, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
	}

	switch c.SecretsBackend {
	case secretsBackendAuto, secretsBackendPass, secretsBackendFile:
	default:
		add(keySecretsBackend, "must be one of auto, pass or file, got %q", c.SecretsBackend)
	}
	if c.Endpoint == "" {
		add(keyAPIEndpoint, "must not be empty")
	}
	if c.RequestTimeout <= 0 {
		add(keyAPITimeout, "must be positive, got %s", c.RequestTimeout)
	}
	if c.RequestsPerHour <= 0 {
		add(keyAPIRequestsHour, "must be positive, got %d", c.RequestsPerHour)
	}
	if c.RequestsBurst <= 0 {
		add(keyAPIRequestsBurst, "must be positive, got %d", c.RequestsBurst)
	}
	if c.PollInterval < minimumPollInterval {
		add(keyPollInterval, "must be at least %s, got %s", minimumPollInterval, c.PollInterval)
	}
	if c.ReadingsEvery < 0 {
		add(keyPollReadingsEvery, "must not be negative, got %s", c.ReadingsEvery)
	}
	if c.LoginRetry.MaxAttempts < 1 || c.LoginRetry.MaxAttempts > maximumLoginAttempts {
		add(keyAuthMaxAttempts, "must be between 1 and %d, got %d", maximumLoginAttempts, c.LoginRetry.MaxAttempts)
	}
	if c.LoginRetry.BaseDelay < 0 {
		add(keyAuthBaseDelay, "must not be negative")
	}
	if c.LoginRetry.MaxDelay < c.LoginRetry.BaseDelay {
		add(keyAuthMaxDelay, "must not be below %s", keyAuthBaseDelay)
	}
	if c.RefreshEvery < 0 {
		add(keyAuthRefreshEvery, "must not be negative")
	}
	if c.ServeAddr == "" {
		add(keyServeAddr, "must not be empty")
	}
	if c.StaleAfter <= 0 {
		add(keyStatusStaleAfter, "must be positive, got %s", c.StaleAfter)
	}

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
}
