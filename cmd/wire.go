package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/adapters/kraken"
	"github.com/bnema/octoflex/internal/adapters/logging"
	"github.com/bnema/octoflex/internal/adapters/metrics"
	statusadapter "github.com/bnema/octoflex/internal/adapters/render/status"
	tomlrepo "github.com/bnema/octoflex/internal/adapters/repo/toml"
	chainstore "github.com/bnema/octoflex/internal/adapters/secrets/chain"
	filestore "github.com/bnema/octoflex/internal/adapters/secrets/file"
	passstore "github.com/bnema/octoflex/internal/adapters/secrets/pass"
	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"github.com/bnema/octoflex/internal/version"
	"go.uber.org/zap"
)

type app struct {
	cfg            config
	logger         *zap.Logger
	metrics        *metrics.Metrics
	service        *application.Service
	transport      ports.Transport
	statusRenderer func([]application.AccountOverview, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}

	secretStore, err := newSecretStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := kraken.NewClient(kraken.ClientConfig{
		Endpoint:        cfg.Endpoint,
		RequestTimeout:  cfg.RequestTimeout,
		RequestsPerHour: cfg.RequestsPerHour,
		Burst:           cfg.RequestsBurst,
		UserAgent:       "octoflex/" + version.Version,
		Logger:          logger.Named("kraken"),
	})
	if err != nil {
		return nil, fmt.Errorf("wire kraken client: %w", err)
	}

	return &app{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics.Default(),
		service:        application.NewService(repo, secretStore, ports.SystemClock{}),
		transport:      client,
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}, nil
}

func newSecretStore(cfg config, logger *zap.Logger) (ports.SecretStore, error) {
	switch cfg.SecretsBackend {
	case secretsBackendPass:
		return passstore.NewStore(), nil
	case secretsBackendFile:
		return filestore.NewStore(cfg.SecretsDir), nil
	default:
		store, err := chainstore.NewPassFirstWithFileFallback(cfg.SecretsDir, chainstore.WithLogger(logger.Named("secrets")))
		if err != nil {
			return nil, fmt.Errorf("wire secret store chain: %w", err)
		}
		return store, nil
	}
}

// envCredentials returns credentials from OCTOFLEX_EMAIL and
// OCTOFLEX_PASSWORD when both are set.
func envCredentials() (domain.Credentials, bool) {
	creds := domain.Credentials{
		Email:    strings.TrimSpace(os.Getenv(emailEnv)),
		Password: os.Getenv(passwordEnv),
	}

	return creds, !creds.Empty()
}

// login owns one token per Kraken user. Accounts reached with the same
// email share it.
type login struct {
	tokens  *application.TokenManager
	gateway *kraken.Gateway
}

func (a *app) newLogin(creds ports.CredentialSource) *login {
	auth := kraken.NewAuthenticator(a.transport, ports.SystemClock{})
	tokens := application.NewTokenManager(auth, creds, ports.SystemClock{},
		application.WithLoginRetryPolicy(a.cfg.LoginRetry),
		application.WithTokenLogger(a.logger.Named("token")),
		application.WithTokenMetrics(a.metrics),
	)
	executor := application.NewAuthenticatedExecutor(a.transport, tokens,
		application.WithExecutorLogger(a.logger.Named("executor")),
		application.WithExecutorMetrics(a.metrics),
	)
	gateway := kraken.NewGateway(executor,
		kraken.WithGatewayLogger(a.logger.Named("gateway")),
		kraken.WithMeterReadings(a.cfg.MeterReadings),
		kraken.WithMeterReadingsEvery(a.cfg.ReadingsEvery),
		kraken.WithPlannedDispatches(a.cfg.PlannedDispatches),
	)

	return &login{tokens: tokens, gateway: gateway}
}

// newRegistry builds one Session per selected account. An empty selection
// means every configured account.
func (a *app) newRegistry(ctx context.Context, selected ...domain.AccountNumber) (*application.Registry, error) {
	accounts, err := a.selectAccounts(ctx, selected)
	if err != nil {
		return nil, err
	}

	envCreds, useEnv := envCredentials()
	logins := make(map[string]*login)
	registry := application.NewRegistry()

	for _, account := range accounts {
		var source ports.CredentialSource = application.NewStoredCredentials(a.service, account.Number)
		loginKey := strings.ToLower(account.Email)
		if useEnv {
			source = application.NewStaticCredentials(envCreds)
			loginKey = strings.ToLower(envCreds.Email)
		}

		l, ok := logins[loginKey]
		if !ok {
			l = a.newLogin(source)
			logins[loginKey] = l
		}

		accountLogger := a.logger.With(logging.Account(account.Number))
		coordinator := application.NewCoordinator(account.Number, l.gateway, ports.SystemClock{}, a.cfg.PollInterval,
			application.WithCoordinatorLogger(accountLogger.Named("coordinator")),
			application.WithCoordinatorMetrics(a.metrics),
		)
		session := application.NewSession(l.tokens, coordinator, l.gateway, ports.SystemClock{},
			application.WithSessionLogger(accountLogger.Named("session")),
			application.WithSessionMetrics(a.metrics),
			application.WithTokenRefresh(a.cfg.RefreshEvery),
		)
		if err := registry.Add(session); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (a *app) selectAccounts(ctx context.Context, selected []domain.AccountNumber) ([]domain.Account, error) {
	if len(selected) == 0 {
		accounts, err := a.service.ListAccounts(ctx)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("%w: run 'octoflex account add' first", application.ErrNoAccounts)
		}
		return accounts, nil
	}

	accounts := make([]domain.Account, 0, len(selected))
	for _, number := range selected {
		account, err := a.service.GetAccount(ctx, number)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// refreshAll fetches every session once, in account order. Failures are
// joined so one broken account does not hide the others.
func refreshAll(ctx context.Context, registry *application.Registry) error {
	var errs []error
	for _, account := range registry.Accounts() {
		session, err := registry.Session(account)
		if err != nil {
			return err
		}
		if _, err := session.Refresh(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			errs = append(errs, fmt.Errorf("fetch %s: %w", account, err))
		}
	}

	return errors.Join(errs...)
}

// overviews skips accounts that have no snapshot yet.
func overviews(registry *application.Registry) []application.AccountOverview {
	accounts := registry.Accounts()
	result := make([]application.AccountOverview, 0, len(accounts))
	for _, account := range accounts {
		session, err := registry.Session(account)
		if err != nil {
			continue
		}
		overview, err := session.Overview()
		if err != nil {
			continue
		}
		result = append(result, overview)
	}

	return result
}
