// Package chain tries pass first and falls back to the file store.
package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/octoflex/internal/adapters/secrets/file"
	passstore "github.com/bnema/octoflex/internal/adapters/secrets/pass"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
)

type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
	logger   *zap.Logger
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(primary ports.SecretStore, fallback ports.SecretStore, opts ...Option) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	store := &Store{primary: primary, fallback: fallback, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

func NewPassFirstWithFileFallback(fileRoot string, opts ...Option) (*Store, error) {
	return NewStore(passstore.NewStore(), filestore.NewStore(fileRoot), opts...)
}

func (s *Store) Put(ctx context.Context, ref string, value string) error {
	err := s.primary.Put(ctx, ref, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}
	s.logger.Debug("primary secret store put failed, using fallback", zap.String("ref", ref), zap.Error(err))

	fallbackErr := s.fallback.Put(ctx, ref, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, ref string) (string, error) {
	value, err := s.primary.Get(ctx, ref)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}
	s.logger.Debug("primary secret store get failed, using fallback", zap.String("ref", ref), zap.Error(err))

	fallbackValue, fallbackErr := s.fallback.Get(ctx, ref)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	// Both backends answering "missing" is a plain not found.
	if errors.Is(err, domain.ErrSecretNotFound) && errors.Is(fallbackErr, domain.ErrSecretNotFound) {
		return "", fmt.Errorf("secret %q: %w", ref, domain.ErrSecretNotFound)
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Delete removes the secret from both backends so a ref written to the
// fallback while pass was down does not survive account removal.
func (s *Store) Delete(ctx context.Context, ref string) error {
	err := s.primary.Delete(ctx, ref)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx, ref)
	switch {
	case err == nil || fallbackErr == nil:
		if err != nil {
			s.logger.Debug("primary secret store delete failed", zap.String("ref", ref), zap.Error(err))
		}
		return nil
	default:
		return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
	}
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
