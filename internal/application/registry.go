package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/octoflex/internal/domain"
)

var ErrNoAccounts = errors.New("no accounts configured")

// Registry holds one Session per account for long running processes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.AccountNumber]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.AccountNumber]*Session)}
}

func (r *Registry) Add(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.Account()]; ok {
		return fmt.Errorf("session for %s already registered", session.Account())
	}
	r.sessions[session.Account()] = session

	return nil
}

func (r *Registry) Session(account domain.AccountNumber) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account)
	}

	return session, nil
}

func (r *Registry) LatestSnapshot(account domain.AccountNumber) (*domain.Snapshot, error) {
	session, err := r.Session(account)
	if err != nil {
		return nil, err
	}

	return session.LatestSnapshot()
}

func (r *Registry) Accounts() []domain.AccountNumber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]domain.AccountNumber, 0, len(r.sessions))
	for account := range r.sessions {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	return accounts
}

func (r *Registry) StartAll(ctx context.Context) error {
	accounts := r.Accounts()
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	var started []*Session
	for _, account := range accounts {
		session, _ := r.Session(account)
		if err := session.Start(ctx); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return fmt.Errorf("start session %s: %w", account, err)
		}
		started = append(started, session)
	}

	return nil
}

func (r *Registry) StopAll() {
	for _, account := range r.Accounts() {
		if session, err := r.Session(account); err == nil {
			session.Stop()
		}
	}
}

