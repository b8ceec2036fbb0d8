// Package trust tracks which sender addresses the user has explicitly
// allowed to render structured content by default.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lookup answers whether an address is a trusted sender.
type Lookup interface {
	IsTrusted(ctx context.Context, address string) (bool, error)
}

// Store additionally records new trusted senders.
type Store interface {
	Lookup
	MarkTrusted(ctx context.Context, address string) error
}

// PGStore keeps trusted senders in the trusted_senders table.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("service", "trust")),
	}
}

func (s *PGStore) IsTrusted(ctx context.Context, address string) (bool, error) {
	address = normalize(address)
	if address == "" {
		return false, nil
	}
	var found string
	err := s.pool.QueryRow(ctx,
		`SELECT address FROM trusted_senders WHERE address = $1`, address).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query trusted sender: %w", err)
	}
	return true, nil
}

func (s *PGStore) MarkTrusted(ctx context.Context, address string) error {
	address = normalize(address)
	if address == "" {
		return fmt.Errorf("address is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trusted_senders (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
		address)
	if err != nil {
		return fmt.Errorf("insert trusted sender: %w", err)
	}
	s.logger.Info("sender marked trusted", slog.String("address", address))
	return nil
}

// MemoryStore is an in-process Store for tests and storeless deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	addresses map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{addresses: make(map[string]struct{})}
}

func (s *MemoryStore) IsTrusted(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.addresses[normalize(address)]
	return ok, nil
}

func (s *MemoryStore) MarkTrusted(_ context.Context, address string) error {
	address = normalize(address)
	if address == "" {
		return fmt.Errorf("address is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[address] = struct{}{}
	return nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
