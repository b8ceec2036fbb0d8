// Package identity stores sender identities created from email-signature
// documents.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Signature string `json:"signature"`
}

// Store persists identities.
type Store interface {
	Create(ctx context.Context, name, email, signature string) (Identity, error)
}

type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("service", "identity")),
	}
}

func (s *PGStore) Create(ctx context.Context, name, email, signature string) (Identity, error) {
	if strings.TrimSpace(email) == "" {
		return Identity{}, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "My New Identity"
	}
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (id, name, email, signature) VALUES ($1, $2, $3, $4)`,
		id, name, email, signature)
	if err != nil {
		return Identity{}, fmt.Errorf("insert identity: %w", err)
	}
	s.logger.Info("identity created from signature", slog.String("email", email))
	return Identity{ID: id, Name: name, Email: email, Signature: signature}, nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	Items []Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, name, email, signature string) (Identity, error) {
	if strings.TrimSpace(email) == "" {
		return Identity{}, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "My New Identity"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := Identity{ID: uuid.NewString(), Name: name, Email: email, Signature: signature}
	s.Items = append(s.Items, item)
	return item, nil
}
