package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Service resolves actors and their capabilities from the stored role.
type Service struct {
	store RoleStore
}

// NewService constructs a Service.
func NewService(store RoleStore) *Service {
	return &Service{store: store}
}

// ResolveActor loads the user's current role. Roles are never taken from the client.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (shared.Actor, error) {
	role, err := s.store.RoleOf(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{ID: userID, Role: role}, nil
}

// EffectivePermissions lists the capabilities granted to userID.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	actor, err := s.ResolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return actor.Role.Capabilities(), nil
}

// PGStore reads roles from the users table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// RoleOf implements RoleStore.
func (s *PGStore) RoleOf(ctx context.Context, userID int64) (shared.Role, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownUser
		}
		return "", shared.Persistence("rbac: role of", err)
	}
	return shared.ParseRole(raw)
}
