package users

import (
	"context"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/auth"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	auth.AccountWriter
	ListUsers(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, id int64, role shared.Role) (bool, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

// AuditPort records account changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles staff management.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cost  int
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, cost: bcrypt.DefaultCost}
}

// Directory lists staff and customers separately.
func (s *Service) Directory(ctx context.Context, actor shared.Actor) (Directory, error) {
	if err := shared.Authorize(actor, shared.CapManageStaff); err != nil {
		return Directory{}, err
	}
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return Directory{}, err
	}
	dir := Directory{Staff: []User{}, Customers: []User{}}
	for _, u := range all {
		if u.Role == shared.RoleUser {
			dir.Customers = append(dir.Customers, u)
			continue
		}
		dir.Staff = append(dir.Staff, u)
	}
	return dir, nil
}

// AddStaff creates a staff account.
func (s *Service) AddStaff(ctx context.Context, actor shared.Actor, username, email, password string) (User, error) {
	if err := shared.Authorize(actor, shared.CapManageStaff); err != nil {
		return User{}, err
	}
	created, err := auth.CreateAccount(ctx, s.repo, username, email, password, shared.RoleStaff, s.cost)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", created.ID, map[string]any{"username": created.Username, "role": created.Role})
	return User{ID: created.ID, Username: created.Username, Email: created.Email, Role: created.Role, CreatedAt: created.CreatedAt}, nil
}

// ChangeRole assigns a new role to another user.
func (s *Service) ChangeRole(ctx context.Context, actor shared.Actor, userID int64, role string) error {
	if err := shared.Authorize(actor, shared.CapManageStaff); err != nil {
		return err
	}
	if userID <= 0 {
		return ErrInvalidUserID
	}
	parsed, err := shared.ParseRole(role)
	if err != nil {
		return err
	}
	if userID == actor.ID {
		return ErrSelfDemote
	}
	ok, err := s.repo.SetRole(ctx, userID, parsed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.record(ctx, actor, "user.role", userID, map[string]any{"role": parsed})
	return nil
}

// DeleteUser removes another user's account.
func (s *Service) DeleteUser(ctx context.Context, actor shared.Actor, userID int64) error {
	if err := shared.Authorize(actor, shared.CapManageStaff); err != nil {
		return err
	}
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if userID == actor.ID {
		return ErrSelfDelete
	}
	ok, err := s.repo.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.record(ctx, actor, "user.delete", userID, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "user", EntityID: strconv.FormatInt(userID, 10), Meta: meta})
}
