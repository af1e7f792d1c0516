package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/auth"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
	orders map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}, hashes: map[int64]string{}, orders: map[int64]bool{}}
}

func (m *memoryRepo) add(username string, role shared.Role) User {
	m.nextID++
	u := User{ID: m.nextID, Username: username, Email: username + "@test.local", Role: role, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u
}

func (m *memoryRepo) CreateUser(_ context.Context, account auth.NewAccount) (auth.User, error) {
	for _, u := range m.users {
		if u.Username == account.Username || u.Email == account.Email {
			return auth.User{}, auth.ErrDuplicateAccount
		}
	}
	u := m.add(account.Username, account.Role)
	u.Email = account.Email
	m.users[u.ID] = u
	m.hashes[u.ID] = account.PasswordHash
	return auth.User{ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: account.PasswordHash, Role: u.Role}, nil
}

func (m *memoryRepo) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryRepo) SetRole(_ context.Context, id int64, role shared.Role) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Role = role
	m.users[id] = u
	return true, nil
}

func (m *memoryRepo) DeleteUser(_ context.Context, id int64) (bool, error) {
	if m.orders[id] {
		return false, ErrUserHasOrders
	}
	_, ok := m.users[id]
	delete(m.users, id)
	return ok, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo RepositoryPort) (*Service, *memoryAudit) {
	audit := &memoryAudit{}
	svc := NewService(repo, audit)
	svc.cost = bcrypt.MinCost
	return svc, audit
}

func TestDirectorySplitsStaffAndCustomers(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.add("root", shared.RoleAdmin)
	repo.add("stella", shared.RoleStaff)
	repo.add("carl", shared.RoleUser)
	svc, _ := newTestService(repo)

	dir, err := svc.Directory(context.Background(), shared.Actor{ID: admin.ID, Role: shared.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, dir.Staff, 2)
	require.Len(t, dir.Customers, 1)
	require.Equal(t, "carl", dir.Customers[0].Username)

	_, err = svc.Directory(context.Background(), shared.Actor{ID: 9, Role: shared.RoleStaff})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAddStaffHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.add("root", shared.RoleAdmin)
	svc, audit := newTestService(repo)
	actor := shared.Actor{ID: admin.ID, Role: shared.RoleAdmin}

	user, err := svc.AddStaff(context.Background(), actor, " stella ", "stella@test.local", "secret123")
	require.NoError(t, err)
	require.Equal(t, "stella", user.Username)
	require.Equal(t, shared.RoleStaff, user.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[user.ID]), []byte("secret123")))
	require.Len(t, audit.logs, 1)
	require.Equal(t, "user.create", audit.logs[0].Action)

	_, err = svc.AddStaff(context.Background(), actor, "stella", "other@test.local", "secret123")
	require.ErrorIs(t, err, auth.ErrDuplicateAccount)

	_, err = svc.AddStaff(context.Background(), actor, "bob", "bad-email", "secret123")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeRole(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.add("root", shared.RoleAdmin)
	carl := repo.add("carl", shared.RoleUser)
	svc, _ := newTestService(repo)
	actor := shared.Actor{ID: admin.ID, Role: shared.RoleAdmin}
	ctx := context.Background()

	require.NoError(t, svc.ChangeRole(ctx, actor, carl.ID, "staff"))
	require.Equal(t, shared.RoleStaff, repo.users[carl.ID].Role)

	require.ErrorIs(t, svc.ChangeRole(ctx, actor, carl.ID, "owner"), shared.ErrInvalidRole)
	require.ErrorIs(t, svc.ChangeRole(ctx, actor, admin.ID, "user"), ErrSelfDemote)
	require.ErrorIs(t, svc.ChangeRole(ctx, actor, 99, "user"), ErrUserNotFound)
	require.ErrorIs(t, svc.ChangeRole(ctx, shared.Actor{ID: carl.ID, Role: shared.RoleStaff}, admin.ID, "user"), shared.ErrForbidden)
}

func TestDeleteUser(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.add("root", shared.RoleAdmin)
	carl := repo.add("carl", shared.RoleUser)
	dora := repo.add("dora", shared.RoleUser)
	repo.orders[dora.ID] = true
	svc, _ := newTestService(repo)
	actor := shared.Actor{ID: admin.ID, Role: shared.RoleAdmin}
	ctx := context.Background()

	require.ErrorIs(t, svc.DeleteUser(ctx, actor, admin.ID), ErrSelfDelete)
	require.ErrorIs(t, svc.DeleteUser(ctx, actor, dora.ID), ErrUserHasOrders)
	require.NoError(t, svc.DeleteUser(ctx, actor, carl.ID))
	require.NotContains(t, repo.users, carl.ID)
	require.ErrorIs(t, svc.DeleteUser(ctx, actor, carl.ID), ErrUserNotFound)
}
