package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*User, int, error)
	SetActiveToken(ctx context.Context, userID uuid.UUID, tokenID *uuid.UUID) error
	GetActiveToken(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	// Role assignment
	RolesOf(ctx context.Context, userID uuid.UUID) ([]Role, error)
	AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	PermissionsOf(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Role, int, error)
	PermissionsOf(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
	SetPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
}

type PermissionRepository interface {
	Upsert(ctx context.Context, p *Permission) error
	List(ctx context.Context) ([]*Permission, error)
	GetByNames(ctx context.Context, names []string) ([]Permission, error)
}
