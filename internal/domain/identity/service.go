package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/klinika/klinika/internal/platform/auth"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// ErrInvalidCredentials is returned on bad email/password and maps to 401.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service implements authentication, user management, and role/permission
// administration.
type Service struct {
	users  UserRepository
	roles  RoleRepository
	perms  PermissionRepository
	issuer *auth.TokenIssuer
}

func NewService(users UserRepository, roles RoleRepository, perms PermissionRepository, issuer *auth.TokenIssuer) *Service {
	return &Service{users: users, roles: roles, perms: perms, issuer: issuer}
}

// Login verifies credentials and issues a fresh token. The new token id is
// stored as the user's active token, which invalidates every previously
// issued token for that user.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	v := validation.New().
		Required("email", email).
		Email("email", email).
		Required("password", password)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == domainerr.ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, domainerr.New("account is disabled")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	roles, err := s.users.RolesOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
	}

	perms, err := s.users.PermissionsOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	token, tokenID, err := s.issuer.Issue(u.ID, roleNames, perms)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActiveToken(ctx, u.ID, &tokenID); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Msg("user logged in")

	u.Roles = roles
	return &LoginResult{Token: token, User: u}, nil
}

// Logout clears the user's active token so the presented token (and any
// other outstanding one) stops authenticating.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.users.SetActiveToken(ctx, userID, nil)
}

// IsActiveToken implements auth.ActiveTokenChecker.
func (s *Service) IsActiveToken(ctx context.Context, userID, tokenID uuid.UUID) (bool, error) {
	active, err := s.users.GetActiveToken(ctx, userID)
	if err != nil {
		if err == domainerr.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return active != nil && *active == tokenID, nil
}

// Me returns the authenticated user's profile with roles attached.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.GetUser(ctx, userID)
}

type CreateUserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	IsActive *bool       `json:"is_active"`
	RoleIDs  []uuid.UUID `json:"role_ids"`
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("email", in.Email).Email("email", in.Email).
		Required("password", in.Password).MinLen("password", in.Password, 8)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, domainerr.New("email is already registered")
	} else if err != domainerr.ErrNotFound {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if len(in.RoleIDs) > 0 {
		if err := s.users.AssignRoles(ctx, u.ID, in.RoleIDs); err != nil {
			return nil, err
		}
	}

	return s.GetUser(ctx, u.ID)
}

type UpdateUserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	IsActive *bool       `json:"is_active"`
	RoleIDs  []uuid.UUID `json:"role_ids"`
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("email", in.Email).Email("email", in.Email).
		MinLen("password", in.Password, 8)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if in.Email != u.Email {
		if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
			return nil, domainerr.New("email is already registered")
		} else if err != domainerr.ErrNotFound {
			return nil, err
		}
	}

	u.Name = in.Name
	u.Email = in.Email
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		// Password change invalidates the current session.
		u.ActiveTokenID = nil
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if in.RoleIDs != nil {
		if err := s.users.AssignRoles(ctx, id, in.RoleIDs); err != nil {
			return nil, err
		}
	}

	return s.GetUser(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.users.RolesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, search string, limit, offset int) ([]*User, int, error) {
	users, total, err := s.users.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, u := range users {
		roles, err := s.users.RolesOf(ctx, u.ID)
		if err != nil {
			return nil, 0, err
		}
		u.Roles = roles
	}
	return users, total, nil
}

type RoleInput struct {
	Name          string      `json:"name"`
	Description   *string     `json:"description"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func (s *Service) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	v := validation.New().Required("name", in.Name).MaxLen("name", in.Name, 100)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if _, err := s.roles.GetByName(ctx, in.Name); err == nil {
		return nil, domainerr.New("role name is already taken")
	} else if err != domainerr.ErrNotFound {
		return nil, err
	}

	r := &Role{ID: uuid.New(), Name: in.Name, Description: in.Description}
	if err := s.roles.Create(ctx, r); err != nil {
		return nil, err
	}
	if len(in.PermissionIDs) > 0 {
		if err := s.roles.SetPermissions(ctx, r.ID, in.PermissionIDs); err != nil {
			return nil, err
		}
	}
	return s.GetRole(ctx, r.ID)
}

func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, in RoleInput) (*Role, error) {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Name == auth.SuperAdminRole && in.Name != auth.SuperAdminRole {
		return nil, domainerr.New("the super-admin role cannot be renamed")
	}

	v := validation.New().Required("name", in.Name).MaxLen("name", in.Name, 100)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if in.Name != r.Name {
		if _, err := s.roles.GetByName(ctx, in.Name); err == nil {
			return nil, domainerr.New("role name is already taken")
		} else if err != domainerr.ErrNotFound {
			return nil, err
		}
	}

	r.Name = in.Name
	r.Description = in.Description
	if err := s.roles.Update(ctx, r); err != nil {
		return nil, err
	}
	if in.PermissionIDs != nil {
		if err := s.roles.SetPermissions(ctx, id, in.PermissionIDs); err != nil {
			return nil, err
		}
	}
	return s.GetRole(ctx, id)
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.roles.PermissionsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return r, nil
}

func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.Name == auth.SuperAdminRole {
		return domainerr.New("the super-admin role cannot be deleted")
	}
	return s.roles.Delete(ctx, id)
}

func (s *Service) ListRoles(ctx context.Context, limit, offset int) ([]*Role, int, error) {
	roles, total, err := s.roles.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, r := range roles {
		perms, err := s.roles.PermissionsOf(ctx, r.ID)
		if err != nil {
			return nil, 0, err
		}
		r.Permissions = perms
	}
	return roles, total, nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.perms.List(ctx)
}
