package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/klinika/klinika/internal/platform/auth"
	"github.com/klinika/klinika/pkg/domainerr"
)

// permissionCatalog is the full set of "module.action" permissions the routes
// check. Seeding upserts them so new permissions appear after a deploy without
// touching existing role grants.
var permissionCatalog = []string{
	"user.view", "user.create", "user.update", "user.delete",
	"role.view", "role.create", "role.update", "role.delete",
	"department.view", "department.create", "department.update", "department.delete",
	"service.view", "service.create", "service.update", "service.delete",
	"clinic.view", "clinic.update",
	"icd.view", "icd.import",
	"patient.view", "patient.create", "patient.update", "patient.delete",
	"queue.view", "queue.take", "queue.call", "queue.cancel", "queue.manage",
	"medical_record.view", "medical_record.create", "medical_record.update",
	"prescription.view", "prescription.create", "prescription.update", "prescription.dispense",
	"medicine.view", "medicine.create", "medicine.update", "medicine.delete",
	"stock.view", "stock.in", "stock.out",
	"supplier.view", "supplier.create", "supplier.update", "supplier.delete",
	"purchase.view", "purchase.create", "purchase.update", "purchase.approve", "purchase.receive",
	"billing.view", "billing.create", "billing.update", "billing.pay",
}

// Seed makes the database usable after migrations: the permission catalog,
// the super-admin role, and an initial admin account when none exists.
func (s *Service) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	for _, name := range permissionCatalog {
		if err := s.perms.Upsert(ctx, &Permission{Name: name}); err != nil {
			return err
		}
	}

	role, err := s.roles.GetByName(ctx, auth.SuperAdminRole)
	if errors.Is(err, domainerr.ErrNotFound) {
		desc := "full access to every module"
		role = &Role{Name: auth.SuperAdminRole, Description: &desc}
		if err := s.roles.Create(ctx, role); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = s.users.GetByEmail(ctx, adminEmail)
	if errors.Is(err, domainerr.ErrNotFound) {
		hash, err := auth.HashPassword(adminPassword)
		if err != nil {
			return err
		}
		admin := &User{
			Name:         "Administrator",
			Email:        adminEmail,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, admin); err != nil {
			return err
		}
		if err := s.users.AssignRoles(ctx, admin.ID, []uuid.UUID{role.ID}); err != nil {
			return err
		}
		log.Info().Str("email", adminEmail).Msg("seeded initial admin account")
		return nil
	}
	return err
}
