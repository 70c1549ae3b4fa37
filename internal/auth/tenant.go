package auth

import (
	"context"
	"errors"
	"fmt"

	equipment "shipboard-health/internal/equipment/domain"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// EquipmentTenantChecker validates equipment tenant ownership.
type EquipmentTenantChecker interface {
	EnsureEquipmentTenant(ctx context.Context, tenantID, equipmentID string) error
}

// EquipmentGetter loads equipment by id.
type EquipmentGetter interface {
	Get(ctx context.Context, id string) (*equipment.Equipment, error)
}

// EquipmentChecker checks equipment ownership against the equipment registry.
type EquipmentChecker struct {
	repo EquipmentGetter
}

// NewEquipmentChecker constructs an EquipmentChecker.
func NewEquipmentChecker(repo EquipmentGetter) *EquipmentChecker {
	if repo == nil {
		return nil
	}
	return &EquipmentChecker{repo: repo}
}

// EnsureEquipmentTenant verifies equipment belongs to tenant and, when the
// caller identity is scoped to vessels, sits on one of them.
func (c *EquipmentChecker) EnsureEquipmentTenant(ctx context.Context, tenantID, equipmentID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || equipmentID == "" {
		return nil
	}
	item, err := c.repo.Get(ctx, equipmentID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}
	if item.TenantID != tenantID {
		return ErrTenantMismatch
	}
	if identity, ok := IdentityFromContext(ctx); ok && !identity.AllowsVessel(item.VesselID) {
		return fmt.Errorf("%w: vessel %s outside caller scope", ErrTenantMismatch, item.VesselID)
	}
	return nil
}
