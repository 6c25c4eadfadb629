package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/shared"
)

// Service wraps role and grant business rules: vector validation before any
// write, uniqueness conflicts, and audit records for every mutation.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreateRole validates and persists a new role.
func (s *Service) CreateRole(ctx context.Context, name, externalGroupRef, permissions string) (Role, error) {
	name = strings.TrimSpace(name)
	externalGroupRef = strings.TrimSpace(externalGroupRef)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidArgument)
	}
	if externalGroupRef == "" {
		return Role{}, fmt.Errorf("%w: external group ref required", shared.ErrInvalidArgument)
	}
	vector, err := perm.ParseVector(permissions)
	if err != nil {
		return Role{}, err
	}

	role, err := s.repo.CreateRole(ctx, Role{
		ID:               uuid.NewString(),
		Name:             name,
		ExternalGroupRef: externalGroupRef,
		Permissions:      vector,
	})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.create", role.ID, map[string]any{
		"name":        role.Name,
		"group_ref":   role.ExternalGroupRef,
		"permissions": vector.Names(),
	})
	return role, nil
}

// UpdateRole overwrites an existing role after re-validating uniqueness
// against all other roles.
func (s *Service) UpdateRole(ctx context.Context, id, name, externalGroupRef, permissions string) (Role, error) {
	name = strings.TrimSpace(name)
	externalGroupRef = strings.TrimSpace(externalGroupRef)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidArgument)
	}
	if externalGroupRef == "" {
		return Role{}, fmt.Errorf("%w: external group ref required", shared.ErrInvalidArgument)
	}
	vector, err := perm.ParseVector(permissions)
	if err != nil {
		return Role{}, err
	}

	previous, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}

	role, err := s.repo.UpdateRole(ctx, Role{
		ID:               id,
		Name:             name,
		ExternalGroupRef: externalGroupRef,
		Permissions:      vector,
	})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.update", role.ID, map[string]any{
		"name":                 role.Name,
		"group_ref":            role.ExternalGroupRef,
		"previous_permissions": previous.Permissions.Names(),
		"permissions":          vector.Names(),
	})
	return role, nil
}

// DeleteRole removes a role and, through the cascade, all of its grants.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "role.delete", id, map[string]any{"name": role.Name, "group_ref": role.ExternalGroupRef})
	return nil
}

// GetRole fetches a single role.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Grant links a role to a principal.
func (s *Service) Grant(ctx context.Context, roleID, principalID string) (Grant, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return Grant{}, fmt.Errorf("%w: principal id required", shared.ErrInvalidArgument)
	}
	grant, err := s.repo.CreateGrant(ctx, Grant{
		ID:          uuid.NewString(),
		RoleID:      roleID,
		PrincipalID: principalID,
	})
	if err != nil {
		return Grant{}, err
	}
	s.record(ctx, "grant.create", grant.ID, map[string]any{"role_id": roleID, "principal_id": principalID})
	return grant, nil
}

// Revoke removes a (role, principal) grant.
func (s *Service) Revoke(ctx context.Context, roleID, principalID string) error {
	if err := s.repo.DeleteGrant(ctx, roleID, principalID); err != nil {
		return err
	}
	s.record(ctx, "grant.revoke", roleID, map[string]any{"role_id": roleID, "principal_id": principalID})
	return nil
}

// GrantsForRole lists the grants attached to a role.
func (s *Service) GrantsForRole(ctx context.Context, roleID string) ([]Grant, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.GrantsForRole(ctx, roleID)
}

// GrantsForPrincipal lists the roles granted to a principal.
func (s *Service) GrantsForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	return s.repo.RolesForPrincipal(ctx, principalID)
}

// record writes an audit entry. Audit failures are logged, never surfaced:
// the mutation already committed.
func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.PrincipalFromContext(ctx),
		Action:   action,
		Entity:   "rbac",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
