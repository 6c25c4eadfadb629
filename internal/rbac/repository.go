package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/platform/db"
	"github.com/forge-club/forge/internal/shared"
)

// Repository defines persistence operations for roles and grants.
type Repository interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	CreateGrant(ctx context.Context, grant Grant) (Grant, error)
	DeleteGrant(ctx context.Context, roleID, principalID string) error
	GrantsForRole(ctx context.Context, roleID string) ([]Grant, error)
	RolesForPrincipal(ctx context.Context, principalID string) ([]Role, error)
}

// PGRepository implements Repository using PostgreSQL. Uniqueness of role
// name, external group ref, and the (role, principal) grant pair is enforced
// by database constraints; violations surface as shared.ErrConflict so
// concurrent creators race safely.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, external_group_ref, permissions, created_at, updated_at`

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, external_group_ref, permissions) VALUES ($1, $2, $3, $4) RETURNING `+roleColumns,
		role.ID, role.Name, role.ExternalGroupRef, string(role.Permissions))
	created, err := scanRole(row)
	if err != nil {
		return Role{}, translatePGError("rbac: create role", err)
	}
	return created, nil
}

// UpdateRole overwrites name, external group ref, and permissions in place.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, external_group_ref = $3, permissions = $4, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.ExternalGroupRef, string(role.Permissions))
	updated, err := scanRole(row)
	if err != nil {
		return Role{}, translatePGError("rbac: update role", err)
	}
	return updated, nil
}

// DeleteRole removes a role and its grants in one transaction, so a
// half-deleted role can never keep granting permissions.
func (r *PGRepository) DeleteRole(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_grants WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("rbac: delete role grants: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("rbac: delete role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		return Role{}, translatePGError("rbac: get role", err)
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// CreateGrant links a role to a principal.
func (r *PGRepository) CreateGrant(ctx context.Context, grant Grant) (Grant, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO role_grants (id, role_id, principal_id) VALUES ($1, $2, $3) RETURNING id, role_id, principal_id, created_at`,
		grant.ID, grant.RoleID, grant.PrincipalID)
	var created Grant
	if err := row.Scan(&created.ID, &created.RoleID, &created.PrincipalID, &created.CreatedAt); err != nil {
		return Grant{}, translatePGError("rbac: create grant", err)
	}
	return created, nil
}

// DeleteGrant revokes a (role, principal) pair.
func (r *PGRepository) DeleteGrant(ctx context.Context, roleID, principalID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_grants WHERE role_id = $1 AND principal_id = $2`, roleID, principalID)
	if err != nil {
		return fmt.Errorf("rbac: delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GrantsForRole lists the grants attached to one role.
func (r *PGRepository) GrantsForRole(ctx context.Context, roleID string) ([]Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, principal_id, created_at FROM role_grants WHERE role_id = $1 ORDER BY created_at`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: grants for role: %w", err)
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.ID, &grant.RoleID, &grant.PrincipalID, &grant.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// RolesForPrincipal returns every role granted to the principal.
func (r *PGRepository) RolesForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.external_group_ref, r.permissions, r.created_at, r.updated_at
		 FROM roles r
		 JOIN role_grants g ON g.role_id = r.id
		 WHERE g.principal_id = $1`, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles for principal: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var permissions string
	if err := row.Scan(&role.ID, &role.Name, &role.ExternalGroupRef, &permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Permissions = perm.Vector(permissions)
	return role, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		var permissions string
		if err := rows.Scan(&role.ID, &role.Name, &role.ExternalGroupRef, &permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = perm.Vector(permissions)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// translatePGError maps storage errors to the domain taxonomy so callers
// never see raw pgx errors.
func translatePGError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrConflict
		case "23503":
			return shared.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
