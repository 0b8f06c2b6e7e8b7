package tenant

import (
	"context"
	"errors"
)

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrDuplicateTaxID     = errors.New("tenant with this tax id already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrProvisioningFailed = errors.New("tenant provisioning failed")
)

// Repository defines the interface for the tenant registry, which lives
// in the shared partition.
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByTenantID(ctx context.Context, tenantID string) (*Tenant, error)
	GetByQRID(ctx context.Context, qrID string) (*Tenant, error)
	QRIDExists(ctx context.Context, qrID string) (bool, error)
	Update(ctx context.Context, tenant *Tenant) error
	SoftDelete(ctx context.Context, tenantID string) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}

// DirectoryRepository defines the interface for the cross-tenant user
// directory, keyed by email.
type DirectoryRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUUID(ctx context.Context, uuid string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
}

// SchemaManager creates and drops physical partitions.
type SchemaManager interface {
	CreateSchema(ctx context.Context, name string) error
	DropSchema(ctx context.Context, name string) error
}

// Migrator upgrades one partition to the current head revision. It is the
// migration-runner collaborator; the provisioner only hands it a schema
// name.
type Migrator interface {
	MigrateTenant(ctx context.Context, schema string) error
}
