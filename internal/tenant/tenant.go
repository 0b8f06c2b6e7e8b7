package tenant

import (
	"time"
)

// Tenant represents one customer company with its own data partition.
// TenantID doubles as the physical schema name and as the resolution
// token carried in the tenant header.
type Tenant struct {
	TenantID  string     `json:"tenant_id"`
	Name      string     `json:"name"`
	ShortName string     `json:"short_name"`
	TaxID     string     `json:"tax_id"`
	Country   string     `json:"country,omitempty"`
	City      string     `json:"city,omitempty"`
	QRID      string     `json:"qr_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// User is an entry of the cross-tenant user directory, keyed by email and
// stored in the shared registry partition.
type User struct {
	UUID      string     `json:"uuid"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	TenantID  string     `json:"tenant_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
