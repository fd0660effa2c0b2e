// Package config defines service configuration structures and loading hooks.
package config

import (
	"github.com/okian/arena/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver picks the persistence backend: sqlite, postgres or memory.
	StoreDriver string `koanf:"store_driver" validate:"oneof=sqlite postgres memory"`

	// DatabaseDSN is the sqlite file or postgres connection string.
	DatabaseDSN string `koanf:"database_dsn" validate:"required_unless=StoreDriver memory"`

	// DBMaxOpenConns caps the SQL connection pool. Zero keeps the driver default.
	DBMaxOpenConns int `koanf:"db_max_open_conns" validate:"gte=0"`

	// TenantScoping restricts leaderboards to the viewer's organization.
	TenantScoping bool `koanf:"tenant_scoping"`

	// JWTSecret verifies session tokens. Leaderboards answer 401 without it.
	JWTSecret string `koanf:"jwt_secret"`

	// MaxBodyBytes caps webhook bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gt=0"`

	// WebhookSecrets maps a source system to its shared secret.
	WebhookSecrets map[string]string `koanf:"webhook_secrets" validate:"dive,keys,source,endkeys"`

	// WebhookTenants maps a source system to the organization it ingests under.
	WebhookTenants map[string]string `koanf:"webhook_tenants" validate:"dive,keys,source,endkeys"`

	// Users are upserted into the store at startup.
	Users []User `koanf:"users" validate:"dive"`
}

// User is a seeded account mapped to a CRM identity.
type User struct {
	ID             string `koanf:"id"`
	Name           string `koanf:"name" validate:"required"`
	Role           string `koanf:"role" validate:"oneof=sales_rep service_rep manager"`
	DealershipID   string `koanf:"dealership_id" validate:"required"`
	ExternalUserID string `koanf:"external_user_id" validate:"required"`
	CRMSource      string `koanf:"crm_source" validate:"omitempty,source"`
	OrganizationID string `koanf:"organization_id"`
}

// Model converts the seed entry into a domain user.
func (u User) Model() model.User {
	return model.User{
		ID:             u.ID,
		Name:           u.Name,
		Role:           model.Role(u.Role),
		DealershipID:   u.DealershipID,
		ExternalUserID: u.ExternalUserID,
		CRMSource:      model.SourceSystem(u.CRMSource),
		OrganizationID: u.OrganizationID,
	}
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		StoreDriver:    "sqlite",
		DatabaseDSN:    "arena.db",
		MaxBodyBytes:   1 << 20,
		WebhookSecrets: map[string]string{},
		WebhookTenants: map[string]string{},
	}
}

// Secrets returns the webhook secrets keyed by source system.
func (c *Config) Secrets() map[model.SourceSystem]string {
	return bySource(c.WebhookSecrets)
}

// Tenants returns the webhook tenants keyed by source system.
func (c *Config) Tenants() map[model.SourceSystem]string {
	return bySource(c.WebhookTenants)
}

func bySource(m map[string]string) map[model.SourceSystem]string {
	out := make(map[model.SourceSystem]string, len(m))
	for k, v := range m {
		if src, err := model.ParseSourceSystem(k); err == nil {
			out[src] = v
		}
	}
	return out
}
