package channel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// SystemCode
// ---------------------------------------------------------------------------

// SystemCode identifies an external marketplace or supplier integration
type SystemCode string

const (
	// SystemCodeOzon represents the Ozon marketplace
	SystemCodeOzon SystemCode = "OZON"
	// SystemCodeYandexMarket represents the Yandex Market marketplace
	SystemCodeYandexMarket SystemCode = "YANDEX_MARKET"
	// SystemCodeAmazon represents the Amazon marketplace (SP-API)
	SystemCodeAmazon SystemCode = "AMAZON"
	// SystemCodeETM represents the ETM supplier feed
	SystemCodeETM SystemCode = "ETM"
	// SystemCodeRS24 represents the RS24 supplier feed
	SystemCodeRS24 SystemCode = "RS24"
)

// IsValid returns true if the system code is valid
func (c SystemCode) IsValid() bool {
	switch c {
	case SystemCodeOzon, SystemCodeYandexMarket, SystemCodeAmazon, SystemCodeETM, SystemCodeRS24:
		return true
	default:
		return false
	}
}

// String returns the string representation of SystemCode
func (c SystemCode) String() string {
	return string(c)
}

// IsMarketplace returns true for sales channels that carry orders
func (c SystemCode) IsMarketplace() bool {
	switch c {
	case SystemCodeOzon, SystemCodeYandexMarket, SystemCodeAmazon:
		return true
	default:
		return false
	}
}

// IsSupplier returns true for purchase-side feeds (catalog/stock/prices only)
func (c SystemCode) IsSupplier() bool {
	return c == SystemCodeETM || c == SystemCodeRS24
}

// AllSystemCodes returns every supported external system
func AllSystemCodes() []SystemCode {
	return []SystemCode{
		SystemCodeOzon,
		SystemCodeYandexMarket,
		SystemCodeAmazon,
		SystemCodeETM,
		SystemCodeRS24,
	}
}

// ---------------------------------------------------------------------------
// Capability
// ---------------------------------------------------------------------------

// Capability names one operation family an external system may support
type Capability string

const (
	CapabilityCatalog Capability = "CATALOG"
	CapabilityStock   Capability = "STOCK"
	CapabilityPrice   Capability = "PRICE"
	CapabilityOrders  Capability = "ORDERS"
)

// Capabilities returns the operation families a system supports
func (c SystemCode) Capabilities() []Capability {
	if c.IsSupplier() {
		return []Capability{CapabilityCatalog, CapabilityStock, CapabilityPrice}
	}
	return []Capability{CapabilityCatalog, CapabilityStock, CapabilityPrice, CapabilityOrders}
}

// Supports reports whether the system supports the given capability
func (c SystemCode) Supports(cap Capability) bool {
	for _, have := range c.Capabilities() {
		if have == cap {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// RateLimitPolicy
// ---------------------------------------------------------------------------

// RateLimitPolicy bounds the outbound request rate of one adapter instance
type RateLimitPolicy struct {
	// RequestsPerMinute is the sustained request rate
	RequestsPerMinute int
	// Burst is the token bucket size
	Burst int
	// CallTimeout is the per-call deadline; exceeding it is a transient error
	CallTimeout time.Duration
	// MaxAttempts bounds retries of a transient failure (including the first try)
	MaxAttempts int
	// BackoffBase is the initial retry delay, doubled per attempt
	BackoffBase time.Duration
}

// DefaultRateLimitPolicy returns conservative limits suitable for any system
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		RequestsPerMinute: 60,
		Burst:             10,
		CallTimeout:       30 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       time.Second,
	}
}

// ---------------------------------------------------------------------------
// ExternalSystemConfig
// ---------------------------------------------------------------------------

// ExternalSystemConfig holds tenant-scoped credentials and connection policy
// for one external system. It is created and edited by the settings surface
// and consumed read-only by adapters.
type ExternalSystemConfig struct {
	shared.TenantAggregateRoot
	SystemCode SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_system_config_tenant_system,priority:2"`
	// Endpoint overrides the system's default API base URL when set
	Endpoint string `gorm:"type:varchar(255)"`
	// ClientID / APIKey / APISecret cover the credential shapes of all
	// supported systems; each adapter reads the fields it needs
	ClientID  string `gorm:"type:varchar(255)"`
	APIKey    string `gorm:"type:varchar(255)"`
	APISecret string `gorm:"type:varchar(255)"`
	// WarehouseRef is the remote warehouse identifier stock pushes target
	WarehouseRef string `gorm:"type:varchar(100)"`
	Enabled      bool   `gorm:"not null;default:true"`
	RateLimit    RateLimitPolicy `gorm:"embedded;embeddedPrefix:rate_"`
	// LastSyncAt is written back by the orchestrator after each run
	LastSyncAt *time.Time
}

// TableName returns the table name for GORM
func (ExternalSystemConfig) TableName() string {
	return "external_system_configs"
}

// NewExternalSystemConfig creates a config with default rate limits
func NewExternalSystemConfig(tenantID uuid.UUID, code SystemCode) (*ExternalSystemConfig, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !code.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	return &ExternalSystemConfig{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SystemCode:          code,
		Enabled:             true,
		RateLimit:           DefaultRateLimitPolicy(),
	}, nil
}

// Validate checks that the config carries usable credentials
func (c *ExternalSystemConfig) Validate() error {
	if !c.SystemCode.IsValid() {
		return shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	if c.APIKey == "" && c.APISecret == "" {
		return ErrNotConfigured
	}
	return nil
}

// RecordSync stamps the last successful sync time
func (c *ExternalSystemConfig) RecordSync(at time.Time) {
	c.LastSyncAt = &at
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// ---------------------------------------------------------------------------
// ExternalSystemConfigRepository
// ---------------------------------------------------------------------------

// ExternalSystemConfigRepository reads and writes integration configs
type ExternalSystemConfigRepository interface {
	// FindByTenantAndSystem returns the config for one tenant+system pair
	FindByTenantAndSystem(ctx context.Context, tenantID uuid.UUID, code SystemCode) (*ExternalSystemConfig, error)
	// FindEnabledForTenant returns all enabled configs for a tenant
	FindEnabledForTenant(ctx context.Context, tenantID uuid.UUID) ([]ExternalSystemConfig, error)
	// Save creates or updates a config
	Save(ctx context.Context, config *ExternalSystemConfig) error
}
