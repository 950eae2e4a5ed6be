package taxonomy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// Mapping Errors
// ---------------------------------------------------------------------------

var (
	ErrMappingInvalidTenantID  = errors.New("taxonomy: invalid tenant ID")
	ErrMappingInvalidSystem    = errors.New("taxonomy: invalid external system code")
	ErrMappingInvalidKind      = errors.New("taxonomy: invalid mapping kind")
	ErrMappingEmptyToken       = errors.New("taxonomy: empty external token")
	ErrMappingInvalidCanonical = errors.New("taxonomy: invalid canonical ID")
	ErrMappingNotFound         = errors.New("taxonomy: mapping not found")
)

// ---------------------------------------------------------------------------
// MappingKind
// ---------------------------------------------------------------------------

// MappingKind distinguishes brand, category and attribute mappings
type MappingKind string

const (
	MappingKindBrand     MappingKind = "BRAND"
	MappingKindCategory  MappingKind = "CATEGORY"
	MappingKindAttribute MappingKind = "ATTRIBUTE"
)

// IsValid returns true if the kind is valid
func (k MappingKind) IsValid() bool {
	switch k {
	case MappingKindBrand, MappingKindCategory, MappingKindAttribute:
		return true
	default:
		return false
	}
}

// String returns the string representation of MappingKind
func (k MappingKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// MappingOrigin
// ---------------------------------------------------------------------------

// MappingOrigin records whether a mapping was auto-matched or human-confirmed
type MappingOrigin string

const (
	MappingOriginAuto   MappingOrigin = "AUTO"
	MappingOriginManual MappingOrigin = "MANUAL"
)

// IsValid returns true if the origin is valid
func (o MappingOrigin) IsValid() bool {
	return o == MappingOriginAuto || o == MappingOriginManual
}

// ---------------------------------------------------------------------------
// ConversionRule
// ---------------------------------------------------------------------------

// ConversionRule translates an attribute value at read time. The stored
// value stays raw; the rule is applied when the attribute is consumed.
type ConversionRule struct {
	// Factor scales numeric values (e.g. mm -> m is 0.001). Zero means none.
	Factor float64 `json:"factor,omitempty"`
	// EnumMap translates remote enum literals to canonical ones
	EnumMap map[string]string `json:"enum_map,omitempty"`
}

// IsZero reports whether the rule performs no conversion
func (r ConversionRule) IsZero() bool {
	return r.Factor == 0 && len(r.EnumMap) == 0
}

// Apply converts a raw remote value. Enum translation wins over scaling.
func (r ConversionRule) Apply(raw string) string {
	if mapped, ok := r.EnumMap[raw]; ok {
		return mapped
	}
	return raw
}

// ---------------------------------------------------------------------------
// Mapping Entity
// ---------------------------------------------------------------------------

// Mapping binds one external taxonomy token to a canonical entity. The key
// is (tenant, system, kind, normalized token); at most one active mapping
// exists per key. Confirming a new target supersedes the prior row, never
// duplicates it.
type Mapping struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	SystemCode channel.SystemCode
	Kind       MappingKind
	// Token is the normalized external token this mapping keys on
	Token string
	// CanonicalID is the tenant's canonical brand/category/attribute ID
	CanonicalID uuid.UUID
	// Confidence the match carried when confirmed; confirmed synonyms
	// always resolve at 1.0 regardless of this stored value
	Confidence float64
	Origin     MappingOrigin
	Active     bool
	// Conversion applies to attribute mappings only
	Conversion ConversionRule
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewMapping creates an active mapping for a key
func NewMapping(tenantID uuid.UUID, system channel.SystemCode, kind MappingKind, token string, canonicalID uuid.UUID, confidence float64, origin MappingOrigin) (*Mapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMappingInvalidTenantID
	}
	if !system.IsValid() {
		return nil, ErrMappingInvalidSystem
	}
	if !kind.IsValid() {
		return nil, ErrMappingInvalidKind
	}
	if token == "" {
		return nil, ErrMappingEmptyToken
	}
	if canonicalID == uuid.Nil {
		return nil, ErrMappingInvalidCanonical
	}
	if !origin.IsValid() {
		origin = MappingOriginAuto
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	now := time.Now()
	return &Mapping{
		ID:          uuid.New(),
		TenantID:    tenantID,
		SystemCode:  system,
		Kind:        kind,
		Token:       token,
		CanonicalID: canonicalID,
		Confidence:  confidence,
		Origin:      origin,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Supersede retargets the mapping at a new canonical entity. Used by the
// idempotent confirm upsert: the row is rewritten in place so the key never
// gains a duplicate.
func (m *Mapping) Supersede(canonicalID uuid.UUID, confidence float64, origin MappingOrigin) error {
	if canonicalID == uuid.Nil {
		return ErrMappingInvalidCanonical
	}
	m.CanonicalID = canonicalID
	m.Confidence = confidence
	m.Origin = origin
	m.Active = true
	m.UpdatedAt = time.Now()
	return nil
}

// Deactivate retires the mapping without deleting its history
func (m *Mapping) Deactivate() {
	m.Active = false
	m.UpdatedAt = time.Now()
}

// SetConversion attaches a read-time conversion rule (attribute mappings)
func (m *Mapping) SetConversion(rule ConversionRule) {
	m.Conversion = rule
	m.UpdatedAt = time.Now()
}

// Key returns the logical identity of the mapping
func (m *Mapping) Key() MappingKey {
	return MappingKey{
		TenantID:   m.TenantID,
		SystemCode: m.SystemCode,
		Kind:       m.Kind,
		Token:      m.Token,
	}
}

// MappingKey is the logical identity a mapping is unique on
type MappingKey struct {
	TenantID   uuid.UUID
	SystemCode channel.SystemCode
	Kind       MappingKind
	Token      string
}

// ---------------------------------------------------------------------------
// MappingRepository Interface
// ---------------------------------------------------------------------------

// MappingRepository persists taxonomy mappings. Upsert must be atomic on the
// (tenant, system, kind, token) key so that concurrent confirmations are
// serialized at the storage layer, not by an application lock.
type MappingRepository interface {
	// FindActive returns the single active mapping for a key, or
	// ErrMappingNotFound
	FindActive(ctx context.Context, key MappingKey) (*Mapping, error)

	// FindActiveBatch returns the active mappings for many tokens of the
	// same tenant/system/kind in one round trip, keyed by token
	FindActiveBatch(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind MappingKind, tokens []string) (map[string]*Mapping, error)

	// Upsert inserts the mapping or, on key conflict, supersedes the
	// existing row in place
	Upsert(ctx context.Context, mapping *Mapping) error

	// Deactivate retires the active mapping for a key; absent keys are a no-op
	Deactivate(ctx context.Context, key MappingKey) error
}
