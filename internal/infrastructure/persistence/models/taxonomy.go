package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/taxonomy"
)

// MappingModel is the persistence model for the Mapping domain entity.
// The (tenant, system, kind, token) key is unique; superseding a mapping
// rewrites the row in place rather than inserting a sibling.
type MappingModel struct {
	ID             uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_key,priority:1"`
	SystemCode     channel.SystemCode     `gorm:"type:varchar(20);not null;uniqueIndex:idx_mapping_key,priority:2"`
	Kind           taxonomy.MappingKind   `gorm:"type:varchar(20);not null;uniqueIndex:idx_mapping_key,priority:3"`
	Token          string                 `gorm:"type:varchar(255);not null;uniqueIndex:idx_mapping_key,priority:4"`
	CanonicalID    uuid.UUID              `gorm:"type:uuid;not null;index"`
	Confidence     float64                `gorm:"not null"`
	Origin         taxonomy.MappingOrigin `gorm:"type:varchar(10);not null"`
	Active         bool                   `gorm:"not null;default:true"`
	ConversionJSON string                 `gorm:"type:jsonb;column:conversion"`
	CreatedAt      time.Time              `gorm:"not null"`
	UpdatedAt      time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MappingModel) TableName() string {
	return "taxonomy_mappings"
}

// ToDomain converts the persistence model to a domain Mapping entity.
func (m *MappingModel) ToDomain() *taxonomy.Mapping {
	mapping := &taxonomy.Mapping{
		ID:          m.ID,
		TenantID:    m.TenantID,
		SystemCode:  m.SystemCode,
		Kind:        m.Kind,
		Token:       m.Token,
		CanonicalID: m.CanonicalID,
		Confidence:  m.Confidence,
		Origin:      m.Origin,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ConversionJSON != "" {
		var rule taxonomy.ConversionRule
		if err := json.Unmarshal([]byte(m.ConversionJSON), &rule); err == nil {
			mapping.Conversion = rule
		}
	}
	return mapping
}

// FromDomain populates the persistence model from a domain Mapping entity.
func (m *MappingModel) FromDomain(mapping *taxonomy.Mapping) {
	m.ID = mapping.ID
	m.TenantID = mapping.TenantID
	m.SystemCode = mapping.SystemCode
	m.Kind = mapping.Kind
	m.Token = mapping.Token
	m.CanonicalID = mapping.CanonicalID
	m.Confidence = mapping.Confidence
	m.Origin = mapping.Origin
	m.Active = mapping.Active
	m.CreatedAt = mapping.CreatedAt
	m.UpdatedAt = mapping.UpdatedAt

	if !mapping.Conversion.IsZero() {
		if data, err := json.Marshal(mapping.Conversion); err == nil {
			m.ConversionJSON = string(data)
		}
	} else {
		m.ConversionJSON = ""
	}
}

// MappingModelFromDomain creates a new persistence model from a domain Mapping.
func MappingModelFromDomain(mapping *taxonomy.Mapping) *MappingModel {
	m := &MappingModel{}
	m.FromDomain(mapping)
	return m
}

// UnmappedTokenModel is the persistence model for the UnmappedToken worklist
// entry. The normalized token keys the entry within tenant+system+kind.
type UnmappedTokenModel struct {
	ID              uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_unmapped_key,priority:1;index:idx_unmapped_tenant_status,priority:1"`
	SystemCode      channel.SystemCode      `gorm:"type:varchar(20);not null;uniqueIndex:idx_unmapped_key,priority:2"`
	Kind            taxonomy.MappingKind    `gorm:"type:varchar(20);not null;uniqueIndex:idx_unmapped_key,priority:3"`
	Token           string                  `gorm:"type:varchar(255);not null"`
	NormalizedToken string                  `gorm:"type:varchar(255);not null;uniqueIndex:idx_unmapped_key,priority:4"`
	CandidatesJSON  string                  `gorm:"type:jsonb;column:candidates"`
	Status          taxonomy.UnmappedStatus `gorm:"type:varchar(10);not null;index:idx_unmapped_tenant_status,priority:2"`
	SeenCount       int                     `gorm:"not null;default:1"`
	FirstSeen       time.Time               `gorm:"not null"`
	LastSeen        time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnmappedTokenModel) TableName() string {
	return "unmapped_tokens"
}

// ToDomain converts the persistence model to a domain UnmappedToken entry.
func (m *UnmappedTokenModel) ToDomain() *taxonomy.UnmappedToken {
	token := &taxonomy.UnmappedToken{
		ID:              m.ID,
		TenantID:        m.TenantID,
		SystemCode:      m.SystemCode,
		Kind:            m.Kind,
		Token:           m.Token,
		NormalizedToken: m.NormalizedToken,
		Candidates:      make([]taxonomy.Candidate, 0),
		Status:          m.Status,
		SeenCount:       m.SeenCount,
		FirstSeen:       m.FirstSeen,
		LastSeen:        m.LastSeen,
	}
	if m.CandidatesJSON != "" {
		var candidates []taxonomy.Candidate
		if err := json.Unmarshal([]byte(m.CandidatesJSON), &candidates); err == nil {
			token.Candidates = candidates
		}
	}
	return token
}

// FromDomain populates the persistence model from a domain UnmappedToken.
func (m *UnmappedTokenModel) FromDomain(token *taxonomy.UnmappedToken) {
	m.ID = token.ID
	m.TenantID = token.TenantID
	m.SystemCode = token.SystemCode
	m.Kind = token.Kind
	m.Token = token.Token
	m.NormalizedToken = token.NormalizedToken
	m.Status = token.Status
	m.SeenCount = token.SeenCount
	m.FirstSeen = token.FirstSeen
	m.LastSeen = token.LastSeen

	if len(token.Candidates) > 0 {
		if data, err := json.Marshal(token.Candidates); err == nil {
			m.CandidatesJSON = string(data)
		}
	} else {
		m.CandidatesJSON = "[]"
	}
}

// UnmappedTokenModelFromDomain creates a new persistence model from a domain
// UnmappedToken entry.
func UnmappedTokenModelFromDomain(token *taxonomy.UnmappedToken) *UnmappedTokenModel {
	m := &UnmappedTokenModel{}
	m.FromDomain(token)
	return m
}
