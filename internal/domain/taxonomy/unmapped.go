package taxonomy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// UnmappedToken Worklist
// ---------------------------------------------------------------------------

// UnmappedStatus tracks the lifecycle of a queued token
type UnmappedStatus string

const (
	UnmappedStatusPending   UnmappedStatus = "PENDING"
	UnmappedStatusConfirmed UnmappedStatus = "CONFIRMED"
	UnmappedStatusDismissed UnmappedStatus = "DISMISSED"
)

// Candidate is one ranked suggestion stored with a queued token
type Candidate struct {
	CanonicalID   uuid.UUID `json:"canonical_id"`
	CanonicalName string    `json:"canonical_name"`
	Confidence    float64   `json:"confidence"`
}

// UnmappedToken is a persisted worklist entry for human confirmation. It
// survives process restarts; resolution results are queued here instead of
// blocking the batch that produced them.
type UnmappedToken struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	SystemCode channel.SystemCode
	Kind       MappingKind
	// Token is the raw external token as last seen
	Token string
	// NormalizedToken is the resolver's normalized form, the worklist key
	NormalizedToken string
	Candidates      []Candidate
	Status          UnmappedStatus
	// SeenCount counts how many runs encountered the token while pending
	SeenCount  int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// NewUnmappedToken queues a token for manual mapping
func NewUnmappedToken(tenantID uuid.UUID, system channel.SystemCode, kind MappingKind, token, normalized string, candidates []Candidate) (*UnmappedToken, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMappingInvalidTenantID
	}
	if !system.IsValid() {
		return nil, ErrMappingInvalidSystem
	}
	if !kind.IsValid() {
		return nil, ErrMappingInvalidKind
	}
	if normalized == "" {
		return nil, ErrMappingEmptyToken
	}

	now := time.Now()
	return &UnmappedToken{
		ID:              uuid.New(),
		TenantID:        tenantID,
		SystemCode:      system,
		Kind:            kind,
		Token:           token,
		NormalizedToken: normalized,
		Candidates:      candidates,
		Status:          UnmappedStatusPending,
		SeenCount:       1,
		FirstSeen:       now,
		LastSeen:        now,
	}, nil
}

// Touch records another sighting of a still-pending token and refreshes
// its candidate list
func (u *UnmappedToken) Touch(candidates []Candidate) {
	u.SeenCount++
	u.LastSeen = time.Now()
	u.Candidates = candidates
}

// MarkConfirmed closes the entry after a human confirmation
func (u *UnmappedToken) MarkConfirmed() {
	u.Status = UnmappedStatusConfirmed
	u.LastSeen = time.Now()
}

// MarkDismissed closes the entry without creating a mapping
func (u *UnmappedToken) MarkDismissed() {
	u.Status = UnmappedStatusDismissed
	u.LastSeen = time.Now()
}

// ---------------------------------------------------------------------------
// UnmappedTokenRepository Interface
// ---------------------------------------------------------------------------

// UnmappedTokenRepository persists the manual-mapping worklist
type UnmappedTokenRepository interface {
	// FindPending lists pending entries for a tenant, optionally narrowed
	// by kind, newest sighting first
	FindPending(ctx context.Context, tenantID uuid.UUID, kind *MappingKind) ([]UnmappedToken, error)

	// FindByKey returns the entry for a worklist key regardless of status,
	// or ErrMappingNotFound
	FindByKey(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind MappingKind, normalizedToken string) (*UnmappedToken, error)

	// Save creates or updates an entry
	Save(ctx context.Context, token *UnmappedToken) error
}
