package mapping

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/taxonomy"
)

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

const (
	// DefaultAutoAcceptThreshold is the minimum confidence for applying a
	// candidate without human review
	DefaultAutoAcceptThreshold = 0.8
	// DefaultTopK bounds the candidate list stored with a queued token
	DefaultTopK = 5

	// minMatchRatio drops candidates whose similarity is pure noise
	minMatchRatio = 0.3
)

// CanonicalEntry is one canonical entity the resolver matches tokens against
type CanonicalEntry struct {
	ID   uuid.UUID
	Name string
}

// CanonicalSource lists the canonical entities of one kind for a tenant
type CanonicalSource interface {
	Entries(ctx context.Context, tenantID uuid.UUID, kind taxonomy.MappingKind) ([]CanonicalEntry, error)
}

// Resolution is the outcome of resolving one external token
type Resolution struct {
	// Matched reports that a canonical ID was determined
	Matched      bool
	CanonicalID  uuid.UUID
	Confidence   float64
	AutoAccepted bool
	// Candidates holds the ranked suggestions when the token was queued
	Candidates      []taxonomy.Candidate
	NormalizedToken string
}

// ResolverOptions tune the auto-accept policy
type ResolverOptions struct {
	AutoAcceptThreshold float64
	TopK                int
}

// Resolver turns external taxonomy tokens into canonical IDs. Resolution is
// tiered: confirmed synonym lookup, then heuristic similarity against
// canonical names, then a persisted worklist entry for human confirmation.
// Reads are safe for concurrent use; confirmation writes are serialized by
// the repository's atomic upsert.
type Resolver struct {
	mappings  taxonomy.MappingRepository
	unmapped  taxonomy.UnmappedTokenRepository
	canonical CanonicalSource
	threshold float64
	topK      int
	logger    *zap.Logger
}

// NewResolver creates a Resolver with the given auto-accept policy
func NewResolver(
	mappings taxonomy.MappingRepository,
	unmapped taxonomy.UnmappedTokenRepository,
	canonical CanonicalSource,
	opts ResolverOptions,
	logger *zap.Logger,
) *Resolver {
	if opts.AutoAcceptThreshold <= 0 || opts.AutoAcceptThreshold > 1 {
		opts.AutoAcceptThreshold = DefaultAutoAcceptThreshold
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		mappings:  mappings,
		unmapped:  unmapped,
		canonical: canonical,
		threshold: opts.AutoAcceptThreshold,
		topK:      opts.TopK,
		logger:    logger,
	}
}

// Resolve maps one external token to a canonical ID. A confirmed synonym
// resolves at confidence 1.0; a unique heuristic candidate at or above the
// threshold is applied and persisted automatically; anything else is queued
// for manual confirmation and the caller proceeds with an unmapped
// placeholder.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, token string) (*Resolution, error) {
	normalized := NormalizeToken(token)
	if normalized == "" {
		return nil, taxonomy.ErrMappingEmptyToken
	}

	key := taxonomy.MappingKey{TenantID: tenantID, SystemCode: system, Kind: kind, Token: normalized}

	// Tier 1: confirmed synonym
	existing, err := r.mappings.FindActive(ctx, key)
	if err != nil && !errors.Is(err, taxonomy.ErrMappingNotFound) {
		return nil, err
	}
	if existing != nil {
		return &Resolution{
			Matched:         true,
			CanonicalID:     existing.CanonicalID,
			Confidence:      1.0,
			NormalizedToken: normalized,
		}, nil
	}

	// Tier 2: heuristic similarity against canonical names
	candidates, err := r.rankCandidates(ctx, tenantID, kind, normalized)
	if err != nil {
		return nil, err
	}

	if accepted, ok := r.autoAccept(candidates); ok {
		mapping, err := taxonomy.NewMapping(tenantID, system, kind, normalized, accepted.CanonicalID, accepted.Confidence, taxonomy.MappingOriginAuto)
		if err != nil {
			return nil, err
		}
		if err := r.mappings.Upsert(ctx, mapping); err != nil {
			return nil, err
		}
		r.logger.Info("auto-accepted taxonomy mapping",
			zap.String("tenant_id", tenantID.String()),
			zap.String("system", system.String()),
			zap.String("kind", kind.String()),
			zap.String("token", normalized),
			zap.Float64("confidence", accepted.Confidence))
		return &Resolution{
			Matched:         true,
			CanonicalID:     accepted.CanonicalID,
			Confidence:      accepted.Confidence,
			AutoAccepted:    true,
			Candidates:      candidates,
			NormalizedToken: normalized,
		}, nil
	}

	// Tier 3: queue for manual confirmation
	if err := r.queueUnmapped(ctx, tenantID, system, kind, token, normalized, candidates); err != nil {
		return nil, err
	}
	return &Resolution{
		Matched:         false,
		Candidates:      candidates,
		NormalizedToken: normalized,
	}, nil
}

// Confirm persists a human confirmation as a reusable synonym. It is an
// idempotent upsert: confirming the same key twice, or retargeting it,
// supersedes the prior active mapping without duplicating the key.
func (r *Resolver) Confirm(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, token string, canonicalID uuid.UUID) (*taxonomy.Mapping, error) {
	normalized := NormalizeToken(token)
	if normalized == "" {
		return nil, taxonomy.ErrMappingEmptyToken
	}

	mapping, err := taxonomy.NewMapping(tenantID, system, kind, normalized, canonicalID, 1.0, taxonomy.MappingOriginManual)
	if err != nil {
		return nil, err
	}
	if err := r.mappings.Upsert(ctx, mapping); err != nil {
		return nil, err
	}

	entry, err := r.unmapped.FindByKey(ctx, tenantID, system, kind, normalized)
	if err != nil && !errors.Is(err, taxonomy.ErrMappingNotFound) {
		return nil, err
	}
	if entry != nil && entry.Status == taxonomy.UnmappedStatusPending {
		entry.MarkConfirmed()
		if err := r.unmapped.Save(ctx, entry); err != nil {
			return nil, err
		}
	}

	r.logger.Info("confirmed taxonomy mapping",
		zap.String("tenant_id", tenantID.String()),
		zap.String("system", system.String()),
		zap.String("kind", kind.String()),
		zap.String("token", normalized),
		zap.String("canonical_id", canonicalID.String()))
	return mapping, nil
}

// Dismiss closes a queued token without creating a mapping
func (r *Resolver) Dismiss(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, token string) error {
	normalized := NormalizeToken(token)
	entry, err := r.unmapped.FindByKey(ctx, tenantID, system, kind, normalized)
	if err != nil {
		return err
	}
	entry.MarkDismissed()
	return r.unmapped.Save(ctx, entry)
}

// ListUnmapped returns the pending worklist for the manual-mapping surface
func (r *Resolver) ListUnmapped(ctx context.Context, tenantID uuid.UUID, kind *taxonomy.MappingKind) ([]taxonomy.UnmappedToken, error) {
	return r.unmapped.FindPending(ctx, tenantID, kind)
}

// ---------------------------------------------------------------------------
// Heuristic scoring
// ---------------------------------------------------------------------------

// rankCandidates scores the token against every canonical name of the kind
// and returns the top-k, confidence descending, ties broken by name.
func (r *Resolver) rankCandidates(ctx context.Context, tenantID uuid.UUID, kind taxonomy.MappingKind, normalized string) ([]taxonomy.Candidate, error) {
	entries, err := r.canonical.Entries(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}

	candidates := make([]taxonomy.Candidate, 0, r.topK)
	for _, entry := range entries {
		confidence := scoreMatch(normalized, NormalizeToken(entry.Name))
		if confidence == 0 {
			continue
		}
		candidates = append(candidates, taxonomy.Candidate{
			CanonicalID:   entry.ID,
			CanonicalName: entry.Name,
			Confidence:    confidence,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].CanonicalName < candidates[j].CanonicalName
	})
	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}
	return candidates, nil
}

// autoAccept applies the policy: the best candidate must clear the threshold
// and be the only one above it.
func (r *Resolver) autoAccept(candidates []taxonomy.Candidate) (taxonomy.Candidate, bool) {
	if len(candidates) == 0 || candidates[0].Confidence < r.threshold {
		return taxonomy.Candidate{}, false
	}
	if len(candidates) > 1 && candidates[1].Confidence >= r.threshold {
		return taxonomy.Candidate{}, false
	}
	return candidates[0], true
}

func (r *Resolver) queueUnmapped(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, raw, normalized string, candidates []taxonomy.Candidate) error {
	entry, err := r.unmapped.FindByKey(ctx, tenantID, system, kind, normalized)
	if err != nil && !errors.Is(err, taxonomy.ErrMappingNotFound) {
		return err
	}
	if entry == nil {
		entry, err = taxonomy.NewUnmappedToken(tenantID, system, kind, raw, normalized, candidates)
		if err != nil {
			return err
		}
		return r.unmapped.Save(ctx, entry)
	}
	if entry.Status != taxonomy.UnmappedStatusPending {
		return nil
	}
	entry.Touch(candidates)
	return r.unmapped.Save(ctx, entry)
}

// scoreMatch scores two normalized strings. Exact match is 0.95. Partial
// matches land in [0.5, 0.9) scaled by overlap: shared whole words score by
// word-set overlap, otherwise by common-subsequence ratio so that close
// misspellings still rank.
func scoreMatch(token, name string) float64 {
	if token == "" || name == "" {
		return 0
	}
	if token == name {
		return 0.95
	}

	ratio := wordOverlap(token, name)
	if ratio == 0 {
		ratio = subsequenceRatio(token, name)
	}
	if ratio < minMatchRatio {
		return 0
	}
	score := 0.5 + 0.4*ratio
	if score >= 0.9 {
		score = 0.89
	}
	return score
}

// wordOverlap is the Jaccard index over whole-word sets, zero when the
// strings share no word.
func wordOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}
	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// subsequenceRatio is the length of the longest common subsequence relative
// to the combined length, in (0, 1) for unequal strings.
func subsequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return float64(2*lcs) / float64(len(ra)+len(rb))
}
