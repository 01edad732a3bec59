// Package dedup decides whether an incoming listing is a business already
// in the store, and merges it when it is.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// MatchKind names the cascade step that found a duplicate.
type MatchKind string

const (
	MatchPhone    MatchKind = "phone"
	MatchEmail    MatchKind = "email"
	MatchIdentity MatchKind = "identity"
	MatchFuzzy    MatchKind = "fuzzy"
)

// Lookup is the slice of the store the matcher queries. Phone and email
// arguments are already normalized; identity matching is case-insensitive.
type Lookup interface {
	FindByPhone(ctx context.Context, phone string) (*model.Record, error)
	FindByEmail(ctx context.Context, email string) (*model.Record, error)
	FindByIdentity(ctx context.Context, name, address, city, state string) (*model.Record, error)
	ListByLocation(ctx context.Context, city, state string, limit int) ([]model.Record, error)
}

// DuplicateConflict reports that a candidate is a stored business. It is a
// merge instruction, not a rejection.
type DuplicateConflict struct {
	Existing   model.Record
	Kind       MatchKind
	Similarity float64
}

func (e *DuplicateConflict) Error() string {
	return fmt.Sprintf("duplicate of %s (%s)", e.Existing.ID, e.Kind)
}

// Config configures a Matcher.
type Config struct {
	// FuzzyThreshold is the minimum name similarity on a 0-100 scale.
	FuzzyThreshold int
	// CandidateLimit bounds the same-location records compared by name.
	CandidateLimit int
}

// Matcher runs the duplicate cascade: phone, email, exact identity, then
// fuzzy name within the same city and state. The first hit wins.
type Matcher struct {
	store Lookup
	cfg   Config
}

// NewMatcher creates a Matcher with defaults for unset config values.
func NewMatcher(store Lookup, cfg Config) *Matcher {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 85
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 50
	}
	return &Matcher{store: store, cfg: cfg}
}

// Match returns the stored record candidate duplicates, or nil when it is
// new. candidate must already be cleaned.
func (m *Matcher) Match(ctx context.Context, candidate model.Record) (*DuplicateConflict, error) {
	if candidate.Phone != "" {
		existing, err := m.store.FindByPhone(ctx, candidate.Phone)
		if err != nil {
			return nil, eris.Wrap(err, "dedup: match by phone")
		}
		if existing != nil {
			return m.conflict(candidate, existing, MatchPhone, 100), nil
		}
	}

	if candidate.Email != "" {
		existing, err := m.store.FindByEmail(ctx, strings.ToLower(candidate.Email))
		if err != nil {
			return nil, eris.Wrap(err, "dedup: match by email")
		}
		if existing != nil {
			return m.conflict(candidate, existing, MatchEmail, 100), nil
		}
	}

	if candidate.BusinessName != "" && candidate.Address != "" && candidate.City != "" && candidate.State != "" {
		existing, err := m.store.FindByIdentity(ctx, candidate.BusinessName, candidate.Address, candidate.City, candidate.State)
		if err != nil {
			return nil, eris.Wrap(err, "dedup: match by identity")
		}
		if existing != nil {
			return m.conflict(candidate, existing, MatchIdentity, 100), nil
		}
	}

	if candidate.City == "" || candidate.State == "" {
		return nil, nil
	}
	want := NormalizeName(candidate.BusinessName)
	if want == "" {
		return nil, nil
	}
	pool, err := m.store.ListByLocation(ctx, candidate.City, candidate.State, m.cfg.CandidateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: list by location")
	}
	var (
		best      *model.Record
		bestScore float64
	)
	for i := range pool {
		score := Similarity(want, NormalizeName(pool[i].BusinessName))
		if score >= float64(m.cfg.FuzzyThreshold) && score > bestScore {
			best, bestScore = &pool[i], score
		}
	}
	if best == nil {
		return nil, nil
	}
	return m.conflict(candidate, best, MatchFuzzy, bestScore), nil
}

func (m *Matcher) conflict(candidate model.Record, existing *model.Record, kind MatchKind, score float64) *DuplicateConflict {
	zap.L().Debug("dedup: matched",
		zap.String("name", candidate.BusinessName),
		zap.String("existing_id", existing.ID),
		zap.String("kind", string(kind)),
		zap.Float64("similarity", score),
	)
	return &DuplicateConflict{Existing: *existing, Kind: kind, Similarity: score}
}

// Similarity scores two normalized names on a 0-100 scale.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

// unmerged are fields a new listing never carries over: the stored name
// and the enrichment bookkeeping.
var unmerged = map[model.Field]bool{
	model.FieldBusinessName:     true,
	model.FieldScrapedAt:        true,
	model.FieldIsEnriched:       true,
	model.FieldEnrichedAt:       true,
	model.FieldLastEnrichedAt:   true,
	model.FieldEnrichmentErrors: true,
	model.FieldQualityScore:     true,
	model.FieldICPScore:         true,
}

// Merge copies the non-null fields of incoming over existing, keeping the
// existing name. It returns the merged record and the fields that changed.
func Merge(existing, incoming model.Record) (model.Record, model.FieldUpdate, error) {
	merged := existing.Clone()
	u := model.FieldUpdate{}
	for _, f := range model.Fields {
		if unmerged[f] {
			continue
		}
		u.Set(f, incoming.Value(f))
	}
	changed, err := merged.Apply(u)
	if err != nil {
		return existing, nil, eris.Wrap(err, "dedup: merge")
	}
	return merged, changed, nil
}
