// Package strategy holds the catalog of discovery strategies. Each strategy
// reads an immutable record snapshot, performs its own network I/O through
// the batch's transport session and returns a sparse field update.
package strategy

import (
	"context"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// Strategy names. They double as the names in enrichment error logs.
const (
	NameWebsiteDiscovery  = "website_discovery"
	NameGoogleIntel       = "google_intel"
	NameDeepContact       = "deep_contact"
	NameEmailDiscovery    = "email_discovery"
	NamePhoneDiscovery    = "phone_discovery"
	NameTechStack         = "website_tech_stack"
	NameSocialMedia       = "social_media"
	NameContactEnrichment = "contact_enrichment"
	NameReviewsRatings    = "reviews_ratings"
	NameEmailVerification = "email_verification"
)

// Strategy discovers fields for one record. Implementations must not mutate
// rec and must be safe for concurrent use.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error)
}

// WebsiteDependent is implemented by strategies that can only work from the
// business website.
type WebsiteDependent interface {
	RequiresWebsite() bool
}

// RequiresWebsite reports whether s needs a known website to run.
func RequiresWebsite(s Strategy) bool {
	w, ok := s.(WebsiteDependent)
	return ok && w.RequiresWebsite()
}

// BatchScoped is implemented by strategies that hold per-batch state.
type BatchScoped interface {
	ResetBatch()
}

// Deps are the collaborators shared by the catalog.
type Deps struct {
	Search *Searcher
	Policy Policy
}

func (d Deps) normalize() Deps {
	if d.Search == nil {
		d.Search = NewSearcher(SearchConfig{})
	}
	if d.Policy.excluded == nil {
		d.Policy = d.Policy.compile()
	}
	return d
}

// PhaseOne returns the sequential phase-one strategies in run order.
func PhaseOne(d Deps) []Strategy {
	d = d.normalize()
	return []Strategy{
		&WebsiteDiscovery{deps: d},
		&GoogleIntel{deps: d},
	}
}

// PhaseTwo returns the concurrent phase-two strategies in merge order.
func PhaseTwo(d Deps) []Strategy {
	d = d.normalize()
	return []Strategy{
		&DeepContact{deps: d},
		&EmailDiscovery{deps: d},
		&PhoneDiscovery{deps: d},
		&TechStack{deps: d},
		&SocialMedia{deps: d},
		&ContactEnrichment{deps: d},
		&ReviewsRatings{deps: d},
	}
}

// siteHost returns the bare host of rec's website.
func siteHost(rec model.Record) string {
	return transport.Hostname(rec.Website)
}
