package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// GoogleIntel extracts as many fields as it can from a single search for
// the business: website, phone, email, owner, rating and profile presence.
// Later strategies see these fields and skip their own searches.
type GoogleIntel struct {
	deps Deps
}

// Name implements Strategy.
func (s *GoogleIntel) Name() string { return NameGoogleIntel }

// Discover implements Strategy.
func (s *GoogleIntel) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.BusinessName == "" {
		return nil, nil
	}

	query := `"` + rec.BusinessName + `" ` + rec.City + " " + rec.State
	res := s.deps.search(ctx, f, s.Name(), query, 0)
	if res == nil {
		return nil, nil
	}
	text := res.Text()
	u := model.FieldUpdate{}

	website := rec.Website
	if website == "" {
		if site := res.Website(s.deps.Policy, false); site != "" {
			u[model.FieldWebsite] = site
			u[model.FieldHasWebsite] = true
			website = site
		}
	}

	if rec.Phone == "" {
		u.Set(model.FieldPhone, s.deps.Policy.choosePhone(textPhones(text)))
	}

	if e := res.Email(s.deps.Policy, transport.Hostname(website)); emailUpgrade(rec.Email, e) {
		u[model.FieldEmail] = e
	}

	owner := rec.OwnerName
	if owner == "" {
		if name, title, ok := findOwner(text); ok {
			u[model.FieldOwnerName] = name
			u[model.FieldOwnerTitle] = title
			owner = name
		}
	}

	if rec.GoogleRating == nil {
		if rating, reviews, ok := res.Rating(); ok {
			u[model.FieldGoogleRating] = rating
			u[model.FieldGoogleReviewCount] = reviews
		}
	}

	if res.HasBusinessProfile() {
		u[model.FieldHasGoogleBusinessProfile] = true
	}

	// The second query is spent only when there is a name to look up.
	if owner != "" && rec.OwnerLinkedIn == "" {
		q := `site:linkedin.com/in/ "` + owner + `" "` + rec.BusinessName + `"`
		if lr := s.deps.search(ctx, f, s.Name(), q, 5); lr != nil {
			u.Set(model.FieldOwnerLinkedIn, lr.LinkedInProfile())
		}
	}

	if len(u) > 0 {
		zap.L().Debug("strategy: google intel fields",
			zap.String("business", rec.BusinessName),
			zap.Strings("fields", fieldNames(u)),
		)
	}
	return u, nil
}

func fieldNames(u model.FieldUpdate) []string {
	fields := u.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
