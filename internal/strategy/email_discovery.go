package strategy

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// EmailDiscovery looks for a business email, strongly preferring a named
// person's address over a role address. The website is mined first and at
// most two searches follow when it yields nothing.
type EmailDiscovery struct {
	deps Deps
}

// Name implements Strategy.
func (s *EmailDiscovery) Name() string { return NameEmailDiscovery }

// Discover implements Strategy.
func (s *EmailDiscovery) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.BusinessName == "" || model.IsPersonalEmail(rec.Email) {
		return nil, nil
	}

	host := siteHost(rec)
	var personal, role []string
	if rec.Website != "" {
		personal, role = s.mineWebsite(ctx, f, rec.Website, host)
	}

	queries := []string{
		rec.BusinessName + " " + rec.City + " " + rec.State + " email contact",
		`"` + rec.BusinessName + `" email ` + rec.City + " " + rec.State + " email contact",
	}
	for _, q := range queries {
		if len(personal)+len(role) > 0 {
			break
		}
		res := s.deps.search(ctx, f, s.Name(), q, 0)
		if res == nil {
			continue
		}
		if e := s.firstSearchEmail(res); e != "" {
			if model.IsRoleEmail(e) {
				role = append(role, e)
			} else {
				personal = append(personal, e)
			}
		}
	}

	switch {
	case len(personal) > 0:
		zap.L().Debug("strategy: personal email found", zap.String("business", rec.BusinessName))
		return model.FieldUpdate{model.FieldEmail: personal[0]}, nil
	case len(role) > 0 && rec.Email == "":
		return model.FieldUpdate{model.FieldEmail: role[0]}, nil
	}
	return nil, nil
}

// mineWebsite splits the homepage's addresses into personal and role lists.
// Off-domain role addresses are dropped.
func (s *EmailDiscovery) mineWebsite(ctx context.Context, f transport.Fetcher, site, host string) (personal, role []string) {
	doc, err := f.Fetch(ctx, site, nil)
	if err != nil {
		return nil, nil
	}
	var found orderedSet
	pageEmails(doc, &found)
	for _, e := range found.list {
		if !s.deps.Policy.usableEmail(e) || len(e) > 50 {
			continue
		}
		onSite := host != "" && strings.HasSuffix(model.Domain(e), host)
		switch {
		case !model.IsRoleEmail(e):
			personal = append(personal, e)
		case onSite:
			role = append(role, e)
		}
	}
	return personal, role
}

func (s *EmailDiscovery) firstSearchEmail(res *SearchResults) string {
	for _, e := range res.Emails() {
		if s.deps.Policy.usableEmail(e) && len(e) < 50 {
			return e
		}
	}
	return ""
}
