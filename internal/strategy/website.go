package strategy

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// WebsiteDiscovery finds the business website through search, falling back
// to guessing the domain from the business name.
type WebsiteDiscovery struct {
	deps Deps
}

// Name implements Strategy.
func (s *WebsiteDiscovery) Name() string { return NameWebsiteDiscovery }

// Discover implements Strategy.
func (s *WebsiteDiscovery) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Website != "" || rec.BusinessName == "" {
		return nil, nil
	}

	queries := []string{rec.BusinessName + " " + rec.City + " " + rec.State}
	if rec.Phone != "" {
		queries = append(queries, rec.BusinessName+" "+rec.Phone+" "+rec.City+" "+rec.State)
	}
	for _, q := range queries {
		res := s.deps.search(ctx, f, s.Name(), q, 0)
		if res == nil {
			continue
		}
		if site := res.Website(s.deps.Policy, true); site != "" {
			return websiteUpdate(site), nil
		}
	}

	if site := s.guess(ctx, f, rec.BusinessName); site != "" {
		return websiteUpdate(site), nil
	}
	return nil, nil
}

func websiteUpdate(site string) model.FieldUpdate {
	return model.FieldUpdate{
		model.FieldWebsite:    site,
		model.FieldHasWebsite: true,
	}
}

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]`)
	trailingEntity = regexp.MustCompile(`(llc|inc|corp|co|ltd|company)$`)
)

// domainSlug turns "Joe's Plumbing LLC" into "joesplumbing".
func domainSlug(name string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(name), "")
	return trailingEntity.ReplaceAllString(slug, "")
}

// guess probes www.<slug>.com and .net and accepts a substantial 200 page.
func (s *WebsiteDiscovery) guess(ctx context.Context, f transport.Fetcher, name string) string {
	slug := domainSlug(name)
	if len(slug) < 3 {
		return ""
	}
	for _, tld := range []string{".com", ".net"} {
		site := "https://www." + slug + tld
		doc, err := f.Fetch(ctx, site, nil)
		if err != nil {
			zap.L().Debug("strategy: domain guess failed", zap.String("url", site), zap.Error(err))
			continue
		}
		if !doc.Blocked && doc.StatusCode == 200 && len(doc.Body) > 1000 {
			return site
		}
	}
	return ""
}
