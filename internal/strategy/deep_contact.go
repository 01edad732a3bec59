package strategy

import (
	"context"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// priorityPaths are the internal pages most likely to carry contact data,
// best first.
var priorityPaths = []string{
	"/contact", "/contact-us", "/contactus", "/get-in-touch",
	"/about", "/about-us", "/aboutus", "/our-team", "/team",
	"/staff", "/leadership", "/management",
	"/our-story", "/our-company", "/who-we-are",
	"/services", "/careers", "/jobs", "/privacy",
	"/footer", "/sitemap",
}

var assetExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".css": true, ".js": true, ".mp4": true, ".mp3": true, ".zip": true,
}

// DeepContact crawls the homepage and the best internal pages for emails
// and phone numbers.
type DeepContact struct {
	deps Deps
}

// Name implements Strategy.
func (s *DeepContact) Name() string { return NameDeepContact }

// RequiresWebsite implements WebsiteDependent.
func (s *DeepContact) RequiresWebsite() bool { return true }

// Discover implements Strategy.
func (s *DeepContact) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Website == "" {
		return nil, nil
	}
	home, err := f.Fetch(ctx, rec.Website, nil)
	if err != nil {
		return nil, eris.Wrap(err, "deep_contact: homepage")
	}

	var emails, phones orderedSet
	pageEmails(home, &emails)
	pagePhones(home, &phones)

	host := siteHost(rec)
	crawled := 1
	for _, link := range internalLinks(home, host, s.deps.Policy.MaxExtraPages) {
		doc, err := f.Fetch(ctx, link, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		crawled++
		pageEmails(doc, &emails)
		pagePhones(doc, &phones)
		if emails.len() >= 2 && phones.len() >= 1 {
			break
		}
	}

	u := model.FieldUpdate{}
	ranked := s.deps.Policy.rankEmails(emails.list, host)
	business, owner := splitEmails(ranked)
	if rec.Email == "" {
		switch {
		case business != "":
			u[model.FieldEmail] = business
		case len(ranked) > 0:
			u[model.FieldEmail] = ranked[0]
		}
	}
	if owner != "" && rec.OwnerEmail == "" {
		u[model.FieldOwnerEmail] = owner
	}
	if rec.Phone == "" {
		u.Set(model.FieldPhone, s.deps.Policy.choosePhone(phones.list))
	}

	zap.L().Debug("strategy: deep contact crawl",
		zap.String("business", rec.BusinessName),
		zap.Int("pages", crawled),
		zap.Int("emails", len(ranked)),
		zap.Int("phones", phones.len()),
	)
	return u, nil
}

// internalLinks returns up to limit same-site page URLs from doc, priority
// pages first and assets excluded.
func internalLinks(doc *transport.Document, host string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	base := strings.TrimRight(doc.URL, "/")
	seen := map[string]bool{base: true}
	var links []string
	for _, l := range doc.Links() {
		if l.URL == "" || strings.HasPrefix(l.Href, "#") {
			continue
		}
		u, err := url.Parse(l.URL)
		if err != nil || strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") != host {
			continue
		}
		if assetExtensions[strings.ToLower(path.Ext(u.Path))] {
			continue
		}
		clean := strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/")
		if seen[clean] {
			continue
		}
		seen[clean] = true
		links = append(links, clean)
	}

	rank := func(link string) int {
		u, _ := url.Parse(link)
		p := strings.ToLower(strings.TrimRight(u.Path, "/"))
		for i, pp := range priorityPaths {
			if strings.HasSuffix(p, pp) {
				return i
			}
		}
		return len(priorityPaths)
	}
	slices.SortStableFunc(links, func(a, b string) int { return rank(a) - rank(b) })
	if len(links) > limit {
		links = links[:limit]
	}
	return links
}
