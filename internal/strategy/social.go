package strategy

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

type socialRule struct {
	field    model.Field
	patterns []*regexp.Regexp
	// excluded are first path segments of share, login and feed pages.
	excluded []string
}

func social(field model.Field, excluded []string, patterns ...string) socialRule {
	r := socialRule{field: field, excluded: excluded}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile(`(?i)`+p))
	}
	return r
}

var socialRules = []socialRule{
	social(model.FieldFacebookURL, []string{"sharer", "share", "login", "dialog", "groups", "plugins", "tr"},
		`https?://(?:www\.)?facebook\.com/[a-zA-Z0-9._\-]+/?`,
		`https?://(?:www\.)?fb\.com/[a-zA-Z0-9._\-]+/?`),
	social(model.FieldInstagramURL, []string{"accounts", "explore", "p"},
		`https?://(?:www\.)?instagram\.com/[a-zA-Z0-9._\-]+/?`),
	social(model.FieldTwitterURL, []string{"intent", "share", "home", "i"},
		`https?://(?:www\.)?(?:twitter|x)\.com/[a-zA-Z0-9_]+/?`),
	social(model.FieldLinkedInURL, []string{"login", "signup", "sharearticle"},
		`https?://(?:www\.)?linkedin\.com/(?:company|in)/[a-zA-Z0-9._\-]+/?`),
	social(model.FieldYouTubeURL, []string{"watch", "results", "feed", "embed"},
		`https?://(?:www\.)?youtube\.com/(?:(?:channel|c|user)/|@)[a-zA-Z0-9._\-]+/?`),
	social(model.FieldTikTokURL, []string{"login"},
		`https?://(?:www\.)?tiktok\.com/@[a-zA-Z0-9._\-]+/?`),
}

func (r socialRule) isExcluded(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	seg, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	seg = strings.TrimSuffix(strings.ToLower(seg), ".php")
	for _, e := range r.excluded {
		if seg == e {
			return true
		}
	}
	return false
}

// SocialMedia collects the business's social profile URLs from its website.
type SocialMedia struct {
	deps Deps
}

// Name implements Strategy.
func (s *SocialMedia) Name() string { return NameSocialMedia }

// RequiresWebsite implements WebsiteDependent.
func (s *SocialMedia) RequiresWebsite() bool { return true }

// Discover implements Strategy.
func (s *SocialMedia) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Website == "" {
		return nil, nil
	}
	doc, err := f.Fetch(ctx, rec.Website, nil)
	if err != nil {
		zap.L().Debug("strategy: social fetch failed", zap.String("url", rec.Website), zap.Error(err))
		return nil, nil
	}

	html := doc.HTML()
	u := model.FieldUpdate{}
	for _, r := range socialRules {
		if rec.Has(r.field) {
			continue
		}
	patterns:
		for _, re := range r.patterns {
			for _, m := range re.FindAllString(html, -1) {
				if !r.isExcluded(m) {
					u[r.field] = strings.TrimRight(m, "/")
					break patterns
				}
			}
		}
	}
	return u, nil
}
