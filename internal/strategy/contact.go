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

// aboutPaths are pages that usually name the people behind the business.
var aboutPaths = []string{
	"/about", "/about-us", "/about-me", "/our-team", "/team",
	"/staff", "/leadership", "/management", "/contact",
	"/contact-us", "/our-story",
}

// maxAboutProbes caps the unlinked about pages tried when the homepage
// links to none of them.
const maxAboutProbes = 3

var personRe = regexp.MustCompile(personPattern)

// ContactEnrichment finds the decision maker behind the business on its
// website: name, title, personal email and LinkedIn profile.
type ContactEnrichment struct {
	deps Deps
}

// Name implements Strategy.
func (s *ContactEnrichment) Name() string { return NameContactEnrichment }

// Discover implements Strategy.
func (s *ContactEnrichment) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Website == "" {
		return nil, nil
	}

	var pages []*transport.Document
	home, err := f.Fetch(ctx, rec.Website, nil)
	if err != nil {
		zap.L().Debug("strategy: contact homepage failed", zap.String("url", rec.Website), zap.Error(err))
	} else {
		pages = append(pages, home)
	}

	u := model.FieldUpdate{}
	owner := rec.OwnerName
	if owner == "" {
		found := false
		if home != nil {
			found = s.setOwner(u, home)
		}
		if !found {
			for _, link := range aboutLinks(home, rec.Website) {
				doc, err := f.Fetch(ctx, link, nil)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					continue
				}
				if s.setOwner(u, doc) {
					pages = append(pages, doc)
					break
				}
			}
		}
		owner, _ = u[model.FieldOwnerName].(string)
	}

	var emails orderedSet
	for _, doc := range pages {
		pageEmails(doc, &emails)
	}
	business, personal := splitEmails(s.deps.Policy.rankEmails(emails.list, siteHost(rec)))
	if rec.Email == "" && business != "" {
		u[model.FieldEmail] = business
	}
	if rec.OwnerEmail == "" && personal != "" {
		u[model.FieldOwnerEmail] = personal
	}

	if owner != "" && rec.OwnerLinkedIn == "" {
		for _, doc := range pages {
			if li := profileLink(doc); li != "" {
				u[model.FieldOwnerLinkedIn] = li
				break
			}
		}
	}
	return u, nil
}

// setOwner writes the most trusted owner mention on doc into u.
func (s *ContactEnrichment) setOwner(u model.FieldUpdate, doc *transport.Document) bool {
	name, title, ok := ldOwner(doc)
	if !ok {
		name, title, ok = findOwner(doc.Text())
	}
	if !ok {
		name, title, ok = photoOwner(doc)
	}
	if !ok {
		return false
	}
	u[model.FieldOwnerName] = name
	u[model.FieldOwnerTitle] = title
	return true
}

// aboutLinks returns the about pages to try: those the homepage links to,
// or the first few conventional paths when it links to none.
func aboutLinks(home *transport.Document, site string) []string {
	base := strings.TrimRight(site, "/")
	if home != nil {
		linked := map[string]bool{}
		for _, l := range home.Links() {
			u, err := url.Parse(l.URL)
			if l.URL == "" || err != nil {
				continue
			}
			linked[strings.ToLower(strings.TrimRight(u.Path, "/"))] = true
		}
		var out []string
		for _, p := range aboutPaths {
			if linked[p] {
				out = append(out, base+p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	out := make([]string, 0, maxAboutProbes)
	for _, p := range aboutPaths[:maxAboutProbes] {
		out = append(out, base+p)
	}
	return out
}

// ldOwner reads a schema.org founder or employee.
func ldOwner(doc *transport.Document) (name, title string, ok bool) {
	for _, node := range doc.JSONLD() {
		m, isMap := node.(map[string]any)
		if !isMap {
			continue
		}
		for _, key := range []string{"founder", "employee"} {
			person := m[key]
			if list, isList := person.([]any); isList && len(list) > 0 {
				person = list[0]
			}
			switch p := person.(type) {
			case string:
				name, title = p, "Owner"
			case map[string]any:
				name, _ = p["name"].(string)
				title, _ = p["jobTitle"].(string)
				if title == "" {
					title = "Owner"
				}
			default:
				continue
			}
			name = strings.Join(strings.Fields(name), " ")
			if ValidPersonName(name) {
				return name, title, true
			}
		}
	}
	return "", "", false
}

// photoOwner looks for a name in image alt text or a figure caption with a
// decision-maker title nearby.
func photoOwner(doc *transport.Document) (name, title string, ok bool) {
	var captions []string
	for _, n := range doc.Select("img[alt]") {
		text := transport.Attr(n, "alt")
		if n.Parent != nil {
			text += " " + transport.NodeText(n.Parent)
		}
		captions = append(captions, text)
	}
	for _, n := range doc.Select("figcaption") {
		captions = append(captions, transport.NodeText(n))
	}

	for _, c := range captions {
		if name, title, ok := findOwner(c); ok {
			return name, title, true
		}
		t := titleIn(c)
		if t == "" {
			continue
		}
		for _, m := range personRe.FindAllString(c, -1) {
			cand := strings.Join(strings.Fields(m), " ")
			if ValidPersonName(cand) {
				return cand, t, true
			}
		}
	}
	return "", "", false
}

// profileLink returns the first personal LinkedIn profile linked from doc.
func profileLink(doc *transport.Document) string {
	for _, n := range doc.Select(`a[href*="linkedin.com/in/"]`) {
		href := transport.Attr(n, "href")
		if strings.Contains(href, "company") {
			continue
		}
		return strings.TrimRight(href, "/")
	}
	return ""
}
