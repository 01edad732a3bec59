package strategy

import (
	"cmp"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/blok-blok-studio/leadscraper/internal/clean"
	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

var (
	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe      = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?(\d{3})\)?[\s.\-]?(\d{3})[\s.\-]?(\d{4})`)
	obfuscatedRe = regexp.MustCompile(`([a-zA-Z0-9._%+\-]+)\s*[\[(]\s*(?i:at)\s*[\])]\s*([a-zA-Z0-9.\-]+)\s*[\[(]\s*(?i:dot)\s*[\])]\s*([a-zA-Z]{2,})`)
	concatRe     = regexp.MustCompile(`["']([a-zA-Z0-9._%+\-]+)["']\s*\+\s*["']@["']\s*\+\s*["']([a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})["']`)
	viewportRe   = regexp.MustCompile(`(?i)<meta[^>]*name=["']viewport["']`)
)

// junkEmailPrefixes are automated or placeholder mailboxes.
var junkEmailPrefixes = map[string]bool{
	"noreply": true, "no-reply": true, "donotreply": true, "do-not-reply": true,
	"mailer-daemon": true, "postmaster": true, "webmaster": true, "hostmaster": true,
	"abuse": true, "test": true, "null": true, "devnull": true, "root": true, "user": true,
}

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// orderedSet keeps the first-seen order of unique strings.
type orderedSet struct {
	seen map[string]bool
	list []string
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.list = append(s.list, v)
}

func (s *orderedSet) len() int { return len(s.list) }

// textEmails returns the addresses found in free text.
func textEmails(text string) []string {
	var out []string
	for _, m := range emailRe.FindAllString(text, -1) {
		out = append(out, strings.ToLower(strings.Trim(m, ".")))
	}
	return out
}

// mailtoEmails returns the addresses of the mailto links in doc.
func mailtoEmails(doc *transport.Document) []string {
	var out []string
	for _, n := range doc.Select(`a[href^="mailto:"], a[href^="MAILTO:"]`) {
		addr, _, _ := strings.Cut(transport.Attr(n, "href")[len("mailto:"):], "?")
		if e := clean.Email(addr); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// pageEmails collects addresses from the visible text, mailto links, meta
// tags, JSON-LD and inline scripts of doc, including obfuscated forms.
func pageEmails(doc *transport.Document, into *orderedSet) {
	for _, e := range textEmails(doc.Text()) {
		into.add(e)
	}
	for _, e := range mailtoEmails(doc) {
		into.add(e)
	}
	for _, n := range doc.Select("meta[content]") {
		content := transport.Attr(n, "content")
		switch strings.ToLower(transport.Attr(n, "name")) {
		case "email", "contact-email":
			into.add(clean.Email(content))
		}
		for _, e := range textEmails(content) {
			into.add(e)
		}
	}
	walkLD(doc.JSONLD(), func(key, val string) {
		if strings.Contains(strings.ToLower(key), "email") {
			into.add(clean.Email(val))
		}
	})
	for _, m := range obfuscatedRe.FindAllStringSubmatch(doc.Text(), -1) {
		into.add(clean.Email(m[1] + "@" + m[2] + "." + m[3]))
	}
	for _, n := range doc.Select("script:not([src])") {
		src := transport.RawText(n)
		for _, m := range concatRe.FindAllStringSubmatch(src, -1) {
			into.add(clean.Email(m[1] + "@" + m[2]))
		}
		for _, e := range textEmails(src) {
			into.add(e)
		}
	}
}

// pagePhones collects E.164 numbers from tel: links, JSON-LD and text, in
// that order of reliability.
func pagePhones(doc *transport.Document, into *orderedSet) {
	for _, n := range doc.Select(`a[href^="tel:"]`) {
		into.add(clean.Phone(strings.TrimPrefix(transport.Attr(n, "href"), "tel:")))
	}
	for _, p := range ldPhones(doc) {
		into.add(p)
	}
	for _, p := range textPhones(doc.Text()) {
		into.add(p)
	}
}

func textPhones(text string) []string {
	var out []string
	for _, m := range phoneRe.FindAllStringSubmatch(text, -1) {
		if p := clean.Phone(m[1] + m[2] + m[3]); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ldPhones(doc *transport.Document) []string {
	var out []string
	walkLD(doc.JSONLD(), func(key, val string) {
		k := strings.ToLower(key)
		if strings.Contains(k, "phone") || k == "telephone" {
			if p := clean.Phone(val); p != "" {
				out = append(out, p)
			}
		}
	})
	return out
}

// walkLD visits every string value in a JSON-LD tree with its key. Map keys
// are visited in sorted order.
func walkLD(v any, fn func(key, val string)) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			walkLD(item, fn)
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch val := x[k].(type) {
			case string:
				fn(k, val)
			case []any:
				for _, item := range val {
					if s, ok := item.(string); ok {
						fn(k, s)
					} else {
						walkLD(item, fn)
					}
				}
			default:
				walkLD(val, fn)
			}
		}
	}
}

// usableEmail reports whether addr is worth keeping.
func (p Policy) usableEmail(addr string) bool {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" || len(addr) > 60 {
		return false
	}
	if p.junkDomain(domain) || junkEmailPrefixes[local] {
		return false
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(domain, s) {
			return false
		}
	}
	return true
}

func (p Policy) junkDomain(domain string) bool {
	if strings.HasPrefix(domain, "google.") || strings.Contains(domain, ".google.") {
		return true
	}
	return p.junkEmails[domain]
}

// rankEmails filters junk and orders the rest: addresses on the business
// domain first, then personal before role addresses.
func (p Policy) rankEmails(emails []string, siteHost string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if p.usableEmail(e) {
			out = append(out, e)
		}
	}
	score := func(e string) int {
		s := 0
		if siteHost != "" && strings.HasSuffix(model.Domain(e), siteHost) {
			s -= 100
		}
		if !model.IsRoleEmail(e) {
			s -= 10
		}
		return s
	}
	slices.SortStableFunc(out, func(a, b string) int { return cmp.Compare(score(a), score(b)) })
	return out
}

// splitEmails returns the first role address and the first personal address.
func splitEmails(ranked []string) (business, owner string) {
	for _, e := range ranked {
		if model.IsRoleEmail(e) {
			if business == "" {
				business = e
			}
		} else if owner == "" {
			owner = e
		}
	}
	return business, owner
}

// choosePhone prefers a local number; a toll-free number is used only when
// it is the only kind found and the policy accepts it.
func (p Policy) choosePhone(phones []string) string {
	for _, ph := range phones {
		if !clean.IsTollFree(ph) {
			return ph
		}
	}
	if p.AcceptTollFree && len(phones) > 0 {
		return phones[0]
	}
	return ""
}

// emailUpgrade decides whether found should be written over current.
func emailUpgrade(current, found string) bool {
	if found == "" {
		return false
	}
	if current == "" {
		return true
	}
	return model.IsRoleEmail(current) && !model.IsRoleEmail(found)
}
