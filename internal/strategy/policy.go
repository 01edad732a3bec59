package strategy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy holds the tunable rules shared by the strategies.
type Policy struct {
	// AcceptTollFree lets a toll-free number be written when it is the only
	// number found. When false toll-free numbers are never written.
	AcceptTollFree bool `yaml:"accept_toll_free"`
	// MaxExtraPages bounds the internal pages crawled after a homepage.
	MaxExtraPages int `yaml:"max_extra_pages"`
	// ExcludedDomains extends the directory and social domains that are
	// never taken as a business website.
	ExcludedDomains []string `yaml:"excluded_domains"`
	// JunkEmailDomains extends the platform and placeholder email domains.
	JunkEmailDomains []string `yaml:"junk_email_domains"`

	excluded   map[string]bool
	junkEmails map[string]bool
}

var defaultExcludedDomains = []string{
	"yelp.com", "yellowpages.com", "bbb.org", "facebook.com",
	"instagram.com", "twitter.com", "x.com", "linkedin.com",
	"youtube.com", "tiktok.com", "mapquest.com", "superpages.com",
	"whitepages.com", "manta.com", "angieslist.com", "homeadvisor.com",
	"thumbtack.com", "nextdoor.com", "google.com", "bing.com",
	"apple.com", "amazon.com", "wikipedia.org", "tripadvisor.com",
	"indeed.com", "glassdoor.com", "foursquare.com", "porch.com",
	"houzz.com", "bark.com", "expertise.com", "citysearch.com",
	"chamberofcommerce.com", "dandb.com", "merchantcircle.com",
	"buildzoom.com", "networx.com", "angi.com", "pinterest.com",
	"reddit.com", "gstatic.com", "googleusercontent.com",
}

var defaultJunkEmailDomains = []string{
	"example.com", "domain.com", "email.com", "test.com",
	"sentry.io", "wixpress.com", "wordpress.com",
	"squarespace.com", "godaddy.com", "weebly.com", "wix.com",
	"shopify.com", "googleapis.com", "gravatar.com", "w3.org",
	"schema.org", "facebook.com", "twitter.com", "instagram.com",
	"cloudflare.com", "google.com", "gstatic.com", "jquery.com",
	"bootstrapcdn.com", "jsdelivr.net", "unpkg.com", "cdnjs.com",
	"fontawesome.com", "sonsio.com", "shell.com",
	"yelp.com", "bbb.org", "yellowpages.com",
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{AcceptTollFree: true, MaxExtraPages: 2}.compile()
}

// LoadPolicy reads a policy from a YAML file with a top-level "policy" key
// on top of base. Keys the file leaves out keep their base values. Lists in
// the file extend the built-in lists.
func LoadPolicy(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "strategy: read policy %s", path)
	}

	wrapper := struct {
		Policy Policy `yaml:"policy"`
	}{Policy: base}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "strategy: parse policy")
	}
	if wrapper.Policy.MaxExtraPages < 0 {
		return Policy{}, eris.New("strategy: max_extra_pages must not be negative")
	}
	return wrapper.Policy.compile(), nil
}

func (p Policy) compile() Policy {
	p.excluded = domainSet(defaultExcludedDomains, p.ExcludedDomains)
	p.junkEmails = domainSet(defaultJunkEmailDomains, p.JunkEmailDomains)
	return p
}

func domainSet(lists ...[]string) map[string]bool {
	m := make(map[string]bool)
	for _, l := range lists {
		for _, d := range l {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				m[d] = true
			}
		}
	}
	return m
}

// Excluded reports whether host belongs to a directory or social domain.
func (p Policy) Excluded(host string) bool {
	if p.excluded == nil {
		p = p.compile()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for {
		if p.excluded[host] {
			return true
		}
		_, rest, ok := strings.Cut(host, ".")
		if !ok || !strings.Contains(rest, ".") {
			return false
		}
		host = rest
	}
}
