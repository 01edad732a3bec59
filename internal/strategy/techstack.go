package strategy

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

type signature struct {
	name     string
	patterns []*regexp.Regexp
}

func sig(name string, patterns ...string) signature {
	s := signature{name: name}
	for _, p := range patterns {
		s.patterns = append(s.patterns, regexp.MustCompile(`(?i)`+p))
	}
	return s
}

func (s signature) match(html string) bool {
	for _, re := range s.patterns {
		if re.MatchString(html) {
			return true
		}
	}
	return false
}

// platformSignatures are checked in order; the first match names the platform.
var platformSignatures = []signature{
	sig("WordPress", `wp-content`, `wp-includes`, `wordpress`, `<meta name="generator" content="WordPress`),
	sig("Shopify", `cdn\.shopify\.com`, `shopify\.com`, `Shopify\.theme`),
	sig("Wix", `wix\.com`, `wixstatic\.com`, `X-Wix-`),
	sig("Squarespace", `squarespace\.com`, `sqsp\.com`, `squarespace-cdn`),
	sig("GoDaddy", `godaddy\.com`, `secureserver\.net`, `wsimg\.com`),
	sig("Weebly", `weebly\.com`, `editmysite\.com`),
	sig("Webflow", `webflow\.com`, `assets\.website-files\.com`),
	sig("Joomla", `/media/jui/`, `<meta name="generator" content="Joomla`),
	sig("Drupal", `drupal\.js`, `sites/default/files`, `Drupal\.settings`),
}

var techSignatures = []signature{
	sig("Google Analytics", `google-analytics\.com`, `gtag`, `UA-\d+`),
	sig("Google Tag Manager", `googletagmanager\.com`, `GTM-`),
	sig("Facebook Pixel", `connect\.facebook\.net`, `fbq\(`),
	sig("Hotjar", `hotjar\.com`, `hj\(`),
	sig("Mailchimp", `mailchimp\.com`, `mc\.us\d+`),
	sig("HubSpot", `hubspot\.com`, `hs-scripts`),
	sig("Intercom", `intercom\.io`, `widget\.intercom\.io`),
	sig("Zendesk", `zendesk\.com`, `zdassets\.com`),
	sig("LiveChat", `livechatinc\.com`, `livechat`),
	sig("Calendly", `calendly\.com`),
	sig("Stripe", `stripe\.com`, `js\.stripe`),
	sig("PayPal", `paypal\.com`, `paypalobjects\.com`),
	sig("jQuery", `jquery[\.-]`, `jquery\.min\.js`),
	sig("React", `react\.production`, `__NEXT_DATA__`, `_next/`),
	sig("Vue.js", `vue\.js`, `vue\.min\.js`, `__vue__`),
	sig("Bootstrap", `bootstrap\.min`, `bootstrap\.css`),
	sig("Tailwind CSS", `tailwindcss`, `tailwind\.css`),
}

var (
	googleAdsRe   = regexp.MustCompile(`(?i)googleads|adwords|gads|google_ads`)
	facebookAdsRe = regexp.MustCompile(`(?i)facebook.*pixel|fbq\(|fb-pixel`)
)

// TechStack fingerprints the website's platform, tools, hosting headers
// and ad pixels.
type TechStack struct {
	deps Deps
}

// Name implements Strategy.
func (s *TechStack) Name() string { return NameTechStack }

// RequiresWebsite implements WebsiteDependent.
func (s *TechStack) RequiresWebsite() bool { return true }

// Discover implements Strategy.
func (s *TechStack) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Website == "" {
		return nil, nil
	}
	doc, err := f.Fetch(ctx, rec.Website, nil)
	if err != nil {
		zap.L().Debug("strategy: tech stack fetch failed", zap.String("url", rec.Website), zap.Error(err))
		return nil, nil
	}
	if doc.Blocked {
		return nil, nil
	}
	html := doc.HTML()

	u := model.FieldUpdate{}
	for _, p := range platformSignatures {
		if p.match(html) {
			u[model.FieldWebsitePlatform] = p.name
			break
		}
	}

	var tech []string
	for _, t := range techSignatures {
		if t.match(html) {
			tech = append(tech, t.name)
		}
	}
	server := strings.ToLower(doc.Header.Get("Server"))
	switch {
	case strings.Contains(server, "nginx"):
		tech = append(tech, "Nginx")
	case strings.Contains(server, "apache"):
		tech = append(tech, "Apache")
	case strings.Contains(server, "cloudflare"):
		tech = append(tech, "Cloudflare")
	}
	powered := strings.ToLower(doc.Header.Get("X-Powered-By"))
	switch {
	case strings.Contains(powered, "php"):
		tech = append(tech, "PHP")
	case strings.Contains(powered, "asp.net"):
		tech = append(tech, "ASP.NET")
	case strings.Contains(powered, "express"):
		tech = append(tech, "Express.js")
	}
	u.Set(model.FieldTechStack, tech)

	u[model.FieldHasSSL] = strings.HasPrefix(strings.ToLower(rec.Website), "https://")
	u[model.FieldMobileFriendly] = doc.Exists(`meta[name="viewport"]`) || viewportRe.MatchString(html)
	u[model.FieldRunsGoogleAds] = googleAdsRe.MatchString(html)
	u[model.FieldRunsFacebookAds] = facebookAdsRe.MatchString(html)
	return u, nil
}
