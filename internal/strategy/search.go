package strategy

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// ErrSearchBlocked is returned when the search engine answers with a bot
// challenge instead of results.
var ErrSearchBlocked = eris.New("strategy: search blocked")

// SearchConfig configures the Searcher.
type SearchConfig struct {
	BaseURL          string
	NumResults       int
	QueriesPerMinute int
}

// Searcher issues web search queries through a Fetcher. Queries are rationed
// process-wide by a token bucket on top of the transport throttle.
type Searcher struct {
	cfg     SearchConfig
	limiter *rate.Limiter
}

// NewSearcher creates a Searcher. QueriesPerMinute <= 0 disables rationing.
func NewSearcher(cfg SearchConfig) *Searcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.google.com/search"
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 10
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.QueriesPerMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.QueriesPerMinute)), 1)
	}
	return &Searcher{cfg: cfg, limiter: lim}
}

// SearchURL returns the URL and params a query is fetched with.
func (s *Searcher) SearchURL(query string, num int) (string, url.Values) {
	if num <= 0 {
		num = s.cfg.NumResults
	}
	return s.cfg.BaseURL, url.Values{
		"q":   {strings.Join(strings.Fields(query), " ")},
		"num": {strconv.Itoa(num)},
	}
}

// Search runs one query. num <= 0 uses the configured result count.
func (s *Searcher) Search(ctx context.Context, f transport.Fetcher, query string, num int) (*SearchResults, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "strategy: search rate limit")
	}
	base, params := s.SearchURL(query, num)
	doc, err := f.Fetch(ctx, base, params)
	if err != nil {
		return nil, err
	}
	if doc.Blocked {
		return nil, ErrSearchBlocked
	}
	return &SearchResults{Doc: doc}, nil
}

// search runs a query and logs a failure instead of returning it. Search
// is never the only source of a field, so strategies degrade silently.
func (d Deps) search(ctx context.Context, f transport.Fetcher, strategy, query string, num int) *SearchResults {
	res, err := d.Search.Search(ctx, f, query, num)
	if err != nil {
		zap.L().Debug("strategy: search failed",
			zap.String("strategy", strategy),
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	return res
}

// SearchResults is one page of search results.
type SearchResults struct {
	Doc *transport.Document
}

// Text returns the visible text of the results page.
func (r *SearchResults) Text() string { return r.Doc.Text() }

// unwrapResult turns a /url?q= redirect into its target.
func unwrapResult(href string) string {
	if strings.HasPrefix(href, "/url?") {
		if u, err := url.Parse(href); err == nil {
			return u.Query().Get("q")
		}
		return ""
	}
	return href
}

// Targets returns the outbound result URLs in page order: anchors first,
// then the displayed URLs in <cite> elements.
func (r *SearchResults) Targets() []string {
	var out []string
	for _, n := range r.Doc.Select("a[href]") {
		href := transport.Attr(n, "href")
		target := unwrapResult(href)
		if !strings.HasPrefix(target, "http") {
			continue
		}
		if target == href && strings.Contains(href, "google.com") {
			continue
		}
		out = append(out, target)
	}
	for _, n := range r.Doc.Select("cite") {
		fields := strings.Fields(transport.NodeText(n))
		if len(fields) == 0 {
			continue
		}
		text := fields[0]
		switch {
		case strings.HasPrefix(text, "http"):
			out = append(out, text)
		case strings.Contains(text, ".") && !strings.Contains(text[:min(len(text), 20)], "/"):
			out = append(out, "https://"+text)
		}
	}
	return out
}

var textURLRe = regexp.MustCompile(`https?://[a-zA-Z0-9._\-]+\.[a-zA-Z]{2,}(?:/[^\s"<>]*)?`)

// Website returns the origin of the first result that is not a directory or
// social site. withText also considers bare URLs in the snippet text.
func (r *SearchResults) Website(p Policy, withText bool) string {
	candidates := r.Targets()
	if withText {
		candidates = append(candidates, textURLRe.FindAllString(r.Text(), -1)...)
	}
	for _, c := range candidates {
		u, err := url.Parse(c)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			continue
		}
		if p.Excluded(u.Hostname()) {
			continue
		}
		return transport.Origin(c)
	}
	return ""
}

var ratingRe = regexp.MustCompile(`(?i)(\d\.\d)\s*(?:\(|·)\s*(\d[\d,]*)\s*(?:reviews?|ratings?)`)

// Rating returns the first "4.5 (123 reviews)" style rating in the results.
func (r *SearchResults) Rating() (rating float64, reviews int, ok bool) {
	m := ratingRe.FindStringSubmatch(r.Text())
	if m == nil {
		return 0, 0, false
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil || rating > 5 {
		return 0, 0, false
	}
	reviews, err = strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return 0, 0, false
	}
	return rating, reviews, true
}

// HasBusinessProfile reports whether the results show a business profile
// panel or profile links.
func (r *SearchResults) HasBusinessProfile() bool {
	if r.Doc.Exists(`[data-attrid*="kc:"], .knowledge-panel, .kp-wholepage`) {
		return true
	}
	text := r.Text()
	return strings.Contains(text, "business.site") || strings.Contains(text, "google.com/maps")
}

// Emails returns the addresses in the snippet text followed by those of
// mailto result links.
func (r *SearchResults) Emails() []string {
	var found orderedSet
	for _, e := range textEmails(r.Text()) {
		found.add(e)
	}
	for _, e := range mailtoEmails(r.Doc) {
		found.add(e)
	}
	return found.list
}

// Email returns the best address in the results: a personal address first,
// then a role address on the business domain.
func (r *SearchResults) Email(p Policy, siteHost string) string {
	var personal, role []string
	for _, e := range r.Emails() {
		if !p.usableEmail(e) || len(e) > 50 {
			continue
		}
		switch {
		case !model.IsRoleEmail(e):
			personal = append(personal, e)
		case siteHost != "" && strings.HasSuffix(model.Domain(e), siteHost):
			role = append(role, e)
		}
	}
	if len(personal) > 0 {
		return personal[0]
	}
	if len(role) > 0 {
		return role[0]
	}
	return ""
}

// LinkedInProfile returns the first linkedin.com/in/ profile among the results.
func (r *SearchResults) LinkedInProfile() string {
	for _, n := range r.Doc.Select("a[href]") {
		href := unwrapResult(transport.Attr(n, "href"))
		if !strings.Contains(href, "linkedin.com/in/") {
			continue
		}
		if u, err := url.Parse(href); err == nil && strings.HasPrefix(u.Path, "/in/") {
			return "https://www.linkedin.com" + strings.TrimRight(u.Path, "/")
		}
	}
	return ""
}
