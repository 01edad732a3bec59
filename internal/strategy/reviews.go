package strategy

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

const yelpSearchURL = "https://www.yelp.com/search"

// yelpReady waits for the client-rendered result list.
var yelpReady = transport.WaitCondition{
	Selector: `[class*="searchResult"], [data-testid*="serp"]`,
	Settle:   4 * time.Second,
}

// ReviewsRatings collects Google and Yelp ratings. Each source is skipped
// when its rating is already known.
type ReviewsRatings struct {
	deps Deps
}

// Name implements Strategy.
func (s *ReviewsRatings) Name() string { return NameReviewsRatings }

// Discover implements Strategy.
func (s *ReviewsRatings) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.BusinessName == "" {
		return nil, nil
	}
	u := model.FieldUpdate{}

	if rec.GoogleRating == nil {
		q := rec.BusinessName + " " + rec.City + " " + rec.State
		if res := s.deps.search(ctx, f, s.Name(), q, 0); res != nil {
			if rating, reviews, ok := res.Rating(); ok {
				u[model.FieldGoogleRating] = rating
				u[model.FieldGoogleReviewCount] = reviews
			}
			if res.HasBusinessProfile() {
				u[model.FieldHasGoogleBusinessProfile] = true
			}
		}
	}

	if rec.YelpRating == nil {
		params := url.Values{
			"find_desc": {rec.BusinessName},
			"find_loc":  {strings.TrimSpace(rec.City + ", " + rec.State)},
		}
		doc, err := f.Fetch(ctx, yelpSearchURL, params)
		if err == nil && doc.Blocked {
			doc, err = f.FetchRendered(ctx, yelpSearchURL+"?"+params.Encode(), yelpReady)
		}
		if err != nil {
			zap.L().Debug("strategy: yelp search failed", zap.String("business", rec.BusinessName), zap.Error(err))
		} else if !doc.Blocked {
			if rating, reviews, ok := yelpRating(doc, rec.BusinessName); ok {
				u[model.FieldYelpRating] = rating
				u.Set(model.FieldYelpReviewCount, reviews)
			}
		}
	}
	return u, nil
}

// yelpRating finds the listing named like business in the results page's
// JSON-LD ItemList. A zero review count is reported as nil.
func yelpRating(doc *transport.Document, business string) (rating float64, reviews any, ok bool) {
	for _, node := range doc.JSONLD() {
		m, isMap := node.(map[string]any)
		if !isMap || m["@type"] != "ItemList" {
			continue
		}
		items, _ := m["itemListElement"].([]any)
		for _, it := range items {
			entry, _ := it.(map[string]any)
			biz, _ := entry["item"].(map[string]any)
			name, _ := biz["name"].(string)
			if name == "" || !namesMatch(name, business) {
				continue
			}
			agg, _ := biz["aggregateRating"].(map[string]any)
			r, rok := number(agg["ratingValue"])
			if !rok || r <= 0 || r > 5 {
				return 0, nil, false
			}
			if c, cok := number(agg["reviewCount"]); cok && c > 0 {
				reviews = int(c)
			}
			return r, reviews, true
		}
	}
	return 0, nil, false
}

// namesMatch compares business names ignoring case and punctuation; one
// containing the other counts as a match.
func namesMatch(a, b string) bool {
	na := nonAlnum.ReplaceAllString(strings.ToLower(a), "")
	nb := nonAlnum.ReplaceAllString(strings.ToLower(b), "")
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
