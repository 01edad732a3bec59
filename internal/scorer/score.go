// Package scorer computes the two lead scores written at the end of
// enrichment: a data-completeness score and a prospect-value score. Both are
// pure functions of the record.
package scorer

import (
	"strings"
	"time"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// Breakdown is a score with its per-group components.
type Breakdown struct {
	Total      int            `json:"total"`
	Components map[string]int `json:"components"`
}

// Completeness returns the 0-100 data-completeness (quality) score.
func Completeness(rec model.Record) int {
	return CompletenessBreakdown(rec).Total
}

// CompletenessBreakdown returns the completeness score with its groups:
// core identity (max 40), decision maker (30), business details (15) and
// online presence (15).
func CompletenessBreakdown(rec model.Record) Breakdown {
	var core, owner, details, presence int

	if rec.BusinessName != "" {
		core += 8
	}
	if rec.Phone != "" {
		core += 10
	}
	if rec.Email != "" {
		if model.IsRoleEmail(rec.Email) {
			core += 7
		} else {
			core += 12
		}
	}
	if hasAddress(rec) {
		core += 10
	}

	if rec.OwnerName != "" {
		owner += 10
	}
	if rec.OwnerEmail != "" {
		owner += 8
	}
	if rec.OwnerLinkedIn != "" {
		owner += 5
	}
	if rec.OwnerTitle != "" {
		owner += 3
	}
	if rec.OwnerPhone != "" {
		owner += 4
	}

	if rec.Website != "" {
		details += 4
	}
	if rec.Category != "" {
		details += 3
	}
	if rec.EmployeeCount != nil && *rec.EmployeeCount > 0 {
		details += 4
	}
	if rec.YearEstablished != nil && *rec.YearEstablished > 0 {
		details += 4
	}

	if rec.GoogleRating != nil && *rec.GoogleRating > 0 {
		presence += 4
	}
	if rec.YelpRating != nil && *rec.YelpRating > 0 {
		presence += 3
	}
	// Only the three main networks count here.
	n := 0
	for _, u := range []string{rec.FacebookURL, rec.InstagramURL, rec.LinkedInURL} {
		if u != "" {
			n++
		}
	}
	presence += min(n*3, 8)

	return breakdown(map[string]int{
		"core":           core,
		"decision_maker": owner,
		"details":        details,
		"presence":       presence,
	})
}

// outdatedPlatforms are site builders whose users are likely upgrade prospects.
var outdatedPlatforms = map[string]bool{
	"weebly": true, "godaddy": true, "jimdo": true,
	"blogger": true, "homestead": true, "tripod": true,
}

// Prospect returns the 0-100 prospect-value (ICP) score.
func Prospect(rec model.Record) int {
	return ProspectBreakdown(rec, time.Now().Year()).Total
}

// ProspectBreakdown returns the prospect score with its groups: reachability
// (max 35), business health (25), digital presence (20) and opportunity
// signals (20). year anchors the years-in-business tiers.
func ProspectBreakdown(rec model.Record, year int) Breakdown {
	var reach, health, digital, opportunity int

	// Reachability.
	if rec.OwnerName != "" {
		reach += 10
	}
	switch {
	case rec.OwnerEmail != "":
		reach += 10
	case rec.Email != "" && !model.IsRoleEmail(rec.Email):
		reach += 8
	case rec.Email != "":
		reach += 3
	}
	switch {
	case rec.OwnerPhone != "":
		reach += 8
	case rec.Phone != "":
		reach += 5
	}
	if rec.OwnerLinkedIn != "" {
		reach += 7
	}

	// Business health.
	rating, hasRating := floatVal(rec.GoogleRating)
	reviews := intVal(rec.GoogleReviewCount)
	if hasRating {
		switch {
		case rating >= 4.5:
			health += 8
		case rating >= 4.0:
			health += 6
		case rating >= 3.5:
			health += 4
		case rating >= 3.0:
			health += 2
		}
	}
	switch {
	case reviews >= 100:
		health += 7
	case reviews >= 50:
		health += 5
	case reviews >= 20:
		health += 3
	case reviews >= 5:
		health += 1
	}
	if est := intVal(rec.YearEstablished); est > 0 {
		switch age := year - est; {
		case age >= 10:
			health += 5
		case age >= 5:
			health += 4
		case age >= 2:
			health += 3
		case age >= 1:
			health += 1
		}
	}
	if boolVal(rec.BBBAccredited) {
		health += 3
	}
	if hasAddress(rec) {
		health += 2
	}

	// Digital presence.
	hasSite := rec.Website != "" || boolVal(rec.HasWebsite)
	if hasSite {
		digital += 4
	}
	if boolVal(rec.HasSSL) {
		digital += 1
	}
	if boolVal(rec.MobileFriendly) {
		digital += 2
	}
	social := socialCount(rec)
	digital += min(social*2, 5)
	if boolVal(rec.HasGoogleBusinessProfile) {
		digital += 3
	}
	googleAds, fbAds := boolVal(rec.RunsGoogleAds), boolVal(rec.RunsFacebookAds)
	switch {
	case googleAds && fbAds:
		digital += 5
	case googleAds || fbAds:
		digital += 3
	}

	// Opportunity signals reward what the business lacks.
	if !hasSite {
		opportunity += 5
	}
	if outdatedPlatforms[strings.ToLower(rec.WebsitePlatform)] {
		opportunity += 4
	}
	if hasRating && rating < 3.5 && reviews > 5 {
		opportunity += 3
	}
	if social == 0 {
		opportunity += 4
	}
	if hasSite && !googleAds && !fbAds {
		opportunity += 4
	}

	return breakdown(map[string]int{
		"reachability":    reach,
		"business_health": health,
		"digital":         digital,
		"opportunity":     opportunity,
	})
}

func breakdown(components map[string]int) Breakdown {
	total := 0
	for _, v := range components {
		total += v
	}
	return Breakdown{Total: clamp(total), Components: components}
}

func clamp(n int) int {
	return max(0, min(n, 100))
}

func hasAddress(rec model.Record) bool {
	return rec.Address != "" && rec.City != "" && rec.State != ""
}

func socialCount(rec model.Record) int {
	n := 0
	for _, f := range model.SocialFields {
		if rec.Has(f) {
			n++
		}
	}
	return n
}

func floatVal(p *float64) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

func intVal(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func boolVal(p *bool) bool {
	return p != nil && *p
}
