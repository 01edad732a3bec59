package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

func ptr[T any](v T) *T { return &v }

func fullRecord() model.Record {
	return model.Record{
		BusinessName:      "Ace Plumbing",
		Phone:             "+15125550100",
		Email:             "jane@aceplumbing.com",
		Website:           "https://aceplumbing.com",
		Address:           "100 Main St",
		City:              "Austin",
		State:             "TX",
		Category:          "Plumber",
		OwnerName:         "Jane Doe",
		OwnerTitle:        "Owner",
		OwnerEmail:        "jane@aceplumbing.com",
		OwnerPhone:        "+15125550101",
		OwnerLinkedIn:     "https://www.linkedin.com/in/janedoe",
		GoogleRating:      ptr(4.6),
		GoogleReviewCount: ptr(120),
		YelpRating:        ptr(4.5),
		EmployeeCount:     ptr(12),
		YearEstablished:   ptr(2010),
		FacebookURL:       "https://facebook.com/ace",
		InstagramURL:      "https://instagram.com/ace",
		LinkedInURL:       "https://linkedin.com/company/ace",
	}
}

func TestCompleteness_Empty(t *testing.T) {
	assert.Equal(t, 0, Completeness(model.Record{}))
}

func TestCompleteness_Full(t *testing.T) {
	b := CompletenessBreakdown(fullRecord())
	assert.Equal(t, 100, b.Total)
	assert.Equal(t, 40, b.Components["core"])
	assert.Equal(t, 30, b.Components["decision_maker"])
	assert.Equal(t, 15, b.Components["details"])
	assert.Equal(t, 15, b.Components["presence"])
}

func TestCompleteness_PersonalEmailWorthMore(t *testing.T) {
	role := model.Record{BusinessName: "Ace", Email: "info@ace.com"}
	personal := model.Record{BusinessName: "Ace", Email: "jane@ace.com"}

	assert.Equal(t, 15, Completeness(role))
	assert.Equal(t, 20, Completeness(personal))
}

func TestCompleteness_SocialCapped(t *testing.T) {
	rec := model.Record{
		FacebookURL:  "https://facebook.com/a",
		InstagramURL: "https://instagram.com/a",
		LinkedInURL:  "https://linkedin.com/company/a",
		TwitterURL:   "https://twitter.com/a",
	}
	assert.Equal(t, 8, Completeness(rec))
}

func TestProspect_Empty(t *testing.T) {
	b := ProspectBreakdown(model.Record{}, 2026)
	// No website and no social presence are both opportunity signals.
	assert.Equal(t, 9, b.Total)
	assert.Equal(t, 9, b.Components["opportunity"])
}

func TestProspect_EstablishedBusiness(t *testing.T) {
	rec := model.Record{
		BusinessName:      "Ace Plumbing",
		Phone:             "+15125550100",
		Address:           "100 Main St",
		City:              "Austin",
		State:             "TX",
		Website:           "https://aceplumbing.com",
		OwnerName:         "Jane Doe",
		OwnerEmail:        "jane@aceplumbing.com",
		GoogleRating:      ptr(4.6),
		GoogleReviewCount: ptr(120),
		YearEstablished:   ptr(2010),
		HasSSL:            ptr(true),
		MobileFriendly:    ptr(true),
		FacebookURL:       "https://facebook.com/ace",
		InstagramURL:      "https://instagram.com/ace",
	}

	b := ProspectBreakdown(rec, 2026)
	assert.Equal(t, 25, b.Components["reachability"])
	assert.Equal(t, 22, b.Components["business_health"])
	assert.Equal(t, 11, b.Components["digital"])
	assert.Equal(t, 4, b.Components["opportunity"], "website without ad spend")
	assert.Equal(t, 62, b.Total)
}

func TestProspect_EmailTiers(t *testing.T) {
	tests := []struct {
		name string
		rec  model.Record
		want int
	}{
		{"owner email", model.Record{OwnerEmail: "jane@ace.com", Email: "info@ace.com"}, 10},
		{"personal main email", model.Record{Email: "jane@ace.com"}, 8},
		{"role email", model.Record{Email: "info@ace.com"}, 3},
		{"none", model.Record{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ProspectBreakdown(tt.rec, 2026)
			assert.Equal(t, tt.want, b.Components["reachability"])
		})
	}
}

func TestProspect_LowRatingIsOpportunity(t *testing.T) {
	rec := model.Record{GoogleRating: ptr(3.2), GoogleReviewCount: ptr(10)}
	b := ProspectBreakdown(rec, 2026)

	assert.Equal(t, 3, b.Components["business_health"])
	assert.Equal(t, 12, b.Components["opportunity"])
	assert.Equal(t, 15, b.Total)
}

func TestProspect_OutdatedPlatform(t *testing.T) {
	rec := model.Record{Website: "https://ace.weebly.com", WebsitePlatform: "Weebly"}
	b := ProspectBreakdown(rec, 2026)

	assert.Equal(t, 4, b.Components["digital"])
	assert.Equal(t, 12, b.Components["opportunity"])
}

func TestProspect_AdsSignal(t *testing.T) {
	both := model.Record{Website: "https://a.com", RunsGoogleAds: ptr(true), RunsFacebookAds: ptr(true)}
	one := model.Record{Website: "https://a.com", RunsGoogleAds: ptr(true)}

	assert.Equal(t, 9, ProspectBreakdown(both, 2026).Components["digital"])
	assert.Equal(t, 7, ProspectBreakdown(one, 2026).Components["digital"])
	assert.Equal(t, 4, ProspectBreakdown(one, 2026).Components["opportunity"], "no social only")
}

func TestScores_Bounded(t *testing.T) {
	records := []model.Record{
		{},
		fullRecord(),
		{GoogleRating: ptr(-1.0), GoogleReviewCount: ptr(-5), YearEstablished: ptr(3000)},
		{GoogleRating: ptr(9.9), GoogleReviewCount: ptr(1 << 30), YearEstablished: ptr(1)},
	}
	full := fullRecord()
	full.HasSSL, full.MobileFriendly = ptr(true), ptr(true)
	full.RunsGoogleAds, full.RunsFacebookAds = ptr(true), ptr(true)
	full.BBBAccredited, full.HasGoogleBusinessProfile = ptr(true), ptr(true)
	full.TwitterURL, full.YouTubeURL, full.TikTokURL = "https://x.com/a", "https://youtube.com/@a", "https://tiktok.com/@a"
	records = append(records, full)

	for i, rec := range records {
		c, p := Completeness(rec), Prospect(rec)
		assert.GreaterOrEqual(t, c, 0, "record %d", i)
		assert.LessOrEqual(t, c, 100, "record %d", i)
		assert.GreaterOrEqual(t, p, 0, "record %d", i)
		assert.LessOrEqual(t, p, 100, "record %d", i)
	}
}
