package model

import "time"

// Field is the canonical name of a Record attribute. The value doubles as the
// storage column name.
type Field string

// Identity fields.
const (
	FieldBusinessName Field = "business_name"
	FieldPhone        Field = "phone"
	FieldEmail        Field = "email"
	FieldWebsite      Field = "website"
	FieldAddress      Field = "address"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldZipCode      Field = "zip_code"
	FieldCategory     Field = "category"
)

// Decision-maker fields.
const (
	FieldOwnerName     Field = "owner_name"
	FieldOwnerTitle    Field = "owner_title"
	FieldOwnerEmail    Field = "owner_email"
	FieldOwnerPhone    Field = "owner_phone"
	FieldOwnerLinkedIn Field = "owner_linkedin"
)

// Business health fields.
const (
	FieldGoogleRating      Field = "google_rating"
	FieldGoogleReviewCount Field = "google_review_count"
	FieldYelpRating        Field = "yelp_rating"
	FieldYelpReviewCount   Field = "yelp_review_count"
	FieldBBBRating         Field = "bbb_rating"
	FieldBBBAccredited     Field = "bbb_accredited"
	FieldYearEstablished   Field = "year_established"
	FieldEmployeeCount     Field = "employee_count"
)

// Digital presence fields.
const (
	FieldHasWebsite               Field = "has_website"
	FieldWebsitePlatform          Field = "website_platform"
	FieldHasSSL                   Field = "has_ssl"
	FieldMobileFriendly           Field = "mobile_friendly"
	FieldTechStack                Field = "tech_stack"
	FieldFacebookURL              Field = "facebook_url"
	FieldInstagramURL             Field = "instagram_url"
	FieldTwitterURL               Field = "twitter_url"
	FieldLinkedInURL              Field = "linkedin_url"
	FieldYouTubeURL               Field = "youtube_url"
	FieldTikTokURL                Field = "tiktok_url"
	FieldRunsGoogleAds            Field = "runs_google_ads"
	FieldRunsFacebookAds          Field = "runs_facebook_ads"
	FieldHasGoogleBusinessProfile Field = "has_google_business_profile"
)

// Verification and meta fields.
const (
	FieldEmailVerified      Field = "email_verified"
	FieldOwnerEmailVerified Field = "owner_email_verified"
	FieldSource             Field = "source"
	FieldSourceURL          Field = "source_url"
	FieldScrapedAt          Field = "scraped_at"
	FieldEnrichedAt         Field = "enriched_at"
	FieldLastEnrichedAt     Field = "last_enriched_at"
	FieldIsEnriched         Field = "is_enriched"
	FieldEnrichmentErrors   Field = "enrichment_errors"
	FieldQualityScore       Field = "quality_score"
	FieldICPScore           Field = "icp_score"
)

// Kind is the storage type of a field.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindBool
	KindStrings
	KindTime
)

// Fields lists every persisted field in column order (the record id excluded).
var Fields = []Field{
	FieldBusinessName, FieldPhone, FieldEmail, FieldWebsite, FieldAddress,
	FieldCity, FieldState, FieldZipCode, FieldCategory,
	FieldOwnerName, FieldOwnerTitle, FieldOwnerEmail, FieldOwnerPhone, FieldOwnerLinkedIn,
	FieldGoogleRating, FieldGoogleReviewCount, FieldYelpRating, FieldYelpReviewCount,
	FieldBBBRating, FieldBBBAccredited, FieldYearEstablished, FieldEmployeeCount,
	FieldHasWebsite, FieldWebsitePlatform, FieldHasSSL, FieldMobileFriendly, FieldTechStack,
	FieldFacebookURL, FieldInstagramURL, FieldTwitterURL, FieldLinkedInURL,
	FieldYouTubeURL, FieldTikTokURL,
	FieldRunsGoogleAds, FieldRunsFacebookAds, FieldHasGoogleBusinessProfile,
	FieldEmailVerified, FieldOwnerEmailVerified,
	FieldSource, FieldSourceURL, FieldScrapedAt, FieldEnrichedAt, FieldLastEnrichedAt,
	FieldIsEnriched, FieldEnrichmentErrors, FieldQualityScore, FieldICPScore,
}

// SocialFields are the business social-profile URL fields.
var SocialFields = []Field{
	FieldFacebookURL, FieldInstagramURL, FieldTwitterURL,
	FieldLinkedInURL, FieldYouTubeURL, FieldTikTokURL,
}

// Kind returns the storage kind of f.
func (f Field) Kind() Kind {
	switch fieldRefs[f](&Record{}).(type) {
	case **float64:
		return KindFloat
	case **int:
		return KindInt
	case **bool, *bool:
		return KindBool
	case *[]string:
		return KindStrings
	case *time.Time, **time.Time:
		return KindTime
	default:
		return KindString
	}
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	_, ok := fieldRefs[f]
	return ok
}

// fieldRefs returns a pointer to the struct member backing each field.
var fieldRefs = map[Field]func(*Record) any{
	FieldBusinessName:             func(r *Record) any { return &r.BusinessName },
	FieldPhone:                    func(r *Record) any { return &r.Phone },
	FieldEmail:                    func(r *Record) any { return &r.Email },
	FieldWebsite:                  func(r *Record) any { return &r.Website },
	FieldAddress:                  func(r *Record) any { return &r.Address },
	FieldCity:                     func(r *Record) any { return &r.City },
	FieldState:                    func(r *Record) any { return &r.State },
	FieldZipCode:                  func(r *Record) any { return &r.ZipCode },
	FieldCategory:                 func(r *Record) any { return &r.Category },
	FieldOwnerName:                func(r *Record) any { return &r.OwnerName },
	FieldOwnerTitle:               func(r *Record) any { return &r.OwnerTitle },
	FieldOwnerEmail:               func(r *Record) any { return &r.OwnerEmail },
	FieldOwnerPhone:               func(r *Record) any { return &r.OwnerPhone },
	FieldOwnerLinkedIn:            func(r *Record) any { return &r.OwnerLinkedIn },
	FieldGoogleRating:             func(r *Record) any { return &r.GoogleRating },
	FieldGoogleReviewCount:        func(r *Record) any { return &r.GoogleReviewCount },
	FieldYelpRating:               func(r *Record) any { return &r.YelpRating },
	FieldYelpReviewCount:          func(r *Record) any { return &r.YelpReviewCount },
	FieldBBBRating:                func(r *Record) any { return &r.BBBRating },
	FieldBBBAccredited:            func(r *Record) any { return &r.BBBAccredited },
	FieldYearEstablished:          func(r *Record) any { return &r.YearEstablished },
	FieldEmployeeCount:            func(r *Record) any { return &r.EmployeeCount },
	FieldHasWebsite:               func(r *Record) any { return &r.HasWebsite },
	FieldWebsitePlatform:          func(r *Record) any { return &r.WebsitePlatform },
	FieldHasSSL:                   func(r *Record) any { return &r.HasSSL },
	FieldMobileFriendly:           func(r *Record) any { return &r.MobileFriendly },
	FieldTechStack:                func(r *Record) any { return &r.TechStack },
	FieldFacebookURL:              func(r *Record) any { return &r.FacebookURL },
	FieldInstagramURL:             func(r *Record) any { return &r.InstagramURL },
	FieldTwitterURL:               func(r *Record) any { return &r.TwitterURL },
	FieldLinkedInURL:              func(r *Record) any { return &r.LinkedInURL },
	FieldYouTubeURL:               func(r *Record) any { return &r.YouTubeURL },
	FieldTikTokURL:                func(r *Record) any { return &r.TikTokURL },
	FieldRunsGoogleAds:            func(r *Record) any { return &r.RunsGoogleAds },
	FieldRunsFacebookAds:          func(r *Record) any { return &r.RunsFacebookAds },
	FieldHasGoogleBusinessProfile: func(r *Record) any { return &r.HasGoogleBusinessProfile },
	FieldEmailVerified:            func(r *Record) any { return &r.EmailVerified },
	FieldOwnerEmailVerified:       func(r *Record) any { return &r.OwnerEmailVerified },
	FieldSource:                   func(r *Record) any { return &r.Source },
	FieldSourceURL:                func(r *Record) any { return &r.SourceURL },
	FieldScrapedAt:                func(r *Record) any { return &r.ScrapedAt },
	FieldEnrichedAt:               func(r *Record) any { return &r.EnrichedAt },
	FieldLastEnrichedAt:           func(r *Record) any { return &r.LastEnrichedAt },
	FieldIsEnriched:               func(r *Record) any { return &r.IsEnriched },
	FieldEnrichmentErrors:         func(r *Record) any { return &r.EnrichmentErrors },
	FieldQualityScore:             func(r *Record) any { return &r.QualityScore },
	FieldICPScore:                 func(r *Record) any { return &r.ICPScore },
}
