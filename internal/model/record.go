package model

import (
	"reflect"
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// Record is one US local business tracked by the system.
type Record struct {
	ID string `json:"id"`

	BusinessName string `json:"business_name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	Category     string `json:"category,omitempty"`

	OwnerName     string `json:"owner_name,omitempty"`
	OwnerTitle    string `json:"owner_title,omitempty"`
	OwnerEmail    string `json:"owner_email,omitempty"`
	OwnerPhone    string `json:"owner_phone,omitempty"`
	OwnerLinkedIn string `json:"owner_linkedin,omitempty"`

	GoogleRating      *float64 `json:"google_rating,omitempty"`
	GoogleReviewCount *int     `json:"google_review_count,omitempty"`
	YelpRating        *float64 `json:"yelp_rating,omitempty"`
	YelpReviewCount   *int     `json:"yelp_review_count,omitempty"`
	BBBRating         string   `json:"bbb_rating,omitempty"`
	BBBAccredited     *bool    `json:"bbb_accredited,omitempty"`
	YearEstablished   *int     `json:"year_established,omitempty"`
	EmployeeCount     *int     `json:"employee_count,omitempty"`

	HasWebsite               *bool    `json:"has_website,omitempty"`
	WebsitePlatform          string   `json:"website_platform,omitempty"`
	HasSSL                   *bool    `json:"has_ssl,omitempty"`
	MobileFriendly           *bool    `json:"mobile_friendly,omitempty"`
	TechStack                []string `json:"tech_stack,omitempty"`
	FacebookURL              string   `json:"facebook_url,omitempty"`
	InstagramURL             string   `json:"instagram_url,omitempty"`
	TwitterURL               string   `json:"twitter_url,omitempty"`
	LinkedInURL              string   `json:"linkedin_url,omitempty"`
	YouTubeURL               string   `json:"youtube_url,omitempty"`
	TikTokURL                string   `json:"tiktok_url,omitempty"`
	RunsGoogleAds            *bool    `json:"runs_google_ads,omitempty"`
	RunsFacebookAds          *bool    `json:"runs_facebook_ads,omitempty"`
	HasGoogleBusinessProfile *bool    `json:"has_google_business_profile,omitempty"`

	EmailVerified      *bool `json:"email_verified,omitempty"`
	OwnerEmailVerified *bool `json:"owner_email_verified,omitempty"`

	Source           string     `json:"source,omitempty"`
	SourceURL        string     `json:"source_url,omitempty"`
	ScrapedAt        time.Time  `json:"scraped_at"`
	EnrichedAt       *time.Time `json:"enriched_at,omitempty"`
	LastEnrichedAt   *time.Time `json:"last_enriched_at,omitempty"`
	IsEnriched       bool       `json:"is_enriched"`
	EnrichmentErrors string     `json:"enrichment_errors,omitempty"`
	QualityScore     *int       `json:"quality_score,omitempty"`
	ICPScore         *int       `json:"icp_score,omitempty"`
}

// Clone returns a deep copy that shares no memory with r.
func (r Record) Clone() Record {
	c := r
	c.GoogleRating = clonePtr(r.GoogleRating)
	c.GoogleReviewCount = clonePtr(r.GoogleReviewCount)
	c.YelpRating = clonePtr(r.YelpRating)
	c.YelpReviewCount = clonePtr(r.YelpReviewCount)
	c.BBBAccredited = clonePtr(r.BBBAccredited)
	c.YearEstablished = clonePtr(r.YearEstablished)
	c.EmployeeCount = clonePtr(r.EmployeeCount)
	c.HasWebsite = clonePtr(r.HasWebsite)
	c.HasSSL = clonePtr(r.HasSSL)
	c.MobileFriendly = clonePtr(r.MobileFriendly)
	c.TechStack = slices.Clone(r.TechStack)
	c.RunsGoogleAds = clonePtr(r.RunsGoogleAds)
	c.RunsFacebookAds = clonePtr(r.RunsFacebookAds)
	c.HasGoogleBusinessProfile = clonePtr(r.HasGoogleBusinessProfile)
	c.EmailVerified = clonePtr(r.EmailVerified)
	c.OwnerEmailVerified = clonePtr(r.OwnerEmailVerified)
	c.EnrichedAt = clonePtr(r.EnrichedAt)
	c.LastEnrichedAt = clonePtr(r.LastEnrichedAt)
	c.QualityScore = clonePtr(r.QualityScore)
	c.ICPScore = clonePtr(r.ICPScore)
	return c
}

// Value returns the current value of f, or nil when the field is unset.
func (r *Record) Value(f Field) any {
	ref, ok := fieldRefs[f]
	if !ok {
		return nil
	}
	switch p := ref(r).(type) {
	case *string:
		if *p == "" {
			return nil
		}
		return *p
	case **float64:
		if *p == nil {
			return nil
		}
		return **p
	case **int:
		if *p == nil {
			return nil
		}
		return **p
	case **bool:
		if *p == nil {
			return nil
		}
		return **p
	case *bool:
		return *p
	case *[]string:
		if len(*p) == 0 {
			return nil
		}
		return slices.Clone(*p)
	case *time.Time:
		if p.IsZero() {
			return nil
		}
		return *p
	case **time.Time:
		if *p == nil {
			return nil
		}
		return **p
	}
	return nil
}

// Has reports whether f holds a non-null value.
func (r *Record) Has(f Field) bool {
	return r.Value(f) != nil
}

// Set assigns v to f, coercing compatible numeric and pointer types.
// A null v or Clear resets the field.
func (r *Record) Set(f Field, v any) error {
	ref, ok := fieldRefs[f]
	if !ok {
		return eris.Errorf("model: unknown field %q", f)
	}
	if IsNull(v) || v == Clear {
		r.clear(f)
		return nil
	}

	switch p := ref(r).(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return typeError(f, v)
		}
		*p = s
	case **float64:
		n, ok := toFloat(v)
		if !ok {
			return typeError(f, v)
		}
		*p = &n
	case **int:
		n, ok := toInt(v)
		if !ok {
			return typeError(f, v)
		}
		*p = &n
	case **bool:
		b, ok := toBool(v)
		if !ok {
			return typeError(f, v)
		}
		*p = &b
	case *bool:
		b, ok := toBool(v)
		if !ok {
			return typeError(f, v)
		}
		*p = b
	case *[]string:
		s, ok := v.([]string)
		if !ok {
			return typeError(f, v)
		}
		*p = slices.Clone(s)
	case *time.Time:
		t, ok := toTime(v)
		if !ok {
			return typeError(f, v)
		}
		*p = t
	case **time.Time:
		t, ok := toTime(v)
		if !ok {
			return typeError(f, v)
		}
		*p = &t
	}
	return nil
}

func (r *Record) clear(f Field) {
	switch p := fieldRefs[f](r).(type) {
	case *string:
		*p = ""
	case **float64:
		*p = nil
	case **int:
		*p = nil
	case **bool:
		*p = nil
	case *bool:
		*p = false
	case *[]string:
		*p = nil
	case *time.Time:
		*p = time.Time{}
	case **time.Time:
		*p = nil
	}
}

// Apply merges u into r: non-null values overwrite, Clear removes, null
// values are ignored. It returns the entries that changed r.
func (r *Record) Apply(u FieldUpdate) (FieldUpdate, error) {
	return r.apply(u, func(Field, any) bool { return true })
}

// ApplyGuarded merges u under the enrichment policy: contact and identity
// fields are written only when empty, a role email may be upgraded to a
// personal one but never the reverse, and a verified email is never replaced.
func (r *Record) ApplyGuarded(u FieldUpdate) (FieldUpdate, error) {
	return r.apply(u, r.acceptGuarded)
}

func (r *Record) acceptGuarded(f Field, v any) bool {
	switch f {
	case FieldWebsite, FieldPhone, FieldOwnerName, FieldOwnerTitle, FieldOwnerPhone, FieldOwnerLinkedIn:
		return !r.Has(f)
	case FieldEmail:
		return acceptEmail(r.Email, r.EmailVerified, v)
	case FieldOwnerEmail:
		return acceptEmail(r.OwnerEmail, r.OwnerEmailVerified, v)
	}
	return true
}

func acceptEmail(current string, verified *bool, v any) bool {
	if current == "" {
		return true
	}
	if verified != nil && *verified {
		return false
	}
	next, _ := v.(string)
	return IsRoleEmail(current) && !IsRoleEmail(next)
}

func (r *Record) apply(u FieldUpdate, accept func(Field, any) bool) (FieldUpdate, error) {
	changed := FieldUpdate{}
	var errs []error
	for _, f := range u.Fields() {
		v := u[f]
		if v == Clear {
			if r.Has(f) {
				r.clear(f)
				changed[f] = Clear
			}
			continue
		}
		if IsNull(v) || !accept(f, v) {
			continue
		}
		before := r.Value(f)
		if err := r.Set(f, v); err != nil {
			errs = append(errs, err)
			continue
		}
		if after := r.Value(f); !reflect.DeepEqual(before, after) {
			changed[f] = after
		}
	}
	if len(errs) > 0 {
		return changed, eris.Wrapf(errs[0], "model: apply (%d rejected)", len(errs))
	}
	return changed, nil
}

func typeError(f Field, v any) error {
	return eris.Errorf("model: field %s does not accept %T", f, v)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		return *n, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case *int:
		return *n, true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case *bool:
		return *b, true
	case int64:
		return b != 0, true
	}
	return false, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		return *t, !t.IsZero()
	}
	return time.Time{}, false
}
