// Package clean normalizes raw listing records before they are matched and
// stored: text is stripped of markup, phones become E.164, states become
// USPS codes and records that cannot be US businesses are rejected.
package clean

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/scorer"
)

// RejectError reports a raw record that cannot be ingested.
type RejectError struct {
	Name   string
	Reason string
}

func (e *RejectError) Error() string {
	return "clean: rejected " + quote(e.Name) + ": " + e.Reason
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}

var (
	closedRe  = regexp.MustCompile(`(?i)\bCLOSED\b`)
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	websiteRe = regexp.MustCompile(`^https?://[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	nonDigit  = regexp.MustCompile(`\D`)
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() { policy = bluemonday.StrictPolicy() })
	return policy
}

// Text strips markup and collapses whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		s = html.UnescapeString(strict().Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

// Phone returns raw as an E.164 US number (+1XXXXXXXXXX), or "" when raw is
// not a plausible North American number.
func Phone(raw string) string {
	d := nonDigit.ReplaceAllString(raw, "")
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	// NANP area codes and exchanges never start with 0 or 1.
	if d[0] < '2' || d[3] < '2' {
		return ""
	}
	return "+1" + d
}

var tollFree = map[string]bool{"800": true, "888": true, "877": true, "866": true, "855": true, "844": true, "833": true}

// IsTollFree reports whether an E.164 or raw US number uses a toll-free
// area code.
func IsTollFree(phone string) bool {
	p := Phone(phone)
	if p == "" {
		return false
	}
	return tollFree[p[2:5]]
}

// Email lower-cases raw and returns it when syntactically valid.
func Email(raw string) string {
	e := strings.ToLower(strings.TrimSpace(raw))
	e = strings.TrimPrefix(e, "mailto:")
	if !emailRe.MatchString(e) {
		return ""
	}
	return e
}

// URL defaults the scheme to https and returns raw when it has a plausible host.
func URL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	if !websiteRe.MatchString(u) {
		return ""
	}
	return strings.TrimRight(u, "/")
}

// Zip returns the first five digits of raw, or "".
func Zip(raw string) string {
	d := nonDigit.ReplaceAllString(raw, "")
	if len(d) < 5 {
		return ""
	}
	return d[:5]
}

// Record cleans a raw record. It returns a *RejectError for records without
// a usable name, closed businesses and non-US locations.
func Record(raw model.Record) (model.Record, error) {
	rec := raw.Clone()

	if closedRe.MatchString(raw.BusinessName) {
		return model.Record{}, &RejectError{Name: raw.BusinessName, Reason: "business is closed"}
	}
	rec.BusinessName = Text(raw.BusinessName)
	if rec.BusinessName == "" {
		return model.Record{}, &RejectError{Reason: "missing business name"}
	}

	rec.Phone = Phone(raw.Phone)
	rec.OwnerPhone = Phone(raw.OwnerPhone)
	rec.Email = Email(raw.Email)
	rec.OwnerEmail = Email(raw.OwnerEmail)
	rec.Website = URL(raw.Website)
	hasWebsite := rec.Website != ""
	rec.HasWebsite = &hasWebsite

	rec.Address = Text(raw.Address)
	rec.City = Text(raw.City)
	rec.ZipCode = Zip(raw.ZipCode)
	rec.Category = Text(raw.Category)
	rec.OwnerName = Text(raw.OwnerName)
	rec.OwnerTitle = Text(raw.OwnerTitle)

	if s := strings.TrimSpace(raw.State); s != "" {
		code := StateCode(s)
		if code == "" {
			return model.Record{}, &RejectError{Name: rec.BusinessName, Reason: "not a US state: " + s}
		}
		rec.State = code
	}

	if rec.Source == "" {
		rec.Source = "unknown"
	}
	q := scorer.Completeness(rec)
	rec.QualityScore = &q
	return rec, nil
}

// IsRejected reports whether err is a *RejectError.
func IsRejected(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
