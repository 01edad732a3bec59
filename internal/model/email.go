package model

import "strings"

// roleLocalParts are mailbox names that address a function rather than a person.
var roleLocalParts = map[string]bool{
	"info": true, "contact": true, "hello": true, "support": true, "admin": true,
	"sales": true, "billing": true, "office": true, "help": true, "service": true,
	"team": true, "inquiries": true, "inquiry": true, "enquiries": true, "enquiry": true,
	"general": true, "mail": true, "reception": true, "accounts": true,
	"customerservice": true, "cs": true, "orders": true, "webmaster": true,
	"noreply": true, "no-reply": true,
}

// LocalPart returns the lower-cased mailbox part of addr.
func LocalPart(addr string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(addr)), "@")
	return local
}

// Domain returns the lower-cased domain part of addr, or "" if addr has none.
func Domain(addr string) string {
	_, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(addr)), "@")
	if !ok {
		return ""
	}
	return domain
}

// IsRoleEmail reports whether addr is a role address such as info@ or contact@.
func IsRoleEmail(addr string) bool {
	return roleLocalParts[LocalPart(addr)]
}

// IsPersonalEmail reports whether addr looks like a named individual's mailbox.
func IsPersonalEmail(addr string) bool {
	return addr != "" && !IsRoleEmail(addr)
}

// VerificationStatus is the outcome of probing one mailbox.
type VerificationStatus string

const (
	VerificationValid    VerificationStatus = "valid"
	VerificationInvalid  VerificationStatus = "invalid"
	VerificationCatchAll VerificationStatus = "catch_all"
	VerificationUnknown  VerificationStatus = "unknown"
)

// Verified reports whether s counts as a deliverable address.
func (s VerificationStatus) Verified() bool {
	return s == VerificationValid || s == VerificationCatchAll
}
