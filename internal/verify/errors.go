package verify

import "fmt"

// Verification stages that can be indeterminate.
const (
	StageDNS  = "dns"
	StageSMTP = "smtp"
)

// IndeterminateError reports a DNS or SMTP fault that left an address
// unclassified. Verify logs it and returns unknown; it never reaches callers.
type IndeterminateError struct {
	Domain string
	Stage  string
	Err    error
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("verify %s: %s: %v", e.Domain, e.Stage, e.Err)
}

func (e *IndeterminateError) Unwrap() error { return e.Err }
