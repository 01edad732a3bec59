// Package verify checks whether a mailbox exists: syntax and disposable
// domains first, then the domain's MX records, then an SMTP recipient probe
// against the preferred exchanger. Network faults degrade to unknown.
package verify

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

var syntaxRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// disposableDomains are throwaway mailbox providers.
var disposableDomains = map[string]bool{
	"mailinator.com": true, "guerrillamail.com": true, "tempmail.com": true,
	"throwaway.email": true, "yopmail.com": true, "sharklasers.com": true,
	"guerrillamailblock.com": true, "grr.la": true, "dispostable.com": true,
	"tempr.email": true, "10minutemail.com": true, "trashmail.com": true,
	"fakeinbox.com": true, "maildrop.cc": true,
}

// bulkProviders accept or silently drop any recipient, so probing them
// proves nothing.
var bulkProviders = map[string]bool{
	"gmail.com": true, "googlemail.com": true,
	"yahoo.com": true, "yahoo.co.uk": true, "ymail.com": true,
	"outlook.com": true, "hotmail.com": true, "live.com": true, "msn.com": true,
	"aol.com":    true,
	"icloud.com": true, "me.com": true, "mac.com": true,
	"protonmail.com": true, "proton.me": true,
	"zoho.com": true,
}

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Prober runs an SMTP recipient check against host and returns the reply
// code to RCPT TO.
type Prober interface {
	Probe(ctx context.Context, host, addr string) (int, error)
}

// Config configures a Verifier.
type Config struct {
	SMTPTimeout time.Duration
	SMTPPort    int
	HeloDomain  string
	MailFrom    string
	// SkipSMTP stops after the MX layer, for networks that block port 25.
	SkipSMTP bool
}

// Verifier classifies addresses. It is safe for concurrent use; the MX
// cache lives until ResetCache.
type Verifier struct {
	cfg      Config
	resolver MXResolver
	prober   Prober

	mu    sync.RWMutex
	cache map[string][]string
	group singleflight.Group
}

// New creates a Verifier. A nil resolver uses net.DefaultResolver and a nil
// prober uses an SMTPProber built from cfg.
func New(cfg Config, resolver MXResolver, prober Prober) *Verifier {
	if cfg.SMTPTimeout <= 0 {
		cfg.SMTPTimeout = 5 * time.Second
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 25
	}
	if cfg.HeloDomain == "" {
		cfg.HeloDomain = "mail.verify.local"
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = "verify@verify.local"
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if prober == nil {
		prober = &SMTPProber{
			Port:       cfg.SMTPPort,
			Timeout:    cfg.SMTPTimeout,
			HeloDomain: cfg.HeloDomain,
			MailFrom:   cfg.MailFrom,
		}
	}
	return &Verifier{
		cfg:      cfg,
		resolver: resolver,
		prober:   prober,
		cache:    make(map[string][]string),
	}
}

// ResetCache drops the cached MX lookups. The orchestrator calls it between
// batches.
func (v *Verifier) ResetCache() {
	v.mu.Lock()
	v.cache = make(map[string][]string)
	v.mu.Unlock()
}

// Verify classifies addr. It never fails; indeterminate checks are logged
// and reported as unknown.
func (v *Verifier) Verify(ctx context.Context, addr string) model.VerificationStatus {
	status, err := v.check(ctx, addr)
	if err != nil {
		zap.L().Debug("verify: indeterminate", zap.String("email", addr), zap.Error(err))
		return model.VerificationUnknown
	}
	return status
}

func (v *Verifier) check(ctx context.Context, addr string) (model.VerificationStatus, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !syntaxRe.MatchString(addr) {
		return model.VerificationInvalid, nil
	}
	domain := model.Domain(addr)
	if disposableDomains[domain] {
		return model.VerificationInvalid, nil
	}

	hosts, err := v.mx(ctx, domain)
	if err != nil {
		return model.VerificationUnknown, err
	}
	if len(hosts) == 0 {
		return model.VerificationInvalid, nil
	}

	if bulkProviders[domain] {
		return model.VerificationCatchAll, nil
	}
	if v.cfg.SkipSMTP {
		return model.VerificationUnknown, nil
	}

	code, err := v.prober.Probe(ctx, hosts[0], addr)
	if err != nil {
		return model.VerificationUnknown, &IndeterminateError{Domain: domain, Stage: StageSMTP, Err: err}
	}
	return statusForCode(code), nil
}

// statusForCode maps the RCPT TO reply.
func statusForCode(code int) model.VerificationStatus {
	switch code {
	case 250:
		return model.VerificationValid
	case 550:
		return model.VerificationInvalid
	case 252:
		return model.VerificationCatchAll
	default:
		// 450, 451 and 452 are greylisting or temporary refusals.
		return model.VerificationUnknown
	}
}

// mx returns the exchangers for domain by preference, or none when the
// domain has no MX records. Definitive answers are cached.
func (v *Verifier) mx(ctx context.Context, domain string) ([]string, error) {
	v.mu.RLock()
	hosts, ok := v.cache[domain]
	v.mu.RUnlock()
	if ok {
		return hosts, nil
	}

	res, err, _ := v.group.Do(domain, func() (any, error) {
		records, err := v.resolver.LookupMX(ctx, domain)
		var dnsErr *net.DNSError
		switch {
		case err == nil:
		case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
			records = nil
		default:
			return nil, &IndeterminateError{Domain: domain, Stage: StageDNS, Err: err}
		}

		sort.SliceStable(records, func(i, j int) bool { return records[i].Pref < records[j].Pref })
		hosts := make([]string, 0, len(records))
		for _, r := range records {
			if h := strings.TrimSuffix(r.Host, "."); h != "" {
				hosts = append(hosts, h)
			}
		}
		v.mu.Lock()
		v.cache[domain] = hosts
		v.mu.Unlock()
		return hosts, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}
