package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// MailboxVerifier classifies an address. *verify.Verifier satisfies it.
type MailboxVerifier interface {
	Verify(ctx context.Context, addr string) model.VerificationStatus
	ResetCache()
}

// EmailVerification checks email and owner_email. An invalid address is
// cleared, a deliverable one is flagged verified and an unknown result
// leaves both fields alone.
type EmailVerification struct {
	verifier MailboxVerifier
}

// NewEmailVerification wraps v as the phase-three strategy.
func NewEmailVerification(v MailboxVerifier) *EmailVerification {
	return &EmailVerification{verifier: v}
}

// Name implements Strategy.
func (s *EmailVerification) Name() string { return NameEmailVerification }

// ResetBatch implements BatchScoped.
func (s *EmailVerification) ResetBatch() { s.verifier.ResetCache() }

// Discover implements Strategy. The fetcher is unused; verification talks
// DNS and SMTP directly.
func (s *EmailVerification) Discover(ctx context.Context, _ transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	u := model.FieldUpdate{}
	s.check(ctx, u, rec.Email, model.FieldEmail, model.FieldEmailVerified)
	s.check(ctx, u, rec.OwnerEmail, model.FieldOwnerEmail, model.FieldOwnerEmailVerified)
	return u, nil
}

func (s *EmailVerification) check(ctx context.Context, u model.FieldUpdate, addr string, field, flag model.Field) {
	if addr == "" {
		return
	}
	switch status := s.verifier.Verify(ctx, addr); {
	case status == model.VerificationInvalid:
		zap.L().Info("strategy: invalid email removed", zap.String("field", string(field)), zap.String("email", addr))
		u.ClearField(field)
		u[flag] = false
	case status.Verified():
		u[flag] = true
	}
}
