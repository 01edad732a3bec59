package strategy

import (
	"context"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// PhoneDiscovery finds a phone number when the record has none: the
// website's tel: links, JSON-LD and text first, then one search.
type PhoneDiscovery struct {
	deps Deps
}

// Name implements Strategy.
func (s *PhoneDiscovery) Name() string { return NamePhoneDiscovery }

// Discover implements Strategy.
func (s *PhoneDiscovery) Discover(ctx context.Context, f transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	if rec.Phone != "" || rec.BusinessName == "" {
		return nil, nil
	}

	if rec.Website != "" {
		if doc, err := f.Fetch(ctx, rec.Website, nil); err == nil {
			var phones orderedSet
			pagePhones(doc, &phones)
			if p := s.deps.Policy.choosePhone(phones.list); p != "" {
				return model.FieldUpdate{model.FieldPhone: p}, nil
			}
		}
	}

	q := rec.BusinessName + " " + rec.City + " " + rec.State + " phone number"
	res := s.deps.search(ctx, f, s.Name(), q, 0)
	if res == nil {
		return nil, nil
	}
	if p := s.deps.Policy.choosePhone(textPhones(res.Text())); p != "" {
		return model.FieldUpdate{model.FieldPhone: p}, nil
	}
	return nil, nil
}
