package resolver

import (
	"context"
	"log"
	"strings"
	"time"
)

// primaryMatch is the fast path: the incoming id is already a tenant's
// primary platform id.
type primaryMatch struct{}

func (primaryMatch) Name() string { return "primary_match" }

func (primaryMatch) Resolve(_ context.Context, ev Event, tenants []Tenant) (*Match, error) {
	for i := range tenants {
		if tenants[i].PrimaryID != "" && tenants[i].PrimaryID == ev.IncomingID {
			return &Match{Tenant: &tenants[i], Outcome: OutcomePrimary}, nil
		}
	}
	return nil, nil
}

// secondaryMatch matches on the recipient-side id and self-heals: the
// primary id is rewritten to the incoming id so the next delivery takes the
// fast path.
type secondaryMatch struct {
	store TenantStore
}

func (secondaryMatch) Name() string { return "secondary_match" }

func (s secondaryMatch) Resolve(ctx context.Context, ev Event, tenants []Tenant) (*Match, error) {
	for i := range tenants {
		t := &tenants[i]
		if t.SecondaryID == "" || t.SecondaryID != ev.IncomingID {
			continue
		}
		if err := s.store.AdoptPrimaryID(ctx, t.ID, ev.IncomingID, t.PrimaryID); err != nil {
			// The match itself is sound; only the repair failed. The next
			// delivery will retry it.
			log.Printf("⚠️ resolver: self-heal for tenant %s failed: %v", t.ID, err)
		} else {
			t.PrimaryID = ev.IncomingID
		}
		return &Match{Tenant: t, Outcome: OutcomeSecondary}, nil
	}
	return nil, nil
}

// markerAssociation adopts an unknown incoming id for a tenant that recently
// completed authorization. A candidate is any credentialed tenant whose
// primary id is not the incoming id; only candidates holding a fresh marker
// (younger than the TTL) are eligible.
type markerAssociation struct {
	store  TenantStore
	policy Policy
	ttl    time.Duration
	now    func() time.Time
}

func (markerAssociation) Name() string { return "marker_association" }

func (m markerAssociation) Resolve(ctx context.Context, ev Event, tenants []Tenant) (*Match, error) {
	now := m.now()

	var fresh []*Tenant
	for i := range tenants {
		t := &tenants[i]
		if !t.HasCredential() || t.PrimaryID == ev.IncomingID {
			continue
		}
		if t.MarkerAt != nil && now.Sub(*t.MarkerAt) < m.ttl {
			fresh = append(fresh, t)
		}
	}

	var winner *Tenant
	switch {
	case len(fresh) == 0:
		return nil, nil
	case len(fresh) == 1:
		winner = fresh[0]
	case m.policy == PolicyPermissive:
		winner = freshest(fresh)
		if winner == nil {
			log.Printf("⚠️ resolver: %d markers tied for id %s, blocking association", len(fresh), ev.IncomingID)
			return nil, nil
		}
	default:
		// Strict: any ambiguity blocks. Misrouting is worse than delaying
		// the association until the stale markers expire.
		log.Printf("⚠️ resolver: %d fresh markers for id %s under strict policy, blocking association", len(fresh), ev.IncomingID)
		return nil, nil
	}

	if err := m.store.Associate(ctx, winner.ID, ev.IncomingID); err != nil {
		return nil, err
	}
	winner.PrimaryID = ev.IncomingID
	winner.SecondaryID = ev.IncomingID
	winner.MarkerAt = nil
	return &Match{Tenant: winner, Outcome: OutcomeMarker}, nil
}

// freshest returns the tenant with the most recently issued marker, or nil
// when the newest timestamp is shared.
func freshest(fresh []*Tenant) *Tenant {
	best := fresh[0]
	tied := false
	for _, t := range fresh[1:] {
		switch {
		case t.MarkerAt.After(*best.MarkerAt):
			best, tied = t, false
		case t.MarkerAt.Equal(*best.MarkerAt):
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}

// credentialProbe is the last-resort fallback for comments and mentions: it
// asks the platform, with each candidate's own credential, whether the
// incoming id is visible to that candidate. It trades precision for recall
// and is gated behind Config.EnableProbe.
type credentialProbe struct {
	store  TenantStore
	prober Prober
}

func (credentialProbe) Name() string { return "credential_probe" }

func (p credentialProbe) Resolve(ctx context.Context, ev Event, tenants []Tenant) (*Match, error) {
	if ev.Kind != "comment" && ev.Kind != "mention" {
		return nil, nil
	}

	var lastErr error
	for i := range tenants {
		t := &tenants[i]
		if !t.HasCredential() || t.PrimaryID == ev.IncomingID {
			continue
		}
		username, err := p.prober.Probe(ctx, t.AccessToken, ev.IncomingID)
		if err != nil {
			lastErr = err
			continue
		}
		if username != "" && t.Username != "" && !strings.EqualFold(username, t.Username) {
			continue
		}
		if err := p.store.Associate(ctx, t.ID, ev.IncomingID); err != nil {
			return nil, err
		}
		t.PrimaryID = ev.IncomingID
		t.SecondaryID = ev.IncomingID
		t.MarkerAt = nil
		return &Match{Tenant: t, Outcome: OutcomeProbe}, nil
	}
	return nil, lastErr
}
