// Package resolver maps an incoming platform account id to exactly one
// tenant. It is the gate everything else waits behind: a wrong answer here
// either drops a customer's message or routes it into another customer's
// inbox. The resolver is an ordered chain of strategies; evaluation stops at
// the first match and every attempt, matched or not, produces exactly one
// audit decision.
package resolver

import (
	"context"
	"log"
	"time"
)

// MarkerTTL is how long a pending-association marker stays valid after the
// authorization flow sets it.
const MarkerTTL = 24 * time.Hour

// Tenant is the resolver's view of one isolated customer account.
type Tenant struct {
	ID          string
	Username    string
	PrimaryID   string
	SecondaryID string
	AccessToken string
	// MarkerAt is the pending-association marker set when the tenant
	// completed authorization; nil when no marker is outstanding.
	MarkerAt *time.Time
}

// HasCredential reports whether the tenant holds a stored platform token.
func (t *Tenant) HasCredential() bool {
	return t.AccessToken != ""
}

// OwnsID reports whether id is one of the tenant's known platform ids.
func (t *Tenant) OwnsID(id string) bool {
	return id != "" && (id == t.PrimaryID || id == t.SecondaryID)
}

// Event is the slice of a sub-event the resolver needs. IncomingID is the
// page/recipient id to resolve; Kind gates the credential probe.
type Event struct {
	Kind        string
	IncomingID  string
	SenderID    string
	RecipientID string
}

// Decision is one audit record. TenantID is empty when resolution failed.
type Decision struct {
	At          time.Time
	Kind        string
	PageID      string
	SenderID    string
	RecipientID string
	TenantID    string
	Outcome     string
}

// Outcome values written to the audit trail.
const (
	OutcomePrimary    = "primary_match"
	OutcomeSecondary  = "secondary_match"
	OutcomeMarker     = "marker_association"
	OutcomeProbe      = "credential_probe"
	OutcomeUnresolved = "unresolved"
)

// TenantStore is the mutation surface the self-heal and auto-association
// strategies write through.
type TenantStore interface {
	// AdoptPrimaryID rewrites a tenant's primary id after a secondary-id
	// match. oldPrimary guards the write: if another delivery already moved
	// the primary, the update is a no-op rather than a double-write.
	AdoptPrimaryID(ctx context.Context, tenantID, newID, oldPrimary string) error
	// Associate overwrites both platform ids with newID and consumes the
	// pending marker.
	Associate(ctx context.Context, tenantID, newID string) error
}

// Sink receives one Decision per resolution attempt. Implementations must be
// append-only.
type Sink interface {
	Record(ctx context.Context, d Decision) error
}

// Prober performs a read-only platform lookup with a candidate tenant's own
// credential. It reports the username owning accountID, or "" when the
// platform answered without one.
type Prober interface {
	Probe(ctx context.Context, accessToken, accountID string) (string, error)
}

// Policy controls what the marker strategy does when more than one candidate
// holds a fresh marker.
type Policy string

const (
	// PolicyStrict blocks on any marker ambiguity. The event stays
	// unresolved until exactly one fresh marker remains.
	PolicyStrict Policy = "strict"
	// PolicyPermissive associates the candidate with the most recently
	// issued marker; an exact tie still blocks.
	PolicyPermissive Policy = "permissive"
)

type Config struct {
	Policy Policy
	// EnableProbe turns on the credential-probe fallback. It defaults off:
	// probing tests ownership of unrelated data with another tenant's
	// credential, and it has leaked before.
	EnableProbe bool
	MarkerTTL   time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Match is a successful strategy result.
type Match struct {
	Tenant  *Tenant
	Outcome string
}

// Strategy is one link in the resolution chain. A nil Match with a nil error
// means "not mine, try the next one"; an error is treated the same way but
// logged (a transient upstream failure must not kill the chain).
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, ev Event, tenants []Tenant) (*Match, error)
}

// Resolver runs the strategy chain. The chain order is the policy: direct
// matches first, then the time-windowed marker association, then (when
// enabled) the credential probe.
type Resolver struct {
	strategies []Strategy
	sink       Sink
	now        func() time.Time
}

// New builds the canonical chain.
func New(store TenantStore, sink Sink, prober Prober, cfg Config) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MarkerTTL == 0 {
		cfg.MarkerTTL = MarkerTTL
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyStrict
	}

	strategies := []Strategy{
		primaryMatch{},
		secondaryMatch{store: store},
		markerAssociation{store: store, policy: cfg.Policy, ttl: cfg.MarkerTTL, now: cfg.Now},
	}
	if cfg.EnableProbe && prober != nil {
		strategies = append(strategies, credentialProbe{store: store, prober: prober})
	}

	return &Resolver{strategies: strategies, sink: sink, now: cfg.Now}
}

// Resolve maps ev to a tenant, or reports false when no strategy succeeded.
// Exactly one Decision is recorded either way. On failure the caller must
// drop the event; nothing may be persisted without an owner.
func (r *Resolver) Resolve(ctx context.Context, ev Event, tenants []Tenant) (*Tenant, bool) {
	for _, s := range r.strategies {
		match, err := s.Resolve(ctx, ev, tenants)
		if err != nil {
			log.Printf("⚠️ resolver: strategy %s failed for id %s: %v", s.Name(), ev.IncomingID, err)
			continue
		}
		if match == nil {
			continue
		}
		r.record(ctx, ev, match.Tenant.ID, match.Outcome)
		return match.Tenant, true
	}

	r.record(ctx, ev, "", OutcomeUnresolved)
	return nil, false
}

func (r *Resolver) record(ctx context.Context, ev Event, tenantID, outcome string) {
	d := Decision{
		At:          r.now(),
		Kind:        ev.Kind,
		PageID:      ev.IncomingID,
		SenderID:    ev.SenderID,
		RecipientID: ev.RecipientID,
		TenantID:    tenantID,
		Outcome:     outcome,
	}
	if err := r.sink.Record(ctx, d); err != nil {
		// The decision still stands; a broken audit sink must not block
		// message flow, but it is loud.
		log.Printf("❌ resolver: audit sink failed: %v", err)
	}
}
