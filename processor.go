// processor.go
package main

import (
	"context"

	"instareply-router/resolver"
)

// eventStore is the slice of the Store the pipeline needs; narrow so tests
// can fake it.
type eventStore interface {
	ListTenants(ctx context.Context) ([]resolver.Tenant, error)
	InsertResolvedEvent(ctx context.Context, ev ResolvedEvent) (bool, error)
}

// tenantResolver is the identity gate. Audit decisions are recorded inside.
type tenantResolver interface {
	Resolve(ctx context.Context, ev resolver.Event, tenants []resolver.Tenant) (*resolver.Tenant, bool)
}

// nameLookup enriches sender ids with display names; best-effort.
type nameLookup interface {
	DisplayName(ctx context.Context, userID, accessToken string) string
}

// Responder is the downstream AI collaborator, invoked for inbound events
// only. Its wire format and auto-send behavior live outside this service.
type Responder interface {
	Respond(ctx context.Context, tenantID string, ev SubEvent, senderName string) error
}

// logResponder is the shipped no-op Responder: it records what would have
// been handed downstream.
type logResponder struct{}

func (logResponder) Respond(_ context.Context, tenantID string, ev SubEvent, senderName string) error {
	LogInfo("🤖 Downstream handoff: tenant=%s kind=%s event=%s from=%s", tenantID, ev.Kind, ev.ExternalID, senderName)
	return nil
}

// Processor runs the per-delivery pipeline: resolve → classify → dedup +
// persist → enrich → downstream. One bad sub-event never aborts the rest of
// the delivery.
type Processor struct {
	store     eventStore
	resolver  tenantResolver
	profiles  nameLookup
	responder Responder
}

func NewProcessor(store eventStore, res tenantResolver, profiles nameLookup, responder Responder) *Processor {
	if responder == nil {
		responder = logResponder{}
	}
	return &Processor{store: store, resolver: res, profiles: profiles, responder: responder}
}

// ProcessDelivery handles one verified envelope. It runs after the HTTP 200
// has been sent; nothing here may assume a live request.
func (p *Processor) ProcessDelivery(ctx context.Context, events []SubEvent, requestID string) {
	defer func() {
		if r := recover(); r != nil {
			LogError("[%s] PANIC in delivery processing: %v", requestID, r)
		}
	}()

	if len(events) == 0 {
		LogDebug("[%s] No events to process", requestID)
		return
	}

	tenants, err := p.store.ListTenants(ctx)
	if err != nil {
		LogError("[%s] Failed to load tenants, dropping %d events: %v", requestID, len(events), err)
		return
	}

	for _, ev := range events {
		p.processEvent(ctx, ev, tenants, requestID)
	}

	LogDebug("[%s] Delivery processing completed", requestID)
}

func (p *Processor) processEvent(ctx context.Context, ev SubEvent, tenants []resolver.Tenant, requestID string) {
	tenant, ok := p.resolver.Resolve(ctx, resolver.Event{
		Kind:        string(ev.Kind),
		IncomingID:  ev.ResolveID,
		SenderID:    ev.SenderID,
		RecipientID: ev.RecipientID,
	}, tenants)
	if !ok {
		// Unresolved is a normal terminal outcome, already audited. The
		// event must not be stored without an owner.
		LogWarn("[%s] Dropping %s %s: no tenant for id %s", requestID, ev.Kind, ev.ExternalID, ev.ResolveID)
		return
	}

	direction, warning := ClassifyDirection(tenant, ev)
	if warning != "" {
		LogWarn("[%s] Inconsistent routing: %s", requestID, warning)
	}

	inserted, err := p.store.InsertResolvedEvent(ctx, ResolvedEvent{
		TenantID:   tenant.ID,
		Kind:       ev.Kind,
		ExternalID: ev.ExternalID,
		SenderID:   ev.SenderID,
		Direction:  direction,
		Content:    ev.Text,
	})
	if err != nil {
		LogError("[%s] Failed to persist %s %s: %v", requestID, ev.Kind, ev.ExternalID, err)
		return
	}
	if !inserted {
		LogInfo("[%s] Duplicate %s %s for tenant %s, already processed", requestID, ev.Kind, ev.ExternalID, tenant.ID)
		return
	}

	LogInfo("[%s] 💾 Stored %s %s: tenant=%s direction=%s", requestID, ev.Kind, ev.ExternalID, tenant.ID, direction)

	// Outbound events are kept for conversation history but never wake the
	// AI and never count as pending.
	if direction != DirectionInbound {
		return
	}

	senderName := "user"
	if p.profiles != nil {
		senderName = p.profiles.DisplayName(ctx, ev.SenderID, tenant.AccessToken)
	}
	if err := p.responder.Respond(ctx, tenant.ID, ev, senderName); err != nil {
		LogError("[%s] Downstream responder failed for %s: %v", requestID, ev.ExternalID, err)
	}
}
