package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instareply-router/resolver"
)

// memStore keeps resolved events in memory with the same tenant-scoped
// uniqueness the real store enforces.
type memStore struct {
	tenants []resolver.Tenant
	events  map[string]ResolvedEvent
	listErr error
}

func newMemStore(tenants ...resolver.Tenant) *memStore {
	return &memStore{tenants: tenants, events: make(map[string]ResolvedEvent)}
}

func (m *memStore) ListTenants(_ context.Context) ([]resolver.Tenant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tenants, nil
}

func (m *memStore) InsertResolvedEvent(_ context.Context, ev ResolvedEvent) (bool, error) {
	key := ev.TenantID + "|" + ev.ExternalID
	if _, exists := m.events[key]; exists {
		return false, nil
	}
	m.events[key] = ev
	return true, nil
}

// stubResolver resolves by direct primary-id lookup and reports everything
// else unresolved.
type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ev resolver.Event, tenants []resolver.Tenant) (*resolver.Tenant, bool) {
	for i := range tenants {
		if tenants[i].PrimaryID == ev.IncomingID {
			return &tenants[i], true
		}
	}
	return nil, false
}

type recordingResponder struct {
	calls []string
	err   error
}

func (r *recordingResponder) Respond(_ context.Context, tenantID string, ev SubEvent, _ string) error {
	r.calls = append(r.calls, tenantID+"|"+ev.ExternalID)
	return r.err
}

type stubNames struct{}

func (stubNames) DisplayName(_ context.Context, _, _ string) string { return "Jane" }

func testTenant() resolver.Tenant {
	return resolver.Tenant{ID: "t1", PrimaryID: "P1", SecondaryID: "S1", AccessToken: "tok"}
}

func commentSubEvent(externalID string) SubEvent {
	return SubEvent{
		Kind:        KindComment,
		PageID:      "P1",
		ResolveID:   "P1",
		ExternalID:  externalID,
		SenderID:    "U1",
		RecipientID: "P1",
		Text:        "hello there",
	}
}

func TestProcessInboundCommentPersistsAndNotifies(t *testing.T) {
	store := newMemStore(testTenant())
	responder := &recordingResponder{}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	p.ProcessDelivery(context.Background(), []SubEvent{commentSubEvent("C123")}, "req1")

	require.Len(t, store.events, 1)
	stored := store.events["t1|C123"]
	assert.Equal(t, "t1", stored.TenantID)
	assert.Equal(t, DirectionInbound, stored.Direction)
	assert.Equal(t, []string{"t1|C123"}, responder.calls)
}

func TestProcessRedeliveryIsNoOp(t *testing.T) {
	store := newMemStore(testTenant())
	responder := &recordingResponder{}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	p.ProcessDelivery(context.Background(), []SubEvent{commentSubEvent("C123")}, "req1")
	p.ProcessDelivery(context.Background(), []SubEvent{commentSubEvent("C123")}, "req2")

	assert.Len(t, store.events, 1, "row count unchanged on redelivery")
	assert.Len(t, responder.calls, 1, "downstream fires once per unique event")
}

func TestProcessEchoStoredOutboundWithoutNotify(t *testing.T) {
	store := newMemStore(testTenant())
	responder := &recordingResponder{}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	ev := SubEvent{
		Kind:        KindDM,
		PageID:      "P1",
		ResolveID:   "P1",
		ExternalID:  "DM9",
		SenderID:    "P1",
		RecipientID: "U1",
		Text:        "thanks for your order",
		IsEcho:      true,
	}
	p.ProcessDelivery(context.Background(), []SubEvent{ev}, "req1")

	require.Len(t, store.events, 1)
	assert.Equal(t, DirectionOutbound, store.events["t1|DM9"].Direction)
	assert.Empty(t, responder.calls, "outbound events never trigger the responder")
}

func TestProcessUnresolvedEventIsDropped(t *testing.T) {
	store := newMemStore(testTenant())
	responder := &recordingResponder{}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	ev := commentSubEvent("C777")
	ev.ResolveID = "UNKNOWN"
	p.ProcessDelivery(context.Background(), []SubEvent{ev}, "req1")

	assert.Empty(t, store.events)
	assert.Empty(t, responder.calls)
}

func TestProcessContinuesPastResponderFailure(t *testing.T) {
	store := newMemStore(testTenant())
	responder := &recordingResponder{err: errors.New("downstream down")}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	p.ProcessDelivery(context.Background(), []SubEvent{
		commentSubEvent("C1"),
		commentSubEvent("C2"),
	}, "req1")

	assert.Len(t, store.events, 2, "a failing responder must not block persistence")
	assert.Len(t, responder.calls, 2)
}

func TestProcessTenantLoadFailureDropsDelivery(t *testing.T) {
	store := newMemStore(testTenant())
	store.listErr = errors.New("connection refused")
	responder := &recordingResponder{}
	p := NewProcessor(store, stubResolver{}, stubNames{}, responder)

	p.ProcessDelivery(context.Background(), []SubEvent{commentSubEvent("C1")}, "req1")

	assert.Empty(t, store.events)
	assert.Empty(t, responder.calls)
}
