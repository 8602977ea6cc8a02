// classifier.go
package main

import (
	"instareply-router/resolver"
)

// ClassifyDirection decides whether a resolved sub-event is inbound (from an
// external user) or outbound (the tenant's own reply echoed back through the
// webhook). The rules are independent; any one of them marks the event
// outbound:
//
//   - the platform set the explicit echo flag
//   - the sender is the recipient (self-message)
//   - the sender is the page that received the delivery
//   - the sender is one of the tenant's own platform ids
//
// The returned warning is non-empty when the recipient id matches neither of
// the tenant's ids — routing looked inconsistent but the event is still
// classified and kept.
func ClassifyDirection(t *resolver.Tenant, ev SubEvent) (Direction, string) {
	outbound := ev.IsEcho ||
		(ev.SenderID != "" && ev.SenderID == ev.RecipientID) ||
		(ev.SenderID != "" && ev.SenderID == ev.PageID) ||
		t.OwnsID(ev.SenderID)

	if outbound {
		return DirectionOutbound, ""
	}

	// An inbound event should be addressed to the tenant. When it is not,
	// the delivery was routed oddly; keep the event but say so.
	warning := ""
	if ev.RecipientID != "" && !t.OwnsID(ev.RecipientID) && ev.RecipientID != ev.PageID {
		warning = "recipient " + ev.RecipientID + " matches neither id of tenant " + t.ID
	}
	return DirectionInbound, warning
}
