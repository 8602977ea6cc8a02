// dispatcher.go
package main

// isValidObject checks the webhook object-type discriminator. Anything else
// is answered 404 so the platform stops delivering it here.
func isValidObject(objectType string) bool {
	return objectType == "instagram" || objectType == "page"
}

// Dispatch flattens a verified envelope into normalized sub-events, each
// tagged with the page id of the entry it arrived under. Delivery receipts
// and content-free messaging events are dropped here. Pure transformation:
// no I/O, no blocking.
func Dispatch(env WebhookEnvelope) []SubEvent {
	var events []SubEvent

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			var kind EventKind
			switch change.Field {
			case "comments":
				kind = KindComment
			case "mentions":
				kind = KindMention
			default:
				LogDebug("Skipping change with field %q on entry %s", change.Field, entry.ID)
				continue
			}
			if change.Value.ID == "" {
				LogDebug("Skipping %s without an event id on entry %s", kind, entry.ID)
				continue
			}

			ev := SubEvent{
				Kind:        kind,
				PageID:      entry.ID,
				ResolveID:   entry.ID,
				ExternalID:  change.Value.ID,
				RecipientID: entry.ID,
				Text:        change.Value.Text,
				ParentID:    change.Value.ParentID,
			}
			if change.Value.From != nil {
				ev.SenderID = change.Value.From.ID
			}
			events = append(events, ev)
		}

		for _, msg := range entry.Messaging {
			if msg.Delivery != nil {
				LogDebug("Skipping delivery receipt on entry %s", entry.ID)
				continue
			}
			if msg.Message == nil || msg.Message.Mid == "" {
				LogDebug("Skipping non-message event on entry %s", entry.ID)
				continue
			}
			if msg.Message.Text == "" && len(msg.Message.Attachments) == 0 {
				LogDebug("Skipping empty message %s", msg.Message.Mid)
				continue
			}

			ev := SubEvent{
				Kind:        KindDM,
				PageID:      entry.ID,
				ExternalID:  msg.Message.Mid,
				SenderID:    msg.Sender.ID,
				RecipientID: msg.Recipient.ID,
				Text:        msg.Message.Text,
				IsEcho:      msg.Message.IsEcho,
			}
			// For a normal DM the recipient is the tenant's account; for an
			// echo the platform flips the pair and the sender is.
			ev.ResolveID = msg.Recipient.ID
			if msg.Message.IsEcho {
				ev.ResolveID = msg.Sender.ID
			}
			if ev.ResolveID == "" {
				ev.ResolveID = entry.ID
			}
			events = append(events, ev)
		}
	}

	return events
}
