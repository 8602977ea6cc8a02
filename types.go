// types.go
package main

import "time"

// WebhookEnvelope is one signed delivery from the platform. It is ephemeral:
// after dispatch only a summary survives in the recent-delivery ring.
type WebhookEnvelope struct {
	Object string      `json:"object"`
	Entry  []EntryData `json:"entry"`
}

// EntryData is one platform account's slice of a delivery. ID is the page id
// the platform believes the events belong to.
type EntryData struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Changes   []ChangeData     `json:"changes"`
	Messaging []MessagingEntry `json:"messaging"`
}

// ChangeData carries comment and mention events.
type ChangeData struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	From     *PlatformUser `json:"from"`
	ParentID string        `json:"parent_id,omitempty"`
}

type PlatformUser struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// MessagingEntry is one direct-message event.
type MessagingEntry struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message  *MessageData  `json:"message"`
	Delivery *DeliveryData `json:"delivery"`
}

// MessageData is the direct-message content.
type MessageData struct {
	Mid         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	Attachments []AttachmentData `json:"attachments,omitempty"`
}

type AttachmentData struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// DeliveryData is a delivery receipt; receipts are dropped during dispatch.
type DeliveryData struct {
	Mids      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// EventKind discriminates the three sub-event shapes a delivery can carry.
type EventKind string

const (
	KindComment EventKind = "comment"
	KindMention EventKind = "mention"
	KindDM      EventKind = "direct_message"
)

// Direction of a persisted event relative to the owning tenant.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SubEvent is one normalized item extracted from a delivery, tagged with the
// page id of the entry it arrived under. ResolveID is the platform account id
// the identity resolver must map to a tenant.
type SubEvent struct {
	Kind        EventKind
	PageID      string
	ResolveID   string
	ExternalID  string
	SenderID    string
	RecipientID string
	Text        string
	ParentID    string
	IsEcho      bool
}

// ResolvedEvent is the durable record of a processed item. Unique on
// (TenantID, ExternalID); the uniqueness is tenant-scoped on purpose, the
// same external id may exist under two tenants.
type ResolvedEvent struct {
	TenantID   string
	Kind       EventKind
	ExternalID string
	SenderID   string
	Direction  Direction
	Content    string
	CreatedAt  time.Time
}

type Config struct {
	DatabaseURL string
	AppSecret   string
	VerifyToken string
	Port        string
	// Redis is optional; when unreachable the profile cache runs in-memory only.
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	// Resolver knobs. MarkerPolicy is "strict" or "permissive"; the probe is
	// off unless ENABLE_CREDENTIAL_PROBE=true.
	MarkerPolicy          string
	EnableCredentialProbe bool
	GraphBaseURL          string
}
