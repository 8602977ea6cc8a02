package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidObject(t *testing.T) {
	assert.True(t, isValidObject("instagram"))
	assert.True(t, isValidObject("page"))
	assert.False(t, isValidObject("user"))
	assert.False(t, isValidObject(""))
}

func TestDispatchFlattensChangesAndMessaging(t *testing.T) {
	payload := []byte(`{
        "object": "instagram",
        "entry": [
            {
                "id": "PAGE1",
                "time": 1700000000,
                "changes": [
                    {"field": "comments", "value": {"id": "C123", "text": "nice!", "from": {"id": "U1", "username": "fan"}}},
                    {"field": "mentions", "value": {"id": "M55", "text": "@shop look", "from": {"id": "U2"}, "parent_id": "POST9"}},
                    {"field": "story_insights", "value": {"id": "X1"}}
                ],
                "messaging": [
                    {"sender": {"id": "U3"}, "recipient": {"id": "PAGE1"}, "message": {"mid": "DM7", "text": "hola"}},
                    {"sender": {"id": "U3"}, "recipient": {"id": "PAGE1"}, "delivery": {"watermark": 5}},
                    {"sender": {"id": "U3"}, "recipient": {"id": "PAGE1"}, "message": {"mid": "DM8", "text": ""}}
                ]
            }
        ]
    }`)

	var env WebhookEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))

	events := Dispatch(env)
	require.Len(t, events, 3)

	comment := events[0]
	assert.Equal(t, KindComment, comment.Kind)
	assert.Equal(t, "PAGE1", comment.PageID)
	assert.Equal(t, "PAGE1", comment.ResolveID)
	assert.Equal(t, "C123", comment.ExternalID)
	assert.Equal(t, "U1", comment.SenderID)
	assert.Equal(t, "nice!", comment.Text)

	mention := events[1]
	assert.Equal(t, KindMention, mention.Kind)
	assert.Equal(t, "M55", mention.ExternalID)
	assert.Equal(t, "POST9", mention.ParentID)

	dm := events[2]
	assert.Equal(t, KindDM, dm.Kind)
	assert.Equal(t, "DM7", dm.ExternalID)
	assert.Equal(t, "U3", dm.SenderID)
	assert.Equal(t, "PAGE1", dm.RecipientID)
	assert.Equal(t, "PAGE1", dm.ResolveID, "normal DMs resolve on the recipient id")
	assert.False(t, dm.IsEcho)
}

func TestDispatchEchoResolvesOnSender(t *testing.T) {
	env := WebhookEnvelope{
		Object: "instagram",
		Entry: []EntryData{{
			ID: "PAGE1",
			Messaging: []MessagingEntry{func() MessagingEntry {
				var m MessagingEntry
				m.Sender.ID = "PAGE1"
				m.Recipient.ID = "U3"
				m.Message = &MessageData{Mid: "DM9", Text: "thanks for reaching out", IsEcho: true}
				return m
			}()},
		}},
	}

	events := Dispatch(env)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsEcho)
	assert.Equal(t, "PAGE1", events[0].ResolveID, "echoes resolve on the sender side")
}

func TestDispatchKeepsAttachmentOnlyMessages(t *testing.T) {
	var m MessagingEntry
	m.Sender.ID = "U3"
	m.Recipient.ID = "PAGE1"
	m.Message = &MessageData{Mid: "DM10"}
	m.Message.Attachments = []AttachmentData{{Type: "image"}}

	events := Dispatch(WebhookEnvelope{Object: "instagram", Entry: []EntryData{{ID: "PAGE1", Messaging: []MessagingEntry{m}}}})
	require.Len(t, events, 1)
	assert.Equal(t, "DM10", events[0].ExternalID)
}

func TestDispatchEmptyEnvelope(t *testing.T) {
	assert.Empty(t, Dispatch(WebhookEnvelope{Object: "instagram"}))
}
