package entity

import (
	"encoding/json"
)

// DeliveryChannel is an owner's preferred notification channel.
type DeliveryChannel string

const (
	ChannelPush            DeliveryChannel = "push"
	ChannelSMS             DeliveryChannel = "sms"
	ChannelEmail           DeliveryChannel = "email"
	ChannelPushSMSFallback DeliveryChannel = "push_sms_fallback"
)

type ChannelPreference struct {
	OwnerID string          `json:"owner_id" db:"owner_id"`
	Channel DeliveryChannel `json:"channel" db:"channel"`
}

// Payload is the single canonical notification shape. The dispatcher produces
// it and every transport translates from it; clients never see vendor-specific
// payload variants.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

type PayloadData struct {
	TaskID int64  `json:"task_id"`
	Action string `json:"action"`
}

// FallbackPayload is what a client renders when a delivered push carries no
// usable structured data. Background delivery must be able to act on the
// payload alone, so the fallback needs no application state.
func FallbackPayload() Payload {
	return Payload{
		Title: "Reminder",
		Body:  "You have a reminder",
		Tag:   "reminder",
	}
}

// PayloadFromJSON decodes stored push data into the canonical shape, falling
// back to the generic payload when the data is absent or malformed.
func PayloadFromJSON(data []byte) Payload {
	if len(data) == 0 {
		return FallbackPayload()
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil || p.Title == "" {
		return FallbackPayload()
	}
	return p
}

// DeliveryResult is the outcome of one delivery attempt to one registration.
// Permanent failures mean the endpoint will never work again and its
// registration should be removed.
type DeliveryResult struct {
	Success   bool
	Permanent bool
	Err       error
}

// DispatchReport is the response of a manual dispatch trigger.
type DispatchReport struct {
	ProcessedCount int                  `json:"processed_count"`
	Notifications  []NotificationResult `json:"notifications"`
}

type NotificationResult struct {
	TaskID int64         `json:"task_id"`
	Method string        `json:"method"`
	Result AttemptResult `json:"result"`
}

type AttemptResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
