package model

type EventKind int

const (
	NoEvent EventKind = iota
	InboundMessage
	StatusUpdate
)

func (k EventKind) String() string {
	switch k {
	case InboundMessage:
		return "inbound"
	case StatusUpdate:
		return "status"
	default:
		return "none"
	}
}

type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) Known() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// InboundEvent is a user message taken from a webhook payload.
// SenderID holds contacts[0].wa_id and is empty when the payload has no contact.
type InboundEvent struct {
	SenderID    string `json:"sender_id"`
	RawFrom     string `json:"raw_from"`
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
	MessageID   string `json:"message_id"`
	Timestamp   string `json:"timestamp"`
}

type StatusEvent struct {
	ID          string         `json:"id"`
	Status      DeliveryStatus `json:"status"`
	RecipientID string         `json:"recipient_id"`
	Timestamp   string         `json:"timestamp"`
}

// Event carries at most one of Inbound or Status, selected by Kind.
type Event struct {
	Kind    EventKind
	Inbound *InboundEvent
	Status  *StatusEvent
}

func None() Event {
	return Event{Kind: NoEvent}
}

func Inbound(ev InboundEvent) Event {
	return Event{Kind: InboundMessage, Inbound: &ev}
}

func StatusOf(ev StatusEvent) Event {
	return Event{Kind: StatusUpdate, Status: &ev}
}
