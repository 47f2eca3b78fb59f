package model

import "encoding/json"

// WebhookPayload is the partial schema of a WhatsApp Cloud API webhook
// notification. Only the fields the relay reads are modelled; every level
// is reached through an accessor that reports absence instead of failing.
type WebhookPayload struct {
	Entry []Entry `json:"entry"`
}

type Entry struct {
	Changes []Change `json:"changes"`
}

type Change struct {
	Value *ChangeValue `json:"value"`
}

type ChangeValue struct {
	Contacts []Contact `json:"contacts"`
	Messages []Message `json:"messages"`
	Statuses []Status  `json:"statuses"`
}

type Contact struct {
	WaID string `json:"wa_id"`
}

type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp Timestamp `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text"`
}

type TextBody struct {
	Body string `json:"body"`
}

type Status struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	RecipientID string    `json:"recipient_id"`
	Timestamp   Timestamp `json:"timestamp"`
}

// Timestamp accepts the platform's quoted epoch seconds as well as a bare
// JSON number. Any other JSON type decodes to "".
type Timestamp string

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Timestamp(n.String())
		return nil
	}
	*t = ""
	return nil
}

func (p *WebhookPayload) FirstEntry() (*Entry, bool) {
	if p == nil || len(p.Entry) == 0 {
		return nil, false
	}
	return &p.Entry[0], true
}

func (e *Entry) FirstChange() (*Change, bool) {
	if e == nil || len(e.Changes) == 0 {
		return nil, false
	}
	return &e.Changes[0], true
}

func (c *Change) LookupValue() (*ChangeValue, bool) {
	if c == nil || c.Value == nil {
		return nil, false
	}
	return c.Value, true
}

func (v *ChangeValue) FirstMessage() (*Message, bool) {
	if v == nil || len(v.Messages) == 0 {
		return nil, false
	}
	return &v.Messages[0], true
}

func (v *ChangeValue) FirstStatus() (*Status, bool) {
	if v == nil || len(v.Statuses) == 0 {
		return nil, false
	}
	return &v.Statuses[0], true
}

func (v *ChangeValue) FirstContact() (*Contact, bool) {
	if v == nil || len(v.Contacts) == 0 {
		return nil, false
	}
	return &v.Contacts[0], true
}

// TextBody returns text.body, or "" for non-text messages.
func (m *Message) TextBody() string {
	if m == nil || m.Text == nil {
		return ""
	}
	return m.Text.Body
}
