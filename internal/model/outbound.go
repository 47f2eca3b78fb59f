package model

// CanonicalAddress is a recipient number after regional normalization.
type CanonicalAddress string

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindTemplate MessageKind = "template"
)

type TemplateRef struct {
	Name         string
	LanguageCode string
}

type OutboundMessage struct {
	To       CanonicalAddress
	Kind     MessageKind
	Body     string
	Template *TemplateRef
}

func NewTextMessage(to CanonicalAddress, body string) OutboundMessage {
	return OutboundMessage{To: to, Kind: KindText, Body: body}
}

func NewTemplateMessage(to CanonicalAddress, ref TemplateRef) OutboundMessage {
	return OutboundMessage{To: to, Kind: KindTemplate, Template: &ref}
}
