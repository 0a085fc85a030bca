package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
)

// MessageKind selects which payload a message carries.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindLink     MessageKind = "link"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
)

// Payload is the closed set of message contents. Only the types in this
// file implement it.
type Payload interface {
	Kind() MessageKind
	Body() string
	ContentRef() string
	sealed()
}

type TextPayload struct{ Text string }
type LinkPayload struct{ URL string }
type ImagePayload struct{ Ref string }
type VideoPayload struct{ Ref string }
type DocumentPayload struct{ Ref string }

func (TextPayload) Kind() MessageKind { return KindText }
func (p TextPayload) Body() string { return p.Text }
func (TextPayload) ContentRef() string { return "" }
func (TextPayload) sealed() {}
func (LinkPayload) Kind() MessageKind { return KindLink }
func (p LinkPayload) Body() string { return p.URL }
func (LinkPayload) ContentRef() string { return "" }
func (LinkPayload) sealed() {}
func (ImagePayload) Kind() MessageKind { return KindImage }
func (ImagePayload) Body() string { return "" }
func (p ImagePayload) ContentRef() string { return p.Ref }
func (ImagePayload) sealed() {}
func (VideoPayload) Kind() MessageKind { return KindVideo }
func (VideoPayload) Body() string { return "" }
func (p VideoPayload) ContentRef() string { return p.Ref }
func (VideoPayload) sealed() {}
func (DocumentPayload) Kind() MessageKind { return KindDocument }
func (DocumentPayload) Body() string { return "" }
func (p DocumentPayload) ContentRef() string { return p.Ref }
func (DocumentPayload) sealed() {}

// NewPayload builds the variant for kind. text and link need a body,
// image, video and document need a content reference; supplying the
// other field as well is rejected.
func NewPayload(kind MessageKind, body, contentRef string) (Payload, error) {
	body = strings.TrimSpace(body)
	contentRef = strings.TrimSpace(contentRef)

	switch kind {
	case KindText, KindLink:
		if body == "" || contentRef != "" {
			return nil, fmt.Errorf("%s message requires a body only: %w", kind, apperrors.ErrInvalidMessage)
		}
		if kind == KindText {
			return TextPayload{Text: body}, nil
		}
		return LinkPayload{URL: body}, nil
	case KindImage, KindVideo, KindDocument:
		if contentRef == "" || body != "" {
			return nil, fmt.Errorf("%s message requires a content reference only: %w", kind, apperrors.ErrInvalidMessage)
		}
		switch kind {
		case KindImage:
			return ImagePayload{Ref: contentRef}, nil
		case KindVideo:
			return VideoPayload{Ref: contentRef}, nil
		default:
			return DocumentPayload{Ref: contentRef}, nil
		}
	}
	return nil, fmt.Errorf("unknown message kind %q: %w", kind, apperrors.ErrInvalidMessage)
}

// Message is one immutable entry of a session log.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Seq       int64
	SenderID  string
	Payload   Payload
	SentAt    time.Time
}

type messageJSON struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  uuid.UUID   `json:"session_id"`
	Seq        int64       `json:"seq"`
	SenderID   string      `json:"sender_id"`
	Kind       MessageKind `json:"kind"`
	Body       string      `json:"body,omitempty"`
	ContentRef string      `json:"content_ref,omitempty"`
	SentAt     time.Time   `json:"sent_at"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		SessionID: m.SessionID,
		Seq:       m.Seq,
		SenderID:  m.SenderID,
		SentAt:    m.SentAt,
	}
	if m.Payload != nil {
		out.Kind = m.Payload.Kind()
		out.Body = m.Payload.Body()
		out.ContentRef = m.Payload.ContentRef()
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	payload, err := NewPayload(in.Kind, in.Body, in.ContentRef)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        in.ID,
		SessionID: in.SessionID,
		Seq:       in.Seq,
		SenderID:  in.SenderID,
		Payload:   payload,
		SentAt:    in.SentAt,
	}
	return nil
}
