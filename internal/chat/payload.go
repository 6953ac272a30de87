package chat

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	KindCustomerText = "customer_text"
	KindAIText       = "ai_text"
	KindSupportText  = "support_text"
	KindImage        = "image"
	KindFile         = "file"
)

const (
	SenderCustomer = "customer"
	SenderAI       = "ai"
	SenderSupport  = "support"
)

// Payload is the tagged variant stored in the messages table. Rows written
// by external workflows are not trusted to be well formed: decoding never
// fails, an unrecognized or malformed payload is kept verbatim and surfaces
// as a raw diagnostic dump.
type Payload struct {
	Kind      string    `json:"kind"`
	Content   string    `json:"content,omitempty"`
	URL       string    `json:"url,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender_category,omitempty"`

	raw json.RawMessage
}

func knownKind(kind string) bool {
	switch kind {
	case KindCustomerText, KindAIText, KindSupportText, KindImage, KindFile:
		return true
	}
	return false
}

func (p Payload) Known() bool { return knownKind(p.Kind) }

func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil || !knownKind(a.Kind) {
		// keep the original bytes for diagnostics, never propagate the error
		p.raw = append(json.RawMessage(nil), data...)
		p.Kind = a.Kind
		return nil
	}
	*p = Payload(a)
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	type alias Payload
	return json.Marshal(alias(p))
}

func (p *Payload) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	case nil:
		*p = Payload{}
		return nil
	default:
		return fmt.Errorf("payload: cannot scan %T", value)
	}
}

func (p Payload) Value() (driver.Value, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Preview is the one-line conversation-list text for this payload.
func (p Payload) Preview() string {
	switch p.Kind {
	case KindImage:
		return "📷 Image"
	case KindFile:
		if p.FileName != "" {
			return "📎 " + p.FileName
		}
		return "📎 File"
	case KindCustomerText, KindAIText, KindSupportText:
		if p.Content != "" {
			return p.Content
		}
		return "Message"
	}
	if p.raw != nil {
		return string(p.raw)
	}
	return "Message"
}

// SenderLabel names the sender category for transcripts.
func (p Payload) SenderLabel() string {
	switch p.Kind {
	case KindAIText:
		return "AI"
	case KindSupportText:
		return "Support"
	default:
		return "Customer"
	}
}
