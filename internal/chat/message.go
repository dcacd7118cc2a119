// Package chat implements the transcript action-state engine for dayflow:
// the message model, the append-only transcript controller, the idempotent
// action-state tracker, and the heuristic CRUD classifier that derives
// structured action cards from assistant prose.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER
// =============================================================================

// SenderKind discriminates the sender variant of a message.
type SenderKind int

const (
	SenderUser SenderKind = iota
	SenderAssistant
)

// Sender identifies who produced a message. Only user senders carry a
// display name.
type Sender struct {
	Kind        SenderKind
	DisplayName string
}

// UserSender returns a sender for the named user.
func UserSender(displayName string) Sender {
	return Sender{Kind: SenderUser, DisplayName: displayName}
}

// AssistantSender returns the assistant sender.
func AssistantSender() Sender {
	return Sender{Kind: SenderAssistant}
}

// IsUser reports whether the sender is the user variant.
func (s Sender) IsUser() bool {
	return s.Kind == SenderUser
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// AttachmentKind discriminates attachment payloads.
type AttachmentKind int

const (
	AttachmentImage AttachmentKind = iota
	AttachmentFile
)

// Attachment is an opaque payload carried alongside a message. The core
// never inspects attachment bytes.
type Attachment struct {
	Kind AttachmentKind
	Data []byte // image bytes (AttachmentImage)
	Name string // file name (AttachmentFile)
	Ext  string // file extension (AttachmentFile)
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single entry in a chat transcript. A message is immutable
// once IsStreaming becomes false; action-state overlays never mutate the
// message itself.
type Message struct {
	ID          string
	Sender      Sender
	Content     string
	Timestamp   time.Time
	IsStreaming bool
	Error       string
	// ErrorRetryable is set alongside Error when the failure's
	// classification permits a retry affordance.
	ErrorRetryable bool
	Attachment     *Attachment
	Preview        Preview // nil when the message is plain prose

	// Classification is memoized by Controller.Finalize for assistant
	// messages without an explicit preview. Nil until finalized.
	Classification *CRUDOperation
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(displayName, content string, attachment *Attachment) Message {
	return Message{
		ID:         uuid.NewString(),
		Sender:     UserSender(displayName),
		Content:    content,
		Timestamp:  time.Now(),
		Attachment: attachment,
	}
}

// NewAssistantMessage creates a streaming assistant message with empty
// content. Tokens arrive via Controller.MutateStreaming.
func NewAssistantMessage() Message {
	return Message{
		ID:          uuid.NewString(),
		Sender:      AssistantSender(),
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewAssistantPreviewMessage creates a finalized assistant message carrying
// a structured preview. Content, if non-empty, is the prose preceding the
// card. The preview is validated at construction.
func NewAssistantPreviewMessage(content string, preview Preview) (Message, error) {
	if preview == nil {
		return Message{}, fmt.Errorf("preview message requires a non-nil preview")
	}
	if err := preview.validate(); err != nil {
		return Message{}, fmt.Errorf("invalid preview: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Sender:    AssistantSender(),
		Content:   content,
		Timestamp: time.Now(),
		Preview:   preview,
	}, nil
}

// HasError reports whether the message carries a failure string.
func (m Message) HasError() bool {
	return m.Error != ""
}
