package chat

import (
	"context"
	"fmt"
	"sync"

	"dayflow/internal/logging"
	"dayflow/internal/transport"
)

// Controller owns the ordered message list for one chat session and
// defines every permitted mutation. Messages are append-only; the only
// in-place changes are streaming content growth, finalization, and error
// attachment. All mutations are serialized under one mutex, so a mutation
// runs to completion before the next begins.
//
// The controller implements transport.Receiver: token arrival, stream
// completion, classified errors, and typing-state changes flow in through
// those callbacks.
type Controller struct {
	mu       sync.Mutex
	messages []Message
	index    map[string]int // message id -> position
	typing   bool

	transport transport.Transport
	classify  func(string) CRUDOperation
}

// NewController creates an empty transcript bound to the given transport.
// A nil transport is allowed for render-only or replay use; Send and Retry
// then fail.
func NewController(tr transport.Transport) *Controller {
	return &Controller{
		index:     make(map[string]int),
		transport: tr,
		classify:  Classify,
	}
}

// BindTransport attaches the transport after construction. The transport's
// receiver is usually the controller itself, so the two are built in
// stages: controller, then transport, then bind.
func (c *Controller) BindTransport(tr transport.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = tr
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append adds a message at the end of the transcript. Timestamp
// monotonicity is a caller responsibility; the controller tolerates clock
// skew and only logs regressions.
func (c *Controller) Append(msg Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message requires an id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[msg.ID]; exists {
		return fmt.Errorf("message %s already in transcript", msg.ID)
	}
	if n := len(c.messages); n > 0 && msg.Timestamp.Before(c.messages[n-1].Timestamp) {
		logging.TranscriptDebug("append %s: timestamp behind transcript head (clock skew?)", msg.ID)
	}

	c.index[msg.ID] = len(c.messages)
	c.messages = append(c.messages, msg)
	logging.TranscriptDebug("append %s (total=%d)", msg.ID, len(c.messages))
	return nil
}

// MutateStreaming appends deltaText to the content of the streaming
// message with the given id. A no-op for unknown or finalized messages:
// streaming mutation must never resurrect a finalized message.
func (c *Controller) MutateStreaming(id, deltaText string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok || !c.messages[pos].IsStreaming {
		return
	}
	c.messages[pos].Content += deltaText
}

// Finalize marks the message as no longer streaming and memoizes the CRUD
// classification for assistant prose. The classifier runs exactly once per
// message; repeated renders read the memoized result. No-op for unknown or
// already-finalized messages.
func (c *Controller) Finalize(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok || !c.messages[pos].IsStreaming {
		return
	}
	c.messages[pos].IsStreaming = false

	msg := &c.messages[pos]
	if msg.Sender.Kind == SenderAssistant && msg.Preview == nil && msg.Classification == nil {
		op := c.classify(msg.Content)
		msg.Classification = &op
		if !op.IsNone() {
			logging.Transcript("message %s classified as %s", id, op.Kind)
		}
	}
}

// AttachError records a failure on the message, preserving any partial
// content already streamed. Retryable controls whether the rendering layer
// offers a retry affordance.
func (c *Controller) AttachError(id, errText string, retryable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok {
		return
	}
	c.messages[pos].Error = errText
	c.messages[pos].ErrorRetryable = retryable
	c.messages[pos].IsStreaming = false
	logging.Transcript("message %s errored: %s (retryable=%v)", id, errText, retryable)
}

// Send appends the user's message, appends the pending assistant message
// the reply will stream into, and issues the request through the
// transport under the pending message's id. The pending message is in the
// transcript before the transport runs, so a reply delivered from inside
// Send still lands. Returns the assistant message id.
func (c *Controller) Send(ctx context.Context, userMsg Message) (string, error) {
	if c.transport == nil {
		return "", fmt.Errorf("no transport configured")
	}
	if err := c.Append(userMsg); err != nil {
		return "", err
	}

	pending := NewAssistantMessage()
	if err := c.Append(pending); err != nil {
		return "", err
	}

	err := c.transport.Send(ctx, pending.ID, transport.Request{
		Content:  userMsg.Content,
		HasImage: userMsg.Attachment != nil && userMsg.Attachment.Kind == AttachmentImage,
		FileName: attachmentName(userMsg.Attachment),
	})
	if err != nil {
		c.AttachError(pending.ID, err.Error(), false)
		return pending.ID, fmt.Errorf("send: %w", err)
	}
	return pending.ID, nil
}

// Retry clears the error on the message and re-issues the underlying
// request. The message keeps its id; partial content is not rolled back.
// The transport cancels any prior in-flight request for the same id.
func (c *Controller) Retry(ctx context.Context, id string) error {
	if c.transport == nil {
		return fmt.Errorf("no transport configured")
	}

	c.mu.Lock()
	pos, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("message %s not in transcript", id)
	}
	if c.messages[pos].Error == "" {
		c.mu.Unlock()
		return fmt.Errorf("message %s has no error to retry", id)
	}
	prevError := c.messages[pos].Error
	prevRetryable := c.messages[pos].ErrorRetryable
	c.messages[pos].Error = ""
	c.messages[pos].ErrorRetryable = false
	c.messages[pos].IsStreaming = true
	c.mu.Unlock()

	logging.Transcript("retry message %s", id)
	if err := c.transport.Retry(ctx, id); err != nil {
		// The transport rejected the retry before starting a stream, so
		// restore the error state the user can act on.
		c.mu.Lock()
		c.messages[pos].Error = prevError
		c.messages[pos].ErrorRetryable = prevRetryable
		c.messages[pos].IsStreaming = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// READ-ONLY VIEWS
// =============================================================================

// Snapshot returns a copy of the transcript in append order. Preview and
// classification payloads are shared; they are immutable once attached.
func (c *Controller) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Message returns the message with the given id.
func (c *Controller) Message(id string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok {
		return Message{}, false
	}
	return c.messages[pos], true
}

// TypingIndicatorVisible reports whether the "assistant is composing"
// indicator should render: the transport signalled typing and no streaming
// message has produced content yet.
func (c *Controller) TypingIndicatorVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.typing {
		return false
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].IsStreaming && c.messages[i].Content != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TRANSPORT CALLBACKS (transport.Receiver)
// =============================================================================

// OnTokenArrived appends a streamed token to its message.
func (c *Controller) OnTokenArrived(messageID, text string) {
	c.MutateStreaming(messageID, text)
}

// OnStreamFinished finalizes the message and runs classification.
func (c *Controller) OnStreamFinished(messageID string) {
	c.Finalize(messageID)
}

// OnError attaches a classified transport error to its message.
func (c *Controller) OnError(messageID string, err *transport.Error) {
	if err == nil {
		return
	}
	c.AttachError(messageID, err.Error(), err.Retryable())
}

// OnTypingStateChanged records the composing signal from the transport.
func (c *Controller) OnTypingStateChanged(typing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = typing
}

func attachmentName(a *Attachment) string {
	if a == nil || a.Kind != AttachmentFile {
		return ""
	}
	return a.Name
}
