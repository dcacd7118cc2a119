package ui

import (
	"dayflow/internal/chat"
	"dayflow/internal/transport"
)

// Relay forwards transport callbacks into the controller and wakes the UI
// after each one. Transport goroutines call it; the UI drains the events
// channel from its own loop.
type Relay struct {
	ctrl   *chat.Controller
	events chan struct{}
}

// NewRelay creates a relay for the given controller and wakeup channel.
func NewRelay(ctrl *chat.Controller, events chan struct{}) *Relay {
	return &Relay{ctrl: ctrl, events: events}
}

var _ transport.Receiver = (*Relay)(nil)

func (r *Relay) OnTokenArrived(messageID, text string) {
	r.ctrl.OnTokenArrived(messageID, text)
	Notify(r.events)
}

func (r *Relay) OnStreamFinished(messageID string) {
	r.ctrl.OnStreamFinished(messageID)
	Notify(r.events)
}

func (r *Relay) OnError(messageID string, err *transport.Error) {
	r.ctrl.OnError(messageID, err)
	Notify(r.events)
}

func (r *Relay) OnTypingStateChanged(typing bool) {
	r.ctrl.OnTypingStateChanged(typing)
	Notify(r.events)
}
