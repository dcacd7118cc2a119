// Package domain provides in-memory task/event/habit managers: the
// collaborators that own entity state and receive action-card effects from
// the chat core. The production app backs these with its own persistence;
// this implementation is used by the offline demo and tests.
package domain

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"dayflow/internal/logging"
)

// ErrNotFound is returned when an action targets an unknown entity id.
var ErrNotFound = errors.New("entity not found")

// Event is a calendar entry owned by the manager.
type Event struct {
	ID        string
	Title     string
	Completed bool
	Deleted   bool
}

// Manager holds the in-memory entity tables.
type Manager struct {
	mu     sync.Mutex
	events map[string]*Event
	bulk   map[string]bool // bulkID -> confirmed
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		events: make(map[string]*Event),
		bulk:   make(map[string]bool),
	}
}

// AddEvent registers an event so later actions can resolve it.
func (m *Manager) AddEvent(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := ev
	m.events[ev.ID] = &copied
}

// Event returns a copy of the event with the given id.
func (m *Manager) Event(id string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}

// CompleteEvent marks the event completed.
func (m *Manager) CompleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Completed = true
	logging.ActionsDebug("domain: event %s completed", eventID)
	return nil
}

// DeleteEvent marks the event deleted.
func (m *Manager) DeleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Deleted = true
	logging.ActionsDebug("domain: event %s deleted", eventID)
	return nil
}

// ConfirmBulkAction records a confirmed bulk operation.
func (m *Manager) ConfirmBulkAction(ctx context.Context, bulkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulk[bulkID] = true
	logging.Actions("domain: bulk action %s confirmed", bulkID)
	return nil
}

// MarkAllComplete completes every listed event concurrently. The call
// fails if any event fails, and events completed before the failure stay
// completed; the caller's idempotent apply keeps a later retry safe.
func (m *Manager) MarkAllComplete(ctx context.Context, messageID string, eventIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range eventIDs {
		g.Go(func() error {
			return m.CompleteEvent(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logging.Actions("domain: mark-all-complete for message %s (%d events)", messageID, len(eventIDs))
	return nil
}

// BulkConfirmed reports whether the bulk action was confirmed.
func (m *Manager) BulkConfirmed(bulkID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bulk[bulkID]
}
