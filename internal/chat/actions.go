package chat

import (
	"context"
	"fmt"
	"sync"

	"dayflow/internal/logging"
)

// =============================================================================
// DOMAIN COLLABORATORS
// =============================================================================

// DomainActions is the boundary to the task/event/habit managers that own
// the underlying entities. The tracker dispatches exactly one call per
// successful apply; persistence is entirely the collaborator's concern.
type DomainActions interface {
	CompleteEvent(ctx context.Context, eventID string) error
	DeleteEvent(ctx context.Context, eventID string) error
	ConfirmBulkAction(ctx context.Context, bulkID string) error
	MarkAllComplete(ctx context.Context, messageID string, eventIDs []string) error
}

// =============================================================================
// ACTION-STATE TRACKER
// =============================================================================

// ActionKind selects which of the tracker's sets an apply targets.
type ActionKind int

const (
	// ActionCompleteEvent marks a single event card accepted/completed.
	ActionCompleteEvent ActionKind = iota
	// ActionDeleteEvent marks a single event card deleted.
	ActionDeleteEvent
	// ActionAcceptMultiEvent marks a whole multi-event card accepted,
	// keyed by message id.
	ActionAcceptMultiEvent
	// ActionConfirmBulk marks a bulk action card confirmed.
	ActionConfirmBulk
)

// String returns the display name for each kind.
func (k ActionKind) String() string {
	names := []string{"complete_event", "delete_event", "accept_multi_event", "confirm_bulk"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Tracker records user responses to action cards with idempotent
// apply-then-commit semantics: the collaborator call runs first, and only
// a confirmed success mutates tracker state. Membership is monotonic for
// the lifetime of the transcript session; the sets are in-memory only.
//
// Two Apply calls for the same (kind, id) are serialized: the second waits
// for the first and then observes its already-applied result. Applies for
// different ids may run concurrently.
type Tracker struct {
	mu       sync.Mutex
	applied  [4]map[string]struct{} // indexed by ActionKind
	inflight map[string]chan struct{}
	domain   DomainActions
}

// NewTracker creates an empty tracker backed by the given collaborators.
func NewTracker(domain DomainActions) *Tracker {
	t := &Tracker{
		inflight: make(map[string]chan struct{}),
		domain:   domain,
	}
	for i := range t.applied {
		t.applied[i] = make(map[string]struct{})
	}
	return t
}

// IsApplied reports set membership for (kind, id). Pure query; used to
// render a card's action buttons as disabled/"already done".
func (t *Tracker) IsApplied(kind ActionKind, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.applied[kind][id]
	return ok
}

// AppliedCount returns how many ids have been applied for the given kind.
func (t *Tracker) AppliedCount(kind ActionKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.applied[kind])
}

// Apply dispatches the domain effect for (kind, id) and, on success,
// records the id as applied. Returns true when this call performed the
// effect, false when the id was already applied (a no-op). On collaborator
// failure the tracker state is unchanged and the error is returned for the
// caller to surface as a transient notification; the card stays actionable.
//
// ActionAcceptMultiEvent carries per-card event ids and must go through
// ApplyMarkAllComplete instead.
func (t *Tracker) Apply(ctx context.Context, kind ActionKind, id string) (bool, error) {
	switch kind {
	case ActionCompleteEvent:
		return t.apply(ctx, kind, id, func(ctx context.Context) error {
			return t.domain.CompleteEvent(ctx, id)
		})
	case ActionDeleteEvent:
		return t.apply(ctx, kind, id, func(ctx context.Context) error {
			return t.domain.DeleteEvent(ctx, id)
		})
	case ActionConfirmBulk:
		return t.apply(ctx, kind, id, func(ctx context.Context) error {
			return t.domain.ConfirmBulkAction(ctx, id)
		})
	case ActionAcceptMultiEvent:
		return false, fmt.Errorf("accept_multi_event requires event ids; use ApplyMarkAllComplete")
	default:
		return false, fmt.Errorf("unknown action kind %d", kind)
	}
}

// ApplyMarkAllComplete accepts a multi-event card: one MarkAllComplete call
// covering every listed event, tracked by the card's message id.
func (t *Tracker) ApplyMarkAllComplete(ctx context.Context, messageID string, eventIDs []string) (bool, error) {
	return t.apply(ctx, ActionAcceptMultiEvent, messageID, func(ctx context.Context) error {
		return t.domain.MarkAllComplete(ctx, messageID, eventIDs)
	})
}

// apply is the shared idempotency core. Membership check, in-flight
// serialization, collaborator dispatch, then commit.
func (t *Tracker) apply(ctx context.Context, kind ActionKind, id string, invoke func(context.Context) error) (bool, error) {
	key := kind.String() + "|" + id

	var own chan struct{}
	for own == nil {
		t.mu.Lock()
		if _, ok := t.applied[kind][id]; ok {
			t.mu.Unlock()
			logging.ActionsDebug("apply %s id=%s: already applied, no-op", kind, id)
			return false, nil
		}
		waiting, busy := t.inflight[key]
		if !busy {
			own = make(chan struct{})
			t.inflight[key] = own
			t.mu.Unlock()
			break
		}
		t.mu.Unlock()

		// Another apply for the same id is in flight; wait for it and
		// re-check membership.
		select {
		case <-waiting:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	err := invoke(ctx)

	t.mu.Lock()
	if err == nil {
		t.applied[kind][id] = struct{}{}
	}
	delete(t.inflight, key)
	t.mu.Unlock()
	close(own)

	if err != nil {
		logging.Actions("apply %s id=%s failed: %v", kind, id, err)
		return false, fmt.Errorf("apply %s: %w", kind, err)
	}
	logging.Actions("apply %s id=%s committed", kind, id)
	return true, nil
}
