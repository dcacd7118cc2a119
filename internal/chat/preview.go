package chat

import "fmt"

// =============================================================================
// PREVIEW UNION
// =============================================================================

// PreviewKind discriminates structured preview payloads.
type PreviewKind int

const (
	PreviewEvent PreviewKind = iota
	PreviewMultiEvent
	PreviewBulkAction
)

// Preview is the closed union of structured payloads a message may carry.
// A nil Preview means the message is plain prose. The only implementations
// live in this package; validity is enforced at message construction.
type Preview interface {
	PreviewKind() PreviewKind
	validate() error
}

// EventAction is an action a rendered event card can offer.
type EventAction string

const (
	EventActionEdit            EventAction = "edit"
	EventActionDelete          EventAction = "delete"
	EventActionComplete        EventAction = "complete"
	EventActionViewFull        EventAction = "viewFull"
	EventActionShare           EventAction = "share"
	EventActionMarkAllComplete EventAction = "markAllComplete"
)

// BulkAction is an action a rendered bulk card can offer.
type BulkAction string

const (
	BulkActionConfirm BulkAction = "confirm"
	BulkActionCancel  BulkAction = "cancel"
	BulkActionUndo    BulkAction = "undo"
)

// WarningLevel grades how destructive a bulk action is.
type WarningLevel string

const (
	WarningNormal   WarningLevel = "normal"
	WarningCaution  WarningLevel = "caution"
	WarningCritical WarningLevel = "critical"
)

// EventDay is one day's slice of a multi-day event.
type EventDay struct {
	Date        string
	Description string
}

// EventPreview is a single-event action card.
type EventPreview struct {
	ID              string
	Title           string
	Icon            string
	TimeDescription string
	Location        string
	Category        string
	IsMultiDay      bool
	Days            []EventDay
	Actions         []EventAction
}

func (p *EventPreview) PreviewKind() PreviewKind { return PreviewEvent }

func (p *EventPreview) validate() error {
	if p.ID == "" {
		return fmt.Errorf("event preview requires an id")
	}
	if p.Title == "" {
		return fmt.Errorf("event preview %s requires a title", p.ID)
	}
	if p.IsMultiDay && len(p.Days) == 0 {
		return fmt.Errorf("multi-day event preview %s requires a per-day breakdown", p.ID)
	}
	return nil
}

// EventListItem is one row of a multi-event card.
type EventListItem struct {
	ID          string
	Time        string
	Title       string
	IsCompleted bool
	Date        string
}

// MultiEventPreview is an ordered list-of-events card.
type MultiEventPreview struct {
	Items []EventListItem
}

func (p *MultiEventPreview) PreviewKind() PreviewKind { return PreviewMultiEvent }

func (p *MultiEventPreview) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("multi-event preview requires at least one item")
	}
	for i, it := range p.Items {
		if it.ID == "" {
			return fmt.Errorf("multi-event preview item %d requires an id", i)
		}
	}
	return nil
}

// EventIDs returns the ids of all listed events, in order.
func (p *MultiEventPreview) EventIDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ID
	}
	return ids
}

// BulkActionPreview is a confirm-style card for an operation affecting many
// items at once.
type BulkActionPreview struct {
	ID          string
	Action      string // e.g. "Deleted", "Rescheduled"
	Icon        string
	Title       string
	Description string
	Count       int
	DateRange   string
	Warning     WarningLevel
	Actions     []BulkAction
}

func (p *BulkActionPreview) PreviewKind() PreviewKind { return PreviewBulkAction }

func (p *BulkActionPreview) validate() error {
	if p.ID == "" {
		return fmt.Errorf("bulk action preview requires an id")
	}
	if p.Count < 0 {
		return fmt.Errorf("bulk action preview %s has negative count %d", p.ID, p.Count)
	}
	switch p.Warning {
	case "", WarningNormal, WarningCaution, WarningCritical:
	default:
		return fmt.Errorf("bulk action preview %s has unknown warning level %q", p.ID, p.Warning)
	}
	return nil
}
