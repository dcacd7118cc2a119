package chat

import (
	"regexp"
	"strconv"
	"strings"

	"dayflow/internal/logging"
)

// =============================================================================
// CRUD CLASSIFICATION
// =============================================================================

// CRUDKind tags the operation a finalized assistant message describes.
type CRUDKind int

const (
	CRUDNone CRUDKind = iota
	CRUDCreated
	CRUDUpdated
	CRUDDeleted
	CRUDBulk
)

// String returns the display name for each kind.
func (k CRUDKind) String() string {
	names := []string{"None", "Created", "Updated", "Deleted", "Bulk"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// CRUDOperation is the classifier's output: the structured card the
// rendering layer derives from assistant prose.
type CRUDOperation struct {
	Kind     CRUDKind
	ItemType string // "Task", "Event", ... for single ops; "tasks", "events", ... for bulk
	Title    string // quoted title for single ops, "" for bulk
	Action   string // bulk action label ("Completed", "Scheduled", ...)
	Count    int    // affected count for bulk, 0 otherwise
}

// IsNone reports whether the message should render as plain prose.
func (op CRUDOperation) IsNone() bool {
	return op.Kind == CRUDNone
}

// =============================================================================
// KEYWORD TABLES
// =============================================================================
//
// The tables below are a deliberate, ordered heuristic: card selection
// depends on first-match ordering, not best-match. Entries must not be
// reordered or "improved".

var creationVerbs = []string{"created", "added", "scheduled"}
var updateVerbs = []string{"updated", "modified", "changed"}
var deletionVerbs = []string{"deleted", "removed", "cancelled"}

// creationEntities in fixed priority order; update/delete are restricted to
// the first two.
var creationEntities = []entityKeyword{
	{"task", "Task"},
	{"event", "Event"},
	{"habit", "Habit"},
	{"goal", "Goal"},
}

var modifyEntities = []entityKeyword{
	{"task", "Task"},
	{"event", "Event"},
}

type entityKeyword struct {
	keyword string
	label   string
}

var bulkSignals = []string{"multiple", "all", "bulk", "several", "batch"}

// bulkActions maps verb keywords to the bulk action label, first match by
// listed order.
var bulkActions = []struct {
	keywords []string
	label    string
}{
	{[]string{"completed", "finished", "done"}, "Completed"},
	{[]string{"deleted", "removed"}, "Deleted"},
	{[]string{"created", "added"}, "Created"},
	{[]string{"updated", "modified"}, "Updated"},
	{[]string{"scheduled"}, "Scheduled"},
	{[]string{"rescheduled"}, "Rescheduled"},
}

// bulkItemTypes in fixed priority order.
var bulkItemTypes = []struct {
	keywords []string
	label    string
}{
	{[]string{"task"}, "tasks"},
	{[]string{"event"}, "events"},
	{[]string{"habit"}, "habits"},
	{[]string{"goal"}, "goals"},
	{[]string{"reminder"}, "reminders"},
	{[]string{"appointment", "meeting"}, "events"},
	{[]string{"item"}, "items"},
}

// numberWords maps English number words to values. Slice order is the
// tie-break when several words co-occur: lowest value wins.
var numberWords = []struct {
	word  string
	value int
}{
	{"two", 2}, {"three", 3}, {"four", 4}, {"five", 5}, {"six", 6},
	{"seven", 7}, {"eight", 8}, {"nine", 9}, {"ten", 10},
}

var digitRunRe = regexp.MustCompile(`\d+`)
var numberedLineRe = regexp.MustCompile(`^\d+[.)]`)

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classify inspects the content of a finalized assistant message and
// derives a CRUD operation tag. It is pure, deterministic, and total:
// absence of a match yields CRUDNone, never an error. Matching runs on a
// lowercased copy; title extraction preserves the original casing.
func Classify(content string) CRUDOperation {
	if content == "" {
		return CRUDOperation{Kind: CRUDNone}
	}

	lower := strings.ToLower(content)

	// 1. Verb-then-entity scan, strict precedence: create, update, delete.
	if containsAny(lower, creationVerbs) {
		if label, ok := matchEntity(lower, creationEntities); ok {
			op := CRUDOperation{
				Kind:     CRUDCreated,
				ItemType: label,
				Title:    extractTitle(content),
			}
			logging.ClassifierDebug("classified as created: type=%s title=%q", op.ItemType, op.Title)
			return op
		}
	}
	if containsAny(lower, updateVerbs) {
		if label, ok := matchEntity(lower, modifyEntities); ok {
			op := CRUDOperation{
				Kind:     CRUDUpdated,
				ItemType: label,
				Title:    extractTitle(content),
			}
			logging.ClassifierDebug("classified as updated: type=%s title=%q", op.ItemType, op.Title)
			return op
		}
	}
	if containsAny(lower, deletionVerbs) {
		if label, ok := matchEntity(lower, modifyEntities); ok {
			op := CRUDOperation{
				Kind:     CRUDDeleted,
				ItemType: label,
				Title:    extractTitle(content),
			}
			logging.ClassifierDebug("classified as deleted: type=%s title=%q", op.ItemType, op.Title)
			return op
		}
	}

	// 2. Bulk detection by explicit plurality signals.
	if containsAny(lower, bulkSignals) {
		op := CRUDOperation{
			Kind:     CRUDBulk,
			Action:   detectBulkAction(lower),
			Count:    extractCount(lower),
			ItemType: detectBulkItemType(lower),
		}
		logging.ClassifierDebug("classified as bulk: action=%s count=%d type=%s", op.Action, op.Count, op.ItemType)
		return op
	}

	// 3. List-shape fallback: three or more bulleted/numbered lines plus a
	// creation signal read as a bulk report even without plurality words.
	if lines := countListLines(content); lines >= 3 {
		if strings.Contains(lower, "scheduled") {
			// A scheduled list is a list of events unless the text names
			// another item type.
			itemType := detectBulkItemType(lower)
			if itemType == "items" && !strings.Contains(lower, "item") {
				itemType = "events"
			}
			return CRUDOperation{Kind: CRUDBulk, Action: "Scheduled", Count: lines, ItemType: itemType}
		}
		if strings.Contains(lower, "created") || strings.Contains(lower, "added") {
			return CRUDOperation{Kind: CRUDBulk, Action: "Created", Count: lines, ItemType: detectBulkItemType(lower)}
		}
	}

	return CRUDOperation{Kind: CRUDNone}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func matchEntity(lower string, entities []entityKeyword) (string, bool) {
	for _, e := range entities {
		if strings.Contains(lower, e.keyword) {
			return e.label, true
		}
	}
	return "", false
}

// detectBulkAction picks the action label by first keyword group match.
func detectBulkAction(lower string) string {
	for _, a := range bulkActions {
		if containsAny(lower, a.keywords) {
			return a.label
		}
	}
	return "Updated"
}

// detectBulkItemType infers the plural item type named in the text.
func detectBulkItemType(lower string) string {
	for _, t := range bulkItemTypes {
		if containsAny(lower, t.keywords) {
			return t.label
		}
	}
	return "items"
}

// extractCount finds how many items the text claims were affected. Number
// words take precedence over digit runs; digit runs outside [1, 99] are
// ignored; the default is 1.
func extractCount(lower string) int {
	for _, nw := range numberWords {
		if strings.Contains(lower, nw.word) {
			return nw.value
		}
	}
	for _, run := range digitRunRe.FindAllString(lower, -1) {
		n, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		if n >= 1 && n <= 99 {
			return n
		}
	}
	return 1
}

// extractTitle returns the substring between the first and last double
// quote, falling back to single quotes, falling back to "Untitled".
func extractTitle(content string) string {
	if title, ok := betweenQuotes(content, '"'); ok {
		return title
	}
	if title, ok := betweenQuotes(content, '\''); ok {
		return title
	}
	return "Untitled"
}

func betweenQuotes(content string, quote byte) (string, bool) {
	first := strings.IndexByte(content, quote)
	last := strings.LastIndexByte(content, quote)
	if first == -1 || last <= first {
		return "", false
	}
	return content[first+1 : last], true
}

// countListLines counts lines that start with a bullet glyph or a numbered
// prefix like "1." or "2)".
func countListLines(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			count++
			continue
		}
		if numberedLineRe.MatchString(trimmed) {
			count++
		}
	}
	return count
}
