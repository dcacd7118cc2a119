package ui

import (
	"fmt"
	"strings"

	"dayflow/internal/chat"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Starting dayflow..."
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("dayflow assistant"))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")

	if m.ctrl.TypingIndicatorVisible() {
		sb.WriteString(m.spinner.View())
		sb.WriteString(m.styles.Muted.Render(" assistant is thinking..."))
		sb.WriteString("\n")
	}
	if m.notice != "" {
		sb.WriteString(m.styles.Notice.Render(m.notice))
		sb.WriteString("\n")
	}

	sb.WriteString(m.textarea.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("enter send · c complete · x delete · a accept all · y confirm · r retry · esc quit"))
	return sb.String()
}

func (m Model) renderTranscript() string {
	var sb strings.Builder

	for _, msg := range m.ctrl.Snapshot() {
		if msg.Sender.IsUser() {
			sb.WriteString(m.styles.UserName.Render(msg.Sender.DisplayName) + "\n")
			sb.WriteString(m.styles.UserText.Render(msg.Content))
			sb.WriteString("\n\n")
			continue
		}

		sb.WriteString(m.styles.AssistantName.Render("Assistant") + "\n")
		if msg.Content != "" {
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
		if msg.Preview != nil {
			sb.WriteString(m.renderPreview(msg))
			sb.WriteString("\n")
		} else if msg.Classification != nil && !msg.Classification.IsNone() {
			sb.WriteString(m.renderClassification(*msg.Classification))
			sb.WriteString("\n")
		}
		if msg.HasError() {
			sb.WriteString(m.renderError(msg))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery; glamour can
// panic on pathological input mid-stream.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

func (m Model) renderPreview(msg chat.Message) string {
	switch p := msg.Preview.(type) {
	case *chat.EventPreview:
		return m.renderEventCard(p)
	case *chat.MultiEventPreview:
		return m.renderMultiEventCard(msg.ID, p)
	case *chat.BulkActionPreview:
		return m.renderBulkCard(p)
	}
	return ""
}

func (m Model) renderEventCard(p *chat.EventPreview) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", p.Icon, m.styles.CardTitle.Render(p.Title)))
	sb.WriteString(m.styles.Muted.Render(p.TimeDescription) + "\n")
	if p.Location != "" {
		sb.WriteString(m.styles.Muted.Render("@ "+p.Location) + "\n")
	}
	if p.IsMultiDay {
		for _, day := range p.Days {
			sb.WriteString(fmt.Sprintf("  %s — %s\n", day.Date, day.Description))
		}
	}

	switch {
	case m.tracker.IsApplied(chat.ActionCompleteEvent, p.ID):
		sb.WriteString(m.styles.Done.Render("✓ completed"))
	case m.tracker.IsApplied(chat.ActionDeleteEvent, p.ID):
		sb.WriteString(m.styles.Done.Render("✓ deleted"))
	default:
		sb.WriteString(m.styles.Muted.Render(actionHints(p.Actions)))
	}
	return m.styles.Card.Render(sb.String())
}

func (m Model) renderMultiEventCard(messageID string, p *chat.MultiEventPreview) string {
	var sb strings.Builder
	sb.WriteString(m.styles.CardTitle.Render(fmt.Sprintf("%d events", len(p.Items))) + "\n")
	for _, it := range p.Items {
		mark := " "
		if it.IsCompleted {
			mark = "✓"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s (%s)\n", mark, it.Time, it.Title, it.Date))
	}
	if m.tracker.IsApplied(chat.ActionAcceptMultiEvent, messageID) {
		sb.WriteString(m.styles.Done.Render("✓ all marked complete"))
	} else {
		sb.WriteString(m.styles.Muted.Render("[a] accept all"))
	}
	return m.styles.Card.Render(sb.String())
}

func (m Model) renderBulkCard(p *chat.BulkActionPreview) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", p.Icon, m.styles.CardTitle.Render(p.Title)))
	sb.WriteString(p.Description + "\n")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d items affected", p.Count)))
	if p.DateRange != "" {
		sb.WriteString(m.styles.Muted.Render(" · " + p.DateRange))
	}
	sb.WriteString("\n")

	if m.tracker.IsApplied(chat.ActionConfirmBulk, p.ID) {
		sb.WriteString(m.styles.Done.Render("✓ confirmed"))
	} else {
		sb.WriteString(m.styles.Muted.Render("[y] confirm"))
	}

	card := m.styles.Card
	if p.Warning == chat.WarningCaution || p.Warning == chat.WarningCritical {
		card = m.styles.WarningCard
	}
	return card.Render(sb.String())
}

// renderClassification shows the card derived from assistant prose by the
// CRUD classifier.
func (m Model) renderClassification(op chat.CRUDOperation) string {
	var text string
	switch op.Kind {
	case chat.CRUDBulk:
		text = fmt.Sprintf("%s %d %s", op.Action, op.Count, op.ItemType)
	default:
		text = fmt.Sprintf("%s %s: %s", op.ItemType, strings.ToLower(op.Kind.String()), op.Title)
	}
	return m.styles.Card.Render(m.styles.CardTitle.Render(text))
}

func (m Model) renderError(msg chat.Message) string {
	text := "⚠ " + msg.Error
	if msg.ErrorRetryable {
		text += "  [r] retry"
	}
	return m.styles.Error.Render(text)
}

func actionHints(actions []chat.EventAction) string {
	var hints []string
	for _, a := range actions {
		switch a {
		case chat.EventActionComplete:
			hints = append(hints, "[c] complete")
		case chat.EventActionDelete:
			hints = append(hints, "[x] delete")
		}
	}
	if len(hints) == 0 {
		return ""
	}
	return strings.Join(hints, "  ")
}
