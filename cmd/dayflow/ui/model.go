// Package ui provides the interactive terminal chat interface for dayflow.
// It is a rendering layer only: all transcript and action state lives in
// internal/chat, consumed here through read-only snapshots and mutation
// callbacks.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"dayflow/internal/chat"
	"dayflow/internal/config"
)

const defaultChatWidth = 80

// Model is the bubbletea model for the chat view.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	ctrl    *chat.Controller
	tracker *chat.Tracker

	// events wakes the UI when a transport callback mutated the core.
	events chan struct{}

	userName string
	width    int
	height   int
	ready    bool
	notice   string // transient domain-error notification
}

// coreEventMsg signals that the core mutated and the view is stale.
type coreEventMsg struct{}

// actionResultMsg carries the outcome of an async card action.
type actionResultMsg struct {
	applied bool
	err     error
}

// sendResultMsg carries the outcome of an async send/retry.
type sendResultMsg struct {
	err error
}

// New creates the chat UI bound to an existing controller and tracker.
// Appearance comes from injected config, never from globals.
func New(ctrl *chat.Controller, tracker *chat.Tracker, appearance config.AppearanceConfig, events chan struct{}) Model {
	ta := textarea.New()
	ta.Placeholder = "Message your assistant..."
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := NewStyles(appearance.AccentColor)
	sp.Style = styles.Accent

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(defaultChatWidth-4),
	)

	name := appearance.UserDisplayName
	if name == "" {
		name = "You"
	}

	return Model{
		textarea: ta,
		spinner:  sp,
		renderer: renderer,
		styles:   styles,
		ctrl:     ctrl,
		tracker:  tracker,
		events:   events,
		userName: name,
	}
}

// Notify wakes the UI from a transport callback. Non-blocking; redundant
// wakeups collapse into one.
func Notify(events chan struct{}) {
	select {
	case events <- struct{}{}:
	default:
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		<-m.events
		return coreEventMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := m.textarea.Height() + 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		wrap := msg.Width - 4
		if wrap > defaultChatWidth {
			wrap = defaultChatWidth
		}
		if wrap > 10 {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(wrap),
			)
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				break
			}
			m.textarea.Reset()
			m.notice = ""
			cmds = append(cmds, m.sendCmd(input))
		default:
			if cmd := m.handleActionKey(msg.String()); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case coreEventMsg:
		m.refresh()
		cmds = append(cmds, m.waitForEvent())

	case actionResultMsg:
		if msg.err != nil {
			// Domain failures are ephemeral: the card stays actionable.
			m.notice = "Action failed: " + msg.err.Error()
		} else if !msg.applied {
			m.notice = "Already done."
		} else {
			m.notice = ""
		}
		m.refresh()

	case sendResultMsg:
		if msg.err != nil {
			m.notice = "Send failed: " + msg.err.Error()
		}
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleActionKey maps action keys onto the most recent actionable card.
// Returns nil when the key is plain input.
func (m *Model) handleActionKey(key string) tea.Cmd {
	// Action keys only apply when the input line is empty, so typing
	// prose containing 'c' or 'r' is unaffected.
	if strings.TrimSpace(m.textarea.Value()) != "" {
		return nil
	}

	switch key {
	case "c":
		if ev, ok := m.latestEventPreview(); ok {
			return m.applyCmd(chat.ActionCompleteEvent, ev.ID)
		}
	case "x":
		if ev, ok := m.latestEventPreview(); ok {
			return m.applyCmd(chat.ActionDeleteEvent, ev.ID)
		}
	case "a":
		if msgID, p, ok := m.latestMultiEventPreview(); ok {
			return m.markAllCmd(msgID, p.EventIDs())
		}
	case "y":
		if p, ok := m.latestBulkPreview(); ok {
			return m.applyCmd(chat.ActionConfirmBulk, p.ID)
		}
	case "r":
		if id, ok := m.latestRetryable(); ok {
			return m.retryCmd(id)
		}
	}
	return nil
}

func (m Model) sendCmd(input string) tea.Cmd {
	ctrl := m.ctrl
	userName := m.userName
	return func() tea.Msg {
		msg := chat.NewUserMessage(userName, input, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, err := ctrl.Send(ctx, msg)
		return sendResultMsg{err: err}
	}
}

func (m Model) retryCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return sendResultMsg{err: ctrl.Retry(ctx, id)}
	}
}

func (m Model) applyCmd(kind chat.ActionKind, id string) tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		applied, err := tracker.Apply(ctx, kind, id)
		return actionResultMsg{applied: applied, err: err}
	}
}

func (m Model) markAllCmd(messageID string, eventIDs []string) tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		applied, err := tracker.ApplyMarkAllComplete(ctx, messageID, eventIDs)
		return actionResultMsg{applied: applied, err: err}
	}
}

// =============================================================================
// CARD LOOKUP
// =============================================================================

func (m Model) latestEventPreview() (*chat.EventPreview, bool) {
	snapshot := m.ctrl.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if p, ok := snapshot[i].Preview.(*chat.EventPreview); ok {
			return p, true
		}
	}
	return nil, false
}

func (m Model) latestMultiEventPreview() (string, *chat.MultiEventPreview, bool) {
	snapshot := m.ctrl.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if p, ok := snapshot[i].Preview.(*chat.MultiEventPreview); ok {
			return snapshot[i].ID, p, true
		}
	}
	return "", nil, false
}

func (m Model) latestBulkPreview() (*chat.BulkActionPreview, bool) {
	snapshot := m.ctrl.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if p, ok := snapshot[i].Preview.(*chat.BulkActionPreview); ok {
			return p, true
		}
	}
	return nil, false
}

func (m Model) latestRetryable() (string, bool) {
	snapshot := m.ctrl.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if snapshot[i].HasError() && snapshot[i].ErrorRetryable {
			return snapshot[i].ID, true
		}
	}
	return "", false
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
