package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserMessage(t *testing.T) {
	att := &Attachment{Kind: AttachmentImage, Data: []byte{0x89}, Name: "photo.png", Ext: "png"}
	msg := NewUserMessage("Dana", "look at this", att)

	assert.NotEmpty(t, msg.ID)
	assert.True(t, msg.Sender.IsUser())
	assert.Equal(t, "Dana", msg.Sender.DisplayName)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.Timestamp.IsZero())
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, AttachmentImage, msg.Attachment.Kind)
}

func TestNewAssistantMessageStartsStreaming(t *testing.T) {
	msg := NewAssistantMessage()
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, SenderAssistant, msg.Sender.Kind)
	assert.True(t, msg.IsStreaming)
	assert.Empty(t, msg.Content)
	assert.Nil(t, msg.Preview)
}

func TestNewAssistantPreviewMessageValidates(t *testing.T) {
	tests := []struct {
		name    string
		preview Preview
		wantErr bool
	}{
		{
			name:    "valid event",
			preview: &EventPreview{ID: "ev-1", Title: "Dentist", TimeDescription: "Fri 10:00"},
		},
		{
			name:    "event missing id",
			preview: &EventPreview{Title: "Dentist"},
			wantErr: true,
		},
		{
			name:    "event missing title",
			preview: &EventPreview{ID: "ev-1"},
			wantErr: true,
		},
		{
			name: "multi-day without breakdown",
			preview: &EventPreview{
				ID: "ev-2", Title: "Conference", IsMultiDay: true,
			},
			wantErr: true,
		},
		{
			name: "multi-day with breakdown",
			preview: &EventPreview{
				ID: "ev-2", Title: "Conference", IsMultiDay: true,
				Days: []EventDay{{Date: "Mon", Description: "Kickoff"}},
			},
		},
		{
			name:    "multi-event empty list",
			preview: &MultiEventPreview{},
			wantErr: true,
		},
		{
			name: "multi-event item missing id",
			preview: &MultiEventPreview{
				Items: []EventListItem{{Title: "No id"}},
			},
			wantErr: true,
		},
		{
			name: "valid multi-event",
			preview: &MultiEventPreview{
				Items: []EventListItem{{ID: "ev-1", Title: "Standup", Time: "09:00"}},
			},
		},
		{
			name:    "bulk negative count",
			preview: &BulkActionPreview{ID: "blk-1", Count: -1},
			wantErr: true,
		},
		{
			name:    "bulk unknown warning",
			preview: &BulkActionPreview{ID: "blk-1", Count: 3, Warning: WarningLevel("shrug")},
			wantErr: true,
		},
		{
			name: "valid bulk",
			preview: &BulkActionPreview{
				ID: "blk-1", Action: "Deleted", Count: 5, Warning: WarningCritical,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewAssistantPreviewMessage("card", tt.preview)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.preview, msg.Preview)
			assert.Equal(t, SenderAssistant, msg.Sender.Kind)
		})
	}
}

func TestMultiEventPreviewEventIDs(t *testing.T) {
	p := &MultiEventPreview{Items: []EventListItem{
		{ID: "ev-1", Title: "a"},
		{ID: "ev-2", Title: "b"},
		{ID: "ev-3", Title: "c"},
	}}
	assert.Equal(t, []string{"ev-1", "ev-2", "ev-3"}, p.EventIDs())
}

func TestMessageHasError(t *testing.T) {
	msg := NewAssistantMessage()
	assert.False(t, msg.HasError())
	msg.Error = "no connection"
	assert.True(t, msg.HasError())
}
