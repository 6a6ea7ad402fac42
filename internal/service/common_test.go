package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vicmordi/AIHelpdesk/internal/events"
)

type failingDispatcher struct{ calls int }

func (d *failingDispatcher) Publish(context.Context, events.Event) error {
	d.calls++
	return errors.New("broker unavailable")
}

func (d *failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func TestPublishEventLogsDispatchFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := &failingDispatcher{}

	publishEvent(context.Background(), dispatcher, zap.New(core), events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: "org-1",
		TicketID:       "t-1",
	})

	assert.Equal(t, 1, dispatcher.calls)
	entries := logs.FilterMessage("event dispatch failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(events.EventTicketCreated), fields["event_type"])
	assert.Equal(t, "org-1", fields["organization_id"])
	assert.NotEmpty(t, fields["event_id"])
	assert.Equal(t, "broker unavailable", fields["error"])
}
