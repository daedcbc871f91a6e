package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func TestEmitter_PublishesKeyedByShortID(t *testing.T) {
	pm := &publisherMock{}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewEmitter(pm, "ticket.events", nil)
	e.now = func() time.Time { return at }

	pm.On("Publish", mock.Anything, "ticket.events", []byte("qr_1"), mock.MatchedBy(func(v []byte) bool {
		var ev messages.TicketEvent
		return json.Unmarshal(v, &ev) == nil && ev.Type == messages.TypeRecordScanned && ev.ScanCount == 3 && ev.At.Equal(at)
	})).Return(nil).Once()

	e.Emit(context.Background(), messages.TicketEvent{Type: messages.TypeRecordScanned, ShortID: "qr_1", ScanCount: 3})
	pm.AssertExpectations(t)
}

func TestEmitter_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	pm := &publisherMock{}
	pm.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	e := NewEmitter(pm, "t", zap.New(core))
	e.Emit(context.Background(), messages.TicketEvent{Type: messages.TypeRecordCreated, ShortID: "qr_2"})

	require.Equal(t, 1, logs.FilterMessage("publish ticket event").Len())
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	e.Emit(context.Background(), messages.TicketEvent{Type: messages.TypeRecordCreated})
	NewEmitter(nil, "t", nil).Emit(context.Background(), messages.TicketEvent{})
}
