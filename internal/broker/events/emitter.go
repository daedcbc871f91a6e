// Package events publishes ticket events without letting broker trouble fail a request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Emitter struct {
	pub     Publisher
	topic   string
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewEmitter returns an emitter. A nil *Emitter drops every event.
func NewEmitter(pub Publisher, topic string, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{pub: pub, topic: topic, log: log, timeout: 2 * time.Second, now: time.Now}
}

// Emit publishes ev keyed by its shortId. Failures are logged and swallowed.
func (e *Emitter) Emit(ctx context.Context, ev messages.TicketEvent) {
	if e == nil || e.pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("marshal ticket event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := e.pub.Publish(ctx, e.topic, []byte(ev.ShortID), b); err != nil {
		e.log.Error("publish ticket event",
			zap.String("type", ev.Type), zap.String("short_id", ev.ShortID), zap.Error(err))
	}
}
