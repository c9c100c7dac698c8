package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"media-access/internal/platform/logger"
	"media-access/internal/ports/notify"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "media-access:events"

// RedisBroker reparte los eventos entre instancias: Notify publica en redis y
// Start entrega al hub local todo lo que llega del canal (incluido lo propio).
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     logger.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, log logger.Logger) *RedisBroker {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisBroker{client: client, channel: DefaultChannel, hub: hub, log: log}
}

// Notify es best-effort: un error de redis se loguea y no rompe la operación.
func (b *RedisBroker) Notify(ctx context.Context, ev notify.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("realtime: marshal event", map[string]any{"err": err.Error()})
		return
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Warn("realtime: publish failed", map[string]any{"topic": ev.Topic, "err": err.Error()})
	}
}

// Start se suscribe (esperando la confirmación) y reparte en una goroutine
// hasta que ctx se cancele. El stop devuelto cierra la suscripción.
func (b *RedisBroker) Start(ctx context.Context) (stop func(), err error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("realtime: subscribe %s: %w", b.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev notify.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("realtime: bad payload", map[string]any{"err": err.Error()})
					continue
				}
				b.hub.Deliver(ev)
			}
		}
	}()

	return func() {
		_ = ps.Close()
		<-done
	}, nil
}
