// Package realtime entrega notify.Event a los usuarios conectados.
// El payload es mínimo: quien lo recibe vuelve a consultar el estado.
package realtime

import (
	"context"
	"sync"

	"media-access/internal/platform/logger"
	"media-access/internal/ports/notify"
)

const defaultBuffer = 32

// Hub mantiene las suscripciones por usuario de esta instancia.
// Implementa notify.Notifier entregando local; con varias instancias se publica
// vía RedisBroker y el hub solo recibe lo que llega de redis.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		log:    log,
	}
}

type Subscription struct {
	UserID string

	ch   chan notify.Event
	hub  *Hub
	once sync.Once
}

// Events se cierra cuando se llama Close.
func (s *Subscription) Events() <-chan notify.Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		UserID: userID,
		ch:     make(chan notify.Event, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.UserID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.UserID)
	}
}

func (h *Hub) Notify(ctx context.Context, ev notify.Event) {
	h.Deliver(ev)
}

// Deliver no bloquea: si un suscriptor tiene el buffer lleno se descarta el evento
// para él (igual va a refrescar con el próximo).
func (h *Hub) Deliver(ev notify.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range ev.Recipients() {
		for sub := range h.subs[userID] {
			select {
			case sub.ch <- ev:
			default:
				h.log.Warn("realtime: subscriber buffer full, dropping event", map[string]any{
					"user_id": userID,
					"topic":   ev.Topic,
				})
			}
		}
	}
}

// Subscribers cuenta las suscripciones abiertas de un usuario.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
