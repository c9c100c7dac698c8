package notify

import (
	"context"
	"time"
)

// Topics (equivalentes a las tablas que el front escuchaba por realtime).
const (
	TopicAccessRequests = "access_requests"
	TopicAccessGrants   = "access_grants"
	TopicShares         = "shares"
)

const (
	TypeInsert  = "insert"
	TypeUpdate  = "update"
	TypeExpired = "expired"
)

// Event es una notificación de cambio. OwnerID/ViewerID son los dos participantes;
// ambos reciben el evento. El payload es mínimo: quien lo recibe re-consulta.
type Event struct {
	Topic    string    `json:"topic"`
	Type     string    `json:"type"`
	OwnerID  string    `json:"owner_id"`
	ViewerID string    `json:"viewer_id"`
	RecordID string    `json:"record_id"`
	At       time.Time `json:"at"`
}

// Recipients devuelve los usuarios a los que hay que entregar el evento (sin duplicados).
func (e Event) Recipients() []string {
	out := make([]string, 0, 2)
	if e.OwnerID != "" {
		out = append(out, e.OwnerID)
	}
	if e.ViewerID != "" && e.ViewerID != e.OwnerID {
		out = append(out, e.ViewerID)
	}
	return out
}

// Notifier publica eventos. Best-effort: nunca debe romper la operación que lo dispara.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nop struct{}

func (nop) Notify(context.Context, Event) {}

// Nop descarta todo (tests y modo sin realtime).
func Nop() Notifier { return nop{} }
