package client

import (
	"context"
	"sync"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
)

// InboxState es la foto completa de lo que el usuario tiene pendiente o recibido.
type InboxState struct {
	Pending        []accessgrants.Request // requests pending dirigidos a mí (owner)
	ActiveGrants   []accessgrants.Grant   // grants activos que otorgué
	ReceivedShares []shares.Share
	RefreshedAt    time.Time
}

// Inbox mantiene InboxState. Cada Refresh reemplaza todo; no hay merge de eventos.
type Inbox struct {
	c        *Client
	onChange func(InboxState)

	mu    sync.Mutex
	state InboxState
}

func (c *Client) NewInbox(onChange func(InboxState)) *Inbox {
	if onChange == nil {
		onChange = func(InboxState) {}
	}
	return &Inbox{c: c, onChange: onChange}
}

// Refresh vuelve a traer las tres listas. Si alguna falla se conserva el estado
// anterior completo.
func (in *Inbox) Refresh(ctx context.Context) (InboxState, error) {
	pending, err := in.c.ListPendingRequests(ctx)
	if err != nil {
		return in.State(), err
	}
	grants, err := in.c.ListActiveGrants(ctx)
	if err != nil {
		return in.State(), err
	}
	received, err := in.c.ListReceivedShares(ctx)
	if err != nil {
		return in.State(), err
	}

	next := InboxState{
		Pending:        pending,
		ActiveGrants:   grants,
		ReceivedShares: received,
		RefreshedAt:    time.Now(),
	}
	in.mu.Lock()
	in.state = next
	in.mu.Unlock()

	in.onChange(next)
	return next, nil
}

func (in *Inbox) State() InboxState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Watch hace un refresh inicial y después uno por cada evento de realtime,
// hasta que se cancela ctx o se corta la conexión.
func (in *Inbox) Watch(ctx context.Context) error {
	events, err := in.c.Subscribe(ctx)
	if err != nil {
		return err
	}
	if _, err := in.Refresh(ctx); err != nil {
		in.c.log.Warn("client: inbox refresh failed", map[string]any{"err": err.Error()})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrTransient
			}
			if _, err := in.Refresh(ctx); err != nil {
				in.c.log.Warn("client: inbox refresh failed", map[string]any{
					"topic": ev.Topic,
					"err":   err.Error(),
				})
			}
		}
	}
}
